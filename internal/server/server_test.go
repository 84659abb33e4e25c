package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MelonMars/ABMMarket/internal/config"
	"github.com/MelonMars/ABMMarket/internal/engine"
	"github.com/MelonMars/ABMMarket/internal/util"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Sim.Seed = 42

	srv, err := New(cfg, util.Nop(), func() (*engine.Model, error) {
		return engine.New(cfg, util.Nop())
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s returned %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env wsEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestIndexServesDashboard(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("unexpected content type %s", ct)
	}

	resp2, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", resp2.StatusCode)
	}
}

func TestStatusAndSecuritiesEndpoints(t *testing.T) {
	_, ts := testServer(t)

	var status struct {
		Step      int   `json:"step"`
		Seed      int64 `json:"seed"`
		Investors int   `json:"investors"`
		Grid      struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"grid"`
	}
	getJSON(t, ts.URL+"/api/status", &status)
	if status.Step != 0 || status.Investors != 5 || status.Seed != 42 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Grid.Width != 10 || status.Grid.Height != 10 {
		t.Fatalf("unexpected grid dims %+v", status.Grid)
	}

	var secs struct {
		Count      int `json:"count"`
		Securities []struct {
			Symbol    string  `json:"symbol"`
			Price     float64 `json:"price"`
			MarketCap float64 `json:"market_cap"`
		} `json:"securities"`
	}
	getJSON(t, ts.URL+"/api/securities", &secs)
	if secs.Count != 2 || secs.Securities[0].Symbol != "ACME" {
		t.Fatalf("unexpected securities payload %+v", secs)
	}
	if secs.Securities[0].MarketCap != 150*1_000_000 {
		t.Fatalf("unexpected market cap %.2f", secs.Securities[0].MarketCap)
	}
}

func TestWSStepBroadcastsToAllClients(t *testing.T) {
	_, ts := testServer(t)

	driver := dialWS(t, ts)
	if env := readEnvelope(t, driver); env.Type != "state" || env.State.Step != 0 {
		t.Fatalf("expected initial state at step 0, got %+v", env)
	}

	viewer := dialWS(t, ts)
	if env := readEnvelope(t, viewer); env.Type != "state" || env.State.Step != 0 {
		t.Fatalf("viewer expected initial state, got %+v", env)
	}

	if err := driver.WriteJSON(wsRequest{Type: "step"}); err != nil {
		t.Fatalf("write step: %v", err)
	}

	for _, conn := range []*websocket.Conn{driver, viewer} {
		env := readEnvelope(t, conn)
		if env.Type != "state" || env.State == nil || env.State.Step != 1 {
			t.Fatalf("expected broadcast step 1, got %+v", env)
		}
		if len(env.State.Agents) != 5 {
			t.Fatalf("expected 5 portrayals, got %d", len(env.State.Agents))
		}
	}
}

func TestWSUnknownTypeGetsError(t *testing.T) {
	_, ts := testServer(t)

	conn := dialWS(t, ts)
	readEnvelope(t, conn) // initial state

	if err := conn.WriteJSON(wsRequest{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != "error" || !strings.Contains(env.Error, "dance") {
		t.Fatalf("expected error envelope naming the type, got %+v", env)
	}
}

func TestWSResetRewindsModel(t *testing.T) {
	srv, ts := testServer(t)

	conn := dialWS(t, ts)
	readEnvelope(t, conn)

	for i := 0; i < 3; i++ {
		if err := conn.WriteJSON(wsRequest{Type: "step"}); err != nil {
			t.Fatalf("write step: %v", err)
		}
		readEnvelope(t, conn)
	}
	if got := srv.current().StepCount(); got != 3 {
		t.Fatalf("expected model at step 3, got %d", got)
	}

	if err := conn.WriteJSON(wsRequest{Type: "reset"}); err != nil {
		t.Fatalf("write reset: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != "state" || env.State.Step != 0 {
		t.Fatalf("expected fresh state after reset, got %+v", env)
	}
	if got := srv.current().StepCount(); got != 0 {
		t.Fatalf("expected rebuilt model at step 0, got %d", got)
	}
}

func TestResetEndpoint(t *testing.T) {
	srv, ts := testServer(t)

	srv.current().Step()
	srv.current().Step()

	resp, err := http.Post(ts.URL+"/api/reset", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("POST reset: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := srv.current().StepCount(); got != 0 {
		t.Fatalf("expected step 0 after reset, got %d", got)
	}

	resp2, err := http.Get(ts.URL + "/api/reset")
	if err != nil {
		t.Fatalf("GET reset: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp2.StatusCode)
	}
}

func TestSeriesEndpointGrowsWithSteps(t *testing.T) {
	srv, ts := testServer(t)

	for i := 0; i < 4; i++ {
		srv.current().Step()
	}

	var frame struct {
		Steps  []int                `json:"steps"`
		Names  []string             `json:"names"`
		Series map[string][]float64 `json:"series"`
	}
	getJSON(t, ts.URL+"/api/series", &frame)
	if len(frame.Steps) != 4 {
		t.Fatalf("expected 4 collected steps, got %d", len(frame.Steps))
	}
	if len(frame.Series[engine.CapSeries("ACME")]) != 4 {
		t.Fatalf("expected 4 cap points, got %d", len(frame.Series[engine.CapSeries("ACME")]))
	}
	found := false
	for _, name := range frame.Names {
		if name == engine.TotalEquitySeries {
			found = true
		}
	}
	if !found {
		t.Fatalf("total equity series missing from %v", frame.Names)
	}
}
