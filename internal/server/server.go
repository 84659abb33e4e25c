// Package server exposes the model to a browser: an embedded dashboard
// page, a JSON API, and a websocket the page drives the scheduler over.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MelonMars/ABMMarket/internal/config"
	"github.com/MelonMars/ABMMarket/internal/engine"
	"github.com/MelonMars/ABMMarket/internal/util"
)

//go:embed static
var staticFS embed.FS

// Factory builds a fresh model for startup and for resets.
type Factory func() (*engine.Model, error)

// Server owns the dashboard HTTP surface. The model pointer swaps on
// reset; everything else reads it through current().
type Server struct {
	cfg   *config.Config
	log   zerolog.Logger
	build Factory

	httpSrv   *http.Server
	startedAt time.Time

	mu    sync.Mutex
	model *engine.Model

	clientMu sync.Mutex
	clients  map[*client]struct{}
}

// New builds the server and its initial model.
func New(cfg *config.Config, log zerolog.Logger, build Factory) (*Server, error) {
	model, err := build()
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		log:       util.Component(log, "server"),
		build:     build,
		startedAt: time.Now(),
		model:     model,
		clients:   make(map[*client]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/securities", s.handleSecurities)
	mux.HandleFunc("/api/investors", s.handleInvestors)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/reset", s.handleReset)

	s.httpSrv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler exposes the route table, mostly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Serve listens on the configured address and blocks until Shutdown.
// A graceful close returns nil.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpSrv.Addr, err)
	}
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("dashboard up")
	if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown closes every websocket client and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientMu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]struct{})
	s.clientMu.Unlock()
	return s.httpSrv.Shutdown(ctx)
}

// current returns the live model.
func (s *Server) current() *engine.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// reset rebuilds the model from config and broadcasts its first frame.
func (s *Server) reset() (engine.State, error) {
	model, err := s.build()
	if err != nil {
		return engine.State{}, fmt.Errorf("rebuild model: %w", err)
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()

	state := model.State()
	s.broadcastState(state)
	s.log.Info().Int64("seed", model.Seed()).Msg("model reset")
	return state, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "dashboard page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/status — scheduler position and population size.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m := s.current()
	s.writeJSON(w, map[string]interface{}{
		"app":        s.cfg.App.Name,
		"uptime_s":   time.Since(s.startedAt).Seconds(),
		"step":       m.StepCount(),
		"generation": m.Generation(),
		"seed":       m.Seed(),
		"investors":  m.InvestorCount(),
		"grid": map[string]int{
			"width":  s.cfg.Grid.Width,
			"height": s.cfg.Grid.Height,
		},
	})
}

// GET /api/securities — current quotes.
func (s *Server) handleSecurities(w http.ResponseWriter, _ *http.Request) {
	quotes := s.current().Quotes()
	s.writeJSON(w, map[string]interface{}{"securities": quotes, "count": len(quotes)})
}

// GET /api/investors — live population with marked accounts.
func (s *Server) handleInvestors(w http.ResponseWriter, _ *http.Request) {
	views := s.current().Investors()
	s.writeJSON(w, map[string]interface{}{"investors": views, "count": len(views)})
}

// GET /api/series — the full collected frame for charts.
func (s *Server) handleSeries(w http.ResponseWriter, _ *http.Request) {
	frame := s.current().Frame()
	s.writeJSON(w, map[string]interface{}{
		"steps":  frame.Steps,
		"names":  frame.Names,
		"series": frame.Series,
		"agents": frame.Agents,
	})
}

// POST /api/reset — rebuild the model from config.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state, err := s.reset()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]interface{}{"status": "reset", "state": state})
}
