package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MelonMars/ABMMarket/internal/config"
	"github.com/MelonMars/ABMMarket/internal/engine"
	"github.com/MelonMars/ABMMarket/internal/util"
)

func testRecord(id string, started time.Time) RunRecord {
	return RunRecord{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Seed:       42,
		Steps:      3,
		Investors:  5,
		Config:     config.Default(),
		Frame: engine.Frame{
			Steps: []int{1, 2, 3},
			Names: []string{"ACME market cap", "total equity"},
			Series: map[string][]float64{
				"ACME market cap": {150e6, 151e6, 149e6},
				"total equity":    {50_000, 50_100, 49_900},
			},
		},
		Leaderboard: []engine.LeaderboardEntry{
			{Rank: 1, Investor: 2, Strategy: "TrendFollower(lookback=4)", Equity: 10_500},
			{Rank: 2, Investor: 0, Strategy: "QLearner(lr=0.10,discount=0.95,eps=0.10,lookback=5)", Equity: 9_900},
		},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), util.Nop())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadRun(t *testing.T) {
	s := openStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.SaveRun(testRecord("run-1", started))
	if err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("expected explicit id kept, got %s", id)
	}

	detail, err := s.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun returned error: %v", err)
	}
	if detail.Seed != 42 || detail.Steps != 3 || detail.Investors != 5 {
		t.Fatalf("unexpected detail %+v", detail.RunSummary)
	}
	if !detail.StartedAt.Equal(started) {
		t.Fatalf("started_at drifted: %v", detail.StartedAt)
	}
	if len(detail.Leaderboard) != 2 || detail.Leaderboard[0].Investor != 2 {
		t.Fatalf("unexpected leaderboard %+v", detail.Leaderboard)
	}
	if !strings.Contains(detail.ConfigJSON, "ACME") {
		t.Fatalf("config snapshot missing securities: %s", detail.ConfigJSON)
	}
}

func TestSaveRunGeneratesID(t *testing.T) {
	s := openStore(t)

	id, err := s.SaveRun(testRecord("", time.Now()))
	if err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	if _, err := s.LoadRun(id); err != nil {
		t.Fatalf("generated run not readable: %v", err)
	}
}

func TestRunsListsNewestFirst(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if _, err := s.SaveRun(testRecord(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := s.Runs(0)
	if err != nil {
		t.Fatalf("Runs returned error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[2].ID != "old" {
		t.Fatalf("unexpected order: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := s.Runs(1)
	if err != nil {
		t.Fatalf("Runs(1) returned error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "new" {
		t.Fatalf("unexpected limited listing %+v", limited)
	}
}

func TestSeriesRoundTrip(t *testing.T) {
	s := openStore(t)
	if _, err := s.SaveRun(testRecord("run-series", time.Now())); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	steps, series, err := s.Series("run-series")
	if err != nil {
		t.Fatalf("Series returned error: %v", err)
	}
	if len(steps) != 3 || steps[0] != 1 || steps[2] != 3 {
		t.Fatalf("unexpected steps %v", steps)
	}
	caps := series["ACME market cap"]
	if len(caps) != 3 || caps[2] != 149e6 {
		t.Fatalf("unexpected caps %v", caps)
	}
}

func TestLoadRunMissing(t *testing.T) {
	s := openStore(t)
	if _, err := s.LoadRun("ghost"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("run-csv", time.Now())

	path, err := ExportCSV(dir, rec.ID, rec.Frame)
	if err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "step" || rows[0][1] != "ACME market cap" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "1" || rows[3][2] != "49900" {
		t.Fatalf("unexpected cells %v / %v", rows[1], rows[3])
	}
}
