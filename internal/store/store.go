// Package store persists finished runs to SQLite so headless
// experiments survive the process and can be listed later.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/MelonMars/ABMMarket/internal/config"
	"github.com/MelonMars/ABMMarket/internal/engine"
	"github.com/MelonMars/ABMMarket/internal/util"
)

// Store wraps the runs database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// RunSummary is the listing row for one persisted run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Seed       int64     `json:"seed"`
	Steps      int       `json:"steps"`
	Investors  int       `json:"investors"`
}

// RunRecord is everything SaveRun persists for one finished run.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Seed        int64
	Steps       int
	Investors   int
	Config      *config.Config
	Frame       engine.Frame
	Leaderboard []engine.LeaderboardEntry
}

// RunDetail is a summary plus what the listing omits.
type RunDetail struct {
	RunSummary
	ConfigJSON  string
	Leaderboard []engine.LeaderboardEntry
}

// Open opens (or creates) the database and applies the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, log: util.Component(log, "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.log.Debug().Str("path", path).Msg("run store opened")
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			investors INTEGER NOT NULL,
			config TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_series (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_model_series_run ON model_series(run_id, name)`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			run_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			investor INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			equity REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_run ON leaderboard(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun persists one finished run in a single transaction and
// returns its id, generating one when the record carries none.
func (s *Store) SaveRun(rec RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cfgJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, started_at, finished_at, seed, steps, investors, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.Unix(), rec.FinishedAt.Unix(), rec.Seed, rec.Steps, rec.Investors, string(cfgJSON))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	seriesStmt, err := tx.Prepare(`INSERT INTO model_series (run_id, step, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare series insert: %w", err)
	}
	defer seriesStmt.Close()
	for _, name := range rec.Frame.Names {
		col := rec.Frame.Series[name]
		for i, step := range rec.Frame.Steps {
			if i >= len(col) {
				break
			}
			if _, err := seriesStmt.Exec(rec.ID, step, name, col[i]); err != nil {
				return "", fmt.Errorf("insert series %s: %w", name, err)
			}
		}
	}

	for _, entry := range rec.Leaderboard {
		_, err := tx.Exec(`INSERT INTO leaderboard (run_id, rank, investor, strategy, equity) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, entry.Rank, entry.Investor, entry.Strategy, entry.Equity)
		if err != nil {
			return "", fmt.Errorf("insert leaderboard: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	s.log.Info().Str("run", rec.ID).Int("steps", rec.Steps).Msg("run saved")
	return rec.ID, nil
}

// Runs lists persisted runs, newest first.
func (s *Store) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, seed, steps, investors
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Seed, &r.Steps, &r.Investors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadRun reads one run back with its leaderboard.
func (s *Store) LoadRun(id string) (*RunDetail, error) {
	var detail RunDetail
	var started, finished int64
	err := s.db.QueryRow(`SELECT id, started_at, finished_at, seed, steps, investors, config
		FROM runs WHERE id = ?`, id).
		Scan(&detail.ID, &started, &finished, &detail.Seed, &detail.Steps, &detail.Investors, &detail.ConfigJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	detail.StartedAt = time.Unix(started, 0).UTC()
	detail.FinishedAt = time.Unix(finished, 0).UTC()

	rows, err := s.db.Query(`SELECT rank, investor, strategy, equity
		FROM leaderboard WHERE run_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry engine.LeaderboardEntry
		if err := rows.Scan(&entry.Rank, &entry.Investor, &entry.Strategy, &entry.Equity); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		detail.Leaderboard = append(detail.Leaderboard, entry)
	}
	return &detail, rows.Err()
}

// Series reads one run's model series back in step order.
func (s *Store) Series(runID string) ([]int, map[string][]float64, error) {
	rows, err := s.db.Query(`SELECT step, name, value FROM model_series
		WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	series := make(map[string][]float64)
	var steps []int
	seen := make(map[int]bool)
	for rows.Next() {
		var step int
		var name string
		var value float64
		if err := rows.Scan(&step, &name, &value); err != nil {
			return nil, nil, fmt.Errorf("scan series: %w", err)
		}
		if !seen[step] {
			seen[step] = true
			steps = append(steps, step)
		}
		series[name] = append(series[name], value)
	}
	return steps, series, rows.Err()
}
