package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "abmmarket-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.LogLevel != "debug" {
		t.Fatalf("unexpected App.LogLevel: %s", cfg.App.LogLevel)
	}
	if len(cfg.Market.Securities) != 2 {
		t.Fatalf("expected 2 securities, got %d", len(cfg.Market.Securities))
	}
	acme := cfg.Market.Securities[0]
	if acme.Symbol != "ACME" || acme.Price != 150 || acme.SharesOutstanding != 1_000_000 {
		t.Fatalf("unexpected first security: %+v", acme)
	}
	if cfg.Market.Process != "walk" {
		t.Fatalf("unexpected process: %s", cfg.Market.Process)
	}
	if cfg.Market.Sigma != 0.02 {
		t.Fatalf("unexpected sigma: %.4f", cfg.Market.Sigma)
	}
	if cfg.Market.MinPrice != 0.01 {
		t.Fatalf("unexpected min price: %.4f", cfg.Market.MinPrice)
	}
	if cfg.Sim.Investors != 5 {
		t.Fatalf("unexpected investors: %d", cfg.Sim.Investors)
	}
	if cfg.Sim.StartingCash != 10_000 {
		t.Fatalf("unexpected starting cash: %.2f", cfg.Sim.StartingCash)
	}
	if cfg.Sim.Seed != 42 {
		t.Fatalf("unexpected seed: %d", cfg.Sim.Seed)
	}
	if cfg.Sim.EvolveEvery != 10 {
		t.Fatalf("unexpected evolve cadence: %d", cfg.Sim.EvolveEvery)
	}
	if cfg.Grid.Width != 10 || cfg.Grid.Height != 10 {
		t.Fatalf("unexpected grid: %dx%d", cfg.Grid.Width, cfg.Grid.Height)
	}
	if len(cfg.Strategy.Modes) != 2 || cfg.Strategy.Modes[1] != "qlearn" {
		t.Fatalf("unexpected strategy modes: %+v", cfg.Strategy.Modes)
	}
	if cfg.Strategy.Params.LearningRate != 0.1 {
		t.Fatalf("unexpected learning rate: %.4f", cfg.Strategy.Params.LearningRate)
	}
	if cfg.Strategy.Params.Discount != 0.95 {
		t.Fatalf("unexpected discount: %.4f", cfg.Strategy.Params.Discount)
	}
	if cfg.Risk.MaxNotionalPerTrade != 5000 {
		t.Fatalf("unexpected max notional: %.2f", cfg.Risk.MaxNotionalPerTrade)
	}
	if cfg.Server.Addr != ":8521" {
		t.Fatalf("unexpected server addr: %s", cfg.Server.Addr)
	}
	if cfg.Store.Path != "runs.db" {
		t.Fatalf("unexpected store path: %s", cfg.Store.Path)
	}
	if cfg.Store.FillsPath != "fills.jsonl" {
		t.Fatalf("unexpected fills path: %s", cfg.Store.FillsPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Default()
	want.Sim.Investors = 9

	if err := Save(path, want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.Sim.Investors != 9 {
		t.Fatalf("expected 9 investors after round trip, got %d", got.Sim.Investors)
	}
	if got.Market.Securities[1].Symbol != "WIDG" {
		t.Fatalf("expected WIDG after round trip, got %s", got.Market.Securities[1].Symbol)
	}
}

func TestValidateDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no securities", func(c *Config) { c.Market.Securities = nil }},
		{"duplicate symbol", func(c *Config) { c.Market.Securities[1].Symbol = "ACME" }},
		{"zero price", func(c *Config) { c.Market.Securities[0].Price = 0 }},
		{"negative shares", func(c *Config) { c.Market.Securities[0].SharesOutstanding = -1 }},
		{"zero investors", func(c *Config) { c.Sim.Investors = 0 }},
		{"zero cash", func(c *Config) { c.Sim.StartingCash = 0 }},
		{"zero evolve cadence", func(c *Config) { c.Sim.EvolveEvery = 0 }},
		{"zero grid", func(c *Config) { c.Grid.Width = 0 }},
		{"overfull grid", func(c *Config) { c.Grid.Width, c.Grid.Height, c.Sim.Investors = 2, 2, 5 }},
		{"no modes", func(c *Config) { c.Strategy.Modes = nil }},
		{"exploration above one", func(c *Config) { c.Strategy.Params.Exploration = 1.5 }},
		{"negative notional cap", func(c *Config) { c.Risk.MaxNotionalPerTrade = -1 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestPathPrecedence(t *testing.T) {
	t.Setenv(EnvPath, "from-env.yaml")
	if got := Path("from-flag.yaml"); got != "from-flag.yaml" {
		t.Fatalf("flag should win, got %s", got)
	}
	if got := Path(""); got != "from-env.yaml" {
		t.Fatalf("env should win over default, got %s", got)
	}
	t.Setenv(EnvPath, "")
	if got := Path(""); got != DefaultPath {
		t.Fatalf("expected default path, got %s", got)
	}
}
