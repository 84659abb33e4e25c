// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPath names the environment variable that overrides the config path.
	EnvPath = "ABMMARKET_CONFIG"
	// DefaultPath is used when neither a flag nor EnvPath names a file.
	DefaultPath = "config.yaml"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// SecurityConfig seeds one tradable security on the board.
type SecurityConfig struct {
	Symbol            string
	Name              string
	Price             float64
	SharesOutstanding int64 `yaml:"shares_outstanding"`
}

// Market describes the security universe and the price process that drives it.
type Market struct {
	Securities []SecurityConfig
	Process    string  // walk | replay
	Sigma      float64 // stddev of the per-step move as a fraction of price
	MinPrice   float64 `yaml:"min_price"`
	ReplayPath string  `yaml:"replay_path"`
}

// Sim sets the population and the scheduler cadence.
type Sim struct {
	Investors    int
	StartingCash float64 `yaml:"starting_cash"`
	Seed         int64   // 0 draws a seed from the clock
	EvolveEvery  int     `yaml:"evolve_every"`
	Steps        int     // headless run length
}

// Grid sizes the placement grid behind the dashboard.
type Grid struct {
	Width  int
	Height int
}

// StrategyParams groups tunable knobs for the strategy implementations.
type StrategyParams struct {
	TrendLookback int     `yaml:"trend_lookback"`
	LearningRate  float64 `yaml:"learning_rate"`
	Discount      float64
	Exploration   float64
	RLLookback    int `yaml:"rl_lookback"`
}

// Strategy lists the modes newly spawned investors draw from, with the parameter bundle.
type Strategy struct {
	Modes  []string
	Params StrategyParams
}

// Risk encodes guard-rails for how much size one order may take on.
// Zero disables the cap, matching the unconstrained toy market.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
}

// Server holds the dashboard listen address.
type Server struct {
	Addr string
}

// Store configures run persistence. Empty paths disable the matching sink.
type Store struct {
	Path      string // sqlite database file
	FillsPath string `yaml:"fills_path"`
	ExportDir string `yaml:"export_dir"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Market   Market   `yaml:"market"`
	Sim      Sim      `yaml:"sim"`
	Grid     Grid     `yaml:"grid"`
	Strategy Strategy `yaml:"strategy"`
	Risk     Risk     `yaml:"risk"`
	Server   Server   `yaml:"server"`
	Store    Store    `yaml:"store"`
}

// Default returns the stock two-security, five-investor setup.
func Default() *Config {
	return &Config{
		App: App{Name: "abmmarket", Env: "dev", MetricsAddr: ":9109", LogLevel: "info"},
		Market: Market{
			Securities: []SecurityConfig{
				{Symbol: "ACME", Name: "ACME Corp.", Price: 150, SharesOutstanding: 1_000_000},
				{Symbol: "WIDG", Name: "Widgets Conglomerated Inc.", Price: 700, SharesOutstanding: 500_000},
			},
			Process:  "walk",
			Sigma:    0.02,
			MinPrice: 0.01,
		},
		Sim:  Sim{Investors: 5, StartingCash: 10_000, EvolveEvery: 10, Steps: 200},
		Grid: Grid{Width: 10, Height: 10},
		Strategy: Strategy{
			Modes: []string{"trend", "qlearn"},
			Params: StrategyParams{
				TrendLookback: 5,
				LearningRate:  0.1,
				Discount:      0.95,
				Exploration:   0.1,
				RLLookback:    5,
			},
		},
		Server: Server{Addr: ":8521"},
		Store:  Store{Path: "marketsim.db"},
	}
}

// Path resolves the config file location: an explicit flag value wins,
// then EnvPath, then DefaultPath.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the model cannot start from. A population
// larger than the grid would previously wedge placement at runtime, so it is
// refused here instead.
func (c *Config) Validate() error {
	if len(c.Market.Securities) == 0 {
		return fmt.Errorf("no securities configured")
	}
	seen := make(map[string]bool, len(c.Market.Securities))
	for _, sec := range c.Market.Securities {
		if sec.Symbol == "" {
			return fmt.Errorf("security %q missing symbol", sec.Name)
		}
		if seen[sec.Symbol] {
			return fmt.Errorf("duplicate security symbol %s", sec.Symbol)
		}
		seen[sec.Symbol] = true
		if sec.Price <= 0 {
			return fmt.Errorf("security %s: price must be positive, got %.4f", sec.Symbol, sec.Price)
		}
		if sec.SharesOutstanding <= 0 {
			return fmt.Errorf("security %s: shares outstanding must be positive, got %d", sec.Symbol, sec.SharesOutstanding)
		}
	}
	if c.Market.Sigma < 0 {
		return fmt.Errorf("market sigma must not be negative, got %.4f", c.Market.Sigma)
	}
	if c.Market.MinPrice < 0 {
		return fmt.Errorf("market min price must not be negative, got %.4f", c.Market.MinPrice)
	}
	if c.Sim.Investors <= 0 {
		return fmt.Errorf("investors must be positive, got %d", c.Sim.Investors)
	}
	if c.Sim.StartingCash <= 0 {
		return fmt.Errorf("starting cash must be positive, got %.2f", c.Sim.StartingCash)
	}
	if c.Sim.EvolveEvery <= 0 {
		return fmt.Errorf("evolve_every must be positive, got %d", c.Sim.EvolveEvery)
	}
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("grid must have positive dimensions, got %dx%d", c.Grid.Width, c.Grid.Height)
	}
	if capacity := c.Grid.Width * c.Grid.Height; c.Sim.Investors > capacity {
		return fmt.Errorf("%d investors exceed grid capacity %d (%dx%d)", c.Sim.Investors, capacity, c.Grid.Width, c.Grid.Height)
	}
	if len(c.Strategy.Modes) == 0 {
		return fmt.Errorf("no strategy modes configured")
	}
	p := c.Strategy.Params
	if p.LearningRate < 0 || p.LearningRate > 1 {
		return fmt.Errorf("learning rate out of [0,1]: %.4f", p.LearningRate)
	}
	if p.Discount < 0 || p.Discount > 1 {
		return fmt.Errorf("discount out of [0,1]: %.4f", p.Discount)
	}
	if p.Exploration < 0 || p.Exploration > 1 {
		return fmt.Errorf("exploration out of [0,1]: %.4f", p.Exploration)
	}
	if c.Risk.MaxNotionalPerTrade < 0 {
		return fmt.Errorf("max notional per trade must not be negative, got %.2f", c.Risk.MaxNotionalPerTrade)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	return nil
}
