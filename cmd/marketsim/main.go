package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MelonMars/ABMMarket/internal/config"
)

var (
	flagConfig   string
	flagLogLevel string
	flagSeed     int64
	flagSteps    int
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "marketsim",
		Short:         "Agent-based toy stock market",
		Long:          "marketsim runs an evolutionary stock market of trend followers and q-learners,\neither headless or behind a live browser dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default "+config.DefaultPath+", or $"+config.EnvPath+")")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "override the configured seed (0 keeps config)")
	root.PersistentFlags().IntVar(&flagSteps, "steps", 0, "override the configured headless step count")

	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(runsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file, falling back to the built-in
// defaults when nothing was named and nothing sits at the default path.
// Flag overrides apply before validation.
func loadConfig() (*config.Config, error) {
	path := config.Path(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		if flagConfig == "" && errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}

	if flagLogLevel != "" {
		cfg.App.LogLevel = flagLogLevel
	}
	if flagSeed != 0 {
		cfg.Sim.Seed = flagSeed
	}
	if flagSteps != 0 {
		cfg.Sim.Steps = flagSteps
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
