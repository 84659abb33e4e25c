package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/MelonMars/ABMMarket/internal/config"
)

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Market Sim Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit simulation knobs")
		fmt.Println("3) Edit strategy settings")
		fmt.Println("4) Edit securities")
		fmt.Println("5) Save config")
		fmt.Println("6) Run headless simulation")
		fmt.Println("7) Launch dashboard")
		fmt.Println("8) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editSim(reader, cfg)
		case "3":
			editStrategy(reader, cfg)
		case "4":
			editSecurities(reader, cfg)
		case "5":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "6":
			launchRun(reader)
		case "7":
			launchServe(reader)
		case "8":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Investors: %d (starting cash $%.2f)\n", cfg.Sim.Investors, cfg.Sim.StartingCash)
	fmt.Printf("Evolution every %d steps | headless run %d steps\n", cfg.Sim.EvolveEvery, cfg.Sim.Steps)
	fmt.Printf("Seed: %d (0 draws from the clock)\n", cfg.Sim.Seed)
	fmt.Printf("Grid: %dx%d\n", cfg.Grid.Width, cfg.Grid.Height)
	fmt.Println("Strategy modes:", strings.Join(cfg.Strategy.Modes, ", "))
	fmt.Printf("Price process: %s (sigma %.3f, floor $%.2f)\n", cfg.Market.Process, cfg.Market.Sigma, cfg.Market.MinPrice)
	for _, sec := range cfg.Market.Securities {
		fmt.Printf("  %s %q $%.2f x %d shares\n", sec.Symbol, sec.Name, sec.Price, sec.SharesOutstanding)
	}
	fmt.Printf("Dashboard: %s | metrics: %s\n", cfg.Server.Addr, cfg.App.MetricsAddr)
}

func editSim(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Simulation ---")
	cfg.Sim.Investors = promptInt(reader, "Investors", cfg.Sim.Investors)
	cfg.Sim.StartingCash = promptFloat(reader, "Starting cash (USD)", cfg.Sim.StartingCash)
	cfg.Sim.EvolveEvery = promptInt(reader, "Evolve every N steps", cfg.Sim.EvolveEvery)
	cfg.Sim.Steps = promptInt(reader, "Headless run steps", cfg.Sim.Steps)
	cfg.Sim.Seed = promptInt64(reader, "Seed (0 = clock)", cfg.Sim.Seed)
	cfg.Grid.Width = promptInt(reader, "Grid width", cfg.Grid.Width)
	cfg.Grid.Height = promptInt(reader, "Grid height", cfg.Grid.Height)
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Strategy ---")
	fmt.Printf("Current modes: %s\n", strings.Join(cfg.Strategy.Modes, ", "))
	fmt.Print("Enter modes comma-separated (trend, qlearn; blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		parts := strings.Split(strings.TrimSpace(line), ",")
		cfg.Strategy.Modes = nil
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Strategy.Modes = append(cfg.Strategy.Modes, trimmed)
			}
		}
	}
	cfg.Strategy.Params.TrendLookback = promptInt(reader, "Trend lookback", cfg.Strategy.Params.TrendLookback)
	cfg.Strategy.Params.RLLookback = promptInt(reader, "RL lookback", cfg.Strategy.Params.RLLookback)
	cfg.Strategy.Params.LearningRate = promptFloat(reader, "Learning rate", cfg.Strategy.Params.LearningRate)
	cfg.Strategy.Params.Discount = promptFloat(reader, "Discount", cfg.Strategy.Params.Discount)
	cfg.Strategy.Params.Exploration = promptFloat(reader, "Exploration", cfg.Strategy.Params.Exploration)
}

func editSecurities(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Securities ---")
	for i := range cfg.Market.Securities {
		sec := &cfg.Market.Securities[i]
		fmt.Printf("%s (%s)\n", sec.Symbol, sec.Name)
		sec.Price = promptFloat(reader, "  Starting price", sec.Price)
		sec.SharesOutstanding = promptInt64(reader, "  Shares outstanding", sec.SharesOutstanding)
	}
	fmt.Print("Add a security? Enter symbol (blank to skip): ")
	line, _ := reader.ReadString('\n')
	symbol := strings.ToUpper(strings.TrimSpace(line))
	if symbol == "" {
		return
	}
	fmt.Print("Name: ")
	name, _ := reader.ReadString('\n')
	sec := config.SecurityConfig{
		Symbol:            symbol,
		Name:              strings.TrimSpace(name),
		Price:             promptFloat(reader, "Starting price", 100),
		SharesOutstanding: promptInt64(reader, "Shares outstanding", 1_000_000),
	}
	cfg.Market.Securities = append(cfg.Market.Securities, sec)
	fmt.Printf("added %s\n", symbol)
}

func launchRun(reader *bufio.Reader) {
	launch(reader, "Running headless simulation...", "run")
}

func launchServe(reader *bufio.Reader) {
	launch(reader, "Launching dashboard server...", "serve")
}

func launch(reader *bufio.Reader, banner, sub string) {
	fmt.Println(banner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/marketsim", sub)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptInt(reader *bufio.Reader, label string, current int) int {
	fmt.Printf("%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.Atoi(line)
	if err != nil {
		fmt.Printf("invalid number, keeping %d\n", current)
		return current
	}
	return val
}

func promptInt64(reader *bufio.Reader, label string, current int64) int64 {
	fmt.Printf("%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %d\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(locateConfig())
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("no config file found, starting from defaults")
		return config.Default(), nil
	}
	return cfg, err
}

func saveConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	return config.Path("")
}
