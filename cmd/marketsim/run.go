package main

import (
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MelonMars/ABMMarket/internal/engine"
	"github.com/MelonMars/ABMMarket/internal/execution"
	"github.com/MelonMars/ABMMarket/internal/portfolio"
	"github.com/MelonMars/ABMMarket/internal/store"
	"github.com/MelonMars/ABMMarket/internal/util"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run headless and persist the results",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHeadless()
		},
	}
}

func runHeadless() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := util.NewLogger(cfg.App.LogLevel)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := portfolio.NewLedger(0)
	recorders := []execution.Recorder{ledger}
	if cfg.Store.FillsPath != "" {
		jsonl, err := portfolio.NewJSONLRecorder(cfg.Store.FillsPath)
		if err != nil {
			return fmt.Errorf("open fills recorder: %w", err)
		}
		defer jsonl.Close()
		recorders = append(recorders, jsonl)
	}

	model, err := engine.New(cfg, log, recorders...)
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	log.Info().Int("steps", cfg.Sim.Steps).Int64("seed", model.Seed()).Msg("headless run started")
	done, runErr := model.Run(ctx, cfg.Sim.Steps)
	if runErr != nil {
		log.Warn().Int("completed", done).Msg("run interrupted, persisting what finished")
	}
	finished := time.Now().UTC()

	leaderboard := model.Leaderboard()
	log.Info().Int("steps", done).Int("generations", model.Generation()).
		Int("trades", len(ledger.Snapshot())).Dur("elapsed", finished.Sub(started)).Msg("run complete")
	printLeaderboard(os.Stdout, leaderboard)

	runID := uuid.NewString()
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path, log)
		if err != nil {
			return err
		}
		defer st.Close()
		runID, err = st.SaveRun(store.RunRecord{
			ID:          runID,
			StartedAt:   started,
			FinishedAt:  finished,
			Seed:        model.Seed(),
			Steps:       done,
			Investors:   model.InvestorCount(),
			Config:      cfg,
			Frame:       model.Frame(),
			Leaderboard: leaderboard,
		})
		if err != nil {
			return err
		}
		fmt.Printf("\nrun %s saved to %s\n", runID, cfg.Store.Path)
	}
	if cfg.Store.ExportDir != "" {
		path, err := store.ExportCSV(cfg.Store.ExportDir, runID, model.Frame())
		if err != nil {
			return err
		}
		fmt.Printf("series exported to %s\n", path)
	}
	return nil
}

func printLeaderboard(w io.Writer, entries []engine.LeaderboardEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tINVESTOR\tSTRATEGY\tEQUITY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%s\t$%.2f\n", e.Rank, e.Investor, e.Strategy, e.Equity)
	}
	tw.Flush()
}
