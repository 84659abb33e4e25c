package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MelonMars/ABMMarket/internal/config"
	"github.com/MelonMars/ABMMarket/internal/engine"
	"github.com/MelonMars/ABMMarket/internal/metrics"
	"github.com/MelonMars/ABMMarket/internal/server"
	"github.com/MelonMars/ABMMarket/internal/util"
)

func serveCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "apply safe config file changes without restarting")
	return cmd
}

func runServe(watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := util.NewLogger(cfg.App.LogLevel)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	srv, err := server.New(cfg, log, func() (*engine.Model, error) {
		return engine.New(cfg, log)
	})
	if err != nil {
		return err
	}

	if watch {
		watcher, err := config.NewWatcher(config.Path(flagConfig), log)
		if err != nil {
			log.Warn().Err(err).Msg("config watcher unavailable")
		} else {
			// Only the log level is safe to change under a live model;
			// securities, population and grid changes need a reset.
			watcher.OnChange(func(next *config.Config) {
				util.SetLevel(next.App.LogLevel)
				log.Info().Str("log_level", next.App.LogLevel).Msg("applied config change")
			})
			if err := watcher.Start(); err != nil {
				log.Warn().Err(err).Msg("config watcher failed to start")
			} else {
				defer watcher.Stop()
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("shut down cleanly")
	return nil
}
