// Package app wires the botmeta components together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/botmeta/internal/config"
	"github.com/edgard/botmeta/internal/probe"
	"github.com/edgard/botmeta/internal/scheduler"
	"github.com/edgard/botmeta/internal/server"
	"github.com/edgard/botmeta/internal/telegram"
	"github.com/edgard/botmeta/internal/translate"
)

type httpServer interface {
	Run(ctx context.Context) error
}

type jobScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// App runs the HTTP API and, when enabled, the coverage watch.
type App struct {
	logger    *slog.Logger
	server    httpServer
	scheduler jobScheduler
}

// New builds every component from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := telegram.NewClient(cfg.Telegram, logger)
	prober := probe.NewProber(client, cfg.Probe, nil, logger)
	translator := translate.NewClient(cfg.Gemini, logger)
	srv := server.New(cfg.Server, client, prober, translator, logger)

	a := &App{
		logger: logger.With("component", "orchestrator"),
		server: srv,
	}

	if cfg.Watch.Enabled {
		watch := scheduler.NewWatch(cfg.Watch, prober, client, logger)
		sched, err := scheduler.NewScheduler(cfg.Watch.Schedule, watch, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
		a.scheduler = sched
	}

	return a, nil
}

// Run starts all components and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Run(gCtx); err != nil {
			return err
		}
		if gCtx.Err() == nil {
			a.logger.Warn("HTTP server stopped unexpectedly without context cancellation.")
			return errors.New("http server stopped unexpectedly")
		}
		return nil
	})

	if a.scheduler != nil {
		g.Go(func() error {
			a.logger.Info("Starting scheduler...")
			if err := a.scheduler.Start(gCtx); err != nil {
				a.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")
			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	} else {
		a.logger.Info("Coverage watch disabled")
	}

	a.logger.Info("Orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
