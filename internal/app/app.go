// Package app wires the long-running components together and manages their
// lifecycle: the HTTP server and the task scheduler run side by side until
// shutdown is signaled or one of them fails.
package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/replycoach/service/internal/server"
)

// App orchestrates the service components.
type App struct {
	logger    *slog.Logger
	server    *server.Server
	scheduler *Scheduler
}

// NewApp creates the orchestrator.
func NewApp(logger *slog.Logger, srv *server.Server, scheduler *Scheduler) *App {
	return &App{
		logger:    logger.With("component", "orchestrator"),
		server:    srv,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails. Shutdown is graceful: the HTTP server drains in-flight
// requests and the scheduler waits for running jobs.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting service orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Start(gCtx)
	})

	g.Go(func() error {
		if err := a.scheduler.Start(); err != nil {
			return err
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
