// Package app assembles the fusion service from configuration and runs it.
package app

import (
	"context"
	"fmt"

	"fusor/internal/config"
	"fusor/internal/logger"
	"fusor/internal/pipeline"
	"fusor/internal/store/decisionlog"
	apihttp "fusor/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns the coordinator, the HTTP surface and the decision log.
type App struct {
	cfg         *config.Config
	coordinator *pipeline.Coordinator
	httpServer  *apihttp.Server
	decisions   *decisionlog.Store
}

// NewApp builds the application from configuration without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the pair workers and the HTTP server, blocking until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.coordinator == nil {
		return fmt.Errorf("coordinator not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.httpServer != nil {
		group.Go(func() error {
			if err := a.httpServer.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer a.closeStore()
		return a.coordinator.Run(ctx)
	})

	logger.Infof("app: running env=%s pairs=%d http=%s",
		a.cfg.App.Env, len(a.cfg.Pipeline.Pairs), a.httpAddr())
	return group.Wait()
}

// Coordinator exposes the coordinator instance for replay harnesses.
func (a *App) Coordinator() *pipeline.Coordinator {
	if a == nil {
		return nil
	}
	return a.coordinator
}

func (a *App) closeStore() {
	if a.decisions == nil {
		return
	}
	if err := a.decisions.Close(); err != nil {
		logger.Warnf("app: close decision log: %v", err)
	}
}

func (a *App) httpAddr() string {
	if a.httpServer == nil {
		return "disabled"
	}
	return a.httpServer.Addr()
}
