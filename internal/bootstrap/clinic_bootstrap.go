package bootstrap

import (
	"context"

	"clinic_server/config"
	"clinic_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// App bundles the HTTP server, the background worker and the shared
// dependency graph for one process.
type App struct {
	Fiber *fiber.App
	Deps  *Dependencies

	cleanup func()
}

func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, err
	}

	deps.CleanupWorker.Start()

	return &App{
		Fiber:   NewAPI(cfg, deps),
		Deps:    deps,
		cleanup: cleanup,
	}, nil
}

func (a *App) Listen(addr string) error {
	return a.Fiber.Listen(addr)
}

// Shutdown stops accepting requests, drains the worker queue and closes
// all connections. Safe to call once.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Fiber.ShutdownWithContext(ctx)
	if err != nil {
		logger.Error("HTTP shutdown error: %v", err)
	}

	a.Deps.CleanupWorker.Stop(ctx)
	a.cleanup()
	return err
}
