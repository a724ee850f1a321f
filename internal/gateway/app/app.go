package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"summeriq/internal/config"
	"summeriq/internal/gateway/handler"
	"summeriq/internal/gateway/server"
	"summeriq/internal/logging"
)

type App struct {
	server *server.Server
	deps   *Deps
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)

	// Dependencies
	deps, err := Build(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependencies: %w", err)
	}

	projectHandler := handler.NewProjectHandler(deps.Project, handler.Options{
		UploadMaxBytes: cfg.UploadMaxBytes,
		Logger:         log.Named("handler"),
	})
	eventsHandler := handler.NewEventsHandler(deps.Project, deps.Events, log.Named("events"))

	// Routing & Server
	mux := server.NewMux(projectHandler, eventsHandler, log)
	srv := server.New(cfg.Port, mux, log)

	return &App{
		server: srv,
		deps:   deps,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(a.server.Shutdown(ctx), a.deps.Close())
}
