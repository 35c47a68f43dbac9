package app

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/browser/chrome"
	"github.com/johna108/comic-sync/internal/config"
	"github.com/johna108/comic-sync/internal/core"
	transporthttp "github.com/johna108/comic-sync/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.RoomRegistry
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	engine := chrome.New(logger)
	hub := core.NewBroadcastHub()

	registry := core.NewRoomRegistry(engine, hub, core.RegistryConfig{
		DefaultURL: cfg.DefaultURL,
		ChatLimit:  cfg.ChatHistoryLimit,
		Session: core.SessionConfig{
			SampleInterval: cfg.SampleInterval,
			DrainTimeout:   cfg.DrainTimeout,
			StartTimeout:   cfg.SessionStartTimeout,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
		},
	}, logger)

	server := transporthttp.NewServer(registry, hub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		log:             logger,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup stops every room's browser session.
func (a *App) cleanup() {
	a.registry.Close()
	a.log.Info().Msg("rooms closed")
}
