// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/arvidh/inkwell/internal/api"
	"github.com/arvidh/inkwell/internal/noteservice"
	"github.com/arvidh/inkwell/internal/registry"
	"github.com/arvidh/inkwell/internal/sse"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("default_repository", cfg.Data.DefaultRepository),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Initialize repository registry.
	reg, err := registry.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}
	defer reg.Close()

	if err := reg.EnsureDefault(cfg.Data.DefaultRepository); err != nil {
		return fmt.Errorf("ensure default repository: %w", err)
	}

	// Build the in-memory index from the stores.
	session := storagemap.NewSession()
	if err := reloadIndex(reg, session); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Every committed mutation updates the index and is pushed to clients.
	dispatch := storagemap.DispatcherFunc(func(ev storagemap.Event) {
		session.Dispatch(ev)
		broker.PublishMutation(ev)
	})

	svc := noteservice.New(reg, dispatch)
	apiRouter := api.NewRouter(svc, session, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the data directory for repository files created by other
	// processes; a change triggers a full index rebuild.
	g.Go(func() error {
		return registry.Watch(gCtx, reg, logger, func() {
			if err := reloadIndex(reg, session); err != nil {
				logger.Warn("index reload failed", slog.String("error", err.Error()))
				return
			}
			broker.PublishMutation(storagemap.Event{Type: storagemap.EventLoadAll})
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// reloadIndex rebuilds the entire index snapshot from the stores.
func reloadIndex(reg *registry.Registry, session *storagemap.Session) error {
	docs, err := reg.LoadAll()
	if err != nil {
		return err
	}
	session.Dispatch(storagemap.Event{Type: storagemap.EventLoadAll, Docs: docs})
	return storagemap.CheckSnapshot(session.Snapshot())
}
