// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tatami/internal/api"
	"github.com/starford/tatami/internal/codec"
	"github.com/starford/tatami/internal/mcpserver"
	"github.com/starford/tatami/internal/record"
	"github.com/starford/tatami/internal/service"
	"github.com/starford/tatami/internal/sse"
	"github.com/starford/tatami/internal/storage"
	"github.com/starford/tatami/internal/store"
	"github.com/starford/tatami/internal/watcher"
)

var errConfigRequired = errors.New("config is required")

// NewLogger builds the structured JSON logger described by cfg.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Runtime holds the opened stores of every built-in family.
type Runtime struct {
	Service *service.Service

	dirs map[string]*storage.FS // fs driver only, keyed by family name
	db   *storage.SQLite        // sqlite driver only
}

// Open opens one store per built-in family on the configured storage driver.
// opts are applied to every store.
func Open(cfg *Config, logger *slog.Logger, opts ...store.Option) (*Runtime, error) {
	c, err := codec.New(cfg.Storage.Format)
	if err != nil {
		return nil, err
	}
	opts = append([]store.Option{store.WithLogger(logger)}, opts...)

	rt := &Runtime{dirs: make(map[string]*storage.FS)}
	var stores []*store.Store

	switch cfg.Storage.Driver {
	case DriverSQLite:
		db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		rt.db = db
		for _, f := range record.Families() {
			stores = append(stores, store.New(f, db.Backend(f.Dir), c, opts...))
		}
	default:
		for _, f := range record.Families() {
			dir := filepath.Join(cfg.Storage.Path, f.Dir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s dir: %w", f.Name, err)
			}
			backend, err := storage.NewFS(dir, c.Format())
			if err != nil {
				return nil, fmt.Errorf("init storage: %w", err)
			}
			rt.dirs[f.Name] = backend
			stores = append(stores, store.New(f, backend, c, opts...))
		}
	}

	rt.Service = service.New(logger, stores...)
	return rt, nil
}

// Close releases the storage backend.
func (rt *Runtime) Close() error {
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

// watch runs one watcher per file-backed family, starting a clean pass
// whenever its documents change on disk.
func (rt *Runtime) watch(ctx context.Context, g *errgroup.Group, debounce time.Duration, logger *slog.Logger) {
	for family, backend := range rt.dirs {
		g.Go(func() error {
			return watcher.Watch(ctx, backend.Root(), backend.Ext(), debounce, logger, func(keys []string) {
				rep, err := rt.Service.Clean(ctx, family)
				if err != nil {
					logger.Error("watcher: clean failed",
						slog.String("family", family),
						slog.Any("changed", keys),
						slog.String("error", err.Error()))
					return
				}
				logger.Debug("watcher: clean done",
					slog.String("family", family),
					slog.Int("writes", rep.Writes))
			})
		})
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg, os.Stdout)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := Open(cfg, logger, store.WithListener(broker.PublishRecordEvent))
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Service.OnClean(broker.PublishCleanReport)

	// Bring every family to a consistent state before serving.
	if _, err := rt.Service.CleanAll(ctx); err != nil {
		logger.Warn("initial clean failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(rt.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	if cfg.Reconcile.Watch {
		rt.watch(gCtx, g, cfg.Reconcile.Debounce, logger)
	}

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
		defer signal.Stop(quit)

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

		// A non-nil result cancels gCtx, which stops the watchers.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = NewLogger(app.config, os.Stderr)
	}

	rt, err := Open(app.config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.Service).ServeStdio()
}
