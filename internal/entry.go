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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notecommits/internal/api"
	"github.com/starford/notecommits/internal/index"
	"github.com/starford/notecommits/internal/noteservice"
	"github.com/starford/notecommits/internal/spotlight"
	"github.com/starford/notecommits/internal/sse"
	"github.com/starford/notecommits/internal/storage"
	"github.com/starford/notecommits/internal/tracker"
)

// components are the services shared by every entry point.
type components struct {
	cfg       *Config
	logger    *slog.Logger
	store     *storage.FS
	db        *index.DB
	notes     *noteservice.Service
	tracker   *tracker.Tracker
	spotlight *spotlight.Service
}

func (c *components) Close() error {
	return c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout, logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap opens the vault and the index, syncs the index with the vault
// and restores the persisted tracker and spotlight state. pub may be nil.
func bootstrap(ctx context.Context, app *application, pub tracker.Publisher) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Duration("reconcile_interval", cfg.Commits.ReconcileInterval))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	notes := noteservice.NewService(store, db, logger)

	tr := tracker.New(notes, db, pub, logger, cfg.Commits.Settings())
	if err := tr.Load(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load commits: %w", err)
	}

	spot := spotlight.NewService(notes, db, nil,
		spotlight.WithDefaults(cfg.Spotlight.Width, cfg.Spotlight.Height))
	if err := spot.Load(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load spotlight: %w", err)
	}

	return &components{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		db:        db,
		notes:     notes,
		tracker:   tr,
		spotlight: spot,
	}, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := bootstrap(ctx, app, broker)
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	// Build API router. The SSE endpoint shares the API auth.
	apiRouter := api.NewRouter(c.tracker, c.spotlight, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := c.db.Ping(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; every index change is fed to the tracker.
	g.Go(func() error {
		err := index.Watch(gCtx, c.db, c.store, c.store.Root(), logger, func(ev index.Event) {
			c.tracker.HandleEvent(gCtx, ev)
		})
		if err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		return nil
	})

	// Periodic reconciliation catches changes the watcher missed.
	g.Go(func() error {
		return c.tracker.Run(gCtx, cfg.Commits.ReconcileInterval)
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

		// Stops the watcher and the reconcile loop.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context once the HTTP server is down.
var errShutdown = errors.New("shutdown")

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, `{"status":"`+status+`"}`)
}
