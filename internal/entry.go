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

	"github.com/starford/cogninote/internal/api"
	"github.com/starford/cogninote/internal/inbox"
	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/mcpserver"
	"github.com/starford/cogninote/internal/noteservice"
	"github.com/starford/cogninote/internal/repository"
	"github.com/starford/cogninote/internal/sse"
	"github.com/starford/cogninote/internal/storage"
)

// Version is reported by the MCP server.
const Version = "1.0.0"

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// open builds the store, repository and knowledge client shared by both
// run modes. The returned close func releases the store.
func (a *application) open(ctx context.Context, logger *slog.Logger) (*repository.Repository, knowledge.Service, func(), error) {
	cfg := a.config

	store := a.store
	if store == nil {
		var err error
		store, err = storage.Open(cfg.Store.Driver, cfg.Store.Path, cfg.Store.Key)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init storage: %w", err)
		}
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", slog.String("error", err.Error()))
		}
	}

	repo, err := repository.New(ctx, store)
	if err != nil {
		closeStore()
		return nil, nil, nil, fmt.Errorf("load notes: %w", err)
	}
	logger.Info("notes loaded", slog.Int("count", repo.Len()))

	know := a.knowledge
	if know == nil {
		know, err = knowledge.New(ctx, cfg.Knowledge.Client(), logger)
		if err != nil {
			closeStore()
			return nil, nil, nil, fmt.Errorf("init knowledge service: %w", err)
		}
	}

	return repo, know, closeStore, nil
}

// newNoteService wires the service and its event broker. graph.updated
// carries the current stats, and keyword expansion state is dropped when a
// session's last event stream disconnects.
func newNoteService(cfg *Config, repo *repository.Repository, know knowledge.Service, logger *slog.Logger) (*noteservice.Service, *sse.Broker) {
	var svc *noteservice.Service
	broker := sse.NewBroker(cfg.SSE.GraphThrottle,
		sse.WithGraphSource(func() any { return svc.Stats() }),
		sse.WithSessionEnd(func(session string) { svc.ForgetKeywords(session) }),
	)
	svc = noteservice.NewService(repo, know, cfg.NoteService(), broker, logger)
	return svc, broker
}

// newHTTPHandler builds the root router: health checks plus the API under /api.
func newHTTPHandler(cfg *Config, svc *noteservice.Service, broker *sse.Broker) http.Handler {
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
		_, _ = fmt.Fprintf(w, `{"status":"ok","notes":%d}`, svc.Stats().Notes)
	})

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))
	return r
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("knowledge_provider", cfg.Knowledge.Provider),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	repo, know, closeStore, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, broker := newNoteService(cfg, repo, know, logger)
	defer broker.Close()
	defer svc.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, svc, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Inbox.Enabled() {
		ib, err := inbox.New(cfg.Inbox.Path, cfg.Inbox.Settle, svc, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := ib.Watch(gCtx); err != nil {
				logger.Error("inbox watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the inbox watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	repo, know, closeStore, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := noteservice.NewService(repo, know, cfg.NoteService(), nil, logger)
	defer svc.Close()

	logger.Info("MCP server starting", slog.String("transport", "stdio"))
	if err := mcpserver.New(svc, Version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
