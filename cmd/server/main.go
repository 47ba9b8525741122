// Command server exposes the search engine over HTTP and JSON-RPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/hypersearch/internal/config"
	xerrors "github.com/copyleftdev/hypersearch/internal/errors"
	"github.com/copyleftdev/hypersearch/internal/logging"
	"github.com/copyleftdev/hypersearch/internal/metrics"
	"github.com/copyleftdev/hypersearch/internal/server"
)

const serviceName = "hypersearch"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.WithFields(map[string]interface{}{
		"service": serviceName,
		"env":     cfg.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer); err != nil {
		logger.Fatal("Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("Server exited properly")
}

// run serves until ctx is done, then drains HTTP requests and cancels the
// searches still running.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) error {
	engineLogger := logging.NewZapLogger(logger)
	defer func() { _ = engineLogger.Sync() }()

	collectors, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv, err := server.NewServer(cfg, logger,
		server.WithZapLogger(engineLogger),
		server.WithMetrics(collectors),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      newRouter(cfg, logger, srv, gatherer),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", map[string]interface{}{
			"address":        httpServer.Addr,
			"max_concurrent": cfg.Search.MaxConcurrent,
			"max_jobs":       cfg.Search.MaxJobs,
		})
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = srv.Close()
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	// Searches stop at their next iteration boundary; a scorer that never
	// returns keeps its job alive past the deadline.
	closed := make(chan struct{})
	go func() {
		_ = srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-shutdownCtx.Done():
		logger.Warn("Searches still running at exit")
	}
	return nil
}

// newRouter mounts the service middleware, health and metrics endpoints, and API routes.
func newRouter(cfg *config.Config, logger *logging.Logger, srv *server.Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(xerrors.RecoveryMiddleware(logger))
	if t := requestTimeout(cfg); t > 0 {
		r.Use(middleware.Timeout(t))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv.RegisterRoutes(r)
	return r
}

// requestTimeout leaves a second of the write deadline for the timeout
// response itself.
func requestTimeout(cfg *config.Config) time.Duration {
	if t := cfg.HTTP.WriteTimeout - time.Second; t > 0 {
		return t
	}
	return cfg.HTTP.WriteTimeout
}
