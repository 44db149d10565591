package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/metrics"
	chiTransport "github.com/kailas-cloud/librarian/internal/transport/chi"
	"github.com/kailas-cloud/librarian/internal/usecase/ingest"
	"github.com/kailas-cloud/librarian/internal/version"
)

var watchCatalog bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Endpoints:
  POST /chat           answer a book request
  GET  /debug/search   raw catalog retrieval
  GET  /usage          token budget report
  GET  /health         dependency checks (no auth)
  GET  /metrics        Prometheus metrics (no auth)

With --watch-catalog the seed file is re-ingested whenever it changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&watchCatalog, "watch-catalog", false, "re-ingest the seed file when it changes")
}

func runServe(ctx context.Context) error {
	logger.Info("Starting librarian API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", envName),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	catalogReady := a.prepareCatalog(ctx)

	// Pass a nil interface, not a typed nil, when the catalog is down.
	var searcher chiTransport.Searcher
	if catalogReady {
		searcher = a.retrieval
	}
	server := chiTransport.NewServer(a.chatService(catalogReady), searcher, a.usage, a.health, logger)

	r := gochi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	if watchCatalog && catalogReady {
		w := ingest.ForService(a.ingest, cfg.Catalog.SeedPath, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Catalog watcher stopped", zap.Error(err))
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
