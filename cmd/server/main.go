package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-api/internal/config"
	"expense-api/internal/handlers"
	applog "expense-api/internal/log"
	"expense-api/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	logger := applog.New(slog.LevelInfo, applog.ComponentServer)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	h := handlers.NewHandlers(db, logger.WithComponent(applog.ComponentHTTP), handlers.Options{
		SessionTTL:   cfg.SessionTTL,
		BcryptCost:   cfg.BcryptCost,
		SecureCookie: cfg.SecureCookie,
	})

	mux := setupRouter(h, cfg.StaticDir)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handlers.CORS(cfg.CORSOrigin)(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.Addr(), "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweepSessions(ctx, db, logger.WithComponent(applog.ComponentSweeper), cfg.SweepInterval)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// setupRouter combines the API routes with optional static file serving
// for the browser client.
func setupRouter(h *handlers.Handlers, staticDir string) *http.ServeMux {
	mux := h.Routes()
	if staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// sweepSessions periodically removes expired sessions. Expired sessions
// are already invisible to reads; the sweep just keeps the table small.
func sweepSessions(ctx context.Context, db *storage.DB, logger *applog.Logger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := db.DeleteExpiredSessions()
			if err != nil {
				logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("swept expired sessions", "count", n)
			}
		}
	}
}
