package main

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

	"github.com/openchat/disqus/internal/app"
	"github.com/openchat/disqus/internal/stub"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(2)
	}
	build := app.CurrentBuildInfo()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	httpServer := &http.Server{
		Addr:              cfg.StubAddr,
		Handler:           stub.NewServer(cfg, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(
		"disqus stub starting",
		"addr", cfg.StubAddr,
		"api_url", cfg.StubAPIURL(),
		"version", build.Version,
		"commit_short", build.CommitShort,
		"vcs_modified", build.Modified,
	)
	if err := serve(ctx, logger, httpServer); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

// serve runs httpServer until it fails or ctx is done, then shuts it down.
func serve(ctx context.Context, logger *slog.Logger, httpServer *http.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
