package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/uniconnect/internal/bootstrap"
	"github.com/kirillkom/uniconnect/internal/config"
	"github.com/kirillkom/uniconnect/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("uniconnect-api", "info").Error("config_invalid", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("uniconnect-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Prepare(ctx); err != nil {
		// The API still starts; /readyz reports 503 until documents are processed.
		logger.Error("index_prepare_failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.ServeHTTP(gctx) })
	g.Go(func() error { return app.RunBackground(gctx) })
	if err := g.Wait(); err != nil {
		logger.Error("api_stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("api_stopped")
}
