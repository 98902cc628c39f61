package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/uniconnect/internal/adapters/cli"
	"github.com/kirillkom/uniconnect/internal/bootstrap"
	"github.com/kirillkom/uniconnect/internal/config"
	"github.com/kirillkom/uniconnect/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(_ context.Context, logOutput io.Writer) (*bootstrap.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logger := logging.NewJSONLoggerTo(logOutput, "uniconnect", cfg.LogLevel)
		return bootstrap.New(cfg, logger)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
