package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	mcpadapter "github.com/kirillkom/uniconnect/internal/adapters/mcp"
)

func newServeCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the queue subscriber and watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Prepare(cmd.Context()); err != nil {
				app.Logger.Error("index_prepare_failed", "error", err)
			}
			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return app.ServeHTTP(gctx) })
			g.Go(func() error { return app.RunBackground(gctx) })
			return g.Wait()
		},
	}
}

func newMCPCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
ask, process_documents, add_document, clear_memory and index_status tools.
Logs are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Prepare(cmd.Context()); err != nil {
				app.Logger.Error("index_prepare_failed", "error", err)
			}
			server := mcpadapter.NewServer(app.Assistant, Version, app.Logger)
			return server.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newEnqueueCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [path...]",
		Short: "Ask a running server to add documents through NATS",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Queue == nil {
				return errors.New("NATS_URL is not set")
			}
			for _, path := range args {
				if err := app.Queue.PublishDocumentAdded(cmd.Context(), path); err != nil {
					return fmt.Errorf("enqueue %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s\n", path)
			}
			return nil
		},
	}
}
