package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Rebuild the index from the documents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Assistant.ProcessDocuments(cmd.Context())
			if err != nil {
				return fmt.Errorf("process documents: %w", err)
			}
			if report.Documents == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No documents found in %s.\n", app.Config.DocumentsDir)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d documents into %d chunks.\n", report.Documents, report.Chunks)
			}
			for _, failure := range report.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "  skipped %s: %s\n", failure.Path, failure.Error)
			}
			return nil
		},
	}
}

func newAddCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "add [path]",
		Short: "Append one document to the existing index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Assistant.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("load index: %w", err)
			}
			chunks, err := app.Assistant.AddDocument(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("add document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%d chunks, %d entries in index).\n", args[0], chunks, app.Assistant.Status().Entries)
			return nil
		},
	}
}

func newStatusCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			loaded, err := app.Assistant.Initialize(cmd.Context())
			if err != nil {
				return fmt.Errorf("load index: %w", err)
			}
			if !loaded {
				fmt.Fprintln(cmd.OutOrStdout(), "No index found. Run `uniconnect process` first.")
				return nil
			}
			status := app.Assistant.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "Entries:         %d\n", status.Entries)
			fmt.Fprintf(cmd.OutOrStdout(), "Embedding model: %s (%d dims)\n", status.EmbeddingModel, status.Dimension)
			fmt.Fprintf(cmd.OutOrStdout(), "Chunking:        %d/%d\n", status.ChunkSize, status.ChunkOverlap)
			fmt.Fprintf(cmd.OutOrStdout(), "Updated:         %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
