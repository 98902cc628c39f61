// Package cli implements the uniconnect command line.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/uniconnect/internal/bootstrap"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// AppFactory builds the application for one command run. logOutput is where
// structured logs go; the mcp command needs stdout for the protocol.
type AppFactory func(ctx context.Context, logOutput io.Writer) (*bootstrap.App, error)

func NewRootCommand(newApp AppFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "uniconnect",
		Short: "Document-grounded assistant for international students",
		Long: `uniconnect indexes university documents (PDF, text and spreadsheets)
and answers questions about them with cited sources.

Configuration comes from the environment, an optional .env file and the
YAML file named by UNICONNECT_CONFIG.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newProcessCommand(newApp),
		newAddCommand(newApp),
		newAskCommand(newApp),
		newStatusCommand(newApp),
		newServeCommand(newApp),
		newMCPCommand(newApp),
		newEnqueueCommand(newApp),
	)
	return root
}
