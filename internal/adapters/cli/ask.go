package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

func newAskCommand(newApp AppFactory) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed documents",
		Long: `Answers a question using the persisted index and lists the
document and page each retrieved passage came from.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Prepare(cmd.Context()); err != nil {
				return err
			}
			answer, err := app.Assistant.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if domain.IsKind(err, domain.ErrIndexUnavailable) {
					return fmt.Errorf("no index found, run `uniconnect process` first")
				}
				return fmt.Errorf("ask: %w", err)
			}
			if asJSON {
				data, err := json.MarshalIndent(answer, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal answer: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printAnswer(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	return cmd
}

func printAnswer(w io.Writer, answer *domain.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "[%d] %s, page %s\n", i+1, src.Source, src.Page)
		fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(src.Content, "\n", " "))
	}
}
