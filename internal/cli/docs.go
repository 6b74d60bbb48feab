package cli

import (
	"fmt"

	"pelotourney-cli/internal/docs"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "docs [topic]",
		Short: "Built-in help topics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, map[string]any{"data": docs.Topics()})
			}
			body, ok := docs.Get(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("topic", args[0]))
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), body)
			return err
		},
	}
}
