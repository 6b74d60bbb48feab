package cli

import (
	"pelotourney-cli/internal/store"

	"github.com/spf13/cobra"
)

func newJournalCmd(app *App) *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent submissions recorded on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only the journal path matters here; the server need not be configured.
			cfg, err := store.LoadConfig(app.ConfigPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			j, err := store.OpenJournal(cmd.Context(), cfg.JournalPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer j.Close()

			entries, err := j.List(cmd.Context(), limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !all && app.TournamentID > 0 {
				kept := entries[:0]
				for _, e := range entries {
					if e.TournamentID == app.TournamentID {
						kept = append(kept, e)
					}
				}
				entries = kept
			}
			if entries == nil {
				entries = []store.Entry{}
			}
			return writeOut(cmd, app, map[string]any{"data": entries})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries (0 = all)")
	cmd.Flags().BoolVar(&all, "all", false, "Include every tournament even when --tournament is set")
	return cmd
}
