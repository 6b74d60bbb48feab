package cli

import (
	"strings"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/settings"
	"pelotourney-cli/internal/submit"

	"github.com/spf13/cobra"
)

func newTournamentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tournament",
		Short: "Tournament settings and sync",
	}
	cmd.AddCommand(newTournamentShowCmd(app))
	cmd.AddCommand(newTournamentSetCmd(app))
	cmd.AddCommand(newTournamentSyncCmd(app))
	return cmd
}

func newTournamentShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the tournament's settings and last sync time",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			st, err := s.client.State(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": st.Tournament})
		},
	}
}

func newTournamentSetCmd(app *App) *cobra.Command {
	var name, start, end, visibility string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings and save the whole settings form",
		Long: strings.TrimSpace(`
Unset flags keep their current value; the form is always sent complete.
Dates are YYYY-MM-DD and visibility is private or public.`),
		Example: strings.TrimSpace(`
  pelotourney tournament set --name "Spring Finals" --end 2026-05-15
  pelotourney tournament set --visibility public`),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := map[string]string{}
			for flag, field := range map[string]string{
				"name":       settings.FieldName,
				"start":      settings.FieldStartDate,
				"end":        settings.FieldEndDate,
				"visibility": settings.FieldVisibility,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					changes[field] = v
				}
			}
			if len(changes) == 0 {
				return writeErr(cmd, errUsage("nothing to change (use --name, --start, --end or --visibility)"))
			}

			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			st, err := s.client.State(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			form := settings.NewForm(st.Tournament)
			for field, v := range changes {
				if err := form.Set(field, v); err != nil {
					return writeErr(cmd, err)
				}
			}

			nav, err := s.submit(cmd.Context(), model.FragmentSettings, submit.Command{Name: submit.CmdTournamentSave, Settings: form})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": nav.state.Tournament, "meta": nav.meta()})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Tournament name")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&visibility, "visibility", "", "private or public")
	return cmd
}

func newTournamentSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh ride and workout data for every participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			nav, err := s.submit(cmd.Context(), model.FragmentSettings, submit.Command{Name: submit.CmdTournamentSync})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": nav.state.Tournament, "meta": nav.meta()})
		},
	}
}
