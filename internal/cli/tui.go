package cli

import (
	"pelotourney-cli/internal/tui"

	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, app *App) error {
	s, err := openSession(cmd, app, true)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()
	return s.runTUI()
}

func (s *session) runTUI() error {
	s.log.WithField("tournament_id", s.cfg.TournamentID).Info("starting edit screen")
	return tui.Run(tui.Deps{
		Backend:        s.client,
		Journal:        s.recorder(),
		Log:            s.log,
		SearchDebounce: s.cfg.SearchDebounce,
		RequestTimeout: s.cfg.RequestTimeout,
		JoinPolicy:     s.policy,
	})
}
