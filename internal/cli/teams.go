package cli

import (
	"strconv"
	"strings"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/roster"
	"pelotourney-cli/internal/submit"

	"github.com/spf13/cobra"
)

func newTeamsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Team commands",
	}
	cmd.AddCommand(newTeamsListCmd(app))
	cmd.AddCommand(newTeamsMoveCmd(app))
	cmd.AddCommand(newTeamsDeleteCmd(app))
	return cmd
}

func newTeamsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List teams with their members",
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
			return writeOut(cmd, app, map[string]any{"data": st.Teams})
		},
	}
}

func newTeamsMoveCmd(app *App) *cobra.Command {
	var (
		to       int64
		position int
	)

	cmd := &cobra.Command{
		Use:   "move <username>...",
		Short: "Move members to another team and save every team",
		Long: strings.TrimSpace(`
Moves each member onto the target team, exactly like dragging them on the
board, then sends the full team list. Members already on the target team
are reordered to --position instead.`),
		Args: cobra.MinimumNArgs(1),
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
			board, err := roster.NewBoard("teams", st.Teams)
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, ok := board.Container(to); !ok {
				return writeErr(cmd, errNotFound("team", strconv.FormatInt(to, 10)))
			}

			moved := make([]map[string]any, 0, len(args))
			for _, username := range args {
				username = strings.TrimSpace(username)
				it, ok := board.Item(username)
				if !ok {
					return writeErr(cmd, errNotFound("team member", username))
				}
				dirty, err := board.DropAt(username, it.Current(), to, position)
				if err != nil {
					return writeErr(cmd, err)
				}
				moved = append(moved, map[string]any{"username": username, "dirty": dirty})
			}

			nav, err := s.submit(cmd.Context(), model.FragmentTeams, submit.Command{Name: submit.CmdTeamsSave, Board: board})
			if err != nil {
				return writeErr(cmd, err)
			}
			meta := nav.meta()
			meta["moved"] = moved
			return writeOut(cmd, app, map[string]any{"data": nav.state.Teams, "meta": meta})
		},
	}

	cmd.Flags().Int64Var(&to, "to", 0, "Target team id")
	cmd.Flags().IntVar(&position, "position", -1, "Index on the target team (default: append)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTeamsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <team-id>",
		Short: "Delete a team; its members become unassigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return writeErr(cmd, errUsage("invalid team id %q", args[0]))
			}
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			nav, err := s.submit(cmd.Context(), model.FragmentTeams, submit.Command{Name: submit.CmdTeamDelete, TeamID: id})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": nav.state.Teams, "meta": nav.meta()})
		},
	}
}
