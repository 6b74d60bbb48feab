package cli

import (
	"strings"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/submit"

	"github.com/spf13/cobra"
)

func newMembersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Member commands",
	}
	cmd.AddCommand(newMembersListCmd(app))
	cmd.AddCommand(newMembersSearchCmd(app))
	cmd.AddCommand(newMembersDeleteCmd(app))
	return cmd
}

func newMembersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tournament members",
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
			return writeOut(cmd, app, map[string]any{"data": st.Members})
		},
	}
}

func newMembersSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search riders by username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(args[0])
			// A blank query clears the results without asking the server.
			if query == "" {
				return writeOut(cmd, app, map[string]any{"data": []model.SearchResult{}})
			}
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			res, err := s.client.SearchMembers(cmd.Context(), query)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}

func newMembersDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Remove a member from the tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			nav, err := s.submit(cmd.Context(), model.FragmentTeams, submit.Command{
				Name:     submit.CmdMemberDelete,
				Username: strings.TrimSpace(args[0]),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": nav.state.Members, "meta": nav.meta()})
		},
	}
}
