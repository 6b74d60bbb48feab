package cli

import (
	"strconv"
	"strings"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/perm"
	"pelotourney-cli/internal/submit"

	"github.com/spf13/cobra"
)

func newPermissionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Member role commands",
	}
	cmd.AddCommand(newPermissionsListCmd(app))
	cmd.AddCommand(newPermissionsSetCmd(app))
	return cmd
}

type permissionRow struct {
	MemberID int64      `json:"tournament_member_id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	Admin    bool       `json:"admin"`
}

func permissionRows(ed *perm.Editor) []permissionRow {
	entries := ed.Entries()
	out := make([]permissionRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, permissionRow{MemberID: e.MemberID, Username: e.Username, Role: e.Role, Admin: perm.IsAdmin(e.Role)})
	}
	return out
}

func newPermissionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List member roles",
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
			return writeOut(cmd, app, map[string]any{"data": permissionRows(perm.NewEditor(st.Members))})
		},
	}
}

func newPermissionsSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <member> <role> [<member> <role>...]",
		Short: "Change roles and save every member's role",
		Long: strings.TrimSpace(`
Members are given by username or tournament member id. Roles are
owner, manager or member. The save is refused if no owner would remain.`),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errUsage("expected <member> <role> pairs")
			}
			return nil
		},
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
			ed := perm.NewEditor(st.Members)
			for i := 0; i < len(args); i += 2 {
				id, ok := findMemberID(st.Members, args[i])
				if !ok {
					return writeErr(cmd, errNotFound("member", args[i]))
				}
				role, err := perm.ParseRole(args[i+1])
				if err != nil {
					return writeErr(cmd, err)
				}
				if _, err := ed.SetRole(id, role); err != nil {
					return writeErr(cmd, err)
				}
			}

			nav, err := s.submit(cmd.Context(), model.FragmentPermissions, submit.Command{Name: submit.CmdPermissionsSave, Permissions: ed})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": permissionRows(perm.NewEditor(nav.state.Members)), "meta": nav.meta()})
		},
	}
}

func findMemberID(members []model.Member, ref string) (int64, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, m := range members {
			if m.ID == id {
				return id, true
			}
		}
	}
	for _, m := range members {
		if strings.EqualFold(m.Username, ref) {
			return m.ID, true
		}
	}
	return 0, false
}
