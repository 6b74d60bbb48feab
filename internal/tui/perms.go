package tui

import (
	"fmt"
	"strings"

	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m appModel) updatePermissions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.perms.Entries()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.permRow = max(0, m.permRow-1)
	case key.Matches(msg, m.keys.Down):
		m.permRow = clamp(m.permRow+1, 0, max(0, len(entries)-1))
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		if m.permRow >= len(entries) {
			return m, nil
		}
		step := 1
		if key.Matches(msg, m.keys.Left) {
			step = -1
		}
		if _, err := m.perms.CycleRole(entries[m.permRow].MemberID, step); err != nil {
			m.setError(err)
		}
	case key.Matches(msg, m.keys.Save):
		// An ownerless roster is refused before anything is sent.
		if _, err := m.perms.Payload(); err != nil {
			m.setError(err)
			return m, nil
		}
		return m, m.dispatch(submit.Command{Name: submit.CmdPermissionsSave, Permissions: m.perms})
	}
	return m, nil
}

func (m appModel) viewPermissions(width, height int) string {
	entries := m.perms.Entries()
	lines := []string{styleHeader().Render(fmt.Sprintf("%-24s %s", "Member", "Role"))}
	for i, e := range entries {
		role := string(e.Role)
		if e.Dirty() {
			role = styleDirty().Render(role + " *")
		}
		label := truncateText(fmt.Sprintf("%-24s %s", e.Username, role), width)
		if i == m.permRow {
			label = styleSelected().Width(width).Render(label)
		}
		lines = append(lines, label)
	}
	if n := m.perms.DirtyCount(); n > 0 {
		lines = append(lines, "", styleDirty().Render(fmt.Sprintf("%d unsaved change(s), ctrl+s to save", n)))
	}
	return strings.Join(lines, "\n")
}
