package tui

import (
	"strings"

	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/lipgloss"
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

// confirmState guards a destructive command behind an explicit yes.
type confirmState struct {
	title   string
	body    string
	command submit.Command
	focus   confirmModalFocus
}

func (c *confirmState) toggle() {
	if c.focus == confirmFocusConfirm {
		c.focus = confirmFocusCancel
	} else {
		c.focus = confirmFocusConfirm
	}
}

func renderConfirmModal(width int, c confirmState) string {
	// No borders on the buttons: nested borders inside a coloured modal leave
	// background artifacts in some terminals.
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	confirm := btnBase.Render("Delete")
	cancel := btnBase.Render("Cancel")
	if c.focus == confirmFocusConfirm {
		confirm = btnActive.Render("Delete")
	} else {
		cancel = btnActive.Render("Cancel")
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)

	bodyW := modalBodyWidth(width)
	help := styleMuted().Width(bodyW).Render("tab: focus   enter: select   esc: cancel")

	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(c.body),
		"",
		controls,
		"",
		help,
	}, "\n")
	return renderModalBox(width, c.title, content)
}
