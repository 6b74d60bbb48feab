package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to be exactly width columns wide (ANSI-aware) and
// height lines tall, so columns line up under lipgloss.JoinHorizontal.
// height <= 0 keeps the line count.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}

	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}

	for i, ln := range lines {
		ln = truncateText(ln, width)
		if w := xansi.StringWidth(ln); w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

// truncateText cuts s to width columns, marking the cut with an ellipsis.
func truncateText(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Cut(s, 0, width-1) + "…"
}

// joinColumns places panes side by side with gap spaces between them.
func joinColumns(panes []string, gap int) string {
	if len(panes) == 0 {
		return ""
	}
	out := panes[0]
	sep := strings.Repeat(" ", gap)
	for _, p := range panes[1:] {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, p)
	}
	return out
}

func modalWidth(width int) int {
	w := width - 8
	if w > 96 {
		w = 96
	}
	if w < 40 {
		w = 40
	}
	return w
}

// modalBodyWidth is the usable width inside a modal box (border + padding).
func modalBodyWidth(width int) int {
	return modalWidth(width) - 4
}

func renderModalBox(width int, title, body string) string {
	w := modalWidth(width)
	head := styleHeader().Width(w - 4).Render(" " + title)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorModalBorder).
		Padding(0, 1).
		Width(w - 2)
	return box.Render(head + "\n\n" + body)
}

// overlayCenter draws the modal centred over the screen.
func overlayCenter(width, height int, modal string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
