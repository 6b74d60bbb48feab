package tui

import (
	"context"
	"fmt"
	"strings"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/region"
	"pelotourney-cli/internal/roster"
	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (m *appModel) teamColumns() []*roster.Container {
	if m.board == nil {
		return nil
	}
	return m.board.Containers()
}

// selectedMember is the username under the board cursor, if any.
func (m *appModel) selectedMember() (string, *roster.Container, bool) {
	cols := m.teamColumns()
	if m.teamCol < 0 || m.teamCol >= len(cols) {
		return "", nil, false
	}
	c := cols[m.teamCol]
	items := c.Items()
	if m.teamRow < 0 || m.teamRow >= len(items) {
		return "", c, false
	}
	return items[m.teamRow], c, true
}

func (m *appModel) clampTeamCursor() {
	cols := m.teamColumns()
	if len(cols) == 0 {
		m.teamCol, m.teamRow = 0, 0
		return
	}
	m.teamCol = clamp(m.teamCol, 0, len(cols)-1)
	m.teamRow = clamp(m.teamRow, 0, max(0, cols[m.teamCol].Len()-1))
}

// focusMember moves the board cursor onto username.
func (m *appModel) focusMember(username string) bool {
	for ci, c := range m.teamColumns() {
		for ri, id := range c.Items() {
			if id == username {
				m.teamCol, m.teamRow = ci, ri
				return true
			}
		}
	}
	return false
}

func (m appModel) updateTeams(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.teamColumns()
	switch {
	case key.Matches(msg, m.keys.Search):
		m.cancelSearch()
		m.searching = true
		m.search.Reset()
		m.searchResults.Reset()
		m.searchRow = 0
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.DropLeft), key.Matches(msg, m.keys.DropRight):
		username, from, ok := m.selectedMember()
		if !ok {
			return m, nil
		}
		step := 1
		if key.Matches(msg, m.keys.DropLeft) {
			step = -1
		}
		target := m.teamCol + step
		if target < 0 || target >= len(cols) {
			return m, nil
		}
		if _, err := m.board.Drop(username, from.ID, cols[target].ID); err != nil {
			m.setError(err)
			return m, nil
		}
		m.teamCol = target
		m.teamRow = cols[target].Len() - 1
		m.setStatus(fmt.Sprintf("%d unsaved change(s)", m.board.DirtyCount()))
		return m, nil

	case key.Matches(msg, m.keys.MoveUp), key.Matches(msg, m.keys.MoveDown):
		username, _, ok := m.selectedMember()
		if !ok {
			return m, nil
		}
		delta := 1
		if key.Matches(msg, m.keys.MoveUp) {
			delta = -1
		}
		moved, err := m.board.Reorder(username, delta)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		if moved {
			m.teamRow += delta
		}
		return m, nil

	case key.Matches(msg, m.keys.Left):
		m.teamCol--
		m.clampTeamCursor()
		return m, nil
	case key.Matches(msg, m.keys.Right):
		m.teamCol++
		m.clampTeamCursor()
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.teamRow--
		m.clampTeamCursor()
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.teamRow++
		m.clampTeamCursor()
		return m, nil

	case key.Matches(msg, m.keys.Save):
		return m, m.dispatch(submit.Command{Name: submit.CmdTeamsSave, Board: m.board})

	case key.Matches(msg, m.keys.Delete):
		username, _, ok := m.selectedMember()
		if !ok {
			return m, nil
		}
		m.confirm = &confirmState{
			title:   "Remove member",
			body:    fmt.Sprintf("Remove %s from the tournament?", username),
			command: submit.Command{Name: submit.CmdMemberDelete, Username: username},
		}
		return m, nil

	case key.Matches(msg, m.keys.DeleteAll):
		if m.teamCol >= len(cols) {
			return m, nil
		}
		c := cols[m.teamCol]
		m.confirm = &confirmState{
			title:   "Delete team",
			body:    fmt.Sprintf("Delete team %q and unassign its %d member(s)?", c.Name, c.Len()),
			command: submit.Command{Name: submit.CmdTeamDelete, TeamID: c.ID},
		}
		return m, nil
	}
	return m, nil
}

// unassigned lists members that sit on no team.
func (m appModel) unassigned() []string {
	if m.page.State() != region.Ready {
		return nil
	}
	var out []string
	for _, mem := range m.page.Value().Members {
		if _, ok := m.board.Item(mem.Username); !ok {
			out = append(out, mem.Username)
		}
	}
	return out
}

func (m appModel) viewTeams(width, height int) string {
	cols := m.teamColumns()
	if len(cols) == 0 {
		return styleMuted().Render("No teams yet.")
	}

	gap := 2
	colW := (width - gap*(len(cols)-1)) / len(cols)
	if colW < 14 {
		colW = 14
	}
	colH := height - 2
	if m.searching {
		colH -= 8
	}
	if colH < 3 {
		colH = 3
	}

	panes := make([]string, 0, len(cols))
	for ci, c := range cols {
		lines := []string{}
		head := fmt.Sprintf("%s (%d)", c.Name, c.Len())
		if ci == m.teamCol {
			lines = append(lines, styleHeader().Render(truncateText(head, colW)))
		} else {
			lines = append(lines, lipgloss.NewStyle().Bold(true).Render(truncateText(head, colW)))
		}
		for ri, username := range c.Items() {
			label := "  " + username
			if it, ok := m.board.Item(username); ok && it.Dirty() {
				label = styleDirty().Render("* ") + username
			}
			label = truncateText(label, colW)
			if ci == m.teamCol && ri == m.teamRow {
				label = styleSelected().Width(colW).Render(label)
			}
			lines = append(lines, label)
		}
		if c.Len() == 0 {
			lines = append(lines, styleMuted().Render("  (empty)"))
		}
		panes = append(panes, normalizePane(strings.Join(lines, "\n"), colW, colH))
	}

	out := joinColumns(panes, gap)
	if un := m.unassigned(); len(un) > 0 {
		out += "\n" + styleMuted().Render(truncateText("unassigned: "+strings.Join(un, ", "), width))
	} else {
		out += "\n"
	}
	if n := m.board.DirtyCount(); n > 0 {
		out += "\n" + styleDirty().Render(fmt.Sprintf("%d unsaved change(s), ctrl+s to save", n))
	}
	if m.searching {
		out += "\n" + m.viewSearch(width)
	}
	return out
}

func (m appModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.cancelSearch()
		m.search.Blur()
		m.searchResults.Reset()
		return m, nil
	case "up", "ctrl+p":
		m.searchRow = max(0, m.searchRow-1)
		return m, nil
	case "down", "ctrl+n":
		if m.searchResults.State() == region.Ready {
			m.searchRow = min(m.searchRow+1, max(0, len(m.searchResults.Value())-1))
		}
		return m, nil
	case "enter":
		if m.searchResults.State() != region.Ready {
			return m, nil
		}
		results := m.searchResults.Value()
		if m.searchRow >= len(results) {
			return m, nil
		}
		username := results[m.searchRow].Username
		m.cancelSearch()
		m.search.Blur()
		if m.focusMember(username) {
			m.setStatus("focused " + username)
		} else {
			m.setStatus(username + " is not on a team")
		}
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.debouncer.Trigger(searchQueryMsg{gen: m.searchGen, query: m.search.Value()})
	}
	return m, cmd
}

// cancelSearch closes the search session. A query already handed to the
// program by the debouncer is dropped by startSearch.
func (m *appModel) cancelSearch() {
	m.searching = false
	m.debouncer.Stop()
	m.searchGen++
}

// startSearch runs once typing settles. A blank query clears the results
// without a request.
func (m *appModel) startSearch(msg searchQueryMsg) tea.Cmd {
	if !m.searching || msg.gen != m.searchGen {
		return nil
	}
	query := strings.TrimSpace(msg.query)
	if query == "" {
		m.searchResults.Reset()
		m.searchRow = 0
		return nil
	}
	seq := m.searchResults.Begin()
	backend := m.deps.Backend
	timeout := m.deps.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := backend.SearchMembers(ctx, query)
		return searchResultMsg{seq: seq, results: res, err: err}
	}
}

func (m *appModel) applySearch(msg searchResultMsg) {
	if msg.err != nil {
		m.searchResults.Fail(msg.seq, msg.err)
		return
	}
	if m.searchResults.Resolve(msg.seq, msg.results) {
		m.searchRow = 0
	}
}

func (m appModel) viewSearch(width int) string {
	lines := []string{m.search.View()}
	switch m.searchResults.State() {
	case region.Loading:
		lines = append(lines, m.spinner.View()+" searching…")
	case region.Failed:
		lines = append(lines, styleError().Render("search failed: "+errString(m.searchResults.Err())))
	case region.Ready:
		results := m.searchResults.Value()
		if len(results) == 0 {
			lines = append(lines, styleMuted().Render("no riders match"))
		}
		for i, r := range limitResults(results, 6) {
			label := "  " + r.Username
			if i == m.searchRow {
				label = styleSelected().Render("> " + r.Username)
			}
			lines = append(lines, label)
		}
	}
	return truncateLines(strings.Join(lines, "\n"), width)
}

func limitResults(rs []model.SearchResult, n int) []model.SearchResult {
	if len(rs) > n {
		return rs[:n]
	}
	return rs
}

func truncateLines(s string, width int) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = truncateText(l, width)
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
