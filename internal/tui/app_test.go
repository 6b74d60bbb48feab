package tui

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"pelotourney-cli/internal/api"
	"pelotourney-cli/internal/fakeapi"
	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/region"
	"pelotourney-cli/internal/rides"
	"pelotourney-cli/internal/settings"
	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
)

const testDebounce = 250 * time.Millisecond

type harness struct {
	t     *testing.T
	m     appModel
	srv   *fakeapi.Server
	clock *clockwork.FakeClock
	sent  chan tea.Msg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f, err := fakeapi.DefaultFixture()
	if err != nil {
		t.Fatalf("DefaultFixture: %v", err)
	}
	srv := fakeapi.New(f)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := api.New(ts.URL, f.Tournament.ID, api.WithHTTPClient(ts.Client()), api.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	clock := clockwork.NewFakeClock()
	m := newAppModel(Deps{
		Backend:        client,
		SearchDebounce: testDebounce,
		RequestTimeout: 2 * time.Second,
		JoinPolicy:     rides.JoinFailFast,
		Clock:          clock,
	})
	m.search.Cursor.SetMode(cursor.CursorStatic)
	m.field.Cursor.SetMode(cursor.CursorStatic)
	m.width, m.height = 120, 40

	h := &harness{t: t, m: m, srv: srv, clock: clock, sent: make(chan tea.Msg, 16)}
	m.sender.set(func(msg tea.Msg) { h.sent <- msg })
	h.run(h.m.Init())
	if h.m.page.State() != region.Ready {
		t.Fatalf("expected page to hydrate, state=%s err=%v", h.m.page.State(), h.m.page.Err())
	}
	t.Cleanup(h.m.debouncer.Stop)
	return h
}

// run executes cmd and every command it produces, feeding each message back
// through Update until the queue drains.
func (h *harness) run(cmd tea.Cmd) {
	h.t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			h.t.Fatalf("command queue did not drain")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		switch msg := msg.(type) {
		case nil:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		}
		next, out := h.m.Update(msg)
		h.m = next.(appModel)
		queue = append(queue, out)
	}
}

func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	next, cmd := h.m.Update(msg)
	h.m = next.(appModel)
	h.run(cmd)
}

func (h *harness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		h.send(keyMsg(k))
	}
}

func (h *harness) typeText(s string) {
	h.t.Helper()
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func teamMembers(st model.PageState, id int64) []string {
	for _, t := range st.Teams {
		if t.ID == id {
			return t.Members
		}
	}
	return nil
}

func TestTeams_DropAndSaveReloads(t *testing.T) {
	h := newHarness(t)

	if got, _, _ := h.m.selectedMember(); got != "ana" {
		t.Fatalf("expected cursor on ana, got=%q", got)
	}
	h.press("L")
	if n := h.m.board.DirtyCount(); n != 1 {
		t.Fatalf("expected one dirty member, got=%d", n)
	}
	if !strings.Contains(h.m.View(), "unsaved") {
		t.Fatalf("expected unsaved marker in view")
	}

	h.press("ctrl+s")

	if h.m.submitting {
		t.Fatalf("expected submission to finish")
	}
	if h.m.statusErr {
		t.Fatalf("unexpected error status: %s", h.m.status)
	}
	if got := h.srv.Calls(http.MethodPost, "/teams"); got != 1 {
		t.Fatalf("expected one teams POST, got=%d", got)
	}
	if got := h.srv.Calls(http.MethodGet, "/state"); got != 2 {
		t.Fatalf("expected a reload after save, state calls=%d", got)
	}
	blue := teamMembers(h.srv.Snapshot(), 7)
	if len(blue) != 3 || blue[2] != "ana" {
		t.Fatalf("expected ana appended to Blue, got=%v", blue)
	}
	if n := h.m.board.DirtyCount(); n != 0 {
		t.Fatalf("expected clean board after reload, got=%d dirty", n)
	}
	if !strings.Contains(h.m.status, "reloaded") {
		t.Fatalf("expected reload outcome in status, got=%q", h.m.status)
	}
}

func TestTeams_SubmitFailureKeepsLocalState(t *testing.T) {
	h := newHarness(t)
	h.srv.FailNext(http.MethodPost, "/teams", http.StatusInternalServerError)

	h.press("L", "ctrl+s")

	if !h.m.statusErr {
		t.Fatalf("expected error status, got=%q", h.m.status)
	}
	if n := h.m.board.DirtyCount(); n != 1 {
		t.Fatalf("expected local edit to survive the failure, dirty=%d", n)
	}
	if got := h.srv.Calls(http.MethodGet, "/state"); got != 1 {
		t.Fatalf("expected no reload after failure, state calls=%d", got)
	}
	if red := teamMembers(h.srv.Snapshot(), 3); len(red) != 3 {
		t.Fatalf("expected server teams untouched, red=%v", red)
	}
}

func TestTeams_ReorderStaysClean(t *testing.T) {
	h := newHarness(t)
	h.press("J")
	red, _ := h.m.board.Container(3)
	if got := red.Items(); got[0] != "cleo" || got[1] != "ana" {
		t.Fatalf("expected ana moved down, got=%v", got)
	}
	if h.m.teamRow != 1 {
		t.Fatalf("expected cursor to follow, row=%d", h.m.teamRow)
	}
	if n := h.m.board.DirtyCount(); n != 0 {
		t.Fatalf("expected reorder to stay clean, got=%d", n)
	}
}

func TestTeams_DeleteTeamThroughConfirm(t *testing.T) {
	h := newHarness(t)
	h.press("l", "D")
	if h.m.confirm == nil || h.m.confirm.command.TeamID != 7 {
		t.Fatalf("expected confirm for team 7, got=%+v", h.m.confirm)
	}
	if !strings.Contains(h.m.View(), "Delete team") {
		t.Fatalf("expected confirm modal in view")
	}

	h.press("tab", "enter")
	if got := h.srv.Calls(http.MethodDelete, "/teams"); got != 0 {
		t.Fatalf("expected cancel to send nothing, got=%d", got)
	}

	h.press("D", "enter")
	if got := h.srv.Calls(http.MethodDelete, "/teams"); got != 1 {
		t.Fatalf("expected one team DELETE, got=%d", got)
	}
	if teamMembers(h.srv.Snapshot(), 7) != nil {
		t.Fatalf("expected team 7 to be gone")
	}
	if _, ok := h.m.board.Container(7); ok {
		t.Fatalf("expected board to be rehydrated without team 7")
	}
}

func TestSearch_DebouncedToOneRequest(t *testing.T) {
	h := newHarness(t)
	h.press("/")
	if !h.m.searching {
		t.Fatalf("expected search to open")
	}
	h.typeText("fre")

	select {
	case msg := <-h.sent:
		t.Fatalf("expected nothing before the debounce delay, got=%#v", msg)
	case <-time.After(30 * time.Millisecond):
	}

	h.clock.Advance(testDebounce)
	var got tea.Msg
	select {
	case got = <-h.sent:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected debounced query")
	}
	q, ok := got.(searchQueryMsg)
	if !ok || q.query != "fre" {
		t.Fatalf("expected searchQueryMsg{fre}, got=%#v", got)
	}
	select {
	case msg := <-h.sent:
		t.Fatalf("expected exactly one query, got another=%#v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	h.send(q)
	if got := h.srv.Calls(http.MethodGet, "/rider_search"); got != 1 {
		t.Fatalf("expected one search request, got=%d", got)
	}
	results := h.m.searchResults.Value()
	if h.m.searchResults.State() != region.Ready || len(results) == 0 || results[0].Username != "freya" {
		t.Fatalf("expected freya, got state=%s results=%v", h.m.searchResults.State(), results)
	}

	h.press("enter")
	if h.m.searching {
		t.Fatalf("expected search to close")
	}
	if got, c, _ := h.m.selectedMember(); got != "freya" || c.ID != 9 {
		t.Fatalf("expected cursor on freya in Green, got=%q", got)
	}
}

func TestSearch_BlankQueryClearsWithoutRequest(t *testing.T) {
	h := newHarness(t)
	h.press("/")
	h.send(searchQueryMsg{gen: h.m.searchGen, query: "   "})
	if got := h.srv.Calls(http.MethodGet, "/rider_search"); got != 0 {
		t.Fatalf("expected no request for a blank query, got=%d", got)
	}
	if h.m.searchResults.State() != region.Idle {
		t.Fatalf("expected cleared results, got=%s", h.m.searchResults.State())
	}
}

func TestSearch_QueryFromClosedSessionDropped(t *testing.T) {
	h := newHarness(t)
	h.press("/")
	h.typeText("fre")
	h.clock.Advance(testDebounce)

	var held tea.Msg
	select {
	case held = <-h.sent:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected debounced query")
	}

	// The query is already queued when the box is closed and reopened.
	h.press("esc", "/")
	h.send(held)

	if got := h.srv.Calls(http.MethodGet, "/rider_search"); got != 0 {
		t.Fatalf("expected no request for the closed session, got=%d", got)
	}
	if h.m.search.Value() != "" || h.m.searchResults.State() != region.Idle {
		t.Fatalf("expected an empty search box, got input=%q state=%s results=%v",
			h.m.search.Value(), h.m.searchResults.State(), h.m.searchResults.Value())
	}

	h.typeText("gu")
	h.clock.Advance(testDebounce)
	select {
	case msg := <-h.sent:
		h.send(msg)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected debounced query in the new session")
	}
	if got := h.srv.Calls(http.MethodGet, "/rider_search"); got != 1 {
		t.Fatalf("expected the new session to search, got=%d", got)
	}
}

func TestSearch_StaleResultDropped(t *testing.T) {
	h := newHarness(t)
	h.press("/")
	first := h.m.searchResults.Begin()
	second := h.m.searchResults.Begin()

	h.send(searchResultMsg{seq: second, results: []model.SearchResult{{Username: "gus"}}})
	h.send(searchResultMsg{seq: first, results: []model.SearchResult{{Username: "hana"}}})

	if got := h.m.searchResults.Value(); len(got) != 1 || got[0].Username != "gus" {
		t.Fatalf("expected latest results to win, got=%v", got)
	}
}

func TestRidesModal_OptionsFetchedOnce(t *testing.T) {
	h := newHarness(t)
	h.press("2")
	if h.m.tab != tabRides || h.m.loc.Fragment != model.FragmentRides {
		t.Fatalf("expected rides tab, got tab=%d loc=%s", h.m.tab, h.m.loc)
	}

	h.press("a")
	if !h.m.ridesOpen || h.m.filters.State() != rides.Ready {
		t.Fatalf("expected ready modal, state=%s", h.m.filters.State())
	}
	if got := h.srv.Calls(http.MethodGet, "/rides/filters"); got != 1 {
		t.Fatalf("expected one filters fetch, got=%d", got)
	}
	if got := len(h.m.resultRows()); got != 5 {
		t.Fatalf("expected full catalog, got=%d rows", got)
	}

	h.press("esc", "a")
	if got := h.srv.Calls(http.MethodGet, "/rides/filters"); got != 1 {
		t.Fatalf("expected reopen to skip the filters fetch, got=%d", got)
	}
	if got := h.srv.Calls(http.MethodGet, "/rides/search"); got != 2 {
		t.Fatalf("expected reopen to refresh results, got=%d", got)
	}

	// Duration axis, first real option (the cursor starts on "Any").
	h.press("tab", "down", "enter")
	axis, _ := h.m.filters.Axis(model.AxisDuration)
	want := axis.Options()[0].Value
	if got := h.m.filters.Snapshot().Duration; got != want {
		t.Fatalf("expected duration=%s selected, got=%q", want, got)
	}
	for _, row := range h.m.resultRows() {
		if strconv.Itoa(row.Ride.Duration) != want {
			t.Fatalf("expected only %s rides, got %s (%d)", want, row.Ride.ID, row.Ride.Duration)
		}
	}

	// Re-selecting the same value is not a change.
	searches := h.srv.Calls(http.MethodGet, "/rides/search")
	h.press("enter")
	if got := h.srv.Calls(http.MethodGet, "/rides/search"); got != searches {
		t.Fatalf("expected no refresh for an unchanged selection, got=%d want=%d", got, searches)
	}

	h.press("x")
	if got := h.m.filters.Snapshot().Duration; got != "" {
		t.Fatalf("expected cleared duration, got=%q", got)
	}
}

func TestRidesModal_AddRideReloads(t *testing.T) {
	h := newHarness(t)
	h.press("2", "a", "tab", "tab")
	if h.m.modal != focusResults {
		t.Fatalf("expected results focus, got=%d", h.m.modal)
	}
	idx := -1
	for i, row := range h.m.resultRows() {
		if row.Ride.ID == "r2" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("expected r2 in results")
	}
	for i := 0; i < idx; i++ {
		h.press("down")
	}
	h.press("enter")

	if got := h.srv.Calls(http.MethodPost, "/rides"); got != 1 {
		t.Fatalf("expected one ride POST, got=%d", got)
	}
	if h.m.ridesOpen {
		t.Fatalf("expected modal to close")
	}
	if h.m.tab != tabRides {
		t.Fatalf("expected to stay on rides tab, got=%d", h.m.tab)
	}
	attached := h.m.attachedRows()
	if len(attached) != 2 || attached[1].Ride.ID != "r2" {
		t.Fatalf("expected r2 attached after reload, got=%v", attached)
	}
}

func TestRidesModal_StaleControllerMessagesIgnored(t *testing.T) {
	h := newHarness(t)
	h.press("2", "a")
	old := h.m.filters
	h.press("esc", "r")
	if h.m.filters == old {
		t.Fatalf("expected reload to replace the controller")
	}
	h.send(optionsLoadedMsg{owner: old, res: rides.OptionsResult{}})
	if h.m.filters.State() != rides.Unpopulated {
		t.Fatalf("expected orphaned options to be ignored, got=%s", h.m.filters.State())
	}
}

func TestPermissions_RefusesOwnerlessThenSaves(t *testing.T) {
	h := newHarness(t)
	h.press("3")
	entries := h.m.perms.Entries()
	if entries[0].Username != "ana" || entries[0].Role != model.RoleOwner {
		t.Fatalf("expected ana as owner first, got=%+v", entries[0])
	}

	h.press("l", "ctrl+s")
	if !h.m.statusErr {
		t.Fatalf("expected ownerless save to be refused")
	}
	if got := h.srv.Calls(http.MethodPost, "/permissions"); got != 0 {
		t.Fatalf("expected nothing sent, got=%d", got)
	}

	h.press("h", "j", "l", "ctrl+s")
	if got := h.srv.Calls(http.MethodPost, "/permissions"); got != 1 {
		t.Fatalf("expected one permissions POST, got=%d (status=%q)", got, h.m.status)
	}
	for _, mem := range h.srv.Snapshot().Members {
		if mem.Username == "bo" && mem.Role != model.RoleMember {
			t.Fatalf("expected bo demoted to member, got=%s", mem.Role)
		}
	}
	if h.m.tab != tabPermissions {
		t.Fatalf("expected to stay on permissions tab")
	}
}

func TestSubmitted_NavigatedSwitchesTab(t *testing.T) {
	h := newHarness(t)
	dest := h.m.loc.WithFragment(model.FragmentRides)
	h.send(submittedMsg{command: submit.CmdRideAdd, outcome: submit.Navigated, dest: dest})
	if h.m.tab != tabRides || !h.m.loc.Equal(dest) {
		t.Fatalf("expected navigation to rides, got tab=%d loc=%s", h.m.tab, h.m.loc)
	}
	if got := h.srv.Calls(http.MethodGet, "/state"); got != 2 {
		t.Fatalf("expected navigation to rehydrate, state calls=%d", got)
	}
}

func TestMutatingKeysBlockedWhileSubmitting(t *testing.T) {
	h := newHarness(t)
	h.m.submitting = true
	h.press("L")
	if n := h.m.board.DirtyCount(); n != 0 {
		t.Fatalf("expected edits to be blocked while submitting")
	}
}

func withGhostRide(t *testing.T, h *harness) {
	t.Helper()
	st := h.m.page.Value()
	st.Rides = append(append([]model.Ride{}, st.Rides...), model.Ride{ID: "ghost", Title: "Ghost ride", InstructorID: "nobody"})
	seq := h.m.page.Begin()
	h.send(stateLoadedMsg{seq: seq, state: st})
}

func TestAttachedRides_FailFastSurfacesMalformedRide(t *testing.T) {
	h := newHarness(t)
	withGhostRide(t, h)
	h.press("2")

	if rows := h.m.attachedRows(); len(rows) != 0 {
		t.Fatalf("expected no rows under fail-fast, got=%v", rows)
	}
	if !h.m.statusErr || !strings.Contains(h.m.status, "nobody") {
		t.Fatalf("expected malformed ride reported, got status=%q", h.m.status)
	}
	if view := h.m.View(); !strings.Contains(view, "unknown instructor") {
		t.Fatalf("expected error line in rides tab, got:\n%s", view)
	}
}

func TestAttachedRides_SkipPolicyDropsMalformedRide(t *testing.T) {
	h := newHarness(t)
	h.m.deps.JoinPolicy = rides.JoinSkip
	before := len(h.m.attachedRows())
	withGhostRide(t, h)

	rows := h.m.attachedRows()
	if len(rows) != before {
		t.Fatalf("expected ghost ride skipped, got=%v", rows)
	}
	for _, r := range rows {
		if r.Ride.ID == "ghost" {
			t.Fatalf("expected ghost ride dropped")
		}
	}
	if h.m.attachedErr != nil {
		t.Fatalf("expected no join error, got=%v", h.m.attachedErr)
	}
}

func TestSettings_EditAndSaveReloads(t *testing.T) {
	h := newHarness(t)
	h.press("4")
	if h.m.tab != tabSettings || h.m.loc.Fragment != model.FragmentSettings {
		t.Fatalf("expected settings tab, got tab=%d loc=%s", h.m.tab, h.m.loc)
	}

	// Edit the end date: select the row, clear it, type a new one.
	h.press("j", "j", "enter")
	if !h.m.editing {
		t.Fatalf("expected field editor to open")
	}
	for range "2026-04-30" {
		h.send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	h.typeText("2026-05-15")
	h.press("enter")
	if h.m.editing || !h.m.form.Dirty(settings.FieldEndDate) {
		t.Fatalf("expected dirty end date, got=%q", h.m.form.Get(settings.FieldEndDate))
	}

	h.press("j", "l")
	if got := h.m.form.Get(settings.FieldVisibility); got != model.VisibilityPublic {
		t.Fatalf("expected public visibility, got=%q", got)
	}

	h.press("ctrl+s")
	if got := h.srv.Calls(http.MethodPost, "/edit"); got != 1 {
		t.Fatalf("expected one settings POST, got=%d", got)
	}
	tm := h.srv.Snapshot().Tournament
	if tm.EndDate != "2026-05-15" || tm.Visibility != model.VisibilityPublic || tm.Name != "Spring Climb Series" {
		t.Fatalf("expected whole form saved, got=%+v", tm)
	}
	if h.m.form.DirtyCount() != 0 || h.m.tab != tabSettings {
		t.Fatalf("expected clean form after reload on settings tab")
	}
}

func TestSettings_EscDiscardsFieldEdit(t *testing.T) {
	h := newHarness(t)
	h.press("4", "enter")
	h.typeText(" Finals")
	h.press("esc")
	if h.m.editing || h.m.form.DirtyCount() != 0 {
		t.Fatalf("expected edit discarded, got name=%q", h.m.form.Get(settings.FieldName))
	}
	// Keys go back to the tab once the editor closes.
	h.press("j")
	if h.m.setRow != 1 {
		t.Fatalf("expected row navigation after closing the editor, got row=%d", h.m.setRow)
	}
}

func TestSettings_InvalidFormNotSent(t *testing.T) {
	h := newHarness(t)
	h.press("4", "j", "enter")
	for range "2026-04-01" {
		h.send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	h.typeText("2026-06-01")
	h.press("enter", "ctrl+s")
	if got := h.srv.Calls(http.MethodPost, "/edit"); got != 0 {
		t.Fatalf("expected nothing sent, got=%d", got)
	}
	if !h.m.statusErr || !strings.Contains(h.m.status, "before start_date") {
		t.Fatalf("expected validation error, got status=%q", h.m.status)
	}
	if !h.m.form.Dirty(settings.FieldStartDate) {
		t.Fatalf("expected local edit kept")
	}
}

func TestSettings_SyncThroughConfirmReloads(t *testing.T) {
	h := newHarness(t)
	h.press("4", "s")
	if h.m.confirm == nil || h.m.confirm.command.Name != submit.CmdTournamentSync {
		t.Fatalf("expected sync confirmation")
	}
	h.press("enter")
	if got := h.srv.Calls(http.MethodPost, "/sync"); got != 1 {
		t.Fatalf("expected one sync POST, got=%d", got)
	}
	if h.m.page.Value().Tournament.LastSynced == nil {
		t.Fatalf("expected last_synced after reload")
	}
	if view := h.m.View(); strings.Contains(view, "never") {
		t.Fatalf("expected last synced time in view, got:\n%s", view)
	}
}
