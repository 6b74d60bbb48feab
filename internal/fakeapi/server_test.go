package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pelotourney-cli/internal/model"

	"github.com/jonboulle/clockwork"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	f, err := DefaultFixture()
	if err != nil {
		t.Fatalf("DefaultFixture: %v", err)
	}
	return New(f, opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if token != "" {
		req.Header.Set(csrfHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func csrfFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookie {
			return c
		}
	}
	t.Fatalf("expected %s cookie on response", csrfCookie)
	return nil
}

func TestDefaultFixtureIsValid(t *testing.T) {
	f, err := DefaultFixture()
	if err != nil {
		t.Fatalf("DefaultFixture: %v", err)
	}
	if f.Tournament.ID != 5 || len(f.Teams) == 0 || len(f.Catalog) == 0 {
		t.Fatalf("unexpected fixture: %+v", f.Tournament)
	}
}

func TestParseFixture_RejectsUnknownFieldsAndBadRefs(t *testing.T) {
	if _, err := ParseFixture([]byte("tournament: {id: 1}\nbogus: true\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	bad := "tournament: {id: 1}\nmembers: [{id: 1, username: a}]\nteams: [{id: 2, name: x, members: [b]}]\n"
	if _, err := ParseFixture([]byte(bad)); err == nil {
		t.Fatalf("expected unknown member error")
	}
}

func TestState_IssuesCSRFCookie(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/tournaments/5/state", nil, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got=%d body=%s", rec.Code, rec.Body.String())
	}
	csrfFrom(t, rec)
	var st model.PageState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Tournament.Name == "" || len(st.Teams) != 3 || len(st.Rides) != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestUnknownTournamentIs404(t *testing.T) {
	s := newTestServer(t)
	if rec := doJSON(t, s, http.MethodGet, "/tournaments/6/state", nil, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got=%d", rec.Code)
	}
}

func TestMutationsRequireCSRF(t *testing.T) {
	s := newTestServer(t)
	body := model.RidePayload{RideID: "r2"}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/rides", body, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got=%d", rec.Code)
	}
	ck := csrfFrom(t, doJSON(t, s, http.MethodGet, "/tournaments/5/state", nil, nil, ""))
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/rides", body, ck, "wrong"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong header, got=%d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/rides", body, ck, ck.Value); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := len(s.Snapshot().Rides); got != 2 {
		t.Fatalf("expected 2 attached rides, got=%d", got)
	}
}

func TestUpdateTeams_FullResync(t *testing.T) {
	s := newTestServer(t, WithoutCSRF())
	payload := []model.TeamPayload{
		{TeamID: 3, Usernames: []string{"ana", "cleo"}},
		{TeamID: 7, Usernames: []string{"bo", "dmitri", "emeka"}},
	}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/teams", payload, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got=%d body=%s", rec.Code, rec.Body.String())
	}
	st := s.Snapshot()
	for _, m := range st.Members {
		if m.Username == "emeka" && (m.TeamID == nil || *m.TeamID != 7) {
			t.Fatalf("expected emeka on team 7, got=%v", m.TeamID)
		}
	}
	if got := strings.Join(st.Teams[0].Members, ","); got != "ana,cleo" {
		t.Fatalf("unexpected team 3 members: %s", got)
	}

	dup := []model.TeamPayload{{TeamID: 3, Usernames: []string{"ana"}}, {TeamID: 7, Usernames: []string{"ana"}}}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/teams", dup, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate member, got=%d", rec.Code)
	}
}

func TestRiderSearch_Fuzzy(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/tournaments/5/rider_search?rider_query=DMi", nil, nil, "")
	var out []model.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Username != "dmitri" {
		t.Fatalf("expected dmitri, got=%+v", out)
	}

	rec = doJSON(t, s, http.MethodGet, "/tournaments/5/rider_search?rider_query=", nil, nil, "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array for blank query, got=%s", rec.Body.String())
	}
}

func TestSearchRides_FiltersAndSideTable(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/tournaments/5/rides/search?instructor_id=i1&duration=1200", nil, nil, "")
	var out model.RideList
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0].ID != "r1" {
		t.Fatalf("expected only r1, got=%+v", out.Data)
	}
	if len(out.Instructors) != 1 || out.Instructors[0].ID != "i1" {
		t.Fatalf("expected instructor side table with i1, got=%+v", out.Instructors)
	}
}

func TestRideFilters(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/tournaments/5/rides/filters", nil, nil, "")
	var out model.RideFilters
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Filters) != 2 {
		t.Fatalf("expected 2 axes, got=%d", len(out.Filters))
	}
	dur := out.Filters[1]
	if dur.Name != model.AxisDuration || len(dur.Values) != 3 || dur.Values[0].DisplayName != "20 min" {
		t.Fatalf("unexpected duration axis: %+v", dur)
	}
}

func TestUpdatePermissions_RequiresOwner(t *testing.T) {
	s := newTestServer(t, WithoutCSRF())
	payload := []model.PermissionPayload{{TournamentMemberID: 1, Role: model.RoleMember}}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/permissions", payload, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when owner removed, got=%d", rec.Code)
	}
	payload = []model.PermissionPayload{
		{TournamentMemberID: 1, Role: model.RoleMember},
		{TournamentMemberID: 2, Role: model.RoleOwner},
	}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/permissions", payload, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	s := newTestServer(t)
	s.FailNext(http.MethodGet, "/rides/filters", http.StatusServiceUnavailable)
	if rec := doJSON(t, s, http.MethodGet, "/tournaments/5/rides/filters", nil, nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected injected 503, got=%d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/tournaments/5/rides/filters", nil, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected recovery, got=%d", rec.Code)
	}
	if got := s.Calls(http.MethodGet, "/rides/filters"); got != 2 {
		t.Fatalf("expected 2 calls, got=%d", got)
	}
}

func TestDeleteMemberAndTeam(t *testing.T) {
	s := newTestServer(t, WithoutCSRF())
	if rec := doJSON(t, s, http.MethodDelete, "/tournaments/5/members", model.MemberRef{Username: "cleo"}, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete member: %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodDelete, "/tournaments/5/teams", model.TeamRef{TeamID: 7}, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete team: %d", rec.Code)
	}
	st := s.Snapshot()
	if len(st.Teams) != 2 || len(st.Members) != 7 {
		t.Fatalf("unexpected state: teams=%d members=%d", len(st.Teams), len(st.Members))
	}
	for _, m := range st.Members {
		if m.Username == "bo" && m.TeamID != nil {
			t.Fatalf("expected bo unassigned after team delete")
		}
	}
	if rec := doJSON(t, s, http.MethodDelete, "/tournaments/5/teams", model.TeamRef{TeamID: 7}, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing team, got=%d", rec.Code)
	}
}

func TestUpdateTournament_SavesWholeForm(t *testing.T) {
	s := newTestServer(t, WithoutCSRF())
	p := model.TournamentPayload{Name: " Autumn Cup ", StartDate: "2026-10-01", EndDate: "2026-10-31", Visibility: model.VisibilityPublic}
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/edit", p, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got=%d body=%s", rec.Code, rec.Body.String())
	}
	tm := s.Snapshot().Tournament
	if tm.Name != "Autumn Cup" || tm.StartDate != "2026-10-01" || tm.Visibility != model.VisibilityPublic || tm.Format != model.FormatSimple {
		t.Fatalf("unexpected tournament %+v", tm)
	}

	bad := []model.TournamentPayload{
		{Name: "", StartDate: "2026-10-01", EndDate: "2026-10-31", Visibility: model.VisibilityPublic},
		{Name: "x", StartDate: "10/01/2026", EndDate: "2026-10-31", Visibility: model.VisibilityPublic},
		{Name: "x", StartDate: "2026-10-01", EndDate: "2026-09-30", Visibility: model.VisibilityPublic},
		{Name: "x", StartDate: "2026-10-01", EndDate: "2026-10-31", Visibility: "hidden"},
	}
	for _, b := range bad {
		if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/edit", b, nil, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %+v, got=%d", b, rec.Code)
		}
	}
	if got := s.Snapshot().Tournament.Name; got != "Autumn Cup" {
		t.Fatalf("expected rejected forms to change nothing, got name=%q", got)
	}
}

func TestSync_StampsLastSynced(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 4, 12, 18, 30, 15, 500, time.UTC))
	s := newTestServer(t, WithoutCSRF(), WithClock(clock))
	if rec := doJSON(t, s, http.MethodPost, "/tournaments/5/sync", nil, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got=%d body=%s", rec.Code, rec.Body.String())
	}
	got := s.Snapshot().Tournament.LastSynced
	if got == nil || !got.Equal(time.Date(2026, 4, 12, 18, 30, 15, 0, time.UTC)) {
		t.Fatalf("unexpected last_synced %v", got)
	}
}

func TestParseFixture_RejectsBadTournamentSettings(t *testing.T) {
	if _, err := ParseFixture([]byte("tournament: {id: 1, start_date: tomorrow}\n")); err == nil {
		t.Fatalf("expected bad date error")
	}
	if _, err := ParseFixture([]byte("tournament: {id: 1, visibility: secret}\n")); err == nil {
		t.Fatalf("expected bad visibility error")
	}
}
