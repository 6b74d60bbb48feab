// Package fakeapi is an in-memory implementation of the tournament edit
// endpoints. It backs `pelotourney demo` and the client tests.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pelotourney-cli/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"
)

const (
	csrfCookie = "csrftoken"
	csrfHeader = "X-CSRFToken"
)

type Option func(*Server)

// WithLatency delays every response by d, or until the request is cancelled.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock used to stamp last_synced.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithoutCSRF disables the anti-forgery check.
func WithoutCSRF() Option {
	return func(s *Server) { s.csrf = false }
}

type Server struct {
	mu          sync.Mutex
	tournament  model.Tournament
	teams       []model.Team
	members     []model.Member
	instructors []model.Instructor
	catalog     []model.Ride
	attached    []string
	faults      map[string]int
	calls       map[string]int

	token   string
	csrf    bool
	latency time.Duration
	clock   clockwork.Clock
	log     logrus.FieldLogger
	router  http.Handler
}

func New(f Fixture, opts ...Option) *Server {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Server{
		tournament: model.Tournament{
			ID:         f.Tournament.ID,
			Name:       f.Tournament.Name,
			Format:     f.Tournament.Format,
			StartDate:  f.Tournament.StartDate,
			EndDate:    f.Tournament.EndDate,
			Visibility: f.Tournament.Visibility,
		},
		faults:     map[string]int{},
		calls:      map[string]int{},
		token:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		csrf:       true,
		clock:      clockwork.NewRealClock(),
		log:        discard,
	}
	if s.tournament.Format == "" {
		s.tournament.Format = model.FormatSimple
	}
	if s.tournament.Visibility == "" {
		s.tournament.Visibility = model.VisibilityPrivate
	}
	teamOf := map[string]int64{}
	for _, t := range f.Teams {
		s.teams = append(s.teams, model.Team{ID: t.ID, Name: t.Name, Members: append([]string{}, t.Members...)})
		for _, u := range t.Members {
			teamOf[u] = t.ID
		}
	}
	for _, m := range f.Members {
		mm := model.Member{ID: m.ID, Username: m.Username, Role: model.Role(strings.ToLower(m.Role))}
		if mm.Role == "" {
			mm.Role = model.RoleMember
		}
		if id, ok := teamOf[m.Username]; ok {
			id := id
			mm.TeamID = &id
		}
		s.members = append(s.members, mm)
	}
	for _, in := range f.Instructors {
		s.instructors = append(s.instructors, model.Instructor{ID: in.ID, Name: in.Name, ImageURL: in.ImageURL})
	}
	for _, r := range f.Catalog {
		s.catalog = append(s.catalog, model.Ride{
			ID:                 r.ID,
			Title:              r.Title,
			Description:        r.Description,
			ImageURL:           r.ImageURL,
			ScheduledStartTime: r.ScheduledStartTime,
			Duration:           r.Duration,
			InstructorID:       r.InstructorID,
		})
	}
	s.attached = append([]string{}, f.Attached...)
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.delay)

	r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Use(s.tournamentOnly)
		r.Use(s.checkCSRF)

		r.Get("/state", s.stateHandler)
		r.Post("/edit", s.updateTournamentHandler)
		r.Post("/sync", s.syncHandler)
		r.Get("/rider_search", s.riderSearchHandler)
		r.Post("/teams", s.updateTeamsHandler)
		r.Delete("/teams", s.deleteTeamHandler)
		r.Delete("/members", s.deleteMemberHandler)
		r.Post("/rides", s.addRideHandler)
		r.Delete("/rides", s.deleteRideHandler)
		r.Get("/rides/search", s.searchRidesHandler)
		r.Get("/rides/filters", s.rideFiltersHandler)
		r.Post("/permissions", s.updatePermissionsHandler)
	})
	return r
}

// FailNext makes the next request to method+path (relative to the
// tournament, e.g. "POST", "/teams") answer with status.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[faultKey(method, path)] = status
}

// Calls reports how many requests reached method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[faultKey(method, path)]
}

// Snapshot returns the current server state.
func (s *Server) Snapshot() model.PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func faultKey(method, path string) string {
	return strings.ToUpper(method) + " /" + strings.Trim(path, "/")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"request_id": r.Header.Get("X-Request-ID"),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Info("fakeapi request")
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			t := time.NewTimer(s.latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) tournamentOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "tournamentID"), 10, 64)
		if err != nil || id != s.tournament.ID {
			writeError(w, http.StatusNotFound, "tournament not found")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/tournaments/"+chi.URLParam(r, "tournamentID"))
		key := faultKey(r.Method, rest)
		s.mu.Lock()
		s.calls[key]++
		status, fail := s.faults[key]
		delete(s.faults, key)
		s.mu.Unlock()
		if fail {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkCSRF issues the token cookie on reads and requires it to be echoed
// back as a header on writes.
func (s *Server) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.csrf {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: s.token, Path: "/", SameSite: http.SameSiteLaxMode})
			next.ServeHTTP(w, r)
			return
		}
		ck, err := r.Cookie(csrfCookie)
		if err != nil || ck.Value != s.token || r.Header.Get(csrfHeader) != s.token {
			writeError(w, http.StatusForbidden, "csrf token missing or incorrect")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.stateLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) stateLocked() model.PageState {
	tm := s.tournament
	if tm.LastSynced != nil {
		ts := *tm.LastSynced
		tm.LastSynced = &ts
	}
	st := model.PageState{
		Tournament:  tm,
		Teams:       make([]model.Team, 0, len(s.teams)),
		Members:     make([]model.Member, 0, len(s.members)),
		Rides:       []model.Ride{},
		Instructors: append([]model.Instructor{}, s.instructors...),
	}
	for _, t := range s.teams {
		t.Members = append([]string{}, t.Members...)
		st.Teams = append(st.Teams, t)
	}
	for _, m := range s.members {
		if m.TeamID != nil {
			id := *m.TeamID
			m.TeamID = &id
		}
		st.Members = append(st.Members, m)
	}
	for _, id := range s.attached {
		if ride, ok := s.rideLocked(id); ok {
			st.Rides = append(st.Rides, ride)
		}
	}
	return st
}

// updateTournamentHandler saves every settings field, changed or not.
func (s *Server) updateTournamentHandler(w http.ResponseWriter, r *http.Request) {
	var p model.TournamentPayload
	if !decodeBody(w, r, &p) {
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "tournament_name is required")
		return
	}
	start, err := time.Parse(model.DateLayout, p.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	end, err := time.Parse(model.DateLayout, p.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}
	switch p.Visibility {
	case model.VisibilityPrivate, model.VisibilityPublic:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid visibility %q", p.Visibility))
		return
	}
	s.mu.Lock()
	s.tournament.Name = name
	s.tournament.StartDate = p.StartDate
	s.tournament.EndDate = p.EndDate
	s.tournament.Visibility = p.Visibility
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// syncHandler stands in for the upstream ride and workout sync; it only
// stamps last_synced.
func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now().UTC().Truncate(time.Second)
	s.mu.Lock()
	s.tournament.LastSynced = &now
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) riderSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("rider_query"))
	out := []model.SearchResult{}
	if q == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}
	s.mu.Lock()
	names := make([]string, len(s.members))
	for i, m := range s.members {
		names[i] = m.Username
	}
	s.mu.Unlock()

	ranks := fuzzy.RankFindNormalizedFold(q, names)
	sort.Stable(ranks)
	for _, rank := range ranks {
		out = append(out, model.SearchResult{Username: names[rank.OriginalIndex]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateTeamsHandler(w http.ResponseWriter, r *http.Request) {
	var payload []model.TeamPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]int64{}
	for _, tp := range payload {
		if s.teamIndexLocked(tp.TeamID) < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown team %d", tp.TeamID))
			return
		}
		for _, u := range tp.Usernames {
			if s.memberIndexLocked(u) < 0 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown member %q", u))
				return
			}
			if prev, dup := seen[u]; dup {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("member %q listed on teams %d and %d", u, prev, tp.TeamID))
				return
			}
			seen[u] = tp.TeamID
		}
	}
	for _, tp := range payload {
		i := s.teamIndexLocked(tp.TeamID)
		s.teams[i].Members = append([]string{}, tp.Usernames...)
	}
	// Members named in the payload leave whichever team they were on.
	for i := range s.teams {
		if _, listed := teamInPayload(payload, s.teams[i].ID); listed {
			continue
		}
		kept := s.teams[i].Members[:0]
		for _, u := range s.teams[i].Members {
			if _, moved := seen[u]; !moved {
				kept = append(kept, u)
			}
		}
		s.teams[i].Members = kept
	}
	s.reindexMembersLocked()
	w.WriteHeader(http.StatusNoContent)
}

func teamInPayload(payload []model.TeamPayload, id int64) (model.TeamPayload, bool) {
	for _, tp := range payload {
		if tp.TeamID == id {
			return tp, true
		}
	}
	return model.TeamPayload{}, false
}

func (s *Server) deleteTeamHandler(w http.ResponseWriter, r *http.Request) {
	var ref model.TeamRef
	if !decodeBody(w, r, &ref) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.teamIndexLocked(ref.TeamID)
	if i < 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("team %d not found", ref.TeamID))
		return
	}
	s.teams = append(s.teams[:i], s.teams[i+1:]...)
	s.reindexMembersLocked()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteMemberHandler(w http.ResponseWriter, r *http.Request) {
	var ref model.MemberRef
	if !decodeBody(w, r, &ref) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndexLocked(ref.Username)
	if i < 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("member %q not found", ref.Username))
		return
	}
	s.members = append(s.members[:i], s.members[i+1:]...)
	for ti := range s.teams {
		kept := s.teams[ti].Members[:0]
		for _, u := range s.teams[ti].Members {
			if u != ref.Username {
				kept = append(kept, u)
			}
		}
		s.teams[ti].Members = kept
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRideHandler(w http.ResponseWriter, r *http.Request) {
	var p model.RidePayload
	if !decodeBody(w, r, &p) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rideLocked(p.RideID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("ride %q not found", p.RideID))
		return
	}
	for _, id := range s.attached {
		if id == p.RideID {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.attached = append(s.attached, p.RideID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteRideHandler(w http.ResponseWriter, r *http.Request) {
	var p model.RidePayload
	if !decodeBody(w, r, &p) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.attached {
		if id == p.RideID {
			s.attached = append(s.attached[:i], s.attached[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("ride %q is not attached", p.RideID))
}

func (s *Server) searchRidesHandler(w http.ResponseWriter, r *http.Request) {
	instructorID := strings.TrimSpace(r.URL.Query().Get("instructor_id"))
	duration := strings.TrimSpace(r.URL.Query().Get("duration"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := model.RideList{Data: []model.Ride{}, Instructors: []model.Instructor{}}
	used := map[string]bool{}
	for _, ride := range s.catalog {
		if instructorID != "" && ride.InstructorID != instructorID {
			continue
		}
		if duration != "" && strconv.Itoa(ride.Duration) != duration {
			continue
		}
		out.Data = append(out.Data, ride)
		used[ride.InstructorID] = true
	}
	for _, in := range s.instructors {
		if used[in.ID] {
			out.Instructors = append(out.Instructors, in)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) rideFiltersHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instructors := model.FilterAxis{Name: model.AxisInstructor, Values: []model.FilterOption{}}
	for _, in := range s.instructors {
		instructors.Values = append(instructors.Values, model.FilterOption{Value: in.ID, DisplayName: in.Name, DisplayImageURL: in.ImageURL})
	}
	seen := map[int]bool{}
	var durations []int
	for _, ride := range s.catalog {
		if ride.Duration > 0 && !seen[ride.Duration] {
			seen[ride.Duration] = true
			durations = append(durations, ride.Duration)
		}
	}
	sort.Ints(durations)
	duration := model.FilterAxis{Name: model.AxisDuration, Values: []model.FilterOption{}}
	for _, d := range durations {
		duration.Values = append(duration.Values, model.FilterOption{Value: strconv.Itoa(d), DisplayName: fmt.Sprintf("%d min", d/60)})
	}
	writeJSON(w, http.StatusOK, model.RideFilters{Filters: []model.FilterAxis{instructors, duration}})
}

func (s *Server) updatePermissionsHandler(w http.ResponseWriter, r *http.Request) {
	var payload []model.PermissionPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := map[int64]model.Role{}
	for _, m := range s.members {
		roles[m.ID] = m.Role
	}
	for _, p := range payload {
		if _, ok := roles[p.TournamentMemberID]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown member id %d", p.TournamentMemberID))
			return
		}
		switch p.Role {
		case model.RoleOwner, model.RoleManager, model.RoleMember:
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid role %q", p.Role))
			return
		}
		roles[p.TournamentMemberID] = p.Role
	}
	owner := false
	for _, role := range roles {
		if role == model.RoleOwner {
			owner = true
			break
		}
	}
	if !owner {
		writeError(w, http.StatusBadRequest, "tournament must keep an owner")
		return
	}
	for i := range s.members {
		s.members[i].Role = roles[s.members[i].ID]
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) teamIndexLocked(id int64) int {
	for i, t := range s.teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) memberIndexLocked(username string) int {
	for i, m := range s.members {
		if m.Username == username {
			return i
		}
	}
	return -1
}

func (s *Server) rideLocked(id string) (model.Ride, bool) {
	for _, ride := range s.catalog {
		if ride.ID == id {
			return ride, true
		}
	}
	return model.Ride{}, false
}

func (s *Server) reindexMembersLocked() {
	teamOf := map[string]int64{}
	for _, t := range s.teams {
		for _, u := range t.Members {
			teamOf[u] = t.ID
		}
	}
	for i := range s.members {
		if id, ok := teamOf[s.members[i].Username]; ok {
			id := id
			s.members[i].TeamID = &id
		} else {
			s.members[i].TeamID = nil
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
