package model

import (
	"net/url"
	"strings"
	"time"
)

type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Roles lists every role in the order the permission editor cycles through them.
var Roles = []Role{RoleOwner, RoleManager, RoleMember}

const (
	FormatSimple = "simple"

	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Visibilities lists the visibility values in the order the settings form
// cycles through them.
var Visibilities = []string{VisibilityPrivate, VisibilityPublic}

// DateLayout is the wire format of tournament start and end dates.
const DateLayout = "2006-01-02"

type Tournament struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Format     string     `json:"format,omitempty"`
	StartDate  string     `json:"start_date,omitempty"`
	EndDate    string     `json:"end_date,omitempty"`
	Visibility string     `json:"visibility,omitempty"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
}

type Team struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type Member struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	TeamID   *int64 `json:"team_id,omitempty"`
}

type Instructor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type Ride struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	ImageURL           string `json:"image_url,omitempty"`
	ScheduledStartTime int64  `json:"scheduled_start_time,omitempty"`
	Duration           int    `json:"duration,omitempty"` // seconds
	InstructorID       string `json:"instructor_id"`
}

// RideList is the filtered ride listing. Rides reference instructors by id;
// the two must be joined client-side.
type RideList struct {
	Data        []Ride       `json:"data"`
	Instructors []Instructor `json:"instructors"`
}

// PageState is everything the edit screen hydrates from on load.
type PageState struct {
	Tournament  Tournament   `json:"tournament"`
	Teams       []Team       `json:"teams"`
	Members     []Member     `json:"members"`
	Rides       []Ride       `json:"rides"`
	Instructors []Instructor `json:"instructors"`
}

type FilterOption struct {
	Value           string `json:"value"`
	DisplayName     string `json:"display_name"`
	DisplayImageURL string `json:"display_image_url,omitempty"`
}

type FilterAxis struct {
	Name   string         `json:"name"`
	Values []FilterOption `json:"values"`
}

type RideFilters struct {
	Filters []FilterAxis `json:"filters"`
}

const (
	AxisInstructor = "instructor"
	AxisDuration   = "duration"
)

// RideFilter is a complete snapshot of both filter selections. An empty
// value means the axis is cleared.
type RideFilter struct {
	InstructorID string `json:"instructor_id,omitempty"`
	Duration     string `json:"duration,omitempty"`
}

func (f RideFilter) Query() url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(f.InstructorID); v != "" {
		q.Set("instructor_id", v)
	}
	if v := strings.TrimSpace(f.Duration); v != "" {
		q.Set("duration", v)
	}
	return q
}

type SearchResult struct {
	Username string `json:"username"`
}

type TeamPayload struct {
	TeamID    int64    `json:"team_id"`
	Usernames []string `json:"usernames"`
}

type PermissionPayload struct {
	TournamentMemberID int64 `json:"tournament_member_id" validate:"gt=0"`
	Role               Role  `json:"role" validate:"oneof=owner manager member"`
}

type RidePayload struct {
	RideID string `json:"ride_id"`
}

// TournamentPayload is the whole settings form. It is always sent complete,
// even when only one field changed.
type TournamentPayload struct {
	Name       string `json:"tournament_name" validate:"required,max=200"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Visibility string `json:"visibility" validate:"oneof=private public"`
}

type TeamRef struct {
	TeamID int64 `json:"team_id"`
}

type MemberRef struct {
	Username string `json:"username"`
}

const (
	FragmentTeams       = "teams"
	FragmentRides       = "rides"
	FragmentPermissions = "permissions"
	FragmentSettings    = "settings"
)

// Location identifies a view: a path plus a named fragment.
type Location struct {
	Path     string `json:"path"`
	Fragment string `json:"fragment,omitempty"`
}

func (l Location) String() string {
	if l.Fragment == "" {
		return l.Path
	}
	return l.Path + "#" + l.Fragment
}

func (l Location) Equal(o Location) bool {
	return strings.TrimRight(l.Path, "/") == strings.TrimRight(o.Path, "/") && l.Fragment == o.Fragment
}

func (l Location) WithFragment(fragment string) Location {
	l.Fragment = fragment
	return l
}
