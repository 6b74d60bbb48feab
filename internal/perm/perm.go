package perm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pelotourney-cli/internal/model"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownMember = errors.New("perm: unknown tournament member")
	ErrInvalidRole   = errors.New("perm: invalid role")
	ErrNoOwner       = errors.New("perm: tournament must keep at least one owner")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsAdmin reports whether a role may edit the tournament (owners and managers).
func IsAdmin(r model.Role) bool {
	return r == model.RoleOwner || r == model.RoleManager
}

func ParseRole(s string) (model.Role, error) {
	r := model.Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range model.Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Entry is one member's role. Dirty compares against the role recorded at
// hydration.
type Entry struct {
	MemberID int64
	Username string
	Role     model.Role

	original model.Role
}

func (e *Entry) Original() model.Role { return e.original }

func (e *Entry) Dirty() bool { return e.Role != e.original }

type Editor struct {
	entries []*Entry
	byID    map[int64]*Entry
}

func NewEditor(members []model.Member) *Editor {
	ed := &Editor{byID: make(map[int64]*Entry, len(members))}
	for _, m := range members {
		e := &Entry{MemberID: m.ID, Username: m.Username, Role: m.Role, original: m.Role}
		ed.entries = append(ed.entries, e)
		ed.byID[m.ID] = e
	}
	sort.SliceStable(ed.entries, func(i, j int) bool {
		return strings.ToLower(ed.entries[i].Username) < strings.ToLower(ed.entries[j].Username)
	})
	return ed
}

// Entries returns entries sorted by username.
func (ed *Editor) Entries() []*Entry {
	return append([]*Entry(nil), ed.entries...)
}

func (ed *Editor) Entry(memberID int64) (*Entry, bool) {
	e, ok := ed.byID[memberID]
	return e, ok
}

func (ed *Editor) SetRole(memberID int64, role model.Role) (*Entry, error) {
	e, ok := ed.byID[memberID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMember, memberID)
	}
	r, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	e.Role = r
	return e, nil
}

// CycleRole moves a member step positions through model.Roles, wrapping around.
func (ed *Editor) CycleRole(memberID int64, step int) (*Entry, error) {
	e, ok := ed.byID[memberID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMember, memberID)
	}
	idx := 0
	for i, r := range model.Roles {
		if r == e.Role {
			idx = i
			break
		}
	}
	n := len(model.Roles)
	idx = ((idx+step)%n + n) % n
	e.Role = model.Roles[idx]
	return e, nil
}

func (ed *Editor) DirtyCount() int {
	n := 0
	for _, e := range ed.entries {
		if e.Dirty() {
			n++
		}
	}
	return n
}

// Payload builds the full-resync permission payload for every member.
func (ed *Editor) Payload() ([]model.PermissionPayload, error) {
	out := make([]model.PermissionPayload, 0, len(ed.entries))
	owners := 0
	for _, e := range ed.entries {
		p := model.PermissionPayload{TournamentMemberID: e.MemberID, Role: e.Role}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: member %s: %v", ErrInvalidRole, e.Username, err)
		}
		if e.Role == model.RoleOwner {
			owners++
		}
		out = append(out, p)
	}
	if len(out) > 0 && owners == 0 {
		return nil, ErrNoOwner
	}
	return out, nil
}
