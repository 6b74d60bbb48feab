package settings

import (
	"errors"
	"strings"
	"testing"

	"pelotourney-cli/internal/model"
)

func testTournament() model.Tournament {
	return model.Tournament{
		ID:         5,
		Name:       "Spring Climb Series",
		Format:     model.FormatSimple,
		StartDate:  "2026-04-01",
		EndDate:    "2026-04-30",
		Visibility: model.VisibilityPrivate,
	}
}

func TestForm_DirtyTracksOriginalValue(t *testing.T) {
	f := NewForm(testTournament())
	if err := f.Set(FieldName, "  Summer Sprint "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if f.Get(FieldName) != "Summer Sprint" || !f.Dirty(FieldName) || f.DirtyCount() != 1 {
		t.Fatalf("expected trimmed dirty name, got=%q dirty=%d", f.Get(FieldName), f.DirtyCount())
	}
	if err := f.Set(FieldName, "Spring Climb Series"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if f.DirtyCount() != 0 {
		t.Fatalf("expected clean form after reverting")
	}
	if err := f.Set("format", "bracket"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got=%v", err)
	}
}

func TestForm_CycleVisibilityWraps(t *testing.T) {
	f := NewForm(testTournament())
	f.CycleVisibility(1)
	if f.Get(FieldVisibility) != model.VisibilityPublic {
		t.Fatalf("expected public, got=%q", f.Get(FieldVisibility))
	}
	f.CycleVisibility(1)
	if f.Get(FieldVisibility) != model.VisibilityPrivate {
		t.Fatalf("expected wrap to private, got=%q", f.Get(FieldVisibility))
	}
	f.CycleVisibility(-1)
	if f.Get(FieldVisibility) != model.VisibilityPublic {
		t.Fatalf("expected public going backwards, got=%q", f.Get(FieldVisibility))
	}
}

func TestForm_DefaultsVisibilityToPrivate(t *testing.T) {
	tm := testTournament()
	tm.Visibility = ""
	if got := NewForm(tm).Get(FieldVisibility); got != model.VisibilityPrivate {
		t.Fatalf("expected private default, got=%q", got)
	}
}

func TestForm_PayloadIsWholeForm(t *testing.T) {
	f := NewForm(testTournament())
	if err := f.Set(FieldEndDate, "2026-05-15"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	p, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	want := model.TournamentPayload{Name: "Spring Climb Series", StartDate: "2026-04-01", EndDate: "2026-05-15", Visibility: model.VisibilityPrivate}
	if p != want {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestForm_PayloadValidation(t *testing.T) {
	cases := []struct {
		field, value, want string
	}{
		{FieldName, "", "name"},
		{FieldStartDate, "04/01/2026", "start_date"},
		{FieldEndDate, "2026-02-30", "end_date"},
		{FieldVisibility, "secret", "visibility"},
		{FieldEndDate, "2026-03-01", "before start_date"},
	}
	for _, tc := range cases {
		f := NewForm(testTournament())
		if err := f.Set(tc.field, tc.value); err != nil {
			t.Fatalf("Set(%s): %v", tc.field, err)
		}
		_, err := f.Payload()
		if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s=%q: expected ErrInvalid mentioning %q, got=%v", tc.field, tc.value, tc.want, err)
		}
	}
}
