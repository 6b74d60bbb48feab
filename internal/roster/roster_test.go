package roster

import (
	"errors"
	"reflect"
	"testing"

	"pelotourney-cli/internal/model"
)

const (
	teamA int64 = 1
	teamB int64 = 2
	teamC int64 = 3
)

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	b, err := NewBoard("teams", []model.Team{
		{ID: teamA, Name: "A", Members: []string{"x", "y"}},
		{ID: teamB, Name: "B"},
		{ID: teamC, Name: "C", Members: []string{"z"}},
	})
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	return b
}

func mustItem(t *testing.T, b *Board, id string) *Item {
	t.Helper()
	it, ok := b.Item(id)
	if !ok {
		t.Fatalf("missing item %s", id)
	}
	return it
}

func TestDrop_FirstMoveEstablishesOrigin(t *testing.T) {
	b := newTestBoard(t)
	x := mustItem(t, b, "x")
	if _, ok := x.Origin(); ok {
		t.Fatalf("expected no origin before any move")
	}
	if x.Dirty() {
		t.Fatalf("expected unmoved item to be clean")
	}

	dirty, err := b.Drop("x", teamA, teamB)
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if !dirty || !x.Dirty() {
		t.Fatalf("expected item to be dirty after leaving its origin")
	}
	if origin, ok := x.Origin(); !ok || origin != teamA {
		t.Fatalf("expected origin=%d, got=%d ok=%v", teamA, origin, ok)
	}
	if x.Current() != teamB {
		t.Fatalf("expected current=%d, got=%d", teamB, x.Current())
	}
}

func TestDrop_ReturningThroughIntermediateContainersClearsDirty(t *testing.T) {
	b := newTestBoard(t)
	x := mustItem(t, b, "x")

	steps := []struct {
		from, to int64
		dirty    bool
	}{
		{teamA, teamB, true},
		{teamB, teamC, true},
		{teamC, teamB, true},
		{teamB, teamA, false},
		{teamA, teamC, true},
	}
	for i, s := range steps {
		dirty, err := b.Drop("x", s.from, s.to)
		if err != nil {
			t.Fatalf("step %d: Drop: %v", i, err)
		}
		if dirty != s.dirty || x.Dirty() != s.dirty {
			t.Fatalf("step %d: expected dirty=%v, got=%v", i, s.dirty, dirty)
		}
		if origin, _ := x.Origin(); origin != teamA {
			t.Fatalf("step %d: origin changed to %d", i, origin)
		}
	}
}

func TestDrop_SameContainerIsReorderOnly(t *testing.T) {
	b := newTestBoard(t)
	y := mustItem(t, b, "y")

	dirty, err := b.DropAt("y", teamA, teamA, 0)
	if err != nil {
		t.Fatalf("DropAt: %v", err)
	}
	if dirty {
		t.Fatalf("expected reorder to keep item clean")
	}
	if _, ok := y.Origin(); ok {
		t.Fatalf("expected reorder to not establish an origin")
	}
	a, _ := b.Container(teamA)
	if got := a.Items(); !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Fatalf("expected reordered items, got=%v", got)
	}

	// A reorder of an already-dirty item keeps it dirty.
	if _, err := b.Drop("x", teamA, teamC); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	dirty, err = b.DropAt("x", teamC, teamC, 0)
	if err != nil {
		t.Fatalf("DropAt: %v", err)
	}
	if !dirty {
		t.Fatalf("expected reorder to leave dirty item dirty")
	}
}

func TestDrop_Errors(t *testing.T) {
	b := newTestBoard(t)
	if _, err := b.Drop("nobody", teamA, teamB); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got=%v", err)
	}
	if _, err := b.Drop("x", teamA, 99); !errors.Is(err, ErrUnknownContainer) {
		t.Fatalf("expected ErrUnknownContainer, got=%v", err)
	}
	if _, err := b.Drop("x", teamC, teamB); !errors.Is(err, ErrNotInContainer) {
		t.Fatalf("expected ErrNotInContainer, got=%v", err)
	}
	if err := b.AddContainer("other", model.Team{ID: 9, Name: "elsewhere"}); err != nil {
		t.Fatalf("AddContainer: %v", err)
	}
	if _, err := b.Drop("x", teamA, 9); !errors.Is(err, ErrFamilyMismatch) {
		t.Fatalf("expected ErrFamilyMismatch, got=%v", err)
	}
	if x := mustItem(t, b, "x"); x.Current() != teamA {
		t.Fatalf("expected failed drops to leave item in place")
	}
}

func TestNewBoard_RejectsItemInTwoContainers(t *testing.T) {
	_, err := NewBoard("teams", []model.Team{
		{ID: 1, Members: []string{"x"}},
		{ID: 2, Members: []string{"x"}},
	})
	if !errors.Is(err, ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got=%v", err)
	}
}

func TestPayload_FullResyncInDisplayOrder(t *testing.T) {
	b, err := NewBoard("teams", []model.Team{
		{ID: teamA, Name: "A", Members: []string{"x", "y"}},
		{ID: teamB, Name: "B"},
	})
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	if _, err := b.Drop("x", teamA, teamB); err != nil {
		t.Fatalf("Drop: %v", err)
	}

	want := []model.TeamPayload{
		{TeamID: teamA, Usernames: []string{"y"}},
		{TeamID: teamB, Usernames: []string{"x"}},
	}
	if got := b.Payload(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected payload:\n got=%+v\nwant=%+v", got, want)
	}
	if b.DirtyCount() != 1 {
		t.Fatalf("expected one dirty item, got=%d", b.DirtyCount())
	}
}

func TestPayload_EmptyContainerHasEmptyUsernames(t *testing.T) {
	b := newTestBoard(t)
	for _, p := range b.Payload() {
		if p.Usernames == nil {
			t.Fatalf("expected non-nil usernames for team %d", p.TeamID)
		}
	}
}

func TestReorder_ClampsAndReportsMovement(t *testing.T) {
	b := newTestBoard(t)
	moved, err := b.Reorder("x", 5)
	if err != nil || !moved {
		t.Fatalf("expected move, got moved=%v err=%v", moved, err)
	}
	a, _ := b.Container(teamA)
	if got := a.Items(); !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	moved, err = b.Reorder("x", 1)
	if err != nil || moved {
		t.Fatalf("expected no-op at end, got moved=%v err=%v", moved, err)
	}
	if b.DirtyCount() != 0 {
		t.Fatalf("expected reorders to keep board clean")
	}
}
