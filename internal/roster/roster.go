// Package roster tracks drag-and-drop team assignment.
//
// A Board holds containers (teams) and the items (members) inside them. Every
// item remembers the first container it was observed leaving; an item is dirty
// when its current container differs from that origin. Dirty state is a
// function of (origin, current) only, never of the move history.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"pelotourney-cli/internal/model"
)

var (
	ErrUnknownItem      = errors.New("roster: unknown item")
	ErrUnknownContainer = errors.New("roster: unknown container")
	ErrNotInContainer   = errors.New("roster: item is not in source container")
	ErrFamilyMismatch   = errors.New("roster: containers belong to different families")
	ErrDuplicateItem    = errors.New("roster: item appears in more than one container")
)

type Item struct {
	ID string

	origin    int64
	hasOrigin bool
	current   int64
}

// Origin returns the container the item was first observed leaving.
func (it *Item) Origin() (int64, bool) { return it.origin, it.hasOrigin }

func (it *Item) Current() int64 { return it.current }

// Dirty reports whether the item sits outside its origin container. Items
// that never moved have no origin and are never dirty.
func (it *Item) Dirty() bool {
	return it.hasOrigin && it.current != it.origin
}

type Container struct {
	ID     int64
	Name   string
	Family string

	items []string
}

// Items returns the item ids in display order.
func (c *Container) Items() []string {
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Container) Len() int { return len(c.items) }

func (c *Container) indexOf(itemID string) int {
	for i, id := range c.items {
		if id == itemID {
			return i
		}
	}
	return -1
}

type Board struct {
	order      []int64
	containers map[int64]*Container
	items      map[string]*Item
}

// NewBoard hydrates a board from server state. All teams join the same family.
func NewBoard(family string, teams []model.Team) (*Board, error) {
	b := &Board{
		containers: make(map[int64]*Container, len(teams)),
		items:      map[string]*Item{},
	}
	for _, t := range teams {
		if err := b.AddContainer(family, t); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Board) AddContainer(family string, t model.Team) error {
	if _, ok := b.containers[t.ID]; ok {
		return fmt.Errorf("roster: duplicate container %d", t.ID)
	}
	c := &Container{ID: t.ID, Name: strings.TrimSpace(t.Name), Family: family}
	for _, username := range t.Members {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		if _, ok := b.items[username]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, username)
		}
		b.items[username] = &Item{ID: username, current: t.ID}
		c.items = append(c.items, username)
	}
	b.containers[t.ID] = c
	b.order = append(b.order, t.ID)
	return nil
}

// Containers returns the containers in display order.
func (b *Board) Containers() []*Container {
	out := make([]*Container, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.containers[id])
	}
	return out
}

func (b *Board) Container(id int64) (*Container, bool) {
	c, ok := b.containers[id]
	return c, ok
}

func (b *Board) Item(id string) (*Item, bool) {
	it, ok := b.items[id]
	return it, ok
}

func (b *Board) DirtyCount() int {
	n := 0
	for _, it := range b.items {
		if it.Dirty() {
			n++
		}
	}
	return n
}

// Drop records a completed drag gesture, appending the item to the end of to.
func (b *Board) Drop(itemID string, from, to int64) (bool, error) {
	return b.DropAt(itemID, from, to, -1)
}

// DropAt records a completed drag gesture landing at index in to (index < 0
// appends). A drop with from == to only reorders: it never touches dirty
// state and never establishes an origin. The returned bool is the item's
// dirty state after the drop.
func (b *Board) DropAt(itemID string, from, to int64, index int) (bool, error) {
	it, ok := b.items[itemID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	src, ok := b.containers[from]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownContainer, from)
	}
	dst, ok := b.containers[to]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownContainer, to)
	}
	if src.Family != dst.Family {
		return false, fmt.Errorf("%w: %q vs %q", ErrFamilyMismatch, src.Family, dst.Family)
	}
	pos := src.indexOf(itemID)
	if pos < 0 || it.current != from {
		return false, fmt.Errorf("%w: %s not in %d", ErrNotInContainer, itemID, from)
	}

	if from == to {
		if index >= 0 {
			src.items = moveWithin(src.items, pos, index)
		}
		return it.Dirty(), nil
	}

	if !it.hasOrigin {
		it.origin = from
		it.hasOrigin = true
	}
	src.items = append(src.items[:pos], src.items[pos+1:]...)
	dst.items = insertAt(dst.items, itemID, index)
	it.current = to
	return it.Dirty(), nil
}

// Reorder shifts an item by delta positions inside its current container.
// It reports whether the item actually moved.
func (b *Board) Reorder(itemID string, delta int) (bool, error) {
	it, ok := b.items[itemID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	c := b.containers[it.current]
	pos := c.indexOf(itemID)
	target := pos + delta
	if target < 0 {
		target = 0
	}
	if target > len(c.items)-1 {
		target = len(c.items) - 1
	}
	if target == pos {
		return false, nil
	}
	_, err := b.DropAt(itemID, it.current, it.current, target)
	return err == nil, err
}

// Payload builds the full-resync team payload: every container, in display
// order, with its current membership.
func (b *Board) Payload() []model.TeamPayload {
	out := make([]model.TeamPayload, 0, len(b.order))
	for _, c := range b.Containers() {
		out = append(out, model.TeamPayload{TeamID: c.ID, Usernames: c.Items()})
	}
	return out
}

func insertAt(xs []string, s string, index int) []string {
	if index < 0 || index >= len(xs) {
		return append(xs, s)
	}
	xs = append(xs, "")
	copy(xs[index+1:], xs[index:])
	xs[index] = s
	return xs
}

func moveWithin(xs []string, from, to int) []string {
	if to >= len(xs) {
		to = len(xs) - 1
	}
	if from == to {
		return xs
	}
	s := xs[from]
	xs = append(xs[:from], xs[from+1:]...)
	return insertAt(xs, s, to)
}
