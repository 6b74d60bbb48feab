package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pelotourney-cli/internal/model"
)

var (
	ErrUnknownAxis   = errors.New("rides: unknown filter axis")
	ErrUnknownOption = errors.New("rides: unknown filter option")
)

type PopulateState int

const (
	Unpopulated PopulateState = iota
	Populating
	Ready
)

func (s PopulateState) String() string {
	switch s {
	case Unpopulated:
		return "unpopulated"
	case Populating:
		return "populating"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Axis is one filter dimension. Its options are populated at most once.
type Axis struct {
	Name string

	options   []model.FilterOption
	populated bool
	selected  string
}

func (a *Axis) Options() []model.FilterOption {
	return append([]model.FilterOption(nil), a.options...)
}

func (a *Axis) Populated() bool { return a.populated }

// Selected is the chosen option value; empty means no filter.
func (a *Axis) Selected() string { return a.selected }

func (a *Axis) populate(opts []model.FilterOption) {
	if a.populated {
		return
	}
	a.options = append([]model.FilterOption(nil), opts...)
	a.populated = true
}

func (a *Axis) has(value string) bool {
	for _, o := range a.options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Step tells the caller which asynchronous work to start next.
type Step struct {
	LoadOptions bool
	Refresh     *Request
}

func (s Step) Empty() bool { return !s.LoadOptions && s.Refresh == nil }

type OptionsResult struct {
	Filters model.RideFilters
	Err     error
}

// Controller drives the instructor and duration filters of the add-ride
// modal. It is confined to the UI event loop; only LoadOptions and the
// refresher's Fetch run elsewhere.
type Controller struct {
	instructor *Axis
	duration   *Axis
	state      PopulateState
	refresher  *Refresher
}

func NewController(r *Refresher) *Controller {
	return &Controller{
		instructor: &Axis{Name: model.AxisInstructor},
		duration:   &Axis{Name: model.AxisDuration},
		refresher:  r,
	}
}

func (c *Controller) State() PopulateState { return c.state }

func (c *Controller) Refresher() *Refresher { return c.refresher }

func (c *Controller) Axes() []*Axis { return []*Axis{c.instructor, c.duration} }

func (c *Controller) Axis(name string) (*Axis, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case model.AxisInstructor:
		return c.instructor, true
	case model.AxisDuration:
		return c.duration, true
	default:
		return nil, false
	}
}

// Snapshot is the complete current selection of both axes.
func (c *Controller) Snapshot() model.RideFilter {
	return model.RideFilter{InstructorID: c.instructor.selected, Duration: c.duration.selected}
}

// Open is called when the modal is shown. It fetches options only when an
// axis has never been populated; otherwise it refreshes the result list.
func (c *Controller) Open() Step {
	if c.state == Populating {
		return Step{}
	}
	if c.instructor.populated && c.duration.populated {
		c.state = Ready
		return Step{Refresh: c.refresh()}
	}
	c.state = Populating
	return Step{LoadOptions: true}
}

// LoadOptions fetches the filter options. It may run off the event loop.
func (c *Controller) LoadOptions(ctx context.Context) OptionsResult {
	src := c.refresher.src
	filters, err := withTimeout(ctx, c.refresher.timeout, func(ctx context.Context) (model.RideFilters, error) {
		return src.ListRideFilters(ctx)
	})
	return OptionsResult{Filters: filters, Err: err}
}

// OptionsLoaded populates both axes and then triggers exactly one refresh.
// Axes missing from the response are treated as populated with no options,
// so they are not fetched again.
func (c *Controller) OptionsLoaded(res OptionsResult) Step {
	if c.state != Populating {
		return Step{}
	}
	if res.Err != nil {
		c.state = Unpopulated
		c.refresher.Fail(fmt.Errorf("load ride filters: %w", res.Err))
		return Step{}
	}
	byName := map[string][]model.FilterOption{}
	for _, f := range res.Filters.Filters {
		byName[strings.ToLower(strings.TrimSpace(f.Name))] = f.Values
	}
	c.instructor.populate(byName[model.AxisInstructor])
	c.duration.populate(byName[model.AxisDuration])
	c.state = Ready
	return Step{Refresh: c.refresh()}
}

// Select changes one axis. An empty value clears the axis. Selecting the
// value that is already chosen is not a change and issues nothing.
func (c *Controller) Select(axis, value string) (Step, error) {
	a, ok := c.Axis(axis)
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrUnknownAxis, axis)
	}
	value = strings.TrimSpace(value)
	if value != "" && a.populated && !a.has(value) {
		return Step{}, fmt.Errorf("%w: %s=%s", ErrUnknownOption, a.Name, value)
	}
	if value == a.selected {
		return Step{}, nil
	}
	a.selected = value
	return Step{Refresh: c.refresh()}, nil
}

// Apply hands a ride response to the refresher; stale responses are dropped.
func (c *Controller) Apply(res Result) bool { return c.refresher.Apply(res) }

func (c *Controller) refresh() *Request {
	req := c.refresher.Begin(c.Snapshot())
	return &req
}
