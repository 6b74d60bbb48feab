package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer collapses a burst of Trigger calls into one delayed call of the
// wrapped action, carrying the arguments of the last Trigger.
//
// Each Debouncer owns its timer; two debounced actions never share one.
// The action runs on a timer goroutine, so UI callers should only forward
// the value into their event loop from it.
type Debouncer[T any] struct {
	delay  time.Duration
	action func(T)
	clock  clockwork.Clock

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	pending bool
	last    T
}

type Option func(*options)

type options struct {
	clock clockwork.Clock
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func New[T any](delay time.Duration, action func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[T]{
		delay:  delay,
		action: action,
		clock:  o.clock,
	}
}

// Trigger cancels any pending invocation and schedules a new one delay from now.
func (d *Debouncer[T]) Trigger(v T) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.last = v
	d.pending = true
	old := d.timer
	d.timer = nil
	d.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	// Scheduled outside the lock: a zero delay may fire synchronously.
	t := d.clock.AfterFunc(d.delay, func() { d.fire(gen) })

	d.mu.Lock()
	if d.gen == gen {
		d.timer = t
	} else {
		t.Stop()
	}
	d.mu.Unlock()
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A later Trigger or Stop superseded this timer. Stop can lose the race
	// with an already-expired timer, so the generation is the real guard.
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	v := d.last
	d.mu.Unlock()

	d.action(v)
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels the pending invocation, if any.
func (d *Debouncer[T]) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
