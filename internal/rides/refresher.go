package rides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/region"

	"github.com/sirupsen/logrus"
)

var ErrTimeout = errors.New("rides: request timed out")

const defaultTimeout = 10 * time.Second

// Source is the remote side of the rides modal.
type Source interface {
	ListRides(ctx context.Context, f model.RideFilter) (model.RideList, error)
	ListRideFilters(ctx context.Context) (model.RideFilters, error)
}

type Request struct {
	Seq    uint64
	Filter model.RideFilter
}

type Result struct {
	Seq    uint64
	Filter model.RideFilter
	List   model.RideList
	Err    error
}

type Option func(*Refresher)

func WithTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithJoinPolicy(p JoinPolicy) Option {
	return func(r *Refresher) { r.policy = p }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.log = l
		}
	}
}

// Refresher owns the ride results region. It is the only writer of that
// region, and only from Apply.
type Refresher struct {
	src     Source
	timeout time.Duration
	policy  JoinPolicy
	log     logrus.FieldLogger

	region region.Region[[]Row]
}

func NewRefresher(src Source, opts ...Option) *Refresher {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	r := &Refresher{
		src:     src,
		timeout: defaultTimeout,
		policy:  JoinFailFast,
		log:     discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin shows the loading state and issues a request keyed by the complete
// filter snapshot.
func (r *Refresher) Begin(f model.RideFilter) Request {
	seq := r.region.Begin()
	r.log.WithFields(logrus.Fields{"seq": seq, "instructor_id": f.InstructorID, "duration": f.Duration}).Debug("ride refresh issued")
	return Request{Seq: seq, Filter: f}
}

// Fetch performs the request. It touches no refresher state and may run off
// the event loop. It always returns within the timeout, even when the source
// ignores cancellation.
func (r *Refresher) Fetch(ctx context.Context, req Request) Result {
	list, err := withTimeout(ctx, r.timeout, func(ctx context.Context) (model.RideList, error) {
		return r.src.ListRides(ctx, req.Filter)
	})
	return Result{Seq: req.Seq, Filter: req.Filter, List: list, Err: err}
}

// Apply writes a response into the region. Responses for superseded
// requests are dropped silently and Apply returns false.
func (r *Refresher) Apply(res Result) bool {
	if !r.region.Current(res.Seq) {
		r.log.WithFields(logrus.Fields{"seq": res.Seq, "latest": r.region.Seq()}).Debug("dropping stale ride response")
		return false
	}
	if res.Err != nil {
		r.log.WithFields(logrus.Fields{"seq": res.Seq, "error": res.Err}).Warn("ride refresh failed")
		return r.region.Fail(res.Seq, res.Err)
	}
	rows, err := Join(res.List, r.policy, r.log)
	if err != nil {
		r.log.WithFields(logrus.Fields{"seq": res.Seq, "error": err}).Warn("ride response malformed")
		return r.region.Fail(res.Seq, err)
	}
	return r.region.Resolve(res.Seq, rows)
}

// Fail puts the region into the error state without a ride request, e.g.
// when the filter options could not be loaded.
func (r *Refresher) Fail(err error) {
	seq := r.region.Begin()
	r.region.Fail(seq, err)
}

func (r *Refresher) Region() *region.Region[[]Row] { return &r.region }

func (r *Refresher) Timeout() time.Duration { return r.timeout }

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type out struct {
		v   T
		err error
	}
	ch := make(chan out, 1)
	go func() {
		v, err := fn(ctx)
		ch <- out{v: v, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return o.v, fmt.Errorf("%w after %s: %w", ErrTimeout, d, o.err)
		}
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}
