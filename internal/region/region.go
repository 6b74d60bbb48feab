// Package region models a display region that is replaced by asynchronous
// fetches. Each fetch is tagged with a monotonically increasing token; only
// the response for the latest token may write the region, so a slow older
// response can never overwrite a newer one.
package region

type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Region is confined to the owner's event loop and is not safe for
// concurrent use.
type Region[T any] struct {
	state State
	value T
	err   error
	seq   uint64
}

// Begin issues a new token and shows the loading state. Any response for an
// earlier token becomes stale.
func (r *Region[T]) Begin() uint64 {
	r.seq++
	r.state = Loading
	r.err = nil
	return r.seq
}

// Current reports whether seq is the latest issued token.
func (r *Region[T]) Current(seq uint64) bool {
	return seq != 0 && seq == r.seq
}

// Resolve stores v when seq is current and still loading. It returns false
// for stale or already-settled tokens.
func (r *Region[T]) Resolve(seq uint64, v T) bool {
	if !r.Current(seq) || r.state != Loading {
		return false
	}
	r.value = v
	r.err = nil
	r.state = Ready
	return true
}

// Fail moves the region to the error state when seq is current and still
// loading. The previous value is kept so callers may choose to show it.
func (r *Region[T]) Fail(seq uint64, err error) bool {
	if !r.Current(seq) || r.state != Loading {
		return false
	}
	r.err = err
	r.state = Failed
	return true
}

// Reset invalidates every outstanding token and returns to Idle.
func (r *Region[T]) Reset() {
	var zero T
	r.seq++
	r.state = Idle
	r.value = zero
	r.err = nil
}

func (r *Region[T]) State() State { return r.state }
func (r *Region[T]) Value() T     { return r.value }
func (r *Region[T]) Err() error   { return r.err }
func (r *Region[T]) Seq() uint64  { return r.seq }
