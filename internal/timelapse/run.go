package timelapse

import (
	"context"
	"sync"
)

type State string

const (
	StateIdle      State = "idle"
	StateStaging   State = "staging"
	StateEncoding  State = "encoding"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Result is the terminal outcome of a run. OutputPath is set only when
// State is StateSucceeded; Err is set only when State is StateFailed.
type Result struct {
	State      State
	OutputPath string
	Err        error
}

// Succeeded reports whether the run produced a video.
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// Run is a single in-flight pipeline execution. Its result is a single-shot
// future; progress is a separate buffered stream that is closed when the run
// terminates, so a caller may ignore it without stalling the run.
type Run struct {
	ID string

	mu       sync.Mutex
	state    State
	result   Result
	progress chan int
	done     chan struct{}
}

func newRun(id string, capacity int) *Run {
	return &Run{
		ID:       id,
		state:    StateIdle,
		progress: make(chan int, capacity),
		done:     make(chan struct{}),
	}
}

// Progress streams percentages in non-decreasing order.
func (r *Run) Progress() <-chan int {
	return r.progress
}

// Done is closed once the result is available.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// State returns the current state of the run.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the terminal result, or a zero Result while the run is in flight.
func (r *Run) Result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Wait blocks until the run terminates or ctx is done. Giving up on the wait
// does not cancel the run.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// report never blocks: the channel is sized for every tick a run can emit.
func (r *Run) report(pct int) {
	select {
	case r.progress <- pct:
	default:
	}
}

func (r *Run) finish(res Result) {
	r.mu.Lock()
	r.state = res.State
	r.result = res
	r.mu.Unlock()

	close(r.progress)
	close(r.done)
}
