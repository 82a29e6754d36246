package pipeline

import (
	"context"
	"sync"
)

// Status is the lifecycle state of a run.
type Status int

const (
	Idle Status = iota
	Running
	AwaitingSettle
	AwaitingRestart
	Completed
	Failed
	// Rejected is only ever reported by a Start or Resume that did not create
	// a run; no Run carries it.
	Rejected
)

var statusNames = [...]string{"idle", "running", "awaiting-settle", "awaiting-restart", "completed", "failed", "rejected"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Active reports whether a run in this state holds the single-flight guard.
func (s Status) Active() bool {
	return s == Running || s == AwaitingSettle || s == AwaitingRestart
}

// Suspended reports whether the run is waiting on a settle condition.
func (s Status) Suspended() bool {
	return s == AwaitingSettle || s == AwaitingRestart
}

// Run is the handle of one pipeline run. All methods are safe for concurrent
// use; the pipeline is the only writer.
type Run struct {
	mu      sync.RWMutex
	id      string
	profile *Profile
	cursor  int
	status  Status
	err     error
	wakeAt  uint64
	pending []string
	done    chan struct{}
}

func newRun(id string, p *Profile, cursor int) *Run {
	return &Run{
		id:      id,
		profile: p,
		cursor:  cursor,
		status:  Running,
		done:    make(chan struct{}),
	}
}

// ID is the run id; a run resumed after a restart keeps its id.
func (r *Run) ID() string { return r.id }

// Profile is the profile being applied.
func (r *Run) Profile() *Profile { return r.profile }

// Cursor is the index of the next step to run. For a failed run it is the
// index of the step that failed.
func (r *Run) Cursor() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Err is the error that ended the run, if any.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// LastError classifies Err; KindNone when the run has not failed.
func (r *Run) LastError() ErrorKind {
	return KindOf(r.Err())
}

// Done is closed when the run reaches a terminal state or is aborted.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends or ctx is done. A suspended run only ends if
// something keeps ticking (or resuming) the pipeline.
func (r *Run) Wait(ctx context.Context) (Status, error) {
	select {
	case <-r.done:
		return r.Status(), r.Err()
	case <-ctx.Done():
		return r.Status(), ctx.Err()
	}
}

func (r *Run) setCursor(i int) {
	r.mu.Lock()
	r.cursor = i
	r.mu.Unlock()
}

func (r *Run) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Run) suspend(next int, s Status, wakeAt uint64) {
	r.mu.Lock()
	r.cursor = next
	r.status = s
	r.wakeAt = wakeAt
	r.mu.Unlock()
}

func (r *Run) due(tick uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status == AwaitingSettle && tick >= r.wakeAt
}

func (r *Run) addPending(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p == identifier {
			return
		}
	}
	r.pending = append(r.pending, identifier)
}

func (r *Run) pendingPackages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.pending...)
}

// finish records the terminal state and closes Done. It is a no-op on a run
// that already finished.
func (r *Run) finish(s Status, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return false
	default:
	}
	r.status = s
	r.err = err
	close(r.done)
	return true
}
