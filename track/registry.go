package track

import (
	"errors"
	"sync"
)

// ErrNotCurrent is returned by Pop when the given run is not the innermost
// active run. Out-of-order ends would corrupt run nesting, so the stack is
// left untouched and the offending operation aborts.
var ErrNotCurrent = errors.New("track: run is not the current run")

// Registry is the process-wide ordered stack of currently active runs, plus
// the derived stack of active anchor runs. The innermost run is "current";
// the innermost anchor is the "nearest anchor". Every run on the anchor stack
// is also on the run stack.
//
// All access is serialized by one mutex. The monitor's fan-out holds that
// mutex for the full duration of an update or save pass (see forEach), so a
// concurrent End cannot mutate a run's statistics mid-update.
type Registry struct {
	mu      sync.Mutex
	stack   []*Run
	anchors []*Run
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Push appends run to the active stack. The run also joins the anchor stack
// if isAnchor is set, or if there is no anchor yet and the run has no parent:
// a root run is always implicitly an anchor unless a prior explicit anchor
// exists.
func (r *Registry) Push(run *Run, isAnchor bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stack = append(r.stack, run)
	if isAnchor || (len(r.anchors) == 0 && run.rec.ParentID == nil) {
		r.anchors = append(r.anchors, run)
	}
}

// Pop removes run from the top of the active stack, and from the top of the
// anchor stack if it is there too. Popping any run other than the current one
// fails with ErrNotCurrent.
func (r *Registry) Pop(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.stack)
	if n == 0 || r.stack[n-1] != run {
		return ErrNotCurrent
	}
	r.stack[n-1] = nil
	r.stack = r.stack[:n-1]

	if a := len(r.anchors); a > 0 && r.anchors[a-1] == run {
		r.anchors[a-1] = nil
		r.anchors = r.anchors[:a-1]
	}
	return nil
}

// Current returns the innermost active run, or nil if none.
func (r *Registry) Current() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

// Root returns the outermost active run, or nil if none. This is the bottom
// of the stack right now, which is not necessarily a parentless run: an
// ancestor may have ended and been popped while its descendants remain.
func (r *Registry) Root() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[0]
}

// NearestAnchor returns the innermost active anchor run, or nil if none.
func (r *Registry) NearestAnchor() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.anchors) == 0 {
		return nil
	}
	return r.anchors[len(r.anchors)-1]
}

// ActiveRuns returns a snapshot of all currently active runs, outermost
// first. The slice is a copy and safe to iterate without the lock, but the
// runs' statistics may keep changing underneath it.
func (r *Registry) ActiveRuns() []*Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Run, len(r.stack))
	copy(out, r.stack)
	return out
}

// forEach calls f for every active run while holding the registry lock. The
// monitor uses this for its fan-out so that updates across all runs are
// serialized against Push and Pop. f must not call back into the registry.
func (r *Registry) forEach(f func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.stack {
		f(run)
	}
}
