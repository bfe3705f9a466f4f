package track

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wesleyorama2/shaperate/probe"
	"github.com/wesleyorama2/shaperate/record"
)

// ErrNotActive is returned by End on a run that is not active (either never
// begun or already ended). A run's terminal state is immutable.
var ErrNotActive = errors.New("track: run is not active")

type runState int

const (
	stateUnstarted runState = iota
	stateActive
	stateEnded
)

// Run is one tracked unit of work: begun, sampled while active, and ended
// with a terminal status. Runs nest strictly: the most recently begun run
// must end first (see Registry).
//
// Begin and End must be called from a single goroutine per run. The run's
// statistics are additionally written by the monitor's background fan-out,
// which serializes against End via the registry lock.
type Run struct {
	tracker  *Tracker
	rec      *record.RunRecord
	isAnchor bool
	state    runState

	time    timeRecorder
	compute computeRecorder
}

// RunOption configures a run at creation.
type RunOption func(*Run)

// WithTags adds tags to the run.
func WithTags(tags ...string) RunOption {
	return func(r *Run) {
		r.rec.Tags = append(r.rec.Tags, tags...)
	}
}

// WithMeta attaches client metadata to the run. The map is copied.
func WithMeta(meta record.Meta) RunOption {
	return func(r *Run) {
		if r.rec.Meta == nil {
			r.rec.Meta = make(record.Meta, len(meta))
		}
		for k, v := range meta {
			r.rec.Meta[k] = v
		}
	}
}

// WithParent sets an explicit parent run ID. This is meant for worker-process
// runs whose parent lives in another process; runs in the same process
// inherit the current run as parent automatically.
func WithParent(id uuid.UUID) RunOption {
	return func(r *Run) {
		r.rec.ParentID = &id
	}
}

// AsConcurrent marks the run as concurrent with its siblings.
func AsConcurrent() RunOption {
	return func(r *Run) {
		r.rec.Concurrent = true
	}
}

// AsAnchor marks the run as an anchor: an intermediate root that groups its
// sub-runs, e.g. one segment of a parameter sweep.
func AsAnchor() RunOption {
	return func(r *Run) {
		r.isAnchor = true
	}
}

// ID returns the run's unique identifier.
func (r *Run) ID() uuid.UUID {
	return r.rec.RunID
}

// Record returns the run's record. While the run is active and a monitor is
// running, the record's statistics change in the background; read it after
// End (or while holding no expectations of a consistent point-in-time view).
func (r *Run) Record() *record.RunRecord {
	return r.rec
}

// Begin starts the run: it captures the start time, derives the run's tree
// position from the registry (parent defaults to the current run, root to the
// stack bottom, anchor to the nearest active anchor), starts the recorders,
// and pushes the run onto the registry. If a monitor is active, Begin forces
// one synchronous refresh so the recorders hold a baseline sample before any
// work executes.
func (r *Run) Begin() error {
	if r.state != stateUnstarted {
		return fmt.Errorf("track: beginning run %s twice", r.ID())
	}
	t := r.tracker

	r.rec.StartTime = time.Now()

	if r.rec.ParentID == nil {
		if cur := t.registry.Current(); cur != nil {
			id := cur.ID()
			r.rec.ParentID = &id
		}
	}
	// Root is the bottom of the active stack right now; a run beginning on an
	// empty stack roots its own tree.
	if root := t.registry.Root(); root != nil {
		id := root.ID()
		r.rec.RootID = &id
	} else {
		id := r.ID()
		r.rec.RootID = &id
	}

	// An anchor's anchor_id is itself (nearest anchor including self); other
	// runs inherit the nearest active anchor. The first parentless run is the
	// implicit anchor when none has been marked yet.
	if r.isAnchor {
		id := r.ID()
		r.rec.AnchorID = &id
	} else if anchor := t.registry.NearestAnchor(); anchor != nil {
		id := anchor.ID()
		r.rec.AnchorID = &id
	} else if r.rec.ParentID == nil {
		id := r.ID()
		r.rec.AnchorID = &id
	}

	// Only parentless runs record the machine; children inherit it.
	if r.rec.ParentID == nil {
		machine, err := probe.MachineInfo(t.machineName)
		if err != nil {
			t.log.Warn("collecting machine info", "run_id", r.ID(), "error", err)
		} else {
			r.rec.Machine = machine
		}
	}

	r.time.start(&r.rec.Time)
	r.compute.start(r.rec, probe.CollectFacts())

	t.registry.Push(r, r.isAnchor)
	r.state = stateActive
	t.log.Debug("beginning run", "run_id", r.ID())

	if m := t.activeMonitor(); m != nil {
		if err := m.Refresh(); err != nil {
			t.log.Warn("baseline refresh failed", "run_id", r.ID(), "error", err)
		}
	}
	return nil
}

// End finishes the run with the given terminal status. If a monitor is
// active, it first forces one synchronous refresh to capture the final
// sample. The run is then popped from the registry (out-of-order ends fail
// with ErrNotCurrent and leave the run active), its recorders are finalized,
// and the record is persisted. Persistence failures propagate: losing a
// run's final record silently would defeat the point of tracking it.
func (r *Run) End(status record.Status) error {
	if r.state != stateActive {
		return ErrNotActive
	}
	t := r.tracker
	t.log.Debug("ending run", "run_id", r.ID(), "status", string(status))

	if m := t.activeMonitor(); m != nil {
		if err := m.Refresh(); err != nil {
			t.log.Warn("final refresh failed", "run_id", r.ID(), "error", err)
		}
	}

	if err := t.registry.Pop(r); err != nil {
		return fmt.Errorf("ending run %s: %w", r.ID(), err)
	}

	// A last update so the record is correct even without a monitor.
	r.time.update()
	r.time.finish()
	r.compute.finish()

	now := time.Now()
	r.rec.EndTime = &now
	r.rec.Status = status
	r.state = stateEnded

	return r.Save()
}

// Save persists the run's current record to the lobby. With no lobby
// configured this is a no-op: the run still tracks in memory, it just never
// hits disk.
func (r *Run) Save() error {
	if r.tracker.lobby == "" {
		return nil
	}
	return record.Save(r.rec, r.tracker.lobby)
}
