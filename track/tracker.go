// Package track is the core of shaperate: it maintains the process-wide
// stack of nested runs, accumulates their time, CPU, and memory statistics,
// and periodically persists in-progress records so external tooling can
// observe long-running or crash-prone processes.
//
// A Tracker is the explicit process-wide context: create one at startup,
// share it wherever runs are begun, and shut its monitor down before exit.
// There are no package-level globals.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wesleyorama2/shaperate/probe"
	"github.com/wesleyorama2/shaperate/record"
)

// Tracker owns the run registry, the compute collector, the optional
// background monitor, and the persistence target. All runs are created
// through it.
type Tracker struct {
	registry    *Registry
	collector   *probe.Collector
	lobby       string
	machineName string
	log         *slog.Logger

	mu      sync.Mutex
	monitor *Monitor
}

// TrackerOption configures a Tracker at creation.
type TrackerOption func(*Tracker)

// WithLobbyDir sets the directory where run records are persisted. Without
// it, runs track in memory only and every save is a no-op.
func WithLobbyDir(dir string) TrackerOption {
	return func(t *Tracker) {
		t.lobby = dir
	}
}

// WithMachineName sets a friendly name for this machine in run records. The
// default is the hostname.
func WithMachineName(name string) TrackerOption {
	return func(t *Tracker) {
		t.machineName = name
	}
}

// WithLogger sets the logger for tracker, run, and monitor diagnostics. The
// default is slog.Default().
func WithLogger(log *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.log = log
	}
}

// NewTracker creates the process-wide tracking context.
func NewTracker(opts ...TrackerOption) (*Tracker, error) {
	collector, err := probe.NewCollector()
	if err != nil {
		return nil, fmt.Errorf("track: %w", err)
	}
	t := &Tracker{
		registry:  NewRegistry(),
		collector: collector,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	return t, nil
}

// Registry returns the tracker's run registry.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// NewRun creates a run without beginning it. Most callers want Begin or Do
// instead; NewRun exists for advanced scenarios that need to inspect or
// decorate the run before it starts.
func (t *Tracker) NewRun(opts ...RunOption) *Run {
	r := &Run{
		tracker: t,
		rec:     &record.RunRecord{RunID: uuid.New()},
	}
	for _, opt := range opts {
		opt(r)
	}
	sortTags(r.rec)
	return r
}

// Begin creates a run and starts it.
func (t *Tracker) Begin(opts ...RunOption) (*Run, error) {
	r := t.NewRun(opts...)
	if err := r.Begin(); err != nil {
		return nil, err
	}
	return r, nil
}

// Do runs fn inside a run and classifies the exit path into the run's
// terminal status: a panic ends the run as failed and re-panics, a context
// cancellation (including an interrupt delivered through
// signal.NotifyContext) ends it as aborted, any other error as failed, and a
// nil return as completed.
func (t *Tracker) Do(ctx context.Context, fn func(context.Context) error, opts ...RunOption) error {
	run, err := t.Begin(opts...)
	if err != nil {
		return err
	}

	panicking := true
	defer func() {
		if panicking {
			if endErr := run.End(record.StatusFailed); endErr != nil {
				t.log.Error("ending panicked run", "run_id", run.ID(), "error", endErr)
			}
		}
	}()

	err = fn(ctx)
	panicking = false

	status := record.StatusCompleted
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = record.StatusAborted
	case err != nil:
		status = record.StatusFailed
	}

	if endErr := run.End(status); endErr != nil && err == nil {
		err = endErr
	}
	return err
}

// StartMonitor launches the background monitor. At most one monitor may be
// active per tracker: a second StartMonitor before the first monitor's
// Shutdown fails with ErrMonitorActive.
func (t *Tracker) StartMonitor(cfg MonitorConfig) (*Monitor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.monitor != nil {
		return nil, ErrMonitorActive
	}
	m, err := newMonitor(t, cfg)
	if err != nil {
		return nil, err
	}
	t.monitor = m
	return m, nil
}

// activeMonitor returns the currently attached monitor, or nil.
func (t *Tracker) activeMonitor() *Monitor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monitor
}

// detachMonitor clears the tracker's monitor slot after shutdown.
func (t *Tracker) detachMonitor(m *Monitor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.monitor == m {
		t.monitor = nil
	}
}

// sortTags sorts and deduplicates a record's tags, so the persisted set is
// stable across saves.
func sortTags(rec *record.RunRecord) {
	if len(rec.Tags) < 2 {
		return
	}
	sort.Strings(rec.Tags)
	out := rec.Tags[:1]
	for _, tag := range rec.Tags[1:] {
		if tag != out[len(out)-1] {
			out = append(out, tag)
		}
	}
	rec.Tags = out
}
