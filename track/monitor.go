package track

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMonitorActive is returned by StartMonitor when the tracker already has a
// running monitor. This is a configuration error, never merged or queued.
var ErrMonitorActive = errors.New("track: a monitor is already active")

// ErrMonitorStopped is returned by Refresh or Shutdown after the monitor has
// shut down.
var ErrMonitorStopped = errors.New("track: monitor has shut down")

const (
	// DefaultUpdatePeriod is how often the monitor samples resource usage.
	DefaultUpdatePeriod = 500 * time.Millisecond
	// DefaultSavePeriod is how often the monitor persists in-progress records.
	DefaultSavePeriod = 5 * time.Second

	// minSignalWait is the shortest wait worth blocking for. Below it the
	// loop polls the signal channel without sleeping, avoiding a mandatory
	// near-zero sleep/wake cycle per iteration.
	minSignalWait = 20 * time.Millisecond
	// periodSlack fires a periodic update or save that is due within the
	// next 20ms instead of sleeping again for a near-zero interval.
	periodSlack = 20 * time.Millisecond
)

// MonitorConfig configures the background monitor.
type MonitorConfig struct {
	// UpdatePeriod is the interval between resource-usage samples. Zero means
	// DefaultUpdatePeriod; negative is an error.
	UpdatePeriod time.Duration
	// SavePeriod is the interval between persists of in-progress records.
	// Zero means DefaultSavePeriod; negative is an error.
	SavePeriod time.Duration
}

type signalKind int

const (
	sigUpdate signalKind = iota
	sigShutdown
)

// signal is one synchronous request to the monitor loop. The loop closes
// reply only after the iteration's side effects are applied, giving the
// sender a read-your-writes guarantee. Unknown kinds get no reply at all.
type signal struct {
	kind  signalKind
	reply chan struct{}
}

// Monitor is the background sampler: a single goroutine that periodically
// measures system and process usage, feeds the measurement into every active
// run's recorders, and periodically persists every active run's record.
//
// Foreground callers coordinate with the loop through a synchronous
// request/acknowledge channel: Refresh forces an immediate sample and returns
// once it has been applied; Shutdown stops the loop and waits for it to exit.
type Monitor struct {
	tracker      *Tracker
	updatePeriod time.Duration
	savePeriod   time.Duration
	log          *slog.Logger

	signals chan signal
	done    chan struct{}
}

func newMonitor(t *Tracker, cfg MonitorConfig) (*Monitor, error) {
	if cfg.UpdatePeriod < 0 || cfg.SavePeriod < 0 {
		return nil, fmt.Errorf("track: negative monitor period (update=%v save=%v)", cfg.UpdatePeriod, cfg.SavePeriod)
	}
	if cfg.UpdatePeriod == 0 {
		cfg.UpdatePeriod = DefaultUpdatePeriod
	}
	if cfg.SavePeriod == 0 {
		cfg.SavePeriod = DefaultSavePeriod
	}

	m := &Monitor{
		tracker:      t,
		updatePeriod: cfg.UpdatePeriod,
		savePeriod:   cfg.SavePeriod,
		log:          t.log,
		signals:      make(chan signal),
		done:         make(chan struct{}),
	}
	go m.loop()
	return m, nil
}

// Refresh forces an immediate measurement of every active run and returns
// once the monitor has applied it: after Refresh returns, each active run's
// recorders reflect a sample taken no earlier than the call. Returns
// ErrMonitorStopped after shutdown.
func (m *Monitor) Refresh() error {
	return m.request(sigUpdate)
}

// Shutdown stops the monitor loop, waits for it to fully exit, and detaches
// the monitor from its tracker so a new one may be started. After Shutdown,
// no further periodic update or save occurs; subsequent Refresh or Shutdown
// calls fail with ErrMonitorStopped rather than hang.
func (m *Monitor) Shutdown() error {
	m.log.Debug("shutting down monitor")
	if err := m.request(sigShutdown); err != nil {
		return err
	}
	<-m.done
	m.tracker.detachMonitor(m)
	return nil
}

// request performs one synchronous round-trip to the loop.
func (m *Monitor) request(kind signalKind) error {
	reply := make(chan struct{})
	select {
	case m.signals <- signal{kind: kind, reply: reply}:
	case <-m.done:
		return ErrMonitorStopped
	}
	select {
	case <-reply:
		return nil
	case <-m.done:
		// A concurrent shutdown won the race; the loop will never answer.
		return ErrMonitorStopped
	}
}

// loop is the monitor's state machine. Each iteration:
//
//  1. waits on the signal channel for at most the time until the next period
//     elapses (whole milliseconds), or polls non-blocking when that wait
//     would be under minSignalWait;
//  2. handles at most one signal: update forces a sample this iteration,
//     shutdown terminates the loop after this iteration, anything else is
//     logged and never acknowledged;
//  3. independently checks whether either period is due (within periodSlack);
//  4. applies the update fan-out, then the save fan-out;
//  5. acknowledges the signal only after those side effects are committed.
func (m *Monitor) loop() {
	defer close(m.done)

	lastUpdate := time.Now()
	lastSave := lastUpdate

	for {
		updateWait := m.updatePeriod - time.Since(lastUpdate)
		saveWait := m.savePeriod - time.Since(lastSave)
		wait := min(updateWait, saveWait).Truncate(time.Millisecond)

		var sig signal
		received := false
		if wait > minSignalWait {
			timer := time.NewTimer(wait)
			select {
			case sig = <-m.signals:
				received = true
			case <-timer.C:
			}
			timer.Stop()
		} else {
			select {
			case sig = <-m.signals:
				received = true
			default:
			}
		}

		var doUpdate, doSave, shutdown bool
		var reply chan struct{}
		if received {
			switch sig.kind {
			case sigUpdate:
				doUpdate = true
				reply = sig.reply
			case sigShutdown:
				m.log.Debug("received shutdown signal, terminating monitor loop")
				shutdown = true
				reply = sig.reply
			default:
				// Protocol violation. No reply is sent, so a misbehaving
				// sender must not block waiting for one.
				m.log.Warn("invalid monitor signal", "kind", int(sig.kind))
			}
		}

		now := time.Now()
		if !doUpdate && now.Sub(lastUpdate) > m.updatePeriod-periodSlack {
			doUpdate = true
		}
		if !doSave && now.Sub(lastSave) > m.savePeriod-periodSlack {
			doSave = true
		}

		if doUpdate {
			m.updateActive()
			lastUpdate = now
		}
		if doSave {
			m.saveActive()
			lastSave = now
		}

		if reply != nil {
			close(reply)
		}
		if shutdown {
			return
		}
	}
}

// updateActive takes one measurement and fans it into every active run's
// recorders. The registry lock is held for the whole fan-out so the set of
// active runs is consistent and no concurrent End mutates a run mid-update.
func (m *Monitor) updateActive() {
	sample, err := m.tracker.collector.Measure()
	if err != nil {
		m.log.Warn("compute measurement failed", "error", err)
		return
	}
	m.tracker.registry.forEach(func(r *Run) {
		r.time.update()
		r.compute.update(sample)
	})
}

// saveActive persists every active run's current record. There is no caller
// to propagate to from the background loop, so failures are logged.
func (m *Monitor) saveActive() {
	m.tracker.registry.forEach(func(r *Run) {
		if err := r.Save(); err != nil {
			m.log.Error("saving run record", "run_id", r.ID(), "error", err)
		}
	})
}
