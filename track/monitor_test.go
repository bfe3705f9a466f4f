package track

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/shaperate/record"
)

// slowConfig keeps the periodic machinery out of the way so tests exercise
// only the signal protocol.
var slowConfig = MonitorConfig{
	UpdatePeriod: time.Hour,
	SavePeriod:   time.Hour,
}

func TestMonitor_RefreshIsReadYourWrites(t *testing.T) {
	tracker := newTestTracker(t, "")
	m, err := tracker.StartMonitor(slowConfig)
	require.NoError(t, err)
	defer m.Shutdown()

	run, err := tracker.Begin()
	require.NoError(t, err)

	// Begin already forced a baseline refresh.
	before := run.Record().Time.Wall

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Refresh())

	after := run.Record().Time.Wall
	assert.Greater(t, after, before, "after Refresh returns, statistics must reflect a fresh sample")

	// Two refreshes across an interval give the compute recorder a baseline
	// plus one real sample, so averages are in place.
	assert.NotNil(t, run.Record().CPU.AvgProcessUtil)
	assert.NotNil(t, run.Record().CPU.AvgSystemUtil)

	require.NoError(t, run.End(record.StatusCompleted))
}

func TestMonitor_PeriodicUpdateAndSave(t *testing.T) {
	lobby := t.TempDir()
	tracker := newTestTracker(t, lobby)
	m, err := tracker.StartMonitor(MonitorConfig{
		UpdatePeriod: 30 * time.Millisecond,
		SavePeriod:   60 * time.Millisecond,
	})
	require.NoError(t, err)
	defer m.Shutdown()

	run, err := tracker.Begin()
	require.NoError(t, err)
	path := filepath.Join(lobby, record.Filename(run.ID()))

	// The in-progress record must appear on disk without any End call.
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "periodic save never persisted the active run")

	saved, err := record.Load(path)
	require.NoError(t, err)
	assert.Equal(t, run.ID(), saved.RunID)
	assert.Empty(t, saved.Status, "in-progress records carry no status")
	assert.Nil(t, saved.EndTime)

	require.NoError(t, run.End(record.StatusCompleted))
}

func TestMonitor_SecondMonitorRefused(t *testing.T) {
	tracker := newTestTracker(t, "")
	m, err := tracker.StartMonitor(slowConfig)
	require.NoError(t, err)
	defer m.Shutdown()

	_, err = tracker.StartMonitor(slowConfig)
	assert.ErrorIs(t, err, ErrMonitorActive)
}

func TestMonitor_NegativePeriodRefused(t *testing.T) {
	tracker := newTestTracker(t, "")
	_, err := tracker.StartMonitor(MonitorConfig{UpdatePeriod: -time.Second})
	assert.Error(t, err)
}

func TestMonitor_ShutdownIsTerminal(t *testing.T) {
	tracker := newTestTracker(t, "")
	m, err := tracker.StartMonitor(slowConfig)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown())

	assert.ErrorIs(t, m.Refresh(), ErrMonitorStopped, "Refresh after shutdown must fail cleanly, not hang")
	assert.ErrorIs(t, m.Shutdown(), ErrMonitorStopped)

	// Shutdown detaches the monitor, so a new one may start.
	m2, err := tracker.StartMonitor(slowConfig)
	require.NoError(t, err)
	require.NoError(t, m2.Shutdown())
}

func TestMonitor_UnknownSignalIgnored(t *testing.T) {
	tracker := newTestTracker(t, "")
	m, err := tracker.StartMonitor(slowConfig)
	require.NoError(t, err)
	defer m.Shutdown()

	// A malformed request gets no reply; the sender must not block on one.
	reply := make(chan struct{})
	m.signals <- signal{kind: signalKind(99), reply: reply}

	// The loop stays healthy and keeps answering well-formed requests.
	require.NoError(t, m.Refresh())

	select {
	case <-reply:
		t.Fatal("unknown signal must not be acknowledged")
	default:
	}
}

func TestMonitor_RefreshDuringNestedRuns(t *testing.T) {
	lobby := t.TempDir()
	tracker := newTestTracker(t, lobby)
	m, err := tracker.StartMonitor(slowConfig)
	require.NoError(t, err)
	defer m.Shutdown()

	outer, err := tracker.Begin()
	require.NoError(t, err)
	inner, err := tracker.Begin()
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Refresh())

	// One measurement fans out into every active run.
	assert.Greater(t, outer.Record().Time.Wall, 0.0)
	assert.Greater(t, inner.Record().Time.Wall, 0.0)

	// End's final refresh and save leave a completed record per run.
	require.NoError(t, inner.End(record.StatusCompleted))
	require.NoError(t, outer.End(record.StatusCompleted))

	for _, run := range []*Run{outer, inner} {
		saved, err := record.Load(filepath.Join(lobby, record.Filename(run.ID())))
		require.NoError(t, err)
		assert.Equal(t, record.StatusCompleted, saved.Status)
	}
}
