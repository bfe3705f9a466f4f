package track

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/shaperate/probe"
	"github.com/wesleyorama2/shaperate/record"
)

// timeRecorder tracks a run's wall and CPU time. It captures monotonic and
// OS counter baselines at start; each update writes the deltas straight into
// the run's time record. The OS counters are already cumulative per process,
// so no accumulation is needed here.
type timeRecorder struct {
	rec *record.TimeRecord

	startMono  time.Time
	startUsage probe.OSUsage
	haveUsage  bool
}

func (tr *timeRecorder) start(rec *record.TimeRecord) {
	tr.rec = rec
	tr.startMono = time.Now()
	tr.startUsage, tr.haveUsage = probe.Rusage()
}

func (tr *timeRecorder) update() {
	tr.rec.Wall = time.Since(tr.startMono).Seconds()

	if !tr.haveUsage {
		return
	}
	usage, ok := probe.Rusage()
	if !ok {
		return
	}
	usr := usage.UserTime - tr.startUsage.UserTime
	sys := usage.SystemTime - tr.startUsage.SystemTime
	total := usr + sys
	tr.rec.SelfCPUUsr = &usr
	tr.rec.SelfCPUSys = &sys
	tr.rec.SelfCPU = &total
}

// finish is a no-op: the final update already wrote correct values.
func (tr *timeRecorder) finish() {}

// Bounds for the process-utilization histogram: 1%..10000% at three
// significant figures covers full use of a 100-core machine.
const (
	utilHistMin     = 1
	utilHistMax     = 10000
	utilHistSigFigs = 3
)

// computeRecorder folds point-in-time usage samples into a run's CPU and
// memory records: time-weighted running utilization averages, sampled
// utilization percentiles, and monotonic memory peaks. It retains only
// accumulators, never the samples themselves.
type computeRecorder struct {
	cpu *record.CPURecord
	mem *record.MemoryRecord

	utilHist *hdrhistogram.Histogram

	peakRSS    uint64
	peakShared uint64

	haveBaseline bool
	lastTime     float64
	totalTime    float64
	totalProcPct float64
	totalSysPct  float64
}

// start allocates the run's CPU and memory records if absent and populates
// the static machine facts.
func (cr *computeRecorder) start(rec *record.RunRecord, facts probe.Facts) {
	if rec.CPU == nil {
		rec.CPU = &record.CPURecord{}
	}
	if rec.Memory == nil {
		rec.Memory = &record.MemoryRecord{}
	}
	cr.cpu = rec.CPU
	cr.mem = rec.Memory
	cr.utilHist = hdrhistogram.New(utilHistMin, utilHistMax, utilHistSigFigs)

	if facts.PhysicalCores > 0 {
		v := facts.PhysicalCores
		cr.cpu.PhysicalCores = &v
	}
	if facts.LogicalCores > 0 {
		v := facts.LogicalCores
		cr.cpu.LogicalCores = &v
	}
	if facts.ProcessCPUs > 0 {
		v := facts.ProcessCPUs
		cr.cpu.ProcessCPUs = &v
	}
}

// update folds one sample into the records. The first sample only establishes
// the baseline timestamp: there is no prior interval to average over, and the
// probe's percentage figures are not meaningful before a second reading.
func (cr *computeRecorder) update(s probe.Sample) {
	if !cr.haveBaseline {
		cr.haveBaseline = true
		cr.lastTime = s.Time
		return
	}

	dt := s.Time - cr.lastTime
	cr.lastTime = s.Time

	if dt > 0 {
		cr.totalTime += dt
		cr.totalProcPct += dt * s.ProcessPct
		cr.totalSysPct += dt * s.SystemPct

		// Later intervals weigh in proportion to their own duration, so a
		// variable sampling cadence still averages correctly.
		avgProc := cr.totalProcPct / cr.totalTime
		avgSys := cr.totalSysPct / cr.totalTime
		cr.cpu.AvgProcessUtil = &avgProc
		cr.cpu.AvgSystemUtil = &avgSys

		cr.recordUtilSample(s.ProcessPct)
	}

	if s.RSS > cr.peakRSS {
		cr.peakRSS = s.RSS
		v := float64(s.RSS)
		cr.mem.PeakRSS = &v
	}
	if s.HasShared && s.Shared > cr.peakShared {
		cr.peakShared = s.Shared
		v := float64(s.Shared)
		cr.mem.PeakShared = &v
	}
}

// recordUtilSample adds one process-utilization reading to the histogram and
// refreshes the percentile fields.
func (cr *computeRecorder) recordUtilSample(procPct float64) {
	v := int64(math.Round(procPct))
	if v < utilHistMin {
		v = utilHistMin
	}
	if v > utilHistMax {
		v = utilHistMax
	}
	if cr.utilHist.RecordValue(v) != nil {
		return
	}

	p50 := float64(cr.utilHist.ValueAtQuantile(50))
	p95 := float64(cr.utilHist.ValueAtQuantile(95))
	p99 := float64(cr.utilHist.ValueAtQuantile(99))
	cr.cpu.P50ProcessUtil = &p50
	cr.cpu.P95ProcessUtil = &p95
	cr.cpu.P99ProcessUtil = &p99
}

// finish reads the OS's process-lifetime maximum resident set size. On
// platforms without the counter the field is left unset.
func (cr *computeRecorder) finish() {
	usage, ok := probe.Rusage()
	if !ok {
		return
	}
	v := float64(usage.MaxRSS)
	cr.mem.MaxRSS = &v
}
