// Package probe measures point-in-time compute usage for the current process,
// along with static machine facts. It is the only part of the repository that
// talks to the operating system; the tracking core consumes its samples
// without knowing how they were obtained.
package probe

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/wesleyorama2/shaperate/record"
)

// Sample is one point-in-time measurement of system and process usage.
type Sample struct {
	// Time is a monotonic reading in seconds, comparable only across samples
	// from the same Collector.
	Time float64
	// SystemPct is the system-wide CPU utilization since the previous sample
	// (100 = full use of one CPU).
	SystemPct float64
	// ProcessPct is this process's CPU utilization since the previous sample.
	ProcessPct float64
	// RSS is the current resident set size in bytes.
	RSS uint64
	// Shared is the current shared memory size in bytes. HasShared is false on
	// platforms that do not report it.
	Shared    uint64
	HasShared bool
}

// Facts are static CPU facts, gathered once per run start. Zero values mean
// the platform did not report the count.
type Facts struct {
	// PhysicalCores is the number of physical cores on the system.
	PhysicalCores int
	// LogicalCores is the number of logical cores on the system.
	LogicalCores int
	// ProcessCPUs is the number of CPUs usable by this process.
	ProcessCPUs int
}

// OSUsage is the operating system's own cumulative accounting for this
// process, as reported by getrusage.
type OSUsage struct {
	// UserTime is cumulative userspace CPU time in seconds.
	UserTime float64
	// SystemTime is cumulative system CPU time in seconds.
	SystemTime float64
	// MaxRSS is the process-lifetime maximum resident set size in bytes.
	MaxRSS uint64
}

// Collector takes usage samples for the current process.
//
// Utilization percentages are computed against the previous Measure call, so
// the first sample's percentage figures are not meaningful on their own;
// recorders treat the first sample as a baseline and discard its utilization.
type Collector struct {
	proc   *process.Process
	origin time.Time
}

// NewCollector attaches a collector to the current process.
func NewCollector() (*Collector, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("probe: attaching to own process: %w", err)
	}
	return &Collector{proc: p, origin: time.Now()}, nil
}

// Measure takes one system+process usage sample.
func (c *Collector) Measure() (Sample, error) {
	s := Sample{Time: time.Since(c.origin).Seconds()}

	sysPct, err := cpu.Percent(0, false)
	if err != nil {
		return s, fmt.Errorf("probe: system CPU percent: %w", err)
	}
	if len(sysPct) > 0 {
		s.SystemPct = sysPct[0]
	}

	procPct, err := c.proc.Percent(0)
	if err != nil {
		return s, fmt.Errorf("probe: process CPU percent: %w", err)
	}
	s.ProcessPct = procPct

	mem, err := c.proc.MemoryInfo()
	if err != nil {
		return s, fmt.Errorf("probe: process memory: %w", err)
	}
	s.RSS = mem.RSS

	// MemoryInfoEx reports shared memory on Linux only; elsewhere the field
	// is simply absent from the sample.
	if ex, err := c.proc.MemoryInfoEx(); err == nil {
		s.Shared = ex.Shared
		s.HasShared = true
	}

	return s, nil
}

// CollectFacts gathers static CPU facts.
func CollectFacts() Facts {
	var f Facts
	if n, err := cpu.Counts(false); err == nil {
		f.PhysicalCores = n
	}
	if n, err := cpu.Counts(true); err == nil {
		f.LogicalCores = n
	}
	f.ProcessCPUs = runtime.NumCPU()
	return f
}

// MachineInfo builds a machine record for the current host. name is a
// caller-chosen friendly name for the machine; empty falls back to the
// hostname.
func MachineInfo(name string) (*record.MachineRecord, error) {
	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("probe: host info: %w", err)
	}
	if name == "" {
		name = info.Hostname
	}
	m := &record.MachineRecord{
		Name:      name,
		Hostname:  info.Hostname,
		OS:        info.OS,
		OSVersion: info.KernelVersion,
		Arch:      info.KernelArch,
	}
	if info.Platform != "" {
		m.DistroID = &info.Platform
		if info.PlatformVersion != "" {
			m.DistroVersion = &info.PlatformVersion
		}
	}
	return m, nil
}
