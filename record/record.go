// Package record defines the run record schema and its on-disk format.
//
// A record describes one tracked unit of work: its position in the run tree,
// client-supplied tags and metadata, and the time, CPU, and memory statistics
// accumulated while it ran. Records are serialized as one JSON document per
// run; unset optional statistics are omitted rather than written as null.
package record

import (
	"time"

	"github.com/google/uuid"
)

// Status describes how a run concluded.
type Status string

const (
	// StatusCompleted indicates the run finished normally.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the run ended due to an error or panic.
	StatusFailed Status = "failed"
	// StatusAborted indicates the run was interrupted (e.g. Ctrl-C).
	StatusAborted Status = "aborted"
	// StatusUnfinished is never written by the tracking process. Readers
	// scanning the lobby assign it to records that have no status and no end
	// time, which is what a crash leaves behind.
	StatusUnfinished Status = "unfinished"
)

// Meta is client-supplied run metadata. Values must be JSON-compatible.
type Meta map[string]any

// RunRecord is the persisted state of a single run.
type RunRecord struct {
	// RunID uniquely identifies this run.
	RunID uuid.UUID `json:"run_id"`
	// ParentID identifies this run's parent, if it has one.
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	// AnchorID identifies the nearest anchor in this run's tree. Anchors are
	// runs marked as intermediate roots, so that e.g. each segment of a
	// parameter sweep can be located with all of its component runs.
	AnchorID *uuid.UUID `json:"anchor_id,omitempty"`
	// RootID identifies the root of this run's tree: the bottom of the active
	// run stack at the time this run began. If earlier ancestors had already
	// ended while descendants remained active, this may differ from the
	// parentless ultimate ancestor; the stack-based definition is deliberate.
	RootID *uuid.UUID `json:"root_id,omitempty"`

	// Concurrent marks runs that execute concurrently with their siblings
	// (e.g. worker processes).
	Concurrent bool `json:"concurrent,omitempty"`

	// Tags enable later search or querying. Kept sorted.
	Tags []string `json:"tags,omitempty"`
	// Meta is additional client-specified metadata.
	Meta Meta `json:"meta,omitempty"`

	// StartTime is the wall-clock time when this run started.
	StartTime time.Time `json:"start_time"`
	// EndTime is the wall-clock time when this run concluded.
	EndTime *time.Time `json:"end_time,omitempty"`
	// Status is empty while the run is in progress and set exactly once when
	// it ends.
	Status Status `json:"status,omitempty"`

	// Machine describes the host this run ran on. Nil means "inherit from
	// parent"; only parentless runs record it.
	Machine *MachineRecord `json:"machine,omitempty"`

	// Time holds wall and CPU time consumption.
	Time TimeRecord `json:"time"`
	// CPU holds approximate CPU utilization statistics.
	CPU *CPURecord `json:"cpu,omitempty"`
	// Memory holds estimated memory use.
	Memory *MemoryRecord `json:"memory,omitempty"`
	// Power holds estimated power consumption. No recorder populates it yet;
	// the field reserves the schema slot.
	Power *PowerRecord `json:"power,omitempty"`
}

// MachineRecord describes the machine a run ran on.
type MachineRecord struct {
	// Name is a friendly or logical name for the machine.
	Name string `json:"name"`
	// Hostname is the machine's hostname.
	Hostname string `json:"hostname"`
	// OS is the operating system name (e.g. "linux").
	OS string `json:"os"`
	// OSVersion is the kernel or OS release version.
	OSVersion string `json:"os_version"`
	// Arch is the machine architecture (e.g. "x86_64").
	Arch string `json:"arch"`

	// DistroID is the Linux distribution ID (e.g. "debian", "ubuntu").
	DistroID *string `json:"distro_id,omitempty"`
	// DistroVersion is the Linux distribution version.
	DistroVersion *string `json:"distro_version,omitempty"`
}

// TimeRecord holds the time consumed by a run. All values are in seconds.
//
// Wall may not equal the difference between the record's start and end times:
// it is measured on the monotonic clock, while system time may have changed.
type TimeRecord struct {
	// Wall is the monotonic wall-clock elapsed time.
	Wall float64 `json:"wall"`
	// SelfCPU is the total CPU time consumed during this run.
	SelfCPU *float64 `json:"self_cpu,omitempty"`
	// SelfCPUUsr is the userspace CPU time consumed during this run.
	SelfCPUUsr *float64 `json:"self_cpu_usr,omitempty"`
	// SelfCPUSys is the system CPU time consumed during this run.
	SelfCPUSys *float64 `json:"self_cpu_sys,omitempty"`

	// TotCPU is the total CPU time including concurrent children.
	TotCPU *float64 `json:"tot_cpu,omitempty"`
	// TotCPUUsr is the userspace CPU time including concurrent children.
	TotCPUUsr *float64 `json:"tot_cpu_usr,omitempty"`
	// TotCPUSys is the system CPU time including concurrent children.
	TotCPUSys *float64 `json:"tot_cpu_sys,omitempty"`
}

// CPURecord holds CPU utilization statistics for a run.
type CPURecord struct {
	// PhysicalCores is the number of physical cores on the system.
	PhysicalCores *int `json:"physical_cores,omitempty"`
	// LogicalCores is the number of logical cores on the system.
	LogicalCores *int `json:"logical_cores,omitempty"`
	// ProcessCPUs is the number of CPUs visible to this process.
	ProcessCPUs *int `json:"process_cpus,omitempty"`

	// AvgProcessUtil is the average CPU utilization by this process during the
	// run, weighted by sample interval. Not normalized by core count: 100
	// means full use of one CPU.
	AvgProcessUtil *float64 `json:"avg_process_util,omitempty"`
	// AvgSystemUtil is the average system-wide CPU utilization while this run
	// was active, weighted by sample interval.
	AvgSystemUtil *float64 `json:"avg_system_util,omitempty"`

	// P50ProcessUtil is the median sampled process utilization.
	P50ProcessUtil *float64 `json:"p50_process_util,omitempty"`
	// P95ProcessUtil is the 95th-percentile sampled process utilization.
	P95ProcessUtil *float64 `json:"p95_process_util,omitempty"`
	// P99ProcessUtil is the 99th-percentile sampled process utilization.
	P99ProcessUtil *float64 `json:"p99_process_util,omitempty"`
}

// MemoryRecord holds the (approximate) memory used by a run, in bytes.
type MemoryRecord struct {
	// PeakRSS is the peak resident set size observed by sampling.
	PeakRSS *float64 `json:"peak_rss,omitempty"`
	// PeakShared is the peak shared memory observed by sampling, on platforms
	// that report it.
	PeakShared *float64 `json:"peak_shared,omitempty"`

	// MaxRSS is the maximum resident set size as reported by the operating
	// system. It covers the whole process lifetime, so for multiple runs in
	// one process it includes any earlier run's peak as well.
	MaxRSS *float64 `json:"max_rss,omitempty"`
}

// PowerRecord holds the estimated power consumed by a run, in watt-hours.
type PowerRecord struct {
	// CPUPower is power consumed by the CPU (on-package measurement).
	CPUPower *float64 `json:"cpu_power,omitempty"`
	// RAMPower is power consumed by RAM.
	RAMPower *float64 `json:"ram_power,omitempty"`
	// GPUPower is power consumed by the GPU(s).
	GPUPower *float64 `json:"gpu_power,omitempty"`
	// ChassisPower is power consumed by the whole machine (PSU, PDU, or
	// metering plug).
	ChassisPower *float64 `json:"chassis_power,omitempty"`
}
