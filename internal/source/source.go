// Package source abstracts the OS metrics backend behind a small capability
// set so the sampler can be driven by the real system or by a fake in tests.
package source

import (
	"context"
	"errors"

	"github.com/sysglance/sysglance/internal/model"
)

// Sentinel errors shared by every Source implementation.
var (
	// ErrUnavailable means the backend could not be queried at all.
	ErrUnavailable = errors.New("metrics source unavailable")
	// ErrNotFound means the target process does not exist (anymore).
	ErrNotFound = errors.New("process not found")
	// ErrPermissionDenied means the OS refused the operation.
	ErrPermissionDenied = errors.New("permission denied")
)

// CPUSample holds cumulative CPU time counters in seconds. Utilization is a
// delta between two CPUSamples over wall time, so a single reading carries
// no percentage.
type CPUSample struct {
	Busy  float64
	Total float64
}

// MemorySample holds machine-wide memory counters in bytes.
type MemorySample struct {
	Used      uint64
	Total     uint64
	Available uint64
}

// HostSample holds machine-wide facts that change slowly.
type HostSample struct {
	UptimeSeconds uint64
}

// ProcessRecord is one process as reported by the OS: identity plus raw
// cumulative CPU seconds. Percentages are the sampler's job.
type ProcessRecord struct {
	PID         int32
	Name        string
	Status      string
	Owner       string
	CommandLine string
	MemoryBytes uint64
	CPUSeconds  float64
}

// Source is the capability set the sampler needs from the operating system.
type Source interface {
	// CPU returns cumulative aggregate and per-core CPU time counters.
	CPU(ctx context.Context) (agg CPUSample, perCore []CPUSample, err error)
	// Memory returns machine-wide memory counters.
	Memory(ctx context.Context) (MemorySample, error)
	// Disks enumerates mounted volumes with their usage.
	Disks(ctx context.Context) ([]model.DiskInfo, error)
	// Processes enumerates running processes.
	Processes(ctx context.Context) ([]ProcessRecord, error)
	// Host returns slow-changing machine facts.
	Host(ctx context.Context) (HostSample, error)
	// Terminate asks the OS to stop pid (SIGTERM semantics). Returns
	// ErrNotFound or ErrPermissionDenied as appropriate.
	Terminate(ctx context.Context, pid int32) error
}
