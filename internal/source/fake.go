package source

import (
	"context"
	"sync"

	"github.com/sysglance/sysglance/internal/model"
)

// Fake is an in-memory Source for tests. Each capability can be pre-loaded
// with data or forced to fail; CPU counters advance by the configured step
// on every read so delta-based percentages are deterministic.
type Fake struct {
	mu sync.Mutex

	// CPUStep is added to Busy, and CPUStep*CPUDivisor to Total, on each
	// CPU read. With CPUDivisor 2 the aggregate utilization is 50%.
	CPUStep    float64
	CPUDivisor float64
	Cores      int
	cpuReads   int

	Mem       MemorySample
	DiskList  []model.DiskInfo
	ProcList  []ProcessRecord
	HostInfo  HostSample
	ProcSteps []float64 // per-read CPUSeconds increments applied to ProcList

	CPUErr     error
	MemErr     error
	DiskErr    error
	ProcErr    error
	HostErr    error
	KillErr    error
	KilledPIDs []int32
}

// NewFake returns a Fake with a plausible desktop-ish default state.
func NewFake() *Fake {
	return &Fake{
		CPUStep:    1,
		CPUDivisor: 2,
		Cores:      2,
		Mem:        MemorySample{Used: 8 << 30, Total: 16 << 30, Available: 8 << 30},
		HostInfo:   HostSample{UptimeSeconds: 3600},
	}
}

func (f *Fake) CPU(context.Context) (CPUSample, []CPUSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CPUErr != nil {
		return CPUSample{}, nil, f.CPUErr
	}
	f.cpuReads++
	agg := CPUSample{
		Busy:  f.CPUStep * float64(f.cpuReads),
		Total: f.CPUStep * f.CPUDivisor * float64(f.cpuReads),
	}
	perCore := make([]CPUSample, f.Cores)
	for i := range perCore {
		perCore[i] = agg
	}
	return agg, perCore, nil
}

func (f *Fake) Memory(context.Context) (MemorySample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MemErr != nil {
		return MemorySample{}, f.MemErr
	}
	return f.Mem, nil
}

func (f *Fake) Disks(context.Context) ([]model.DiskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DiskErr != nil {
		return nil, f.DiskErr
	}
	out := make([]model.DiskInfo, len(f.DiskList))
	copy(out, f.DiskList)
	return out, nil
}

func (f *Fake) Processes(context.Context) ([]ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProcErr != nil {
		return nil, f.ProcErr
	}
	out := make([]ProcessRecord, len(f.ProcList))
	copy(out, f.ProcList)
	for i := range f.ProcList {
		if i < len(f.ProcSteps) {
			f.ProcList[i].CPUSeconds += f.ProcSteps[i]
		}
	}
	return out, nil
}

func (f *Fake) Host(context.Context) (HostSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HostErr != nil {
		return HostSample{}, f.HostErr
	}
	return f.HostInfo, nil
}

func (f *Fake) Terminate(_ context.Context, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.KillErr != nil {
		return f.KillErr
	}
	f.KilledPIDs = append(f.KilledPIDs, pid)
	return nil
}

// SetProcesses replaces the process list under lock, for mid-test changes.
func (f *Fake) SetProcesses(ps []ProcessRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcList = ps
}

// SetProcessError toggles process enumeration failure under lock.
func (f *Fake) SetProcessError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcErr = err
}
