package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func procs() []ProcessInfo {
	return []ProcessInfo{
		{PID: 30, Name: "zsh", Status: "sleep", CPUPercent: 0.2, MemoryBytes: 4 << 20},
		{PID: 10, Name: "Chrome", Status: "running", CPUPercent: 12.5, MemoryBytes: 900 << 20},
		{PID: 20, Name: "chrome-helper", Status: "sleep", CPUPercent: 3.1, MemoryBytes: 300 << 20},
		{PID: 40, Name: "init", Status: "sleep", CPUPercent: 0.2, MemoryBytes: 1 << 20},
	}
}

func TestSortProcesses(t *testing.T) {
	tests := []struct {
		name       string
		col        SortColumn
		descending bool
		wantPIDs   []int32
	}{
		{"name ascending is case-insensitive", SortByName, false, []int32{10, 20, 40, 30}},
		{"cpu descending", SortByCPU, true, []int32{10, 20, 30, 40}},
		{"memory ascending", SortByMemory, false, []int32{40, 30, 20, 10}},
		{"status ties break on pid", SortByStatus, false, []int32{10, 20, 30, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := procs()
			SortProcesses(ps, tt.col, tt.descending)
			got := make([]int32, len(ps))
			for i, p := range ps {
				got[i] = p.PID
			}
			assert.Equal(t, tt.wantPIDs, got)
		})
	}
}

func TestSortProcessesEqualCPUFallsBackToPID(t *testing.T) {
	ps := procs()
	SortProcesses(ps, SortByCPU, false)
	// 30 and 40 share 0.2% CPU; lower PID first.
	assert.Equal(t, int32(30), ps[0].PID)
	assert.Equal(t, int32(40), ps[1].PID)
}

func TestFilterProcesses(t *testing.T) {
	ps := procs()

	assert.Len(t, FilterProcesses(ps, ""), 4)
	assert.Len(t, FilterProcesses(ps, "CHROME"), 2)
	assert.Empty(t, FilterProcesses(ps, "postgres"))

	// Filtering never mutates the input.
	assert.Len(t, ps, 4)
}

func TestSampleReduce(t *testing.T) {
	s := Sample{
		CPU:    CPU{TotalPercent: 42.5},
		Memory: Memory{UsedBytes: 1234, TotalBytes: 9999},
	}
	p := s.Reduce()
	assert.Equal(t, 42.5, p.CPUPercent)
	assert.Equal(t, uint64(1234), p.MemoryUsedBytes)
	assert.Equal(t, s.Timestamp, p.Timestamp)
}

func TestSampleProcessLookup(t *testing.T) {
	s := Sample{Processes: procs()}

	p, ok := s.Process(20)
	assert.True(t, ok)
	assert.Equal(t, "chrome-helper", p.Name)

	_, ok = s.Process(999)
	assert.False(t, ok)
}

func TestZeroSampleIsWellFormed(t *testing.T) {
	z := Zero()
	assert.True(t, z.Timestamp.IsZero())
	assert.Empty(t, z.Processes)
	assert.Empty(t, z.Disks)
	assert.Zero(t, z.CPU.TotalPercent)
}
