package model

import "time"

// CPU aggregates instantaneous CPU usage.
type CPU struct {
	TotalPercent   float64   `json:"total_percent"`    // percent 0-100
	PerCorePercent []float64 `json:"per_core_percent"` // per-core percent
}

// Memory captures RAM usage in bytes for precision.
type Memory struct {
	UsedBytes      uint64 `json:"used_bytes"`
	TotalBytes     uint64 `json:"total_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

// DiskInfo describes one mounted volume at sampling time.
type DiskInfo struct {
	Name        string  `json:"name"`
	Mountpoint  string  `json:"mountpoint"`
	Filesystem  string  `json:"filesystem"`
	MediaType   string  `json:"media_type"` // "SSD" | "HDD" | "Unknown"
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// ProcessInfo is one process row. PIDs are unique within a single Sample
// only; the OS may reuse them across process restarts.
type ProcessInfo struct {
	PID         int32   `json:"pid"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Owner       string  `json:"owner"`
	CommandLine string  `json:"command_line"` // empty when unreadable
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

// Host holds a few machine-wide facts shown in the system panel.
type Host struct {
	UptimeSeconds uint64 `json:"uptime_seconds"`
	ProcessCount  int    `json:"process_count"`
}

// HistoryPoint is the reduced per-tick record kept for charting. Full
// process and disk lists are only retained for the latest Sample.
type HistoryPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryUsedBytes uint64    `json:"memory_used_bytes"`
}

// Sample is the full snapshot exchanged between sampler, UI, and JSON
// exporter. Samples are never mutated after construction.
type Sample struct {
	Timestamp time.Time     `json:"timestamp"`
	CPU       CPU           `json:"cpu"`
	Memory    Memory        `json:"memory"`
	Disks     []DiskInfo    `json:"disks"`
	Processes []ProcessInfo `json:"processes"`
	Host      Host          `json:"host"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// Zero returns the empty sample handed out before the first tick completes.
// Its zero Timestamp is how consumers tell "no data yet" apart from a real
// reading.
func Zero() Sample { return Sample{} }

// Reduce collapses a Sample to the scalar aggregates kept in history.
func (s Sample) Reduce() HistoryPoint {
	return HistoryPoint{
		Timestamp:       s.Timestamp,
		CPUPercent:      s.CPU.TotalPercent,
		MemoryUsedBytes: s.Memory.UsedBytes,
	}
}

// Process looks up a PID in this Sample's process list.
func (s Sample) Process(pid int32) (ProcessInfo, bool) {
	for _, p := range s.Processes {
		if p.PID == pid {
			return p, true
		}
	}
	return ProcessInfo{}, false
}
