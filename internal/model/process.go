package model

import (
	"sort"
	"strings"
)

// SortColumn selects the process-table sort key.
type SortColumn string

const (
	SortByName   SortColumn = "name"
	SortByCPU    SortColumn = "cpu"
	SortByMemory SortColumn = "memory"
	SortByStatus SortColumn = "status"
)

// ParseSortColumn maps a user-supplied string to a SortColumn, defaulting
// to name for anything unrecognized.
func ParseSortColumn(s string) SortColumn {
	switch SortColumn(strings.ToLower(s)) {
	case SortByCPU:
		return SortByCPU
	case SortByMemory:
		return SortByMemory
	case SortByStatus:
		return SortByStatus
	default:
		return SortByName
	}
}

// SortProcesses orders ps in place by the given column. Ties fall back to
// PID so the ordering is stable across redraws of an unchanged sample.
func SortProcesses(ps []ProcessInfo, col SortColumn, descending bool) {
	less := func(a, b ProcessInfo) bool {
		switch col {
		case SortByCPU:
			if a.CPUPercent != b.CPUPercent {
				return a.CPUPercent < b.CPUPercent
			}
		case SortByMemory:
			if a.MemoryBytes != b.MemoryBytes {
				return a.MemoryBytes < b.MemoryBytes
			}
		case SortByStatus:
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		default:
			if a.Name != b.Name {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
		}
		return a.PID < b.PID
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if descending {
			return less(ps[j], ps[i])
		}
		return less(ps[i], ps[j])
	})
}

// FilterProcesses returns the processes whose name contains filter,
// case-insensitively. An empty filter returns ps unchanged.
func FilterProcesses(ps []ProcessInfo, filter string) []ProcessInfo {
	if filter == "" {
		return ps
	}
	needle := strings.ToLower(filter)
	out := make([]ProcessInfo, 0, len(ps))
	for _, p := range ps {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}
