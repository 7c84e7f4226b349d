// Package sampler implements the periodic system-metrics sampler and its
// bounded history. One instance owns the latest-Sample slot and the history
// ring; consumers only ever receive copies.
package sampler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sysglance/sysglance/internal/history"
	"github.com/sysglance/sysglance/internal/model"
	"github.com/sysglance/sysglance/internal/source"
)

// Interval multipliers for the adaptive polling policy: energy-saving mode
// doubles the interval, an unfocused UI quintuples it. Unfocused wins when
// both apply.
const (
	energySavingScale = 2
	unfocusedScale    = 5
)

// Config carries the sampler's runtime options.
type Config struct {
	// Interval between ticks. Must be positive.
	Interval time.Duration
	// HistoryCapacity is the fixed size of the history ring. Must be positive.
	HistoryCapacity int
	// EnergySaving starts the sampler with the reduced poll rate.
	EnergySaving bool
	// Logger receives per-tick diagnostics. Nil discards.
	Logger *slog.Logger
}

// ConfigError reports an invalid sampler setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sampler config: %s %s", e.Field, e.Reason)
}

// Sampler produces Samples from a Source on demand or on a timer.
type Sampler struct {
	cfg     Config
	src     source.Source
	log     *slog.Logger
	session uuid.UUID
	now     func() time.Time

	// pollMu serializes sample production and the delta state below.
	pollMu       sync.Mutex
	prevCPU      source.CPUSample
	prevCore     []source.CPUSample
	haveCPUPrev  bool
	prevProc     map[int32]float64
	prevProcTime time.Time
	lastDisks    []model.DiskInfo
	tick         uint64

	// mu guards the published state read by consumers. The ring lives here
	// rather than under pollMu so history reads never wait out an OS poll.
	mu           sync.RWMutex
	ring         *history.Ring
	current      model.Sample
	energySaving bool
	focused      bool
}

// New returns an unstarted Sampler. Configuration is validated when the
// first poll is requested, so an invalid interval or capacity surfaces from
// Start or PollOnce rather than here.
func New(src source.Source, cfg Config) *Sampler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sampler{
		cfg:          cfg,
		src:          src,
		log:          logger,
		session:      uuid.New(),
		now:          time.Now,
		prevProc:     make(map[int32]float64),
		energySaving: cfg.EnergySaving,
		focused:      true,
	}
}

// SessionID identifies this sampler run; exports are stamped with it.
func (s *Sampler) SessionID() uuid.UUID { return s.session }

func (s *Sampler) validate() error {
	if s.cfg.Interval <= 0 {
		return &ConfigError{Field: "interval", Reason: "must be positive"}
	}
	if s.cfg.HistoryCapacity <= 0 {
		return &ConfigError{Field: "history capacity", Reason: "must be positive"}
	}
	return nil
}

// ensureRing validates the config and allocates the history ring once.
// Callers hold pollMu, which serializes the nil check; the assignment takes
// mu so concurrent History readers see a consistent pointer.
func (s *Sampler) ensureRing() error {
	if s.ring != nil {
		return nil
	}
	if err := s.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ring = history.New(s.cfg.HistoryCapacity)
	s.mu.Unlock()
	return nil
}

// Current returns the most recent successfully produced Sample, or the zero
// Sample before the first tick completes. The returned value is a copy of
// the published slot; a tick in flight never shows through it.
func (s *Sampler) Current() model.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// History returns a snapshot copy of the history ring, oldest first.
func (s *Sampler) History() []model.HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ring == nil {
		return nil
	}
	return s.ring.Snapshot()
}

// PollOnce synchronously gathers one Sample, publishes it, and appends its
// reduction to history. Per-tick failures of individual metric categories
// degrade the Sample (recorded in Sample.Warnings); only when CPU, memory,
// and process enumeration all fail is the tick abandoned with an error
// wrapping source.ErrUnavailable.
func (s *Sampler) PollOnce(ctx context.Context) (model.Sample, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if err := s.ensureRing(); err != nil {
		return model.Zero(), err
	}

	now := s.now()
	var warnings []string
	failed := 0

	var cpuStat model.CPU
	agg, perCore, err := s.src.CPU(ctx)
	if err != nil {
		warnings = append(warnings, "cpu: "+err.Error())
		failed++
	} else {
		cpuStat = s.cpuPercents(agg, perCore)
	}

	var memStat model.Memory
	if m, err := s.src.Memory(ctx); err != nil {
		warnings = append(warnings, "memory: "+err.Error())
		failed++
	} else {
		memStat = model.Memory{UsedBytes: m.Used, TotalBytes: m.Total, AvailableBytes: m.Available}
	}

	var procs []model.ProcessInfo
	if recs, err := s.src.Processes(ctx); err != nil {
		warnings = append(warnings, "processes: "+err.Error())
		failed++
	} else {
		procs = s.processRows(now, recs)
	}

	disks := s.disksForTick(ctx, &warnings)

	var hostStat model.Host
	if h, err := s.src.Host(ctx); err != nil {
		warnings = append(warnings, "host: "+err.Error())
	} else {
		hostStat = model.Host{UptimeSeconds: h.UptimeSeconds}
	}
	hostStat.ProcessCount = len(procs)

	s.tick++

	if failed == 3 {
		s.log.Warn("tick abandoned, no metric category available", "tick", s.tick)
		return model.Zero(), fmt.Errorf("poll: %w", source.ErrUnavailable)
	}

	sample := model.Sample{
		Timestamp: now,
		CPU:       cpuStat,
		Memory:    memStat,
		Disks:     disks,
		Processes: procs,
		Host:      hostStat,
		Warnings:  warnings,
	}

	// Publish by replace: the Sample is fully formed before it becomes
	// visible, and history only ever sees completed ticks.
	s.mu.Lock()
	s.current = sample
	s.ring.Append(sample.Reduce())
	s.mu.Unlock()

	if len(warnings) > 0 {
		s.log.Warn("tick degraded", "tick", s.tick, "warnings", warnings)
	} else {
		s.log.Debug("tick complete", "tick", s.tick,
			"cpu_percent", sample.CPU.TotalPercent, "processes", len(procs))
	}
	return sample, nil
}

// cpuPercents converts cumulative counters into utilization by delta against
// the previous tick. The first tick has no baseline and reports zero.
func (s *Sampler) cpuPercents(agg source.CPUSample, perCore []source.CPUSample) model.CPU {
	out := model.CPU{PerCorePercent: make([]float64, len(perCore))}
	if s.haveCPUPrev {
		out.TotalPercent = percentDelta(s.prevCPU, agg)
		for i := range perCore {
			if i < len(s.prevCore) {
				out.PerCorePercent[i] = percentDelta(s.prevCore[i], perCore[i])
			}
		}
	}
	s.prevCPU, s.prevCore, s.haveCPUPrev = agg, perCore, true
	return out
}

func percentDelta(prev, cur source.CPUSample) float64 {
	dt := cur.Total - prev.Total
	if dt <= 0 {
		return 0
	}
	pct := 100 * (cur.Busy - prev.Busy) / dt
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// processRows attributes CPU over the wall-clock delta since the previous
// successful enumeration. A PID seen for the first time reports 0%.
func (s *Sampler) processRows(now time.Time, recs []source.ProcessRecord) []model.ProcessInfo {
	wall := 0.0
	if !s.prevProcTime.IsZero() {
		wall = now.Sub(s.prevProcTime).Seconds()
	}
	next := make(map[int32]float64, len(recs))
	rows := make([]model.ProcessInfo, 0, len(recs))
	for _, r := range recs {
		var cpuPct float64
		if prev, ok := s.prevProc[r.PID]; ok && wall > 0 {
			if d := r.CPUSeconds - prev; d > 0 {
				cpuPct = 100 * d / wall
			}
		}
		next[r.PID] = r.CPUSeconds
		rows = append(rows, model.ProcessInfo{
			PID:         r.PID,
			Name:        r.Name,
			Status:      r.Status,
			Owner:       r.Owner,
			CommandLine: r.CommandLine,
			CPUPercent:  cpuPct,
			MemoryBytes: r.MemoryBytes,
		})
	}
	// Replacing the map drops PIDs that exited since the last tick.
	s.prevProc = next
	s.prevProcTime = now
	return rows
}

// disksForTick refreshes the disk list every second tick and carries the
// previous list in between; full enumeration per tick is needless statfs
// churn for numbers that move slowly.
func (s *Sampler) disksForTick(ctx context.Context, warnings *[]string) []model.DiskInfo {
	if s.tick%2 == 0 || s.lastDisks == nil {
		disks, err := s.src.Disks(ctx)
		if err != nil {
			*warnings = append(*warnings, "disks: "+err.Error())
			return s.lastDisks
		}
		s.lastDisks = disks
	}
	return s.lastDisks
}

// TerminateProcess requests OS-level termination of pid. PIDs absent from
// the latest Sample fail with source.ErrNotFound before any OS call is
// made; the race with a process exiting after the last tick is inherent and
// the caller must re-poll to confirm the outcome.
func (s *Sampler) TerminateProcess(ctx context.Context, pid int32) error {
	cur := s.Current()
	if _, ok := cur.Process(pid); !ok {
		return fmt.Errorf("terminate %d: not in latest sample: %w", pid, source.ErrNotFound)
	}
	if err := s.src.Terminate(ctx, pid); err != nil {
		s.log.Warn("terminate failed", "pid", pid, "err", err)
		return err
	}
	s.log.Info("terminate requested", "pid", pid)
	return nil
}

// SetEnergySaving toggles the reduced poll rate. Takes effect at the next
// timer reset, never mid-poll.
func (s *Sampler) SetEnergySaving(on bool) {
	s.mu.Lock()
	s.energySaving = on
	s.mu.Unlock()
}

// SetFocused records whether the presentation layer is focused; an
// unfocused consumer throttles polling harder than energy-saving mode.
func (s *Sampler) SetFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

// EffectiveInterval reports the interval the next timer reset will use.
func (s *Sampler) EffectiveInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case !s.focused:
		return s.cfg.Interval * unfocusedScale
	case s.energySaving:
		return s.cfg.Interval * energySavingScale
	default:
		return s.cfg.Interval
	}
}
