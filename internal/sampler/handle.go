package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sysglance/sysglance/internal/model"
	"github.com/sysglance/sysglance/internal/source"
)

// Handle is the owned lifetime of a running sampler: it exposes the
// consumer surface and stops the timer when released.
type Handle struct {
	s       *Sampler
	cancel  context.CancelFunc
	group   *errgroup.Group
	refresh chan struct{}
}

// Start validates the configuration, takes a synchronous baseline poll, and
// begins periodic sampling. It returns a ConfigError for an invalid
// interval or capacity, or an error wrapping source.ErrUnavailable when the
// OS metrics source cannot be queried at all; in either case no background
// work is left running.
func (s *Sampler) Start(ctx context.Context) (*Handle, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	// Baseline poll: seeds the CPU delta state so the first timer tick
	// reports real utilization, and surfaces a dead source synchronously.
	if _, err := s.PollOnce(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g, loopCtx := errgroup.WithContext(loopCtx)
	h := &Handle{s: s, cancel: cancel, group: g, refresh: make(chan struct{}, 1)}
	g.Go(func() error { return s.run(loopCtx, h.refresh) })

	s.log.Info("sampler started",
		"session", s.session, "interval", s.cfg.Interval,
		"history_capacity", s.cfg.HistoryCapacity)
	return h, nil
}

// run is the timer loop. Each iteration re-reads the effective interval so
// energy-saving and focus changes apply at the next reset. An in-flight
// poll always runs to completion: OS enumeration is not interruptible, so
// cancellation is only observed between ticks.
func (s *Sampler) run(ctx context.Context, refresh <-chan struct{}) error {
	timer := time.NewTimer(s.EffectiveInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		if _, err := s.PollOnce(context.WithoutCancel(ctx)); err != nil {
			// Transient total outage; the timer keeps firing regardless.
			s.log.Warn("tick failed", "err", err)
		}
		timer.Reset(s.EffectiveInterval())
	}
}

// Stop halts the timer and waits for any in-flight poll to finish.
func (h *Handle) Stop() {
	h.cancel()
	_ = h.group.Wait()
	h.s.log.Info("sampler stopped", "session", h.s.session)
}

// Refresh schedules an immediate tick, collapsing with one already pending.
func (h *Handle) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// Current returns the most recent fully-formed Sample.
func (h *Handle) Current() model.Sample { return h.s.Current() }

// SessionID identifies the sampler run behind this handle.
func (h *Handle) SessionID() uuid.UUID { return h.s.SessionID() }

// History returns a snapshot copy of the history ring, oldest first.
func (h *Handle) History() []model.HistoryPoint { return h.s.History() }

// TerminateProcess requests termination of a PID from the latest Sample.
func (h *Handle) TerminateProcess(ctx context.Context, pid int32) error {
	return h.s.TerminateProcess(ctx, pid)
}

// SetEnergySaving toggles the reduced poll rate for the next timer reset.
func (h *Handle) SetEnergySaving(on bool) { h.s.SetEnergySaving(on) }

// SetFocused records presentation-layer focus for the throttling policy.
func (h *Handle) SetFocused(focused bool) { h.s.SetFocused(focused) }

// IsNotFound reports whether err means the target process was gone.
func IsNotFound(err error) bool { return errors.Is(err, source.ErrNotFound) }

// IsPermissionDenied reports whether err means the OS refused to act.
func IsPermissionDenied(err error) bool { return errors.Is(err, source.ErrPermissionDenied) }
