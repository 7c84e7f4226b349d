// sysglance is a terminal system monitor: live process table, CPU and
// memory history, disk usage, and process termination, backed by a periodic
// metrics sampler with bounded history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sysglance/sysglance/internal/config"
	"github.com/sysglance/sysglance/internal/export"
	"github.com/sysglance/sysglance/internal/model"
	"github.com/sysglance/sysglance/internal/sampler"
	"github.com/sysglance/sysglance/internal/source"
	"github.com/sysglance/sysglance/internal/ui"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	src, err := source.NewSystem(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	smp := sampler.New(src, sampler.Config{
		Interval:        cfg.Interval,
		HistoryCapacity: cfg.HistoryCapacity,
		EnergySaving:    cfg.EnergySaving,
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.JSON:
		err = runJSON(ctx, smp, cfg)
	case cfg.JSONStream:
		err = runStream(ctx, smp, cfg)
	default:
		err = runTUI(ctx, smp, cfg)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger writes debug output to the configured file, or discards it. The
// TUI owns the terminal, so stderr logging is not an option there.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), func() { f.Close() }, nil
}

// runJSON takes two polls an interval apart so CPU percentages come from a
// real delta, then emits one snapshot.
func runJSON(ctx context.Context, smp *sampler.Sampler, cfg config.Config) error {
	if _, err := smp.PollOnce(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.Interval):
	}
	sample, err := smp.PollOnce(ctx)
	if err != nil {
		return err
	}
	sample.Processes = shapeProcesses(sample.Processes, cfg)

	now := time.Now()
	if cfg.ExportPath != "" {
		return export.WriteFile(cfg.ExportPath, sample, smp.History(), smp.SessionID(), now)
	}
	b, err := export.Marshal(sample, smp.History(), smp.SessionID(), now)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = os.Stdout.Write(b)
	return err
}

// runStream emits one compact JSON sample per line until interrupted.
func runStream(ctx context.Context, smp *sampler.Sampler, cfg config.Config) error {
	h, err := smp.Start(ctx)
	if err != nil {
		return err
	}
	defer h.Stop()

	enc := json.NewEncoder(os.Stdout)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	var lastEmitted time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample := h.Current()
			if sample.Timestamp.IsZero() || sample.Timestamp.Equal(lastEmitted) {
				continue
			}
			lastEmitted = sample.Timestamp
			sample.Processes = shapeProcesses(sample.Processes, cfg)
			if err := enc.Encode(sample); err != nil {
				return err
			}
		}
	}
}

func runTUI(ctx context.Context, smp *sampler.Sampler, cfg config.Config) error {
	h, err := smp.Start(ctx)
	if err != nil {
		return err
	}
	defer h.Stop()
	return ui.Run(h, cfg)
}

// shapeProcesses applies the configured filter and sort so scripted output
// matches what the interactive table would show.
func shapeProcesses(ps []model.ProcessInfo, cfg config.Config) []model.ProcessInfo {
	out := model.FilterProcesses(ps, cfg.Filter)
	shaped := make([]model.ProcessInfo, len(out))
	copy(shaped, out)
	model.SortProcesses(shaped, model.ParseSortColumn(cfg.Sort), cfg.Descending)
	return shaped
}
