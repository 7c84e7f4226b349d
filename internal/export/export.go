// Package export serializes sampler snapshots to JSON for the "save to
// file" action and the scripted output modes.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sysglance/sysglance/internal/model"
)

// Version identifies the snapshot schema. Bump when field meanings change.
const Version = 1

// Snapshot is the export envelope. History is optional; omit it for a
// lighter process-table-only export.
type Snapshot struct {
	Version    int                  `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	SessionID  string               `json:"session_id"`
	Sample     model.Sample         `json:"sample"`
	History    []model.HistoryPoint `json:"history,omitempty"`
}

// Marshal renders a pretty-printed snapshot of sample (and optionally
// history) as it stood at exportedAt. Timestamps round-trip through RFC
// 3339 with nanoseconds; only the monotonic clock reading is lost.
func Marshal(sample model.Sample, hist []model.HistoryPoint, session uuid.UUID, exportedAt time.Time) ([]byte, error) {
	snap := Snapshot{
		Version:    Version,
		ExportedAt: exportedAt,
		SessionID:  session.String(),
		Sample:     sample,
		History:    hist,
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal snapshot: %w", err)
	}
	return b, nil
}

// WriteFile marshals and writes the snapshot atomically: the bytes land in
// a temp file first and are renamed into place, so a half-written export
// never appears under the target name.
func WriteFile(path string, sample model.Sample, hist []model.HistoryPoint, session uuid.UUID, exportedAt time.Time) error {
	b, err := Marshal(sample, hist, session, exportedAt)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("export: temp file: %w", err)
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("export: rename %s: %w", path, err)
	}
	return nil
}

// DefaultFilename names an export after its moment of creation, e.g.
// processes_20240601_120305.json.
func DefaultFilename(t time.Time) string {
	return "processes_" + t.Format("20060102_150405") + ".json"
}
