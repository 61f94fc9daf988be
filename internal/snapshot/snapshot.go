// Package snapshot implements atomic persistence of the
// orders_snapshot.json file shared by the store service (L5) and the
// match engine's own boot-time recovery path (L8), plus recovery
// loading with default-on-missing-field semantics via encoding/json.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"predictex/internal/types"
)

// CurrentSchemaVersion is bumped whenever a field is added/removed in
// a way an old reader can't safely default.
const CurrentSchemaVersion = 1

// Snapshot is the full persisted state: every resting order grouped by
// symbol, every known event/market's metadata and update_id, and the
// stream cursor replay should resume from.
type Snapshot struct {
	SchemaVersion int                      `json:"schema_version"`
	Snapshots     []SymbolSnapshot         `json:"snapshots"`
	Events        map[string]EventSnapshot `json:"events"` // keyed by event_id (decimal string)
	Timestamp     int64                    `json:"timestamp"`
	LastMessageID string                   `json:"last_message_id"`
}

// SymbolSnapshot is every resting order for one symbol at snapshot time.
type SymbolSnapshot struct {
	Symbol    types.Symbol  `json:"symbol"`
	Orders    []types.Order `json:"orders"`
	Timestamp int64         `json:"timestamp"`
}

// EventSnapshot is one event's market metadata, keyed by market_id.
type EventSnapshot struct {
	Markets map[string]MarketSnapshot `json:"markets"` // keyed by market_id (decimal string)
	EndDate *time.Time                `json:"end_date,omitempty"`
}

// MarketSnapshot is one market's metadata and the update_id replay
// should resume counting from.
type MarketSnapshot struct {
	MarketID int16    `json:"market_id"`
	Outcomes []string `json:"outcomes"`
	TokenIDs []string `json:"token_ids"`
	UpdateID uint64   `json:"update_id"`
}

// New returns an empty, current-version Snapshot.
func New() Snapshot {
	return Snapshot{
		SchemaVersion: CurrentSchemaVersion,
		Events:        make(map[string]EventSnapshot),
	}
}

// WriteAtomic serializes snap to path via a temp-file-then-rename,
// so a crash mid-write never leaves a truncated snapshot on disk.
func WriteAtomic(path string, snap Snapshot) error {
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = CurrentSchemaVersion
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// Load reads and parses path. A missing file returns an empty current
// Snapshot (the fresh-boot case), not an error; a malformed file, or
// one whose schema_version is newer than CurrentSchemaVersion, returns
// an error, since a corrupt snapshot is an
// unrecoverable condition the caller must escalate rather than
// silently discard.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read %s: %w", path, err)
	}

	snap := New()
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: unmarshal %s: %w", path, err)
	}
	if snap.SchemaVersion > CurrentSchemaVersion {
		return Snapshot{}, fmt.Errorf("snapshot: %s has schema_version %d, newer than supported %d", path, snap.SchemaVersion, CurrentSchemaVersion)
	}
	if snap.Events == nil {
		snap.Events = make(map[string]EventSnapshot)
	}
	return snap, nil
}
