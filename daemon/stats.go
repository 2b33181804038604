package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CycleStats is the cumulative record of the daemon's work, persisted at
// phase boundaries so a crash loses at most the in-flight phase. External
// monitors read the file directly; it is replaced atomically and never
// observable half-written.
type CycleStats struct {
	Cycles         uint64    `json:"cycles"`
	UnitsProcessed uint64    `json:"units_processed"`
	ChunksComputed uint64    `json:"chunks_computed"`
	CacheHits      uint64    `json:"cache_hits"`
	Errors         uint64    `json:"errors"`
	StartTime      time.Time `json:"start_time"`
	LastCycle      time.Time `json:"last_cycle"`
}

// StatsStore persists a stats record with write-to-temp-then-rename.
type StatsStore struct {
	Path string
}

// Load reads the current record. A missing file yields zero stats.
func (s *StatsStore) Load() (CycleStats, error) {
	var stats CycleStats
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("stats: read %s: %w", s.Path, err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return CycleStats{}, fmt.Errorf("stats: parse %s: %w", s.Path, err)
	}
	return stats, nil
}

func (s *StatsStore) Save(stats CycleStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: encode: %w", err)
	}
	return writeFileAtomic(s.Path, data)
}

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it, and renames it over path. Readers see either the old record or the
// new one, never a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("stats: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stats: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("stats: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("stats: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stats: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("stats: rename: %w", err)
	}
	return nil
}
