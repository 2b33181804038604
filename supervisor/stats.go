package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stats is the supervisor's persisted restart record, carried across
// supervisor restarts so crash loops stay visible to an operator.
type Stats struct {
	TotalRestarts       uint64    `json:"total_restarts"`
	Crashes             uint64    `json:"crashes"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
	LastRestart         time.Time `json:"last_restart"`
}

// StatsStore persists Stats with write-to-temp-then-rename, same contract
// as the daemon's stats record: readers never see a torn file.
type StatsStore struct {
	Path string
}

func (s *StatsStore) Load() (Stats, error) {
	var stats Stats
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("supervisor: read stats: %w", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return Stats{}, fmt.Errorf("supervisor: parse stats: %w", err)
	}
	return stats, nil
}

func (s *StatsStore) Save(stats Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("supervisor: encode stats: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("supervisor: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("supervisor: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("supervisor: write stats: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("supervisor: sync stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("supervisor: close stats: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("supervisor: rename stats: %w", err)
	}
	return nil
}
