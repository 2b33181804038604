// Package daemon runs the 24/7 cycle loop: acquire new units per category,
// drive them through the execution engine, persist statistics, sleep,
// repeat. Per-cycle failures are absorbed and counted, never fatal.
package daemon

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration makes time.Duration parseable from TOML strings like "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the externally owned configuration surface of the pipeline.
type Config struct {
	Categories []string `toml:"categories"`
	BatchSize  int      `toml:"batch_size"`
	CycleDelay Duration `toml:"cycle_delay"`
	MaxCycles  int      `toml:"max_cycles"`

	Concurrency  int      `toml:"concurrency_limit"`
	MaxChunkSize int      `toml:"max_chunk_size"`
	MaxAttempts  int      `toml:"max_attempts"`
	BaseDelay    Duration `toml:"base_delay"`
	BackoffCap   Duration `toml:"backoff_cap"`

	Model            string   `toml:"model"`
	OllamaURL        string   `toml:"ollama_url"`
	GutendexURL      string   `toml:"gutendex_url"`
	TransformTimeout Duration `toml:"transform_timeout"`

	CachePath  string `toml:"cache_path"`
	StatsPath  string `toml:"stats_path"`
	StatusAddr string `toml:"status_addr"`
}

func DefaultConfig() Config {
	return Config{
		Categories:       []string{"en"},
		BatchSize:        10,
		CycleDelay:       Duration{10 * time.Minute},
		Concurrency:      2,
		MaxChunkSize:     2000,
		MaxAttempts:      3,
		BaseDelay:        Duration{2 * time.Second},
		BackoffCap:       Duration{time.Minute},
		Model:            "qwen2.5:7b",
		OllamaURL:        "http://localhost:11434",
		GutendexURL:      "https://gutendex.com",
		TransformTimeout: Duration{5 * time.Minute},
		CachePath:        "data/translation_cache.log",
		StatsPath:        "data/daemon_stats.json",
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports configuration errors. These are the only errors that
// terminate the process, and only before the cycle loop starts.
func (c Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("config: no categories")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency_limit must be >= 1, got %d", c.Concurrency)
	}
	if c.MaxChunkSize < 1 {
		return fmt.Errorf("config: max_chunk_size must be >= 1, got %d", c.MaxChunkSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.CycleDelay.Duration <= 0 {
		return fmt.Errorf("config: cycle_delay must be positive")
	}
	if c.BaseDelay.Duration <= 0 {
		return fmt.Errorf("config: base_delay must be positive")
	}
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.CachePath == "" || c.StatsPath == "" {
		return fmt.Errorf("config: cache_path and stats_path are required")
	}
	return nil
}
