package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsStore_RoundTrip(t *testing.T) {
	store := &StatsStore{Path: filepath.Join(t.TempDir(), "stats.json")}

	in := CycleStats{
		Cycles:         7,
		UnitsProcessed: 42,
		ChunksComputed: 310,
		CacheHits:      95,
		Errors:         3,
		StartTime:      time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
		LastCycle:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStatsStore_MissingFileIsZero(t *testing.T) {
	store := &StatsStore{Path: filepath.Join(t.TempDir(), "absent.json")}
	stats, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, CycleStats{}, stats)
}

func TestStatsStore_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := &StatsStore{Path: filepath.Join(dir, "stats.json")}
	require.NoError(t, store.Save(CycleStats{Cycles: 1}))
	require.NoError(t, store.Save(CycleStats{Cycles: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stats.json", entries[0].Name())
}

func TestStatsStore_CreatesParentDir(t *testing.T) {
	store := &StatsStore{Path: filepath.Join(t.TempDir(), "nested", "deeper", "stats.json")}
	require.NoError(t, store.Save(CycleStats{Cycles: 1}))

	stats, err := store.Load()
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Cycles)
}
