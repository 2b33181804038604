package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlight_ConcurrentCallersShareOneComputation(t *testing.T) {
	f := NewFlight()
	fp := NewFingerprint("shared", "m", "p")

	var computations int64
	started := make(chan struct{})
	release := make(chan struct{})

	const callers = 8
	results := make([]string, callers)
	leaders := make([]bool, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], leaders[i], errs[i] = f.Do(context.Background(), fp, func(context.Context) (string, error) {
				atomic.AddInt64(&computations, 1)
				close(started)
				<-release
				return "computed", nil
			})
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), computations, "exactly one computation")
	leaderCount := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "computed", results[i])
		if leaders[i] {
			leaderCount++
		}
	}
	assert.Equal(t, 1, leaderCount)
}

func TestFlight_LeaderErrorSharedAndMarkerCleared(t *testing.T) {
	f := NewFlight()
	fp := NewFingerprint("failing", "m", "p")
	boom := errors.New("boom")

	_, leader, err := f.Do(context.Background(), fp, func(context.Context) (string, error) {
		return "", boom
	})
	assert.True(t, leader)
	assert.ErrorIs(t, err, boom)

	// The marker must be gone: a later caller runs the computation again.
	res, leader, err := f.Do(context.Background(), fp, func(context.Context) (string, error) {
		return "second try", nil
	})
	require.NoError(t, err)
	assert.True(t, leader)
	assert.Equal(t, "second try", res)
}

func TestFlight_DistinctFingerprintsIndependent(t *testing.T) {
	f := NewFlight()

	resA, _, err := f.Do(context.Background(), NewFingerprint("a", "m", "p"), func(context.Context) (string, error) {
		return "A", nil
	})
	require.NoError(t, err)
	resB, _, err := f.Do(context.Background(), NewFingerprint("b", "m", "p"), func(context.Context) (string, error) {
		return "B", nil
	})
	require.NoError(t, err)

	assert.Equal(t, "A", resA)
	assert.Equal(t, "B", resB)
}

func TestFlight_WaiterHonorsCancellation(t *testing.T) {
	f := NewFlight()
	fp := NewFingerprint("slow", "m", "p")

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		f.Do(context.Background(), fp, func(context.Context) (string, error) {
			close(started)
			<-release
			return "late", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := f.Do(ctx, fp, func(context.Context) (string, error) {
		t.Fatal("waiter must not compute")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}
