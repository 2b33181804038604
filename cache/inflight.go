package cache

import (
	"context"
	"sync"
)

type flightCall struct {
	done   chan struct{}
	result string
	err    error
}

// Flight coordinates concurrent requests for the same fingerprint so the
// expensive computation runs at most once. The first caller for a
// fingerprint becomes the leader and runs fn; concurrent callers wait for
// the leader and share its result. If the leader fails, the marker is
// cleared so a later request may try again.
type Flight struct {
	mu    sync.Mutex
	calls map[Fingerprint]*flightCall
}

func NewFlight() *Flight {
	return &Flight{calls: make(map[Fingerprint]*flightCall)}
}

// Do returns fn's result for fp, running fn only if no call for fp is
// already in flight. The boolean reports whether this caller was the
// leader that executed fn. Waiters abandon the wait if ctx is cancelled;
// the leader's fn keeps running regardless.
func (f *Flight) Do(ctx context.Context, fp Fingerprint, fn func(context.Context) (string, error)) (string, bool, error) {
	f.mu.Lock()
	if c, ok := f.calls[fp]; ok {
		f.mu.Unlock()
		select {
		case <-c.done:
			return c.result, false, c.err
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	c := &flightCall{done: make(chan struct{})}
	f.calls[fp] = c
	f.mu.Unlock()

	c.result, c.err = fn(ctx)

	f.mu.Lock()
	delete(f.calls, fp)
	f.mu.Unlock()
	close(c.done)

	return c.result, true, c.err
}
