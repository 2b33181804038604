// Package retry provides the single backoff policy applied to every
// external call in the pipeline: acquisition pulls and transform requests
// share the same exponential-backoff-with-jitter behavior.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrAttemptsExhausted wraps the last error after MaxAttempts failures.
var ErrAttemptsExhausted = errors.New("attempts exhausted")

// Policy describes a bounded exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Cap         time.Duration
	Jitter      float64 // fraction of BaseDelay added as random jitter
}

// Delay returns the wait before attempt n (1-based). Attempt 1 has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	shift := uint(attempt - 2)
	if shift > 20 {
		shift = 20
	}
	d := p.BaseDelay << shift
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(p.BaseDelay))
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}

// Do runs op until it succeeds, the attempt budget is spent, or ctx is
// cancelled. It returns the number of attempts actually made. The waits
// between attempts are interruptible; cancellation mid-wait returns ctx's
// error without consuming another attempt.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}

	var last error
	for attempt := 1; attempt <= max; attempt++ {
		if wait := p.Delay(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt - 1, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		last = op(ctx)
		if last == nil {
			return attempt, nil
		}
	}
	return max, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, max, last)
}
