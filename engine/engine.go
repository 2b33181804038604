package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/cache"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/retry"
)

// Transformer is the external inference collaborator. Model and Params feed
// the fingerprint so a model or parameter change never reuses stale cache
// entries.
type Transformer interface {
	Transform(ctx context.Context, text string) (string, error)
	Model() string
	Params() string
}

// Result summarizes one Execute pass over a unit.
type Result struct {
	Output   string
	Complete bool

	Done      int
	Failed    int
	CacheHits int
	Computed  int
	Errors    int
}

// Engine executes a unit's chunks through the transform with a bounded
// worker pool. The cache flight marker is the only synchronization point
// shared between workers.
type Engine struct {
	Store       cache.Store
	Flight      *cache.Flight
	Transformer Transformer
	Policy      retry.Policy
	Concurrency int
}

// Execute drives every non-done chunk of unit to completion or permanent
// failure. A single failed chunk never aborts the others; the unit is
// marked partial and retried on a later cycle. Cancellation is honored
// between dispatches; chunks already handed to a worker finish their
// current attempt.
func (e *Engine) Execute(ctx context.Context, unit *WorkUnit) Result {
	var work []*Chunk
	for _, c := range unit.Chunks {
		if c.Status != ChunkDone {
			work = append(work, c)
		}
	}

	var hits, computed, errs int64

	if len(work) > 0 {
		workers := e.Concurrency
		if workers < 1 {
			workers = 1
		}
		if workers > len(work) {
			workers = len(work)
		}

		ch := make(chan *Chunk)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for c := range ch {
					hit, comp, nerr := e.processChunk(ctx, unit, c)
					if hit {
						atomic.AddInt64(&hits, 1)
					}
					if comp {
						atomic.AddInt64(&computed, 1)
					}
					atomic.AddInt64(&errs, int64(nerr))
				}
			}()
		}

	dispatch:
		for _, c := range work {
			select {
			case <-ctx.Done():
				break dispatch
			case ch <- c:
			}
		}
		close(ch)
		wg.Wait()
	}

	unit.refreshStatus()
	output, complete := unit.Output()

	res := Result{
		Output:    output,
		Complete:  complete,
		CacheHits: int(hits),
		Computed:  int(computed),
		Errors:    int(errs),
	}
	for _, c := range unit.Chunks {
		switch c.Status {
		case ChunkDone:
			res.Done++
		case ChunkFailed:
			res.Failed++
		}
	}
	return res
}

// processChunk runs one chunk through cache lookup, flight coordination,
// and the retrying transform. It reports whether the chunk was served from
// cache (or a concurrent leader), whether this call paid for a
// computation, and how many transform attempts failed.
func (e *Engine) processChunk(ctx context.Context, unit *WorkUnit, c *Chunk) (hit, comp bool, failedAttempts int) {
	fp := cache.NewFingerprint(c.Content, e.Transformer.Model(), e.Transformer.Params())
	c.Fingerprint = fp
	c.Status = ChunkInFlight

	var fromCache bool
	var attempts int

	result, leader, err := e.Flight.Do(ctx, fp, func(ctx context.Context) (string, error) {
		if entry, ok, gerr := e.Store.Get(fp); gerr != nil {
			return "", gerr
		} else if ok {
			fromCache = true
			return entry.Result, nil
		}

		var out string
		n, rerr := e.Policy.Do(ctx, func(ctx context.Context) error {
			// The transform itself is never force-killed on cancellation;
			// the collaborator's own timeout bounds it.
			text, terr := e.Transformer.Transform(context.WithoutCancel(ctx), c.Content)
			if terr != nil {
				return terr
			}
			out = text
			return nil
		})
		attempts = n
		if rerr != nil {
			return "", rerr
		}
		if perr := e.Store.Put(fp, out); perr != nil {
			return "", perr
		}
		return out, nil
	})

	c.Attempts += attempts

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Interrupted, not exhausted: leave the chunk for the next cycle.
			c.Status = ChunkPending
			return false, false, attempts
		}
		c.Status = ChunkFailed
		log.Warn().
			Str("unit", unit.ID).
			Int("chunk", c.Index).
			Int("attempts", attempts).
			Err(err).
			Msg("chunk permanently failed")
		return false, false, attempts
	}

	c.Result = result
	c.Status = ChunkDone

	switch {
	case fromCache, !leader:
		// Served by the store or by a concurrent leader's computation.
		return true, false, attempts
	default:
		return false, true, attempts - 1
	}
}
