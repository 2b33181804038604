package daemon

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/engine"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/metrics"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/retry"
)

// Acquirer is the external collaborator that discovers new work. Pull
// failures are soft: logged, counted, skipped for the cycle.
type Acquirer interface {
	Pull(ctx context.Context, category string, limit int) ([]*engine.WorkUnit, error)
}

// Publisher receives the complete output of a finished unit. Formatting
// and layout are owned by the collaborator; failures are soft.
type Publisher interface {
	Publish(ctx context.Context, unit *engine.WorkUnit, output string) error
}

// Scheduler runs the cycle loop. It is single-threaded at the cycle level;
// the only parallelism lives inside the engine's worker pool.
type Scheduler struct {
	Config    Config
	Acquirer  Acquirer
	Engine    *engine.Engine
	Stats     *StatsStore
	Policy    retry.Policy
	Publisher Publisher        // optional
	Metrics   *metrics.Metrics // optional

	pending []*engine.WorkUnit
}

// Run loops until ctx is cancelled or MaxCycles is reached. Cancellation
// is a clean stop and returns nil; no failure inside a running cycle ever
// propagates out.
func (s *Scheduler) Run(ctx context.Context) error {
	stats, err := s.Stats.Load()
	if err != nil {
		log.Warn().Err(err).Msg("stats record unreadable, starting fresh")
		stats = CycleStats{}
	}
	if stats.StartTime.IsZero() {
		stats.StartTime = time.Now()
	}

	for ran := 0; ; {
		if ctx.Err() != nil {
			return nil
		}

		cycleStart := time.Now()
		acquired := s.acquire(ctx, &stats)
		processed := s.transform(ctx, &stats)

		stats.Cycles++
		stats.LastCycle = time.Now()
		if s.Metrics != nil {
			s.Metrics.Cycles.Inc()
		}
		if err := s.Stats.Save(stats); err != nil {
			log.Error().Err(err).Msg("persisting cycle stats failed")
		}

		log.Info().
			Uint64("cycle", stats.Cycles).
			Int("acquired", acquired).
			Int("processed", processed).
			Int("pending", len(s.pending)).
			Str("units_total", humanize.Comma(int64(stats.UnitsProcessed))).
			Str("cache_hits_total", humanize.Comma(int64(stats.CacheHits))).
			Uint64("errors_total", stats.Errors).
			Dur("took", time.Since(cycleStart)).
			Msg("cycle complete")

		ran++
		if s.Config.MaxCycles > 0 && ran >= s.Config.MaxCycles {
			log.Info().Int("cycles", ran).Msg("max cycles reached")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.Config.CycleDelay.Duration):
		}
	}
}

// acquire pulls up to BatchSize new units per category. A failing category
// is skipped for this cycle; the others still run.
func (s *Scheduler) acquire(ctx context.Context, stats *CycleStats) int {
	total := 0
	for _, category := range s.Config.Categories {
		if ctx.Err() != nil {
			return total
		}

		var units []*engine.WorkUnit
		_, err := s.Policy.Do(ctx, func(ctx context.Context) error {
			pulled, perr := s.Acquirer.Pull(ctx, category, s.Config.BatchSize)
			if perr != nil {
				return perr
			}
			units = pulled
			return nil
		})
		if err != nil {
			log.Warn().Str("category", category).Err(err).Msg("acquisition failed, skipping category")
			stats.Errors++
			if s.Metrics != nil {
				s.Metrics.Errors.Inc()
			}
			continue
		}

		s.pending = append(s.pending, units...)
		total += len(units)
	}
	return total
}

// transform runs the engine over every pending or partial unit. Finished
// units are published and retired; partial units are carried to the next
// cycle.
func (s *Scheduler) transform(ctx context.Context, stats *CycleStats) int {
	processed := 0
	var carry []*engine.WorkUnit
	for i, unit := range s.pending {
		if ctx.Err() != nil {
			carry = append(carry, s.pending[i:]...)
			break
		}

		res := s.Engine.Execute(ctx, unit)
		stats.ChunksComputed += uint64(res.Computed)
		stats.CacheHits += uint64(res.CacheHits)
		stats.Errors += uint64(res.Errors)
		if s.Metrics != nil {
			s.Metrics.ChunksComputed.Add(float64(res.Computed))
			s.Metrics.CacheHits.Add(float64(res.CacheHits))
			s.Metrics.Errors.Add(float64(res.Errors))
		}
		processed++

		if unit.Status != engine.UnitDone {
			log.Warn().
				Str("unit", unit.ID).
				Str("status", string(unit.Status)).
				Int("failed_chunks", res.Failed).
				Msg("unit incomplete, retrying next cycle")
			carry = append(carry, unit)
			continue
		}

		stats.UnitsProcessed++
		if s.Metrics != nil {
			s.Metrics.UnitsProcessed.Inc()
		}
		s.publish(ctx, unit, res.Output)
	}
	s.pending = carry
	return processed
}

func (s *Scheduler) publish(ctx context.Context, unit *engine.WorkUnit, output string) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, unit, output); err != nil {
		log.Warn().Str("unit", unit.ID).Err(err).Msg("publish failed")
	}
}
