// Package supervisor keeps the cycle daemon alive. It launches the
// scheduler as an isolated child process, watches its exit channel, and
// restarts it with escalating backoff. It retries forever: a crash loop is
// surfaced through counters and logs, never through the supervisor giving
// up on its own.
package supervisor

import (
	"context"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/metrics"
)

// State is the supervisor lifecycle state.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Restarting
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Restarting:
		return "RESTARTING"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// longBackoffThreshold is the consecutive-failure count at which the
// supervisor switches from the short to the long restart delay.
const longBackoffThreshold = 3

// Supervisor restarts the child forever. It never runs two children
// concurrently: a new launch happens only after the previous handle's
// Done channel closed.
type Supervisor struct {
	Launcher      Launcher
	CheckInterval time.Duration
	ShortBackoff  time.Duration
	LongBackoff   time.Duration
	GracePeriod   time.Duration
	Stats         *StatsStore
	Metrics       *metrics.Metrics // optional

	state atomic.Int32
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		log.Info().Stringer("from", old).Stringer("to", st).Msg("supervisor state")
	}
}

// Run supervises until ctx is cancelled, then stops the child
// cooperatively and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	stats, err := s.Stats.Load()
	if err != nil {
		log.Warn().Err(err).Msg("supervisor stats unreadable, starting fresh")
		stats = Stats{}
	}

	for {
		if ctx.Err() != nil {
			s.setState(Stopped)
			return nil
		}

		s.setState(Starting)
		proc := s.Launcher()
		if err := proc.Start(); err != nil {
			log.Error().Err(err).Msg("child failed to start")
			if stopped := s.backoff(ctx, &stats); stopped {
				return nil
			}
			continue
		}
		s.setState(Running)
		log.Info().Msg("child running")

		if crashed := s.watch(ctx, proc, &stats); !crashed {
			s.shutdown(proc)
			s.persist(stats)
			s.setState(Stopped)
			return nil
		}

		log.Warn().Err(proc.ExitErr()).Msg("child exited unexpectedly")
		if stopped := s.backoff(ctx, &stats); stopped {
			return nil
		}
	}
}

// watch waits for the child to exit or the context to cancel. It reports
// true on a crash. The consecutive-failure counter is reset only after the
// child has stayed alive for one full check interval, so a flapping child
// never counts as recovered.
func (s *Supervisor) watch(ctx context.Context, proc Proc, stats *Stats) (crashed bool) {
	ticker := time.NewTicker(s.CheckInterval)
	defer ticker.Stop()

	aliveSince := time.Now()
	recovered := false
	for {
		select {
		case <-ctx.Done():
			return false
		case <-proc.Done():
			return true
		case <-ticker.C:
			if !recovered && time.Since(aliveSince) >= s.CheckInterval && stats.ConsecutiveFailures > 0 {
				log.Info().
					Uint64("previous_failures", stats.ConsecutiveFailures).
					Msg("child stable for a full check interval, failure streak cleared")
				stats.ConsecutiveFailures = 0
				s.persist(*stats)
				recovered = true
			}
		}
	}
}

// backoff records a crash, persists the counters, and waits the
// appropriate delay before the next launch. It reports true if the wait
// was interrupted by cancellation.
func (s *Supervisor) backoff(ctx context.Context, stats *Stats) (stopped bool) {
	s.setState(Restarting)

	stats.Crashes++
	stats.ConsecutiveFailures++
	stats.TotalRestarts++
	stats.LastRestart = time.Now()
	s.persist(*stats)
	if s.Metrics != nil {
		s.Metrics.Crashes.Inc()
		s.Metrics.Restarts.Inc()
	}

	delay := s.ShortBackoff
	if stats.ConsecutiveFailures >= longBackoffThreshold {
		delay = s.LongBackoff
	}
	log.Info().
		Uint64("consecutive_failures", stats.ConsecutiveFailures).
		Uint64("total_restarts", stats.TotalRestarts).
		Dur("backoff", delay).
		Msg("restarting child")

	select {
	case <-ctx.Done():
		s.setState(Stopped)
		return true
	case <-time.After(delay):
		return false
	}
}

// shutdown asks the child to stop, waits a bounded grace period, then
// force-terminates.
func (s *Supervisor) shutdown(proc Proc) {
	s.setState(Stopping)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		log.Warn().Err(err).Msg("signalling child failed")
	}

	select {
	case <-proc.Done():
		log.Info().Msg("child stopped cleanly")
	case <-time.After(s.GracePeriod):
		log.Warn().Dur("grace", s.GracePeriod).Msg("grace period elapsed, killing child")
		if err := proc.Kill(); err != nil {
			log.Error().Err(err).Msg("killing child failed")
		}
		<-proc.Done()
	}
}

func (s *Supervisor) persist(stats Stats) {
	if err := s.Stats.Save(stats); err != nil {
		log.Error().Err(err).Msg("persisting supervisor stats failed")
	}
}
