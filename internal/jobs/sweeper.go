package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the slice of the call tracker the sweeper needs.
type Pruner interface {
	PruneStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Sweeper periodically drops call sessions that were never accepted, so a
// crashed browser or a dropped webhook does not leave a ringing entry behind
// forever.
type Sweeper struct {
	tracker  Pruner
	maxAge   time.Duration
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(tracker Pruner, maxAge, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{tracker: tracker, maxAge: maxAge, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. Call it from its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("call session sweeper started", "interval", s.interval, "max_age", s.maxAge)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("call session sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.tracker.PruneStale(ctx, s.maxAge)
			if err != nil {
				s.log.Error("stale session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("pruned stale call sessions", "count", n)
			}
		}
	}
}
