package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingPruner struct {
	calls atomic.Int64
}

func (p *countingPruner) PruneStale(ctx context.Context, maxAge time.Duration) (int, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	p := &countingPruner{}
	s := NewSweeper(p, time.Minute, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for p.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeper never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop on cancel")
	}
}
