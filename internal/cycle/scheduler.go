package cycle

import (
	"context"
	"sync"
	"time"

	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
)

// Scheduler triggers polling cycles on a fixed interval. The first cycle
// runs immediately on Start so a fresh deploy does not sit idle for hours.
type Scheduler struct {
	runner   *Runner
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a cycle scheduler.
func NewScheduler(runner *Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctxlog.FromContext(ctx).Info("cycle scheduler started", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop waits for the loop, and any in-flight cycle, to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// RunCycle handles its own errors; skipped and failed cycles are
	// logged and counted there.
	_, _ = s.runner.RunCycle(ctx)
}
