package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// fallbackInterval replaces a non-positive interval from a corrupted
// settings row so the ticker cannot hot-loop.
const fallbackInterval = time.Minute

// scheduler drives periodic analysis cycles for one session.
//
// The interval is re-read through the interval func before every wait, so a
// settings change applies from the next firing without a restart. At most
// one cycle runs at a time: firings that find a cycle in flight are skipped,
// never queued. Manual triggers share the same single-flight lock via
// [scheduler.runNow].
type scheduler struct {
	interval func(ctx context.Context) time.Duration
	run      func(ctx context.Context, trigger string)
	onSkip   func()
	log      *slog.Logger

	// runMu is the single-flight lock. Held for the duration of one cycle.
	runMu sync.Mutex

	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func newScheduler(interval func(ctx context.Context) time.Duration, run func(ctx context.Context, trigger string), onSkip func(), log *slog.Logger) *scheduler {
	if onSkip == nil {
		onSkip = func() {}
	}
	return &scheduler{
		interval: interval,
		run:      run,
		onSkip:   onSkip,
		log:      log,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// start begins the periodic loop in a background goroutine. The goroutine
// runs until [scheduler.stop] is called or ctx is cancelled.
func (s *scheduler) start(ctx context.Context) {
	go s.loop(ctx)
}

// stop halts the loop and waits for it to exit, including any cycle it is
// currently running. Safe to call multiple times.
func (s *scheduler) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.finished
}

// runNow runs one out-of-band cycle synchronously. Returns ErrBusy when a
// cycle is already in flight; the periodic timer is not reset.
func (s *scheduler) runNow(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrBusy
	}
	defer s.runMu.Unlock()
	s.run(ctx, "manual")
	return nil
}

// runExclusive waits for any in-flight cycle and then runs fn holding the
// single-flight lock. Used for the final cycle during teardown.
func (s *scheduler) runExclusive(fn func()) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	fn()
}

func (s *scheduler) loop(ctx context.Context) {
	defer close(s.finished)

	for {
		iv := s.interval(ctx)
		if iv <= 0 {
			iv = fallbackInterval
		}
		timer := time.NewTimer(iv)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
			if !s.runMu.TryLock() {
				s.log.Info("analysis tick skipped, cycle still in flight")
				s.onSkip()
				continue
			}
			s.run(ctx, "interval")
			s.runMu.Unlock()
		}
	}
}
