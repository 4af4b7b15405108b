package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval bounds how often the scheduler reaps and backfills.
// It also caps the ramp-up rate: at most one backfill wave per interval.
const DefaultPollInterval = time.Second

// ErrSchedulerUsed is returned when Run is called a second time
var ErrSchedulerUsed = errors.New("scheduler already ran")

// Scheduler keeps up to a fixed number of request tasks in flight until a
// deadline passes or its context is cancelled. A Scheduler is single-use.
type Scheduler struct {
	metrics      *Metrics
	logger       *zap.Logger
	pollInterval time.Duration
	used         atomic.Bool
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithPollInterval overrides DefaultPollInterval
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLogger sets the operational logger
func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler that records into metrics
func NewScheduler(metrics *Metrics, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		metrics:      metrics,
		logger:       zap.NewNop(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until the run is complete. A zero deadline runs until ctx is
// cancelled. On exit every in-flight task is cancelled and awaited, then the
// metrics are marked complete.
func (s *Scheduler) Run(ctx context.Context, concurrency int, deadline time.Time, issue IssueFunc) error {
	if !s.used.CompareAndSwap(false, true) {
		return ErrSchedulerUsed
	}
	if concurrency < 0 {
		return fmt.Errorf("concurrency level must not be negative, got %d", concurrency)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inflight := make(map[*task]struct{}, concurrency)

	s.logger.Info("scheduler started",
		zap.Int("concurrency", concurrency),
		zap.Time("deadline", deadline),
		zap.Duration("poll_interval", s.pollInterval),
	)

	for {
		for t := range inflight {
			if t.finished() {
				delete(inflight, t)
			}
		}

		for len(inflight) < concurrency && !s.stopped(ctx, deadline) {
			inflight[s.startTask(runCtx, issue)] = struct{}{}
		}

		if s.stopped(ctx, deadline) {
			break
		}

		s.sleep(ctx, deadline)
	}

	s.shutdown(inflight)
	return nil
}

// stopped reports whether the deadline has passed or ctx is done
func (s *Scheduler) stopped(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

// sleep waits one poll interval, waking early at the deadline or on cancellation
func (s *Scheduler) sleep(ctx context.Context, deadline time.Time) {
	wait := s.pollInterval
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *Scheduler) shutdown(inflight map[*task]struct{}) {
	if len(inflight) > 0 {
		s.logger.Info("cancelling in-flight requests", zap.Int("count", len(inflight)))
	}
	for t := range inflight {
		t.cancel()
	}
	for t := range inflight {
		<-t.done
	}

	s.metrics.MarkComplete()
	s.logger.Info("scheduler finished")
}
