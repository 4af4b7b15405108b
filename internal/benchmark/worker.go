package benchmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"completion-bench/internal/types"
)

// IssueFunc performs one request against the endpoint.
// A returned error marks the outcome unsuccessful.
type IssueFunc func(ctx context.Context) (types.RequestOutcome, error)

// statusCoder is implemented by endpoint errors that carry a status code
type statusCoder interface {
	StatusCode() int
}

// task is the handle for one in-flight request
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// finished reports whether the task has terminated without blocking
func (t *task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// startTask launches a request task. Failures and panics raised by issue are
// converted into metrics updates here and never reach the scheduler loop.
func (s *Scheduler) startTask(ctx context.Context, issue IssueFunc) *task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.metrics.RecordCallStart()

	go func() {
		defer close(t.done)
		defer cancel()

		start := time.Now()
		outcome, err := invoke(taskCtx, issue)
		if outcome.Latency <= 0 {
			outcome.Latency = time.Since(start)
		}

		if err != nil && taskCtx.Err() != nil && isCancellation(err) {
			s.logger.Debug("request cancelled at shutdown", zap.Error(err))
			s.metrics.RecordCallAborted()
			return
		}

		outcome.Success = err == nil
		if err != nil {
			if code := statusCode(err); code != 0 {
				outcome.StatusCode = code
			}
			s.logger.Debug("request failed", zap.Int("status_code", outcome.StatusCode), zap.Error(err))
		}

		if outcome.RateLimited() {
			s.metrics.RecordRateLimited()
		}
		s.metrics.RecordCallEnd(outcome)
	}()

	return t
}

// invoke calls issue, turning a panic into an error
func invoke(ctx context.Context, issue IssueFunc) (outcome types.RequestOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request panicked: %v", r)
		}
	}()
	return issue(ctx)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func statusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
