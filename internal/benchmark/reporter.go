package benchmark

import (
	"context"
	"fmt"
	"time"

	"completion-bench/internal/types"
)

// DefaultReportInterval is the live view refresh cadence
const DefaultReportInterval = time.Second

// Renderer presents a snapshot. final is true exactly once, for the last call.
type Renderer interface {
	Render(snap types.Snapshot, final bool) error
}

// LiveReporter periodically snapshots the metrics and renders them.
// It never mutates the metrics.
type LiveReporter struct {
	metrics  *Metrics
	renderer Renderer
	interval time.Duration
}

// NewLiveReporter creates a reporter polling every interval
func NewLiveReporter(metrics *Metrics, renderer Renderer, interval time.Duration) *LiveReporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &LiveReporter{
		metrics:  metrics,
		renderer: renderer,
		interval: interval,
	}
}

// Run renders until the metrics are marked complete, then renders one final
// snapshot. Cancelling ctx abandons the loop without the final render.
func (r *LiveReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for !r.metrics.IsComplete() {
		if err := r.renderer.Render(r.metrics.Snapshot(), false); err != nil {
			return fmt.Errorf("failed to render progress: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.metrics.Done():
		case <-ticker.C:
		}
	}

	if err := r.renderer.Render(r.metrics.Snapshot(), true); err != nil {
		return fmt.Errorf("failed to render final snapshot: %w", err)
	}
	return nil
}
