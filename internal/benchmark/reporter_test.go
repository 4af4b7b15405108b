package benchmark

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"completion-bench/internal/types"
)

type recordingRenderer struct {
	mu     sync.Mutex
	frames []types.Snapshot
	finals []bool
	err    error
}

func (r *recordingRenderer) Render(snap types.Snapshot, final bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, snap)
	r.finals = append(r.finals, final)
	return r.err
}

func TestLiveReporter_RendersUntilComplete(t *testing.T) {
	metrics := NewMetrics()
	renderer := &recordingRenderer{}
	reporter := NewLiveReporter(metrics, renderer, 10*time.Millisecond)

	go func() {
		time.Sleep(80 * time.Millisecond)
		metrics.RecordCallStart()
		metrics.RecordCallEnd(types.RequestOutcome{Success: true, Latency: time.Millisecond})
		metrics.MarkComplete()
	}()

	require.NoError(t, reporter.Run(context.Background()))

	renderer.mu.Lock()
	defer renderer.mu.Unlock()

	require.GreaterOrEqual(t, len(renderer.frames), 3)

	finals := 0
	for _, f := range renderer.finals {
		if f {
			finals++
		}
	}
	assert.Equal(t, 1, finals, "exactly one final render")
	assert.True(t, renderer.finals[len(renderer.finals)-1])

	last := renderer.frames[len(renderer.frames)-1]
	assert.True(t, last.Complete)
	assert.Equal(t, int64(1), last.SuccessfulCalls)
}

func TestLiveReporter_AlreadyComplete(t *testing.T) {
	metrics := NewMetrics()
	metrics.MarkComplete()

	renderer := &recordingRenderer{}
	require.NoError(t, NewLiveReporter(metrics, renderer, time.Hour).Run(context.Background()))

	assert.Equal(t, []bool{true}, renderer.finals)
}

func TestLiveReporter_CompletionWakesSleep(t *testing.T) {
	metrics := NewMetrics()
	renderer := &recordingRenderer{}
	reporter := NewLiveReporter(metrics, renderer, time.Hour)

	go func() {
		time.Sleep(20 * time.Millisecond)
		metrics.MarkComplete()
	}()

	done := make(chan error, 1)
	go func() { done <- reporter.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reporter kept sleeping after completion")
	}
	assert.Equal(t, []bool{false, true}, renderer.finals)
}

func TestLiveReporter_RenderError(t *testing.T) {
	metrics := NewMetrics()
	renderer := &recordingRenderer{err: errors.New("closed pipe")}

	err := NewLiveReporter(metrics, renderer, time.Millisecond).Run(context.Background())
	assert.ErrorContains(t, err, "closed pipe")
}

func TestLiveReporter_ContextCancelled(t *testing.T) {
	metrics := NewMetrics()
	renderer := &recordingRenderer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLiveReporter(metrics, renderer, time.Hour).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []bool{false}, renderer.finals)
}
