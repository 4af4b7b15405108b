package benchmark

import (
	"math"
	"sort"
	"sync"
	"time"

	"completion-bench/internal/types"
)

// Metrics is the single owned store of run statistics.
// Every exported method is its own critical section.
type Metrics struct {
	mu sync.Mutex

	// Call counters
	activeCalls        int64
	maxConcurrentCalls int64
	totalCalls         int64
	successfulCalls    int64
	unsuccessfulCalls  int64
	rateLimitedCalls   int64

	// Token counters
	totalInputTokens  int64
	totalOutputTokens int64

	// Latency data (in seconds), successful calls only
	avgResponseTime float64
	latencies       []float64

	startTime time.Time
	endTime   time.Time
	complete  bool
	done      chan struct{}

	now func() time.Time
}

// NewMetrics creates a new Metrics collector; the run clock starts now
func NewMetrics() *Metrics {
	return newMetricsWithClock(time.Now)
}

func newMetricsWithClock(now func() time.Time) *Metrics {
	return &Metrics{
		latencies: make([]float64, 0),
		startTime: now(),
		done:      make(chan struct{}),
		now:       now,
	}
}

// RecordCallStart marks a request as in flight. The high-water mark is
// taken from the post-increment value so it never trails ActiveCalls.
func (m *Metrics) RecordCallStart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeCalls++
	if m.activeCalls > m.maxConcurrentCalls {
		m.maxConcurrentCalls = m.activeCalls
	}
}

// RecordCallEnd records a finished request. For a successful outcome the
// latency sample and running mean are updated in the same critical section.
func (m *Metrics) RecordCallEnd(outcome types.RequestOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decrementActive()
	m.totalCalls++
	m.totalInputTokens += int64(outcome.InputTokens)

	if outcome.Success {
		m.recordLatency(outcome.Latency.Seconds())
		m.totalOutputTokens += int64(outcome.OutputTokens)
	} else {
		m.unsuccessfulCalls++
	}
}

// RecordCallAborted releases an in-flight slot for a request cancelled at
// shutdown without counting it as finished.
func (m *Metrics) RecordCallAborted() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decrementActive()
}

// RecordRateLimited counts a throttled request
func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimitedCalls++
}

// recordLatency must be called with mu held
func (m *Metrics) recordLatency(seconds float64) {
	n := float64(m.successfulCalls)
	m.avgResponseTime = (m.avgResponseTime*n + seconds) / (n + 1)
	m.successfulCalls++
	m.latencies = append(m.latencies, seconds)
}

func (m *Metrics) decrementActive() {
	if m.activeCalls > 0 {
		m.activeCalls--
	}
}

// MarkComplete sets the completion flag and freezes the run clock.
// Calls after the first are no-ops.
func (m *Metrics) MarkComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.complete {
		return
	}
	m.complete = true
	m.endTime = m.now()
	close(m.done)
}

// IsComplete reports whether MarkComplete has been called
func (m *Metrics) IsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.complete
}

// Done is closed by MarkComplete
func (m *Metrics) Done() <-chan struct{} {
	return m.done
}

// Snapshot returns a consistent copy of all counters plus derived fields.
// Only the copy happens under the lock; sorting for percentiles does not
// hold up writers.
func (m *Metrics) Snapshot() types.Snapshot {
	snap, sorted := m.capture()

	if minutes := snap.Elapsed.Minutes(); minutes > 0 {
		snap.TokensPerMinute = float64(snap.TotalOutputTokens) / minutes
		snap.RequestsPerMinute = float64(snap.SuccessfulCalls) / minutes
	}

	if len(sorted) > 0 {
		sort.Float64s(sorted)

		snap.MinResponseTime = sorted[0]
		snap.MaxResponseTime = sorted[len(sorted)-1]
		snap.P50ResponseTime = percentile(sorted, 50)
		snap.P90ResponseTime = percentile(sorted, 90)
		snap.P99ResponseTime = percentile(sorted, 99)
	}

	return snap
}

// capture copies the raw counters and latency samples in one critical section
func (m *Metrics) capture() (types.Snapshot, []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := types.Snapshot{
		ActiveCalls:        m.activeCalls,
		MaxConcurrentCalls: m.maxConcurrentCalls,
		TotalCalls:         m.totalCalls,
		SuccessfulCalls:    m.successfulCalls,
		UnsuccessfulCalls:  m.unsuccessfulCalls,
		RateLimitedCalls:   m.rateLimitedCalls,
		TotalInputTokens:   m.totalInputTokens,
		TotalOutputTokens:  m.totalOutputTokens,
		AvgResponseTime:    m.avgResponseTime,
		SampleCount:        len(m.latencies),
		StartTime:          m.startTime,
		Complete:           m.complete,
	}

	if m.complete {
		snap.Elapsed = m.endTime.Sub(m.startTime)
	} else {
		snap.Elapsed = m.now().Sub(m.startTime)
	}

	samples := make([]float64, len(m.latencies))
	copy(samples, m.latencies)
	return snap, samples
}

// Lookup returns a single metric by name. Unknown names yield a
// *types.MetricsSchemaError.
func (m *Metrics) Lookup(name string) (float64, error) {
	id, err := types.ParseMetricID(name)
	if err != nil {
		return 0, err
	}
	snap := m.Snapshot()
	return snap.Value(id)
}

// LatencySamples returns a copy of the recorded latencies in seconds
func (m *Metrics) LatencySamples() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	samples := make([]float64, len(m.latencies))
	copy(samples, m.latencies)
	return samples
}

// percentile calculates the percentile of a sorted slice
func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}

	index := (p / 100.0) * float64(len(sortedValues)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sortedValues[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return sortedValues[lower]*(1-weight) + sortedValues[upper]*weight
}
