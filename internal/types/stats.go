package types

import (
	"net/http"
	"time"
)

// RequestOutcome is the transient result of a single request task
type RequestOutcome struct {
	Success bool
	Latency time.Duration

	// Token counts
	InputTokens  int
	OutputTokens int

	// StatusCode is the endpoint status on failure, 0 when unknown
	StatusCode int
}

// RateLimited reports whether the failure is attributable to endpoint throttling
func (o RequestOutcome) RateLimited() bool {
	return !o.Success && o.StatusCode == http.StatusTooManyRequests
}

// Snapshot is an immutable, self-consistent copy of the run statistics
type Snapshot struct {
	// Call counters
	ActiveCalls        int64
	MaxConcurrentCalls int64
	TotalCalls         int64
	SuccessfulCalls    int64
	UnsuccessfulCalls  int64
	RateLimitedCalls   int64

	// Token counters
	TotalInputTokens  int64
	TotalOutputTokens int64

	// Latency stats (in seconds, successful calls only)
	AvgResponseTime float64
	MinResponseTime float64
	MaxResponseTime float64
	P50ResponseTime float64
	P90ResponseTime float64
	P99ResponseTime float64
	SampleCount     int

	// Throughput
	TokensPerMinute   float64
	RequestsPerMinute float64

	StartTime time.Time
	Elapsed   time.Duration
	Complete  bool
}

// SuccessRate returns the percentage of finished calls that succeeded
func (s Snapshot) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessfulCalls) / float64(s.TotalCalls) * 100.0
}
