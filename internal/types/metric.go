package types

import (
	"errors"
	"fmt"
)

// ErrMetricNotFound is matched by every MetricsSchemaError
var ErrMetricNotFound = errors.New("metric not found")

// MetricsSchemaError reports a lookup of an unknown metric identifier.
// It indicates a programmer or configuration mistake and should abort startup.
type MetricsSchemaError struct {
	Name string
}

func (e *MetricsSchemaError) Error() string {
	return fmt.Sprintf("metric %q does not exist", e.Name)
}

func (e *MetricsSchemaError) Unwrap() error {
	return ErrMetricNotFound
}

// MetricID names one field of a Snapshot
type MetricID string

const (
	MetricActiveCalls        MetricID = "active_calls"
	MetricMaxConcurrentCalls MetricID = "max_concurrent_calls"
	MetricTotalCalls         MetricID = "total_calls"
	MetricSuccessfulCalls    MetricID = "successful_calls"
	MetricUnsuccessfulCalls  MetricID = "unsuccessful_calls"
	MetricRateLimitedCalls   MetricID = "rate_limited_calls"
	MetricTotalInputTokens   MetricID = "total_input_tokens"
	MetricTotalOutputTokens  MetricID = "total_output_tokens"
	MetricAvgResponseTime    MetricID = "avg_response_time"
	MetricP50ResponseTime    MetricID = "p50_response_time"
	MetricP90ResponseTime    MetricID = "p90_response_time"
	MetricP99ResponseTime    MetricID = "p99_response_time"
	MetricTokensPerMinute    MetricID = "tokens_per_minute"
	MetricRequestsPerMinute  MetricID = "requests_per_minute"
	MetricElapsedSeconds     MetricID = "elapsed_seconds"
)

// AllMetrics lists every known metric in display order
var AllMetrics = []MetricID{
	MetricSuccessfulCalls,
	MetricUnsuccessfulCalls,
	MetricTotalCalls,
	MetricActiveCalls,
	MetricMaxConcurrentCalls,
	MetricRateLimitedCalls,
	MetricTotalInputTokens,
	MetricTotalOutputTokens,
	MetricAvgResponseTime,
	MetricP50ResponseTime,
	MetricP90ResponseTime,
	MetricP99ResponseTime,
	MetricTokensPerMinute,
	MetricRequestsPerMinute,
	MetricElapsedSeconds,
}

// IsInteger reports whether the metric is a whole-number counter
func (id MetricID) IsInteger() bool {
	switch id {
	case MetricActiveCalls, MetricMaxConcurrentCalls, MetricTotalCalls, MetricSuccessfulCalls,
		MetricUnsuccessfulCalls, MetricRateLimitedCalls, MetricTotalInputTokens, MetricTotalOutputTokens:
		return true
	}
	return false
}

// ParseMetricID validates a metric name
func ParseMetricID(name string) (MetricID, error) {
	for _, id := range AllMetrics {
		if string(id) == name {
			return id, nil
		}
	}
	return "", &MetricsSchemaError{Name: name}
}

// Value returns the named field of the snapshot
func (s Snapshot) Value(id MetricID) (float64, error) {
	switch id {
	case MetricActiveCalls:
		return float64(s.ActiveCalls), nil
	case MetricMaxConcurrentCalls:
		return float64(s.MaxConcurrentCalls), nil
	case MetricTotalCalls:
		return float64(s.TotalCalls), nil
	case MetricSuccessfulCalls:
		return float64(s.SuccessfulCalls), nil
	case MetricUnsuccessfulCalls:
		return float64(s.UnsuccessfulCalls), nil
	case MetricRateLimitedCalls:
		return float64(s.RateLimitedCalls), nil
	case MetricTotalInputTokens:
		return float64(s.TotalInputTokens), nil
	case MetricTotalOutputTokens:
		return float64(s.TotalOutputTokens), nil
	case MetricAvgResponseTime:
		return s.AvgResponseTime, nil
	case MetricP50ResponseTime:
		return s.P50ResponseTime, nil
	case MetricP90ResponseTime:
		return s.P90ResponseTime, nil
	case MetricP99ResponseTime:
		return s.P99ResponseTime, nil
	case MetricTokensPerMinute:
		return s.TokensPerMinute, nil
	case MetricRequestsPerMinute:
		return s.RequestsPerMinute, nil
	case MetricElapsedSeconds:
		return s.Elapsed.Seconds(), nil
	default:
		return 0, &MetricsSchemaError{Name: string(id)}
	}
}
