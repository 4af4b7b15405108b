package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"completion-bench/internal/config"
	"completion-bench/internal/types"
)

// histogram bounds in microseconds: 1µs to 1h, 3 significant figures
const (
	histogramMin     = 1
	histogramMax     = int64(time.Hour / time.Microsecond)
	histogramSigFigs = 3
)

var distributionQuantiles = []float64{50, 75, 90, 95, 99, 99.9}

// MarkdownReporter generates markdown reports
type MarkdownReporter struct {
	config *config.Config
}

// NewMarkdownReporter creates a new markdown reporter
func NewMarkdownReporter(cfg *config.Config) *MarkdownReporter {
	return &MarkdownReporter{
		config: cfg,
	}
}

// Generate generates the full markdown report. samples are the successful
// call latencies in seconds.
func (m *MarkdownReporter) Generate(snap types.Snapshot, samples []float64, generated time.Time) string {
	var sb strings.Builder

	sb.WriteString("# LLM Completion Load Test Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generated.Format("2006-01-02 15:04:05")))

	m.writeConfiguration(&sb)
	m.writeSummary(&sb, snap)
	m.writeLatency(&sb, snap)
	m.writeDistribution(&sb, samples)
	m.writeRateLimiting(&sb, snap)

	return sb.String()
}

// writeConfiguration writes the test configuration section
func (m *MarkdownReporter) writeConfiguration(sb *strings.Builder) {
	duration := m.config.Test.Duration
	if duration == "" {
		duration = "until interrupted"
	}

	sb.WriteString("## Test Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Endpoint | %s |\n", m.config.Endpoint.URL))
	sb.WriteString(fmt.Sprintf("| Client Type | %s |\n", m.config.Endpoint.ClientType))
	sb.WriteString(fmt.Sprintf("| Model | %s |\n", m.config.Model.ID))
	sb.WriteString(fmt.Sprintf("| Tokenizer | %s |\n", m.config.Model.Encoding))
	sb.WriteString(fmt.Sprintf("| Concurrency Level | %d |\n", m.config.Test.ConcurrencyLevel))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", duration))
	sb.WriteString(fmt.Sprintf("| Prompt Tokens | %d |\n", m.config.Test.PromptTokens))
	sb.WriteString(fmt.Sprintf("| Max Tokens | %d |\n\n", m.config.Test.MaxTokens))
}

// writeSummary writes the call and token counters
func (m *MarkdownReporter) writeSummary(sb *strings.Builder, snap types.Snapshot) {
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Calls | %d |\n", snap.TotalCalls))
	sb.WriteString(fmt.Sprintf("| Successful Calls | %d (%.2f%%) |\n", snap.SuccessfulCalls, snap.SuccessRate()))
	sb.WriteString(fmt.Sprintf("| Unsuccessful Calls | %d |\n", snap.UnsuccessfulCalls))
	sb.WriteString(fmt.Sprintf("| Max Concurrent Calls | %d |\n", snap.MaxConcurrentCalls))
	sb.WriteString(fmt.Sprintf("| Total Input Tokens | %d |\n", snap.TotalInputTokens))
	sb.WriteString(fmt.Sprintf("| Total Output Tokens | %d |\n", snap.TotalOutputTokens))
	sb.WriteString(fmt.Sprintf("| Tokens per Minute | %.2f |\n", snap.TokensPerMinute))
	sb.WriteString(fmt.Sprintf("| Requests per Minute | %.2f |\n", snap.RequestsPerMinute))
	sb.WriteString(fmt.Sprintf("| Elapsed | %s |\n\n", FormatValue(types.MetricElapsedSeconds, snap.Elapsed.Seconds())))
}

// writeLatency writes the aggregator's latency statistics
func (m *MarkdownReporter) writeLatency(sb *strings.Builder, snap types.Snapshot) {
	sb.WriteString("## Latency Analysis\n\n")

	if snap.SampleCount == 0 {
		sb.WriteString("No successful calls were recorded.\n\n")
		return
	}

	sb.WriteString("| Min (s) | Avg (s) | Max (s) | P50 (s) | P90 (s) | P99 (s) |\n")
	sb.WriteString("|---------|---------|---------|---------|---------|---------|\n")
	sb.WriteString(fmt.Sprintf("| %.3f | %.3f | %.3f | %.3f | %.3f | %.3f |\n\n",
		snap.MinResponseTime,
		snap.AvgResponseTime,
		snap.MaxResponseTime,
		snap.P50ResponseTime,
		snap.P90ResponseTime,
		snap.P99ResponseTime,
	))
}

// writeDistribution writes HDR histogram quantiles of the latency samples
func (m *MarkdownReporter) writeDistribution(sb *strings.Builder, samples []float64) {
	if len(samples) == 0 {
		return
	}

	hist := hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	for _, s := range samples {
		us := int64(s * float64(time.Second/time.Microsecond))
		if us < histogramMin {
			us = histogramMin
		}
		if us > histogramMax {
			us = histogramMax
		}
		_ = hist.RecordValue(us)
	}

	sb.WriteString("### Latency Distribution\n\n")
	sb.WriteString("| Quantile | Latency (ms) |\n")
	sb.WriteString("|----------|--------------|\n")
	for _, q := range distributionQuantiles {
		sb.WriteString(fmt.Sprintf("| p%g | %.2f |\n", q, float64(hist.ValueAtQuantile(q))/1000))
	}
	sb.WriteString(fmt.Sprintf("| max | %.2f |\n", float64(hist.Max())/1000))
	sb.WriteString(fmt.Sprintf("\nMean %.2f ms, standard deviation %.2f ms over %d samples.\n\n",
		hist.Mean()/1000, hist.StdDev()/1000, hist.TotalCount()))
}

// writeRateLimiting writes the rate limiting section
func (m *MarkdownReporter) writeRateLimiting(sb *strings.Builder, snap types.Snapshot) {
	sb.WriteString("## Rate Limiting\n\n")

	if snap.RateLimitedCalls == 0 {
		sb.WriteString("No calls were rate limited.\n\n")
		return
	}

	share := 0.0
	if snap.TotalCalls > 0 {
		share = float64(snap.RateLimitedCalls) / float64(snap.TotalCalls) * 100
	}
	sb.WriteString(fmt.Sprintf("%d calls (%.2f%% of all calls) were rejected with HTTP 429.\n\n", snap.RateLimitedCalls, share))
}

// SaveToFile saves the report to a file
func (m *MarkdownReporter) SaveToFile(content string, filename string) error {
	return os.WriteFile(filename, []byte(content), 0644)
}
