package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"completion-bench/internal/config"
	"completion-bench/internal/types"
)

const labelWidth = 24

// ConsoleRenderer draws the live metrics table. On a terminal the table is
// redrawn in place, otherwise a progress line is printed per refresh and the
// full table only once at the end.
type ConsoleRenderer struct {
	out     io.Writer
	columns []types.MetricID
	live    bool
	lines   int

	header *color.Color
	label  *color.Color
	good   *color.Color
	bad    *color.Color
}

// NewConsoleRenderer validates the requested columns. An empty list shows
// every metric. An unknown name fails with a MetricsSchemaError.
func NewConsoleRenderer(out io.Writer, columns []string, live bool) (*ConsoleRenderer, error) {
	ids := types.AllMetrics
	if len(columns) > 0 {
		ids = make([]types.MetricID, 0, len(columns))
		for _, name := range columns {
			id, err := types.ParseMetricID(strings.TrimSpace(name))
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}

	c := &ConsoleRenderer{
		out:     out,
		columns: ids,
		live:    live,
		header:  color.New(color.FgMagenta, color.Bold),
		label:   color.New(color.Faint),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
	}
	if !live {
		c.header.DisableColor()
		c.label.DisableColor()
		c.good.DisableColor()
		c.bad.DisableColor()
	}
	return c, nil
}

// Render implements benchmark.Renderer
func (c *ConsoleRenderer) Render(snap types.Snapshot, final bool) error {
	if !c.live && !final {
		_, err := fmt.Fprintln(c.out, c.progressLine(snap))
		return err
	}

	frame, err := c.table(snap)
	if err != nil {
		return err
	}

	var sb strings.Builder
	if c.live && c.lines > 0 {
		// move to the top of the previous frame and clear it
		fmt.Fprintf(&sb, "\033[%dA\033[J", c.lines)
	}
	sb.WriteString(frame)
	if final {
		sb.WriteString(c.summaryLine(snap))
	}

	c.lines = strings.Count(frame, "\n")
	_, err = io.WriteString(c.out, sb.String())
	return err
}

func (c *ConsoleRenderer) table(snap types.Snapshot) (string, error) {
	var sb strings.Builder
	sb.WriteString(c.header.Sprintf("%-*s %s", labelWidth, "Metric", "Value"))
	sb.WriteString("\n")

	for _, id := range c.columns {
		v, err := snap.Value(id)
		if err != nil {
			return "", err
		}
		sb.WriteString(c.label.Sprintf("%-*s", labelWidth, Label(id)))
		sb.WriteString(" ")
		sb.WriteString(FormatValue(id, v))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (c *ConsoleRenderer) progressLine(snap types.Snapshot) string {
	return fmt.Sprintf("[%s] calls: %d | ok: %d | failed: %d | rate limited: %d | active: %d | avg: %s | tpm: %.2f",
		FormatValue(types.MetricElapsedSeconds, snap.Elapsed.Seconds()),
		snap.TotalCalls,
		snap.SuccessfulCalls,
		snap.UnsuccessfulCalls,
		snap.RateLimitedCalls,
		snap.ActiveCalls,
		FormatValue(types.MetricAvgResponseTime, snap.AvgResponseTime),
		snap.TokensPerMinute,
	)
}

func (c *ConsoleRenderer) summaryLine(snap types.Snapshot) string {
	rate := snap.SuccessRate()
	paint := c.good
	if snap.UnsuccessfulCalls > 0 {
		paint = c.bad
	}
	return paint.Sprintf("\nSuccess rate: %.2f%% (%d of %d calls)\n", rate, snap.SuccessfulCalls, snap.TotalCalls)
}

// PrintHeader prints the run configuration
func (c *ConsoleRenderer) PrintHeader(cfg *config.Config) {
	duration := cfg.Test.Duration
	if duration == "" {
		duration = "until interrupted"
	}
	maxTokens := "endpoint default"
	if cfg.Test.MaxTokens > 0 {
		maxTokens = fmt.Sprintf("%d", cfg.Test.MaxTokens)
	}

	fmt.Fprintln(c.out, strings.Repeat("=", 80))
	fmt.Fprintln(c.out, c.header.Sprint("LLM Completion Load Test"))
	fmt.Fprintln(c.out, strings.Repeat("=", 80))
	fmt.Fprintf(c.out, "Endpoint:      %s (%s)\n", cfg.Endpoint.URL, cfg.Endpoint.ClientType)
	fmt.Fprintf(c.out, "Model:         %s\n", cfg.Model.ID)
	fmt.Fprintf(c.out, "Concurrency:   %d\n", cfg.Test.ConcurrencyLevel)
	fmt.Fprintf(c.out, "Duration:      %s\n", duration)
	fmt.Fprintf(c.out, "Prompt Tokens: %d (%s)\n", cfg.Test.PromptTokens, cfg.Model.Encoding)
	fmt.Fprintf(c.out, "Max Tokens:    %s\n", maxTokens)
	fmt.Fprintln(c.out, strings.Repeat("=", 80))
	fmt.Fprintln(c.out)
}

// PrintFileSaved prints where an output file was written
func (c *ConsoleRenderer) PrintFileSaved(kind, filename string) {
	fmt.Fprintf(c.out, "%s saved to: %s\n", kind, filename)
}

// PrintError prints an error message
func (c *ConsoleRenderer) PrintError(err error) {
	fmt.Fprintln(c.out, c.bad.Sprintf("[ERROR] %v", err))
}
