package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"completion-bench/internal/types"
)

var titleCaser = cases.Title(language.English)

// Label returns the display name of a metric, e.g. "P99 Response Time"
func Label(id types.MetricID) string {
	return titleCaser.String(strings.ReplaceAll(string(id), "_", " "))
}

// FormatValue renders a metric value for display
func FormatValue(id types.MetricID, v float64) string {
	switch {
	case id.IsInteger():
		return fmt.Sprintf("%d", int64(v))
	case id == types.MetricElapsedSeconds:
		return (time.Duration(v * float64(time.Second))).Round(time.Second).String()
	case strings.HasSuffix(string(id), "_response_time"):
		return fmt.Sprintf("%.3fs", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
