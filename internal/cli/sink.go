package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/guiyumin/textube/internal/core/pipeline"
)

// plainSink prints one line per job event, for pipes and dumb terminals.
type plainSink struct {
	w       io.Writer
	green   *color.Color
	red     *color.Color
	yellow  *color.Color
	cyan    *color.Color
	percent int
}

func newPlainSink(w io.Writer) *plainSink {
	return &plainSink{
		w:      w,
		green:  color.New(color.FgGreen, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
	}
}

func (s *plainSink) OnProgress(message string, percent int) {
	s.percent = percent
	fmt.Fprintf(s.w, "%s %s\n", s.cyan.Sprintf("[%3d%%]", percent), message)
}

func (s *plainSink) OnFragmentsAggregated(text string) {
	fmt.Fprintf(s.w, "%s transcript ready (%d characters)\n", s.cyan.Sprintf("[%3d%%]", s.percent), len(text))
}

func (s *plainSink) OnError(message string) {
	fmt.Fprintf(s.w, "%s %s\n", s.red.Sprint("✗"), message)
}

func (s *plainSink) OnDone(out pipeline.Outcome) {
	elapsed := formatElapsed(out.Elapsed)
	switch out.Status {
	case pipeline.StatusSucceeded:
		fmt.Fprintf(s.w, "%s done in %s\n", s.green.Sprint("✓"), elapsed)
	case pipeline.StatusCancelled:
		fmt.Fprintf(s.w, "%s cancelled after %s\n", s.yellow.Sprint("!"), elapsed)
	default:
		fmt.Fprintf(s.w, "%s failed after %s\n", s.red.Sprint("✗"), elapsed)
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
