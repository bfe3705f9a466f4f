// Package output formats run listings for the terminal.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wesleyorama2/shaperate/record"
)

// ColorScheme defines the colors used for run listing elements.
type ColorScheme struct {
	RunID      *color.Color
	Completed  *color.Color
	Failed     *color.Color
	Aborted    *color.Color
	Unfinished *color.Color
	Tag        *color.Color
	Error      *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		RunID:      color.New(color.FgCyan),
		Completed:  color.New(color.FgGreen, color.Bold),
		Failed:     color.New(color.FgRed, color.Bold),
		Aborted:    color.New(color.FgYellow, color.Bold),
		Unfinished: color.New(color.FgMagenta, color.Bold),
		Tag:        color.New(color.FgBlue),
		Error:      color.New(color.FgRed),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.RunID.DisableColor()
	scheme.Completed.DisableColor()
	scheme.Failed.DisableColor()
	scheme.Aborted.DisableColor()
	scheme.Unfinished.DisableColor()
	scheme.Tag.DisableColor()
	scheme.Error.DisableColor()
	return scheme
}

// Formatter renders run listing lines.
type Formatter struct {
	scheme *ColorScheme
}

// NewFormatter creates a formatter. Colors are disabled when noColor is set
// or when stdout is not a terminal.
func NewFormatter(noColor bool) *Formatter {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		return &Formatter{scheme: NoColorScheme()}
	}
	return &Formatter{scheme: DefaultColorScheme()}
}

// RunLine describes one run for listing. Records without a status and end
// time are listed as unfinished.
type RunLine struct {
	RunID     string
	Status    record.Status
	StartTime time.Time
	Wall      float64
	Tags      []string
}

// FormatRun renders one listing line for a run.
func (f *Formatter) FormatRun(line RunLine) string {
	var buf strings.Builder

	buf.WriteString(f.scheme.RunID.Sprint(line.RunID))
	buf.WriteString(fmt.Sprintf("  %-10s", f.statusColor(line.Status).Sprint(string(line.Status))))

	if !line.StartTime.IsZero() {
		buf.WriteString("  " + line.StartTime.Format(time.RFC3339))
	}
	if line.Wall > 0 {
		buf.WriteString(fmt.Sprintf("  %8.2fs", line.Wall))
	}
	if len(line.Tags) > 0 {
		buf.WriteString("  " + f.scheme.Tag.Sprint(strings.Join(line.Tags, ",")))
	}

	return buf.String()
}

// FormatError renders a per-file error line for listings and checks.
func (f *Formatter) FormatError(path string, err error) string {
	return fmt.Sprintf("%s: %s", path, f.scheme.Error.Sprint(err.Error()))
}

func (f *Formatter) statusColor(status record.Status) *color.Color {
	switch status {
	case record.StatusCompleted:
		return f.scheme.Completed
	case record.StatusFailed:
		return f.scheme.Failed
	case record.StatusAborted:
		return f.scheme.Aborted
	default:
		return f.scheme.Unfinished
	}
}
