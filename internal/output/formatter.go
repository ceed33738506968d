// Package output renders FinTrack snapshots for the terminal or as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/manav03panchal/fintrack/internal/errors"
)

// Format represents the output format type.
type Format string

const (
	FormatCLI   Format = "cli"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// ColorMode represents the color output mode.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseFormat validates a --format value. Empty means FormatCLI.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatCLI, nil
	case FormatCLI, FormatJSON, FormatPlain:
		return f, nil
	}
	return "", errors.NewUserErrorWithField("format", s,
		fmt.Sprintf("unknown output format %q", s), "Use one of: cli, json, plain")
}

// ParseColorMode validates a --color value. Empty means ColorAuto.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	}
	return "", errors.NewUserErrorWithField("color", s,
		fmt.Sprintf("unknown color mode %q", s), "Use one of: auto, always, never")
}

// DefaultWidth is used when the writer is not a terminal.
const DefaultWidth = 80

// Formatter handles output formatting.
type Formatter struct {
	Writer    io.Writer
	Format    Format
	ColorMode ColorMode
}

// NewFormatter creates a new formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		Writer:    os.Stdout,
		Format:    FormatCLI,
		ColorMode: ColorAuto,
	}
}

// IsColorEnabled returns true if color output is enabled.
func (f *Formatter) IsColorEnabled() bool {
	if f.Format == FormatPlain {
		return false
	}
	switch f.ColorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		// Auto-detect based on terminal
		if w, ok := f.Writer.(*os.File); ok {
			return isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
		}
		return false
	}
}

// IsJSON reports whether output should be machine readable.
func (f *Formatter) IsJSON() bool {
	return f.Format == FormatJSON
}

// Width returns the terminal width, or DefaultWidth when unknown.
func (f *Formatter) Width() int {
	if w, ok := f.Writer.(*os.File); ok && term.IsTerminal(int(w.Fd())) {
		if width, _, err := term.GetSize(int(w.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return DefaultWidth
}

// Print outputs formatted text.
func (f *Formatter) Print(a ...interface{}) {
	fmt.Fprint(f.Writer, a...)
}

// Println outputs formatted text with newline.
func (f *Formatter) Println(a ...interface{}) {
	fmt.Fprintln(f.Writer, a...)
}

// Printf outputs formatted text.
func (f *Formatter) Printf(format string, a ...interface{}) {
	fmt.Fprintf(f.Writer, format, a...)
}

// JSON outputs data as JSON.
func (f *Formatter) JSON(v interface{}) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours >= 24 {
		days := hours / 24
		hours %= 24
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}

// FormatFireTime formats a reminder's next fire time relative to now's
// calendar day: "today 20:00", "tomorrow 08:15", or a full date beyond that.
func FormatFireTime(at, now time.Time) string {
	at = at.In(now.Location())
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, now.Location()); {
	case day.Equal(today):
		return "today " + at.Format("15:04")
	case day.Equal(today.AddDate(0, 0, 1)):
		return "tomorrow " + at.Format("15:04")
	}
	return at.Format("2006-01-02 15:04")
}
