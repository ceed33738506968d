package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	styleConsoleTitle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#5865F2"))

	styleConsoleField = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6B7280"))
)

// ConsoleChannel prints reminders to a terminal or log stream.
type ConsoleChannel struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewConsoleChannel writes to w. Color is used only when w is a terminal.
func NewConsoleChannel(w io.Writer) *ConsoleChannel {
	if w == nil {
		w = os.Stdout
	}
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ConsoleChannel{w: w, color: color}
}

// Name implements Channel.
func (c *ConsoleChannel) Name() string { return "console" }

// Deliver implements Channel.
func (c *ConsoleChannel) Deliver(_ context.Context, msg Message) error {
	var b strings.Builder

	title := fmt.Sprintf("🔔 %s  %s", msg.Title, msg.Timestamp.Local().Format("15:04"))
	if c.color {
		title = styleConsoleTitle.Render(title)
	}
	b.WriteString(title)
	b.WriteString("\n  ")
	b.WriteString(msg.Body)
	b.WriteString("\n")

	for _, field := range msg.Fields {
		line := fmt.Sprintf("  %s: %s", field.Name, field.Value)
		if c.color {
			line = styleConsoleField.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, b.String())
	return err
}
