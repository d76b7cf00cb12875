package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ActivityPanel keeps a short history of navigation and session events.
type ActivityPanel struct {
	visible bool
	lines   []string
	buffer  int
	now     func() time.Time
}

func NewActivityPanel(visible bool) ActivityPanel {
	return ActivityPanel{
		visible: visible,
		buffer:  50,
		now:     time.Now,
	}
}

func (a *ActivityPanel) Toggle() { a.visible = !a.visible }

func (a *ActivityPanel) Visible() bool { return a.visible }

// AddEvent records an event whether or not the panel is shown.
func (a *ActivityPanel) AddEvent(kind, details string) {
	line := a.now().Format("15:04:05") + " [" + kind + "]"
	if details != "" {
		line += " " + details
	}
	a.lines = append(a.lines, line)
	if len(a.lines) > a.buffer {
		a.lines = a.lines[len(a.lines)-a.buffer:]
	}
}

func (a *ActivityPanel) Lines() []string {
	return a.lines
}

// Render draws the newest lines that fit in height.
func (a *ActivityPanel) Render(width, height int) string {
	if !a.visible {
		return ""
	}

	title := lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true).
		Render("ACTIVITY")

	contentHeight := max(height-4, 1)
	start := max(len(a.lines)-contentHeight, 0)

	maxLen := max(width-4, 10)
	var lines []string
	for _, line := range a.lines[start:] {
		if len(line) > maxLen {
			line = line[:maxLen-3] + "..."
		}
		lines = append(lines, line)
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorYellow).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}
