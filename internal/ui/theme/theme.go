// Package theme styles attune's terminal output.
package theme

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(14)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// Decisions
var (
	Fire = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)

	Hold = lipgloss.NewStyle().
		Foreground(TextDim)

	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Card frames a block of output.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(0, 1)

// Field renders an aligned "label value" line.
func Field(label string, value any) string {
	return Label.Render(label) + Body.Render(fmt.Sprint(value))
}

// Separator renders a horizontal rule of width cells.
func Separator(width int) string {
	return Rule.Render(strings.Repeat("─", width))
}

// Bar renders a horizontal bar filled to p in [0,1], followed by the
// percentage.
func Bar(p float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := min(max(int(float64(width)*p), 0), width)

	fill := lipgloss.NewStyle().Background(Secondary).Render(strings.Repeat(" ", filled))
	empty := lipgloss.NewStyle().Background(Border).Render(strings.Repeat(" ", width-filled))
	pct := lipgloss.NewStyle().Foreground(TextDim).Render(fmt.Sprintf("  %3d%%", int(p*100+0.5)))
	return fill + empty + pct
}

// Decision styles a decision reason by whether it fired.
func Decision(fire bool, reason string) string {
	if fire {
		return Fire.Render("intervene (" + reason + ")")
	}
	return Hold.Render("hold (" + reason + ")")
}
