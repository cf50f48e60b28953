package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#2E9CCA") // Blue - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - running units, success
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, faults
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings, turbo
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info, off units
	TextColor    = lipgloss.Color("#FFFFFF")
	HeatColor    = lipgloss.Color("#F25F5C")
	CoolColor    = lipgloss.Color("#70C1B3")
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
	DamperBarWidth   = 20
)

var (
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	HeaderCommandStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2).
				Width(14)

	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(15)

	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	TroubleshootingTitleStyle = lipgloss.NewStyle().
					Foreground(MutedColor).
					Bold(true)

	TroubleshootingItemStyle = lipgloss.NewStyle().
					Foreground(MutedColor)

	// Dashboard
	SectionTitleStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true).
				MarginTop(1)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(lipgloss.Color("#3C3C3C")).
				Bold(true)

	RowStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	OffStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	OnStyle = lipgloss.NewStyle().
		Foreground(SuccessColor)

	TurboStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	StatusLineStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	OnMarker      = "●"
	OffMarker     = "○"
	CursorMarker  = "▸"
)

// GetTerminalWidth returns the current terminal width, clamped to the
// supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ModeStyle colors an AC mode name.
func ModeStyle(mode string) lipgloss.Style {
	switch {
	case strings.Contains(mode, "heat"):
		return lipgloss.NewStyle().Foreground(HeatColor)
	case strings.Contains(mode, "cool"):
		return lipgloss.NewStyle().Foreground(CoolColor)
	default:
		return lipgloss.NewStyle().Foreground(TextColor)
	}
}

// DamperBar draws percent as a bar of DamperBarWidth cells.
func DamperBar(percent int) string {
	percent = max(0, min(100, percent))
	filled := percent * DamperBarWidth / 100
	return OnStyle.Render(strings.Repeat("█", filled)) +
		OffStyle.Render(strings.Repeat("░", DamperBarWidth-filled))
}
