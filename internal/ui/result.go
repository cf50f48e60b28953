package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/session"
)

// Result is the box printed when a command finishes.
type Result struct {
	Failed          bool
	Title           string
	Details         []Field
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult returns a success box.
func NewSuccessResult(title string, details ...Field) *Result {
	return &Result{Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult returns a failure box. Troubleshooting tips are derived
// from err when it carries them.
func NewFailureResult(title string, err error) *Result {
	return &Result{
		Failed:          true,
		Title:           title,
		Error:           err,
		Troubleshooting: Troubleshoot(err),
		Width:           GetTerminalWidth(),
	}
}

// SetWidth overrides the terminal width.
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail line.
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Field{Key: key, Value: value})
	return r
}

// Render returns the styled box.
func (r *Result) Render() string {
	width := max(r.Width, MinTerminalWidth)

	lines := []string{""}
	color := SuccessColor
	if r.Failed {
		color = ErrorColor
		lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title)), "")
		if r.Error != nil {
			lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
		}
	} else {
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title)), "")
	}

	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Failed && len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshooting(width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) String() string {
	return r.Render()
}

// Troubleshoot returns tips for the errors a session can return.
func Troubleshoot(err error) []string {
	var (
		connErr  *session.ConnectError
		validErr *protocol.ValidationError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &connErr):
		return []string{connErr.Hint()}
	case errors.As(err, &validErr):
		return []string{"Check the unit's supported modes, fan speeds and setpoint range with 'airtouch monitor'"}
	case errors.Is(err, session.ErrUnknownUnit):
		return []string{"List the units the gateway reports with 'airtouch monitor'"}
	case errors.Is(err, session.ErrNotConnected):
		return []string{"The gateway connection dropped; run the command again"}
	default:
		return nil
	}
}
