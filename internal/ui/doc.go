// Package ui renders terminal output for the airtouch command.
//
// One-shot commands print a Header describing what they act on and a
// Result box once the gateway has answered. The dashboard command runs
// Dashboard, an interactive Bubble Tea model that follows a live session:
//
//	m := ui.NewDashboard(s, "192.168.1.20:9200")
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	stop := ui.Watch(s, p.Send)
//	defer stop()
//	_, err := p.Run()
//
// Logging is expected to be silent or redirected to a file while the
// dashboard owns the terminal.
package ui
