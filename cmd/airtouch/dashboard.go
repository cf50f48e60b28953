package main

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/airtouch/internal/ui"
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive view of every AC and zone",
	Long: `Open a full-screen dashboard that follows the gateway live.

Move between units with the arrow keys, switch the selected unit on or off
with space, and use + and - to change an AC's setpoint or a zone's damper.
Press ? for every key.

Logs would garble the screen: leave --log-level unset or send logs to a
file with logging.file.filename in the settings.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return errors.New("the dashboard needs a terminal; use 'airtouch monitor' or 'airtouch status' instead")
	}
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s, stop, err := openSession(ctx, t)
	if err != nil {
		return err
	}
	defer stop()

	p := tea.NewProgram(ui.NewDashboard(s, t.cfg.Addr()), tea.WithAltScreen(), tea.WithContext(ctx))
	unwatch := ui.Watch(s, p.Send)
	defer unwatch()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
