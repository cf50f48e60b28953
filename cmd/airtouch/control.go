package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/session"
	"github.com/muurk/airtouch/internal/ui"
)

// confirmTimeout bounds the wait for the gateway to report a change.
const confirmTimeout = 5 * time.Second

var outputFormat string

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	acSetCmd.Flags().String("power", "", "Power (on, off)")
	acSetCmd.Flags().String("mode", "", "Mode (auto, heat, dry, fan, cool)")
	acSetCmd.Flags().String("fan", "", "Fan speed (auto, quiet, low, medium, high, powerful, turbo)")
	acSetCmd.Flags().Float64("setpoint", 0, "Target temperature in °C")
	acCmd.AddCommand(acSetCmd)

	groupSetCmd.Flags().String("power", "", "Power (on, off)")
	groupSetCmd.Flags().Int("damper", 0, "Damper opening in percent")
	groupCmd.AddCommand(groupSetCmd)

	rootCmd.AddCommand(statusCmd, acCmd, groupCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every AC and zone",
	Example: `  # Status of the default saved gateway
  airtouch status

  # JSON for scripting
  airtouch status --host 192.168.1.20 --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	// Names and abilities follow the first status.
	waitForNames(ctx, s)

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Gateway string               `json:"gateway"`
			ACs     []session.ACState    `json:"acs"`
			Groups  []session.GroupState `json:"groups"`
		}{t.cfg.Addr(), s.ACs(), s.Groups()})
	case "text":
		printStatus(s)
		return nil
	default:
		return fmt.Errorf("unknown format %q", outputFormat)
	}
}

// waitForNames gives the gateway a moment to name its units.
func waitForNames(ctx context.Context, s session.Session) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		named := true
		for _, ac := range s.ACs() {
			named = named && ac.Name != ""
		}
		for _, g := range s.Groups() {
			named = named && g.Name != ""
		}
		if named {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printStatus(s session.Session) {
	fmt.Println("Air conditioners:")
	for _, ac := range s.ACs() {
		setpoint := "-"
		if ac.HasSetpoint {
			setpoint = fmt.Sprintf("%.1f°C", ac.Setpoint)
		}
		temp := "-"
		if ac.HasTemperature {
			temp = fmt.Sprintf("%.1f°C", ac.Temperature)
		}
		fmt.Printf("  %d. %-16s %-8s %-9s fan %-8s set %-7s now %s\n",
			ac.ID, ac.Name, ac.Power, ac.Mode, ac.FanSpeed, setpoint, temp)
		if ac.ErrorCode != 0 {
			fmt.Printf("     error code %d\n", ac.ErrorCode)
		}
	}

	fmt.Println("\nZones:")
	for _, g := range s.Groups() {
		fmt.Printf("  %d. %-16s %-6s %3d%%", g.ID, g.Name, g.Power, g.Damper)
		if g.Spill {
			fmt.Print("  spill")
		}
		fmt.Println()
		for _, w := range g.Warnings {
			fmt.Printf("     %s\n", w)
		}
	}
}

var acCmd = &cobra.Command{
	Use:   "ac",
	Short: "Control air conditioners",
}

var acSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Change the settings of one AC",
	Example: `  # Turn AC 0 on in cooling at 22°C
  airtouch ac set 0 --power on --mode cool --setpoint 22

  # Only change the fan
  airtouch ac set 1 --fan high`,
	Args: cobra.ExactArgs(1),
	RunE: runACSet,
}

// acChange is the parsed form of the ac set flags.
type acChange struct {
	power    *bool
	mode     *protocol.ACSetMode
	fan      *protocol.FanSpeed
	setpoint *float64
}

func parseACChange(cmd *cobra.Command) (acChange, error) {
	var c acChange
	flags := cmd.Flags()
	if flags.Changed("power") {
		v, _ := flags.GetString("power")
		on, err := parseOnOff(v)
		if err != nil {
			return c, err
		}
		c.power = &on
	}
	if flags.Changed("mode") {
		v, _ := flags.GetString("mode")
		mode, err := protocol.ParseACSetMode(v)
		if err != nil {
			return c, err
		}
		c.mode = &mode
	}
	if flags.Changed("fan") {
		v, _ := flags.GetString("fan")
		fan, err := protocol.ParseFanSpeed(v)
		if err != nil {
			return c, err
		}
		c.fan = &fan
	}
	if flags.Changed("setpoint") {
		v, _ := flags.GetFloat64("setpoint")
		c.setpoint = &v
	}
	if c == (acChange{}) {
		return c, fmt.Errorf("nothing to change: give --power, --mode, --fan or --setpoint")
	}
	return c, nil
}

func (c acChange) fields() []ui.Field {
	var f []ui.Field
	if c.power != nil {
		f = append(f, ui.Field{Key: "Power", Value: onOff(*c.power)})
	}
	if c.mode != nil {
		f = append(f, ui.Field{Key: "Mode", Value: c.mode.String()})
	}
	if c.fan != nil {
		f = append(f, ui.Field{Key: "Fan", Value: c.fan.String()})
	}
	if c.setpoint != nil {
		f = append(f, ui.Field{Key: "Setpoint", Value: fmt.Sprintf("%.1f°C", *c.setpoint)})
	}
	return f
}

func (c acChange) apply(ctx context.Context, s session.Session, id uint8) error {
	if c.power != nil {
		if err := s.SetACPower(ctx, id, *c.power); err != nil {
			return err
		}
	}
	if c.mode != nil {
		if err := s.SetACMode(ctx, id, *c.mode); err != nil {
			return err
		}
	}
	if c.fan != nil {
		if err := s.SetACFanSpeed(ctx, id, *c.fan); err != nil {
			return err
		}
	}
	if c.setpoint != nil {
		if err := s.SetACSetpoint(ctx, id, *c.setpoint); err != nil {
			return err
		}
	}
	return nil
}

// reached reports whether the gateway reports every requested value.
func (c acChange) reached(ac session.ACState) bool {
	if c.power != nil && ac.On() != *c.power {
		return false
	}
	if c.mode != nil && protocol.ACSetMode(ac.Mode) != *c.mode &&
		!(*c.mode == protocol.ACSetModeAuto && (ac.Mode == protocol.ACModeAutoHeat || ac.Mode == protocol.ACModeAutoCool)) {
		return false
	}
	if c.fan != nil && ac.FanSpeed != *c.fan {
		return false
	}
	if c.setpoint != nil && math.Abs(ac.Setpoint-*c.setpoint) > 0.5 {
		return false
	}
	return true
}

func runACSet(cmd *cobra.Command, args []string) error {
	id, err := parseUnitID(args[0])
	if err != nil {
		return err
	}
	change, err := parseACChange(cmd)
	if err != nil {
		return err
	}
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	params := append([]ui.Field{{Key: "Gateway", Value: t.cfg.Addr()}, {Key: "AC", Value: args[0]}}, change.fields()...)
	fmt.Println(ui.NewHeader("AC control", "airtouch "+strings.Join(os.Args[1:], " "), params...).Render())

	ctx, cancel := signalContext()
	defer cancel()

	s, stop, err := openSession(ctx, t)
	if err != nil {
		fmt.Println(ui.NewFailureResult("Could not reach the gateway", err).Render())
		return err
	}
	defer stop()

	if err := change.apply(ctx, s, id); err != nil {
		fmt.Println(ui.NewFailureResult(fmt.Sprintf("AC %d not changed", id), err).Render())
		return err
	}

	ac, ok := awaitUnit(ctx, s, id, s.SubscribeAC, func() (session.ACState, bool) { return s.AC(id) }, change.reached)
	if !ok {
		fmt.Println(ui.NewFailureResult(fmt.Sprintf("AC %d did not confirm the change", id),
			fmt.Errorf("no matching status within %s", confirmTimeout)).Render())
		return fmt.Errorf("AC %d did not confirm the change", id)
	}

	result := ui.NewSuccessResult(fmt.Sprintf("%s updated", acName(ac)))
	result.AddDetail("Power", ac.Power.String()).
		AddDetail("Mode", ac.Mode.String()).
		AddDetail("Fan", ac.FanSpeed.String())
	if ac.HasSetpoint {
		result.AddDetail("Setpoint", fmt.Sprintf("%.1f°C", ac.Setpoint))
	}
	fmt.Println(result.Render())
	return nil
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Control zones",
}

var groupSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Open, close or adjust one zone",
	Example: `  # Open zone 2 at 60%
  airtouch group set 2 --power on --damper 60

  # Close zone 0
  airtouch group set 0 --power off`,
	Args: cobra.ExactArgs(1),
	RunE: runGroupSet,
}

func runGroupSet(cmd *cobra.Command, args []string) error {
	id, err := parseUnitID(args[0])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var (
		power  *bool
		damper *int
	)
	params := []ui.Field{{Key: "Zone", Value: args[0]}}
	if flags.Changed("power") {
		v, _ := flags.GetString("power")
		on, err := parseOnOff(v)
		if err != nil {
			return err
		}
		power = &on
		params = append(params, ui.Field{Key: "Power", Value: v})
	}
	if flags.Changed("damper") {
		v, _ := flags.GetInt("damper")
		damper = &v
		params = append(params, ui.Field{Key: "Damper", Value: fmt.Sprintf("%d%%", v)})
	}
	if power == nil && damper == nil {
		return fmt.Errorf("nothing to change: give --power or --damper")
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	params = append([]ui.Field{{Key: "Gateway", Value: t.cfg.Addr()}}, params...)
	fmt.Println(ui.NewHeader("Zone control", "airtouch "+strings.Join(os.Args[1:], " "), params...).Render())

	ctx, cancel := signalContext()
	defer cancel()

	s, stop, err := openSession(ctx, t)
	if err != nil {
		fmt.Println(ui.NewFailureResult("Could not reach the gateway", err).Render())
		return err
	}
	defer stop()

	apply := func() error {
		if power != nil {
			if err := s.SetGroupPower(ctx, id, *power); err != nil {
				return err
			}
		}
		if damper != nil {
			return s.SetGroupDamper(ctx, id, *damper)
		}
		return nil
	}
	if err := apply(); err != nil {
		fmt.Println(ui.NewFailureResult(fmt.Sprintf("Zone %d not changed", id), err).Render())
		return err
	}

	reached := func(g session.GroupState) bool {
		if power != nil && g.On() != *power {
			return false
		}
		// Legacy gateways move in 10% steps.
		return damper == nil || abs(g.Damper-*damper) < 10
	}
	g, ok := awaitUnit(ctx, s, id, s.SubscribeGroup, func() (session.GroupState, bool) { return s.Group(id) }, reached)
	if !ok {
		fmt.Println(ui.NewFailureResult(fmt.Sprintf("Zone %d did not confirm the change", id),
			fmt.Errorf("no matching status within %s", confirmTimeout)).Render())
		return fmt.Errorf("zone %d did not confirm the change", id)
	}

	fmt.Println(ui.NewSuccessResult(fmt.Sprintf("%s updated", groupName(g)),
		ui.Field{Key: "Power", Value: g.Power.String()},
		ui.Field{Key: "Damper", Value: fmt.Sprintf("%d%%", g.Damper)},
	).Render())
	return nil
}

// awaitUnit waits until the unit's state satisfies ok or confirmTimeout
// passes.
func awaitUnit[T any](ctx context.Context, s session.Session, id uint8,
	subscribe func(uint8, func(T)) (session.Handle, error),
	current func() (T, bool),
	ok func(T) bool,
) (T, bool) {
	updates := make(chan T, 16)
	h, err := subscribe(id, func(v T) {
		select {
		case updates <- v:
		default:
		}
	})
	if err == nil {
		defer s.Unsubscribe(h)
	}

	if v, found := current(); found && ok(v) {
		return v, true
	}

	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	for {
		select {
		case v := <-updates:
			if ok(v) {
				return v, true
			}
		case <-ctx.Done():
			v, _ := current()
			return v, false
		}
	}
}

func parseUnitID(s string) (uint8, error) {
	id, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid unit id %q", s)
	}
	return uint8(id), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid power %q: want on or off", s)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func acName(ac session.ACState) string {
	if ac.Name != "" {
		return ac.Name
	}
	return fmt.Sprintf("AC %d", ac.ID)
}

func groupName(g session.GroupState) string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("Zone %d", g.ID)
}
