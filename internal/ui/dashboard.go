package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/session"
)

const (
	setpointStep = 1.0
	damperStep   = 10
	stateEvery   = 500 * time.Millisecond
)

// UnitsChangedMsg tells the dashboard to re-read the registry.
type UnitsChangedMsg struct{}

type stateTickMsg time.Time

type commandDoneMsg struct {
	desc string
	err  error
}

// Controller is the part of a session the dashboard reads and drives.
type Controller interface {
	State() session.State
	ACs() []session.ACState
	Groups() []session.GroupState
	SetACPower(ctx context.Context, id uint8, on bool) error
	SetACMode(ctx context.Context, id uint8, mode protocol.ACSetMode) error
	SetACFanSpeed(ctx context.Context, id uint8, speed protocol.FanSpeed) error
	SetACSetpoint(ctx context.Context, id uint8, celsius float64) error
	SetGroupPower(ctx context.Context, id uint8, on bool) error
	SetGroupDamper(ctx context.Context, id uint8, percent int) error
}

// Source is the part of a session Watch follows.
type Source interface {
	ACs() []session.ACState
	Groups() []session.GroupState
	SubscribeAC(id uint8, fn func(session.ACState)) (session.Handle, error)
	SubscribeGroup(id uint8, fn func(session.GroupState)) (session.Handle, error)
	SubscribeNewUnits(fn func(session.NewUnit)) session.Handle
	Unsubscribe(h session.Handle) bool
}

// Watch sends a UnitsChangedMsg through send whenever any unit of src
// changes, including units discovered later. Bursts of changes coalesce
// into one message and send runs on its own goroutine. The returned
// function stops watching.
func Watch(src Source, send func(tea.Msg)) (stop func()) {
	var (
		mu      sync.Mutex
		handles []session.Handle
		seen    = make(map[session.NewUnit]bool)
		dirty   = make(chan struct{}, 1)
		done    = make(chan struct{})
	)
	changed := func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	go func() {
		for {
			select {
			case <-done:
				return
			case <-dirty:
				send(UnitsChangedMsg{})
			}
		}
	}()

	follow := func(u session.NewUnit) {
		mu.Lock()
		defer mu.Unlock()
		if seen[u] {
			return
		}
		seen[u] = true

		var (
			h   session.Handle
			err error
		)
		switch u.Kind {
		case session.UnitAC:
			h, err = src.SubscribeAC(u.ID, func(session.ACState) { changed() })
		case session.UnitGroup:
			h, err = src.SubscribeGroup(u.ID, func(session.GroupState) { changed() })
		}
		if err == nil {
			handles = append(handles, h)
		}
		changed()
	}

	newUnits := src.SubscribeNewUnits(follow)
	for _, ac := range src.ACs() {
		follow(session.NewUnit{Kind: session.UnitAC, ID: ac.ID})
	}
	for _, g := range src.Groups() {
		follow(session.NewUnit{Kind: session.UnitGroup, ID: g.ID})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			src.Unsubscribe(newUnits)
			mu.Lock()
			defer mu.Unlock()
			for _, h := range handles {
				src.Unsubscribe(h)
			}
			handles = nil
			close(done)
		})
	}
}

type dashboardKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Increase key.Binding
	Decrease key.Binding
	Mode     key.Binding
	Fan      key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Increase, k.Decrease, k.Help, k.Quit}
}

func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Toggle, k.Increase, k.Decrease},
		{k.Mode, k.Fan},
		{k.Help, k.Quit},
	}
}

func newDashboardKeyMap() dashboardKeyMap {
	return dashboardKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "on/off"),
		),
		Increase: key.NewBinding(
			key.WithKeys("+", "=", "right", "l"),
			key.WithHelp("+", "warmer / open"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("-", "left", "h"),
			key.WithHelp("-", "cooler / close"),
		),
		Mode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "next mode"),
		),
		Fan: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "next fan speed"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Dashboard is the interactive view of one gateway.
type Dashboard struct {
	ctl     Controller
	gateway string
	timeout time.Duration

	keys    dashboardKeyMap
	help    help.Model
	spinner spinner.Model

	state  session.State
	acs    []session.ACState
	groups []session.GroupState

	cursor    int
	pending   int
	status    string
	statusErr bool
	width     int
}

// NewDashboard returns a dashboard driving ctl. gateway is shown in the
// title.
func NewDashboard(ctl Controller, gateway string) Dashboard {
	return Dashboard{
		ctl:     ctl,
		gateway: gateway,
		timeout: 10 * time.Second,
		keys:    newDashboardKeyMap(),
		help:    help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		width: GetTerminalWidth(),
	}
}

func stateTick() tea.Cmd {
	return tea.Tick(stateEvery, func(t time.Time) tea.Msg { return stateTickMsg(t) })
}

func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		stateTick(),
		func() tea.Msg { return UnitsChangedMsg{} },
	)
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width, MinTerminalWidth), MaxContentWidth)
		m.help.Width = msg.Width
		return m, nil

	case UnitsChangedMsg:
		m.acs = m.ctl.ACs()
		m.groups = m.ctl.Groups()
		m.state = m.ctl.State()
		m.cursor = min(m.cursor, max(m.rows()-1, 0))
		return m, nil

	case stateTickMsg:
		m.state = m.ctl.State()
		return m, stateTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case commandDoneMsg:
		m.pending = max(m.pending-1, 0)
		if msg.err != nil {
			m.status, m.statusErr = fmt.Sprintf("%s: %v", msg.desc, msg.err), true
		} else {
			m.status, m.statusErr = msg.desc, false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
		return m, nil
	}

	if ac, ok := m.selectedAC(); ok {
		switch {
		case key.Matches(msg, m.keys.Toggle):
			return m.run(fmt.Sprintf("%s %s", acLabel(ac), onOff(!ac.On())), func(ctx context.Context) error {
				return m.ctl.SetACPower(ctx, ac.ID, !ac.On())
			})
		case key.Matches(msg, m.keys.Increase), key.Matches(msg, m.keys.Decrease):
			if !ac.HasSetpoint {
				return m, nil
			}
			target := ac.Setpoint + setpointStep
			if key.Matches(msg, m.keys.Decrease) {
				target = ac.Setpoint - setpointStep
			}
			return m.run(fmt.Sprintf("%s setpoint %.1f°C", acLabel(ac), target), func(ctx context.Context) error {
				return m.ctl.SetACSetpoint(ctx, ac.ID, target)
			})
		case key.Matches(msg, m.keys.Mode):
			mode := nextMode(ac)
			return m.run(fmt.Sprintf("%s mode %s", acLabel(ac), mode), func(ctx context.Context) error {
				return m.ctl.SetACMode(ctx, ac.ID, mode)
			})
		case key.Matches(msg, m.keys.Fan):
			speed := nextFanSpeed(ac)
			return m.run(fmt.Sprintf("%s fan %s", acLabel(ac), speed), func(ctx context.Context) error {
				return m.ctl.SetACFanSpeed(ctx, ac.ID, speed)
			})
		}
		return m, nil
	}

	if g, ok := m.selectedGroup(); ok {
		switch {
		case key.Matches(msg, m.keys.Toggle):
			return m.run(fmt.Sprintf("%s %s", groupLabel(g), onOff(!g.On())), func(ctx context.Context) error {
				return m.ctl.SetGroupPower(ctx, g.ID, !g.On())
			})
		case key.Matches(msg, m.keys.Increase), key.Matches(msg, m.keys.Decrease):
			target := g.Damper + damperStep
			if key.Matches(msg, m.keys.Decrease) {
				target = g.Damper - damperStep
			}
			target = max(0, min(100, target))
			if target == g.Damper {
				return m, nil
			}
			return m.run(fmt.Sprintf("%s damper %d%%", groupLabel(g), target), func(ctx context.Context) error {
				return m.ctl.SetGroupDamper(ctx, g.ID, target)
			})
		}
	}
	return m, nil
}

// run executes fn off the update loop.
func (m Dashboard) run(desc string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.pending++
	m.status, m.statusErr = desc+"...", false
	timeout := m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return commandDoneMsg{desc: desc, err: fn(ctx)}
	}
}

func (m Dashboard) rows() int { return len(m.acs) + len(m.groups) }

func (m Dashboard) selectedAC() (session.ACState, bool) {
	if m.cursor < len(m.acs) {
		return m.acs[m.cursor], true
	}
	return session.ACState{}, false
}

func (m Dashboard) selectedGroup() (session.GroupState, bool) {
	i := m.cursor - len(m.acs)
	if i >= 0 && i < len(m.groups) {
		return m.groups[i], true
	}
	return session.GroupState{}, false
}

var modeCycle = []protocol.ACSetMode{
	protocol.ACSetModeCool,
	protocol.ACSetModeHeat,
	protocol.ACSetModeFan,
	protocol.ACSetModeDry,
	protocol.ACSetModeAuto,
}

func nextMode(ac session.ACState) protocol.ACSetMode {
	current := protocol.ACSetMode(ac.Mode)
	if ac.Mode == protocol.ACModeAutoHeat || ac.Mode == protocol.ACModeAutoCool {
		current = protocol.ACSetModeAuto
	}
	start := slices.Index(modeCycle, current)
	for i := 1; i <= len(modeCycle); i++ {
		candidate := modeCycle[(start+i+len(modeCycle))%len(modeCycle)]
		if ac.Ability == nil || ac.Ability.Modes.Has(protocol.ACMode(candidate)) {
			return candidate
		}
	}
	return current
}

func nextFanSpeed(ac session.ACState) protocol.FanSpeed {
	speeds := ac.FanSpeeds
	if len(speeds) == 0 {
		speeds = []protocol.FanSpeed{protocol.FanSpeedLow, protocol.FanSpeedMedium, protocol.FanSpeedHigh}
	}
	i := slices.Index(speeds, ac.FanSpeed)
	return speeds[(i+1)%len(speeds)]
}

func acLabel(ac session.ACState) string {
	if ac.Name != "" {
		return ac.Name
	}
	return fmt.Sprintf("AC %d", ac.ID)
}

func groupLabel(g session.GroupState) string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("Group %d", g.ID)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (m Dashboard) View() string {
	var b strings.Builder

	title := HeaderTitleStyle.Render("AIRTOUCH") + HeaderCommandStyle.Render(m.gateway+"  "+m.state.String())
	b.WriteString(lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(m.width - 2).
		Render(title))
	b.WriteString("\n")

	if m.rows() == 0 {
		b.WriteString(fmt.Sprintf("\n  %s Waiting for the gateway to report its units...\n", m.spinner.View()))
		b.WriteString("\n" + m.help.View(m.keys) + "\n")
		return b.String()
	}

	if len(m.acs) > 0 {
		b.WriteString(SectionTitleStyle.Render("  Air conditioners") + "\n")
		for i, ac := range m.acs {
			b.WriteString(m.row(i, m.acLine(ac)) + "\n")
		}
	}
	if len(m.groups) > 0 {
		b.WriteString(SectionTitleStyle.Render("  Zones") + "\n")
		for i, g := range m.groups {
			b.WriteString(m.row(len(m.acs)+i, groupLine(g)) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.status == "":
	case m.statusErr:
		b.WriteString("  " + ErrorMessageStyle.Render(FailureMarker+" "+m.status) + "\n")
	case m.pending > 0:
		b.WriteString("  " + m.spinner.View() + " " + StatusLineStyle.Render(m.status) + "\n")
	default:
		b.WriteString("  " + OnStyle.Render(SuccessMarker) + " " + StatusLineStyle.Render(m.status) + "\n")
	}
	if m.state != session.StateStreaming {
		b.WriteString("  " + m.spinner.View() + " " + StatusLineStyle.Render("Connection "+m.state.String()) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Dashboard) row(i int, line string) string {
	if i == m.cursor {
		return SelectedRowStyle.Render(CursorMarker + " " + line)
	}
	return RowStyle.Render("  " + line)
}

func (m Dashboard) acLine(ac session.ACState) string {
	marker := OffStyle.Render(OffMarker)
	if ac.On() {
		marker = OnStyle.Render(OnMarker)
	}

	setpoint := "  -  "
	if ac.HasSetpoint {
		setpoint = fmt.Sprintf("%4.1f°", ac.Setpoint)
	}
	temp := "  -  "
	if ac.HasTemperature {
		temp = fmt.Sprintf("%4.1f°", ac.Temperature)
	}

	var flags []string
	if ac.Turbo {
		flags = append(flags, TurboStyle.Render("turbo"))
	}
	if ac.Spill {
		flags = append(flags, TurboStyle.Render("spill"))
	}
	if ac.Bypass {
		flags = append(flags, "bypass")
	}
	if ac.ErrorCode != 0 {
		flags = append(flags, ErrorMessageStyle.Render(fmt.Sprintf("error %d", ac.ErrorCode)))
	}

	return fmt.Sprintf("%s %-16s %s %-9s set %s  now %s  %s",
		marker,
		acLabel(ac),
		ModeStyle(ac.Mode.String()).Width(9).Render(ac.Mode.String()),
		"fan "+ac.FanSpeed.String(),
		setpoint,
		temp,
		strings.Join(flags, " "),
	)
}

func groupLine(g session.GroupState) string {
	marker := OffStyle.Render(OffMarker)
	if g.On() {
		marker = OnStyle.Render(OnMarker)
	}
	line := fmt.Sprintf("%s %-16s %s %3d%%", marker, groupLabel(g), DamperBar(g.Damper), g.Damper)
	if g.Power == protocol.GroupPowerTurbo {
		line += " " + TurboStyle.Render("turbo")
	}
	if g.Spill {
		line += " " + TurboStyle.Render("spill")
	}
	return line
}
