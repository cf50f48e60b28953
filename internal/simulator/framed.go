package simulator

import (
	"context"
	"errors"
	"io"
	"net"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/protocol"
)

// Request kinds counted by Gateway.Requests.
const (
	RequestACStatus     = "ac_status"
	RequestGroupStatus  = "group_status"
	RequestACAbility    = "ac_ability"
	RequestGroupNames   = "group_names"
	RequestACControl    = "ac_control"
	RequestGroupControl = "group_control"
)

// ACUnit is one simulated AC.
type ACUnit struct {
	Status  protocol.ACStatus
	Ability protocol.ACAbility
}

// GroupUnit is one simulated zone group.
type GroupUnit struct {
	Status protocol.GroupStatus
	Name   string
}

// State is the initial content of a framed gateway.
type State struct {
	ACs    []ACUnit
	Groups []GroupUnit
}

// DefaultState returns a two-AC, four-group installation.
func DefaultState() State {
	return State{
		ACs: []ACUnit{
			{
				Status: protocol.ACStatus{
					ID:          0,
					Power:       protocol.ACPowerOn,
					Mode:        protocol.ACModeCool,
					FanSpeed:    protocol.FanSpeedMedium,
					Setpoint:    mustSetpoint(24),
					Temperature: mustTemperature(26.5),
				},
				Ability: protocol.ACAbility{
					ID:         0,
					Name:       protocol.MakeLabel16("Downstairs"),
					StartGroup: 0,
					GroupCount: 2,
					Modes:      protocol.NewModeSet(protocol.ACModeAuto, protocol.ACModeHeat, protocol.ACModeDry, protocol.ACModeFan, protocol.ACModeCool),
					FanSpeeds:  protocol.NewFanSpeedSet(protocol.FanSpeedAuto, protocol.FanSpeedLow, protocol.FanSpeedMedium, protocol.FanSpeedHigh),
					Setpoint:   protocol.SetpointLimits{Min: 16, Max: 30},
				},
			},
			{
				Status: protocol.ACStatus{
					ID:          1,
					Power:       protocol.ACPowerOff,
					Mode:        protocol.ACModeHeat,
					FanSpeed:    protocol.FanSpeedLow,
					Setpoint:    mustSetpoint(21),
					Temperature: mustTemperature(18),
				},
				Ability: protocol.ACAbility{
					ID:         1,
					Name:       protocol.MakeLabel16("Upstairs"),
					StartGroup: 2,
					GroupCount: 2,
					Modes:      protocol.NewModeSet(protocol.ACModeHeat, protocol.ACModeCool, protocol.ACModeFan),
					FanSpeeds:  protocol.NewFanSpeedSet(protocol.FanSpeedQuiet, protocol.FanSpeedLow, protocol.FanSpeedHigh),
					Dual:       true,
					Cool:       protocol.SetpointLimits{Min: 18, Max: 30},
					Heat:       protocol.SetpointLimits{Min: 16, Max: 26},
				},
			},
		},
		Groups: []GroupUnit{
			{Name: "Living", Status: protocol.GroupStatus{ID: 0, Power: protocol.GroupPowerOn, Damper: 100, SupportsTurbo: true}},
			{Name: "Kitchen", Status: protocol.GroupStatus{ID: 1, Power: protocol.GroupPowerOn, Damper: 60}},
			{Name: "Bed 1", Status: protocol.GroupStatus{ID: 2, Power: protocol.GroupPowerOff, Damper: 0}},
			{Name: "Bed 2", Status: protocol.GroupStatus{ID: 3, Power: protocol.GroupPowerOn, Damper: 45}},
		},
	}
}

func mustSetpoint(c float64) protocol.Setpoint {
	s, err := protocol.SetpointFromCelsius(c)
	if err != nil {
		panic(err)
	}
	return s
}

func mustTemperature(c float64) protocol.Temperature {
	t, err := protocol.TemperatureFromCelsius(c)
	if err != nil {
		panic(err)
	}
	return t
}

// Option configures a simulated gateway.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Gateway emulates a framed-protocol gateway.
type Gateway struct {
	*server

	mu              sync.Mutex
	acs             []ACUnit
	groups          []GroupUnit
	answerAbilities bool
}

// NewGateway returns a gateway holding state. Call Start to serve.
func NewGateway(state State, opts ...Option) *Gateway {
	o := buildOptions(opts)
	g := &Gateway{
		server:          newServer("framed", o.log),
		acs:             slices.Clone(state.ACs),
		groups:          slices.Clone(state.Groups),
		answerAbilities: true,
	}
	g.handle = g.serveConn
	return g
}

// SetAbilityResponses turns answers to ability requests on or off.
func (g *Gateway) SetAbilityResponses(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answerAbilities = on
}

// AC returns the current state of AC id.
func (g *Gateway) AC(id uint8) (ACUnit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.acIndex(id)
	if i < 0 {
		return ACUnit{}, false
	}
	return g.acs[i], true
}

// Group returns the current state of group id.
func (g *Gateway) Group(id uint8) (GroupUnit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.groupIndex(id)
	if i < 0 {
		return GroupUnit{}, false
	}
	return g.groups[i], true
}

// UpdateAC changes AC id and pushes its status to every client.
func (g *Gateway) UpdateAC(id uint8, fn func(*protocol.ACStatus)) bool {
	g.mu.Lock()
	i := g.acIndex(id)
	if i < 0 {
		g.mu.Unlock()
		return false
	}
	fn(&g.acs[i].Status)
	status := g.acs[i].Status
	g.mu.Unlock()

	_ = g.Push(protocol.ACStatusMessage{Statuses: []protocol.ACStatus{status}})
	return true
}

// Drift moves the temperature of every running AC step degrees towards its
// setpoint and pushes the changed statuses.
func (g *Gateway) Drift(step float64) {
	g.mu.Lock()
	var changed []protocol.ACStatus
	for i := range g.acs {
		st := &g.acs[i].Status
		if !st.Power.IsOn() {
			continue
		}
		target, okSet := st.Setpoint.Celsius()
		now, okTemp := st.Temperature.Celsius()
		if !okSet || !okTemp || now == target {
			continue
		}
		next := now + step
		if now > target {
			next = now - step
		}
		if (now < target) != (next < target) {
			next = target
		}
		t, err := protocol.TemperatureFromCelsius(next)
		if err != nil {
			continue
		}
		st.Temperature = t
		changed = append(changed, *st)
	}
	g.mu.Unlock()

	if len(changed) > 0 {
		_ = g.Push(protocol.ACStatusMessage{Statuses: changed})
	}
}

// Push encodes m and sends it to every client.
func (g *Gateway) Push(m protocol.Message) error {
	b, err := protocol.EncodeMessage(m, protocol.FromGateway)
	if err != nil {
		return err
	}
	g.broadcast(b)
	return nil
}

func (g *Gateway) serveConn(c *conn) {
	src := protocol.NewReaderSource(c)
	ctx := context.Background()
	for {
		frame, err := protocol.ReadFrame(ctx, src, protocol.FromClient)
		if err != nil {
			if protocol.IsRecoverable(err) {
				g.log.Warn("Dropped client frame", zap.Error(err))
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				g.log.Debug("Client read failed", zap.Error(err))
			}
			return
		}

		msg, err := protocol.DecodeMessage(frame)
		if err != nil {
			g.log.Warn("Undecodable client frame", zap.Stringer("frame", frame), zap.Error(err))
			continue
		}
		g.log.Debug("Request received", zap.Stringer("message", msg))

		if reply := g.respond(msg); reply != nil {
			b, err := protocol.EncodeMessage(reply, protocol.FromGateway)
			if err != nil {
				g.log.Error("Failed to encode reply", zap.Error(err))
				continue
			}
			if err := c.send(b); err != nil {
				return
			}
		}
	}
}

// respond applies msg and returns the reply for the requesting client.
// Control changes are pushed to every client instead.
func (g *Gateway) respond(msg protocol.Message) protocol.Message {
	switch m := msg.(type) {
	case protocol.ACStatusMessage:
		g.count(RequestACStatus)
		return protocol.ACStatusMessage{Statuses: g.acStatuses()}

	case protocol.GroupStatusMessage:
		g.count(RequestGroupStatus)
		return protocol.GroupStatusMessage{Statuses: g.groupStatuses()}

	case protocol.ACAbilityRequest:
		g.count(RequestACAbility)
		g.mu.Lock()
		defer g.mu.Unlock()
		if !g.answerAbilities {
			return nil
		}
		var abilities []protocol.ACAbility
		for _, ac := range g.acs {
			if m.All || ac.Ability.ID == m.ID {
				abilities = append(abilities, ac.Ability)
			}
		}
		if len(abilities) == 0 {
			return nil
		}
		return protocol.ACAbilityMessage{Abilities: abilities}

	case protocol.GroupNamesRequest:
		g.count(RequestGroupNames)
		g.mu.Lock()
		defer g.mu.Unlock()
		var names []protocol.GroupName
		for _, grp := range g.groups {
			if m.All || grp.Status.ID == m.ID {
				names = append(names, protocol.GroupName{ID: grp.Status.ID, Name: protocol.MakeLabel8(grp.Name)})
			}
		}
		return protocol.GroupNamesMessage{Names: names}

	case protocol.ACControlMessage:
		g.count(RequestACControl)
		g.mu.Lock()
		for _, ctl := range m.Controls {
			if i := g.acIndex(ctl.ID); i >= 0 {
				applyACControl(&g.acs[i].Status, ctl)
			}
		}
		g.mu.Unlock()
		_ = g.Push(protocol.ACStatusMessage{Statuses: g.acStatuses()})

	case protocol.GroupControlMessage:
		g.count(RequestGroupControl)
		g.mu.Lock()
		for _, ctl := range m.Controls {
			if i := g.groupIndex(ctl.ID); i >= 0 {
				applyGroupControl(&g.groups[i].Status, ctl)
			}
		}
		g.mu.Unlock()
		_ = g.Push(protocol.GroupStatusMessage{Statuses: g.groupStatuses()})

	default:
		g.log.Debug("Ignoring client message", zap.Stringer("message", msg))
	}
	return nil
}

func (g *Gateway) acStatuses() []protocol.ACStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]protocol.ACStatus, len(g.acs))
	for i, ac := range g.acs {
		out[i] = ac.Status
	}
	return out
}

func (g *Gateway) groupStatuses() []protocol.GroupStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]protocol.GroupStatus, len(g.groups))
	for i, grp := range g.groups {
		out[i] = grp.Status
	}
	return out
}

func (g *Gateway) acIndex(id uint8) int {
	return slices.IndexFunc(g.acs, func(ac ACUnit) bool { return ac.Status.ID == id })
}

func (g *Gateway) groupIndex(id uint8) int {
	return slices.IndexFunc(g.groups, func(grp GroupUnit) bool { return grp.Status.ID == id })
}

func applyACControl(s *protocol.ACStatus, c protocol.ACControl) {
	switch c.Power {
	case protocol.ACSetPowerToggle:
		if s.Power.IsOn() {
			s.Power = protocol.ACPowerOff
		} else {
			s.Power = protocol.ACPowerOn
		}
	case protocol.ACSetPowerOff:
		s.Power = protocol.ACPowerOff
	case protocol.ACSetPowerOn:
		s.Power = protocol.ACPowerOn
	case protocol.ACSetPowerAway:
		s.Power = protocol.ACPowerAwayOn
	case protocol.ACSetPowerSleep:
		s.Power = protocol.ACPowerSleep
	}
	if c.Mode != protocol.ACSetModeUnchanged {
		s.Mode = protocol.ACMode(c.Mode)
	}
	if c.FanSpeed != protocol.FanSpeedUnchanged {
		s.FanSpeed = c.FanSpeed
	}
	if c.SetpointControl == protocol.SetpointChange {
		s.Setpoint = c.Setpoint
	}
}

const damperStep = 5

func applyGroupControl(s *protocol.GroupStatus, c protocol.GroupControl) {
	switch c.Power {
	case protocol.GroupSetPowerOff:
		s.Power = protocol.GroupPowerOff
	case protocol.GroupSetPowerOn:
		s.Power = protocol.GroupPowerOn
	case protocol.GroupSetPowerTurbo:
		if s.SupportsTurbo {
			s.Power = protocol.GroupPowerTurbo
		}
	case protocol.GroupSetPowerNext:
		switch {
		case s.Power == protocol.GroupPowerOff:
			s.Power = protocol.GroupPowerOn
		case s.Power == protocol.GroupPowerOn && s.SupportsTurbo:
			s.Power = protocol.GroupPowerTurbo
		default:
			s.Power = protocol.GroupPowerOff
		}
	}

	switch c.DamperMode {
	case protocol.GroupSetDamperSet:
		s.Damper = c.Damper
	case protocol.GroupSetDamperIncrease:
		s.Damper = min(s.Damper+damperStep, 100)
	case protocol.GroupSetDamperDecrease:
		s.Damper = uint8(max(int(s.Damper)-damperStep, 0))
	}
}
