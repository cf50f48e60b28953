package simulator

import (
	"errors"
	"io"
	"net"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/protocol/legacy"
)

// Request kinds counted by LegacyGateway.Requests.
const (
	RequestLegacyState   = "state"
	RequestLegacyCommand = "command"
)

// LegacyAC is one simulated AC of a legacy gateway.
type LegacyAC struct {
	Name      string
	On        bool
	Mode      protocol.ACMode
	Brand     legacy.Brand
	GatewayID uint8
	FanSpeeds []protocol.FanSpeed
	FanSpeed  protocol.FanSpeed
	SetTemp   int
	Temp      int
	ErrorCode uint8
}

// LegacyGroup is one simulated group. Each group owns one zone.
type LegacyGroup struct {
	Name string
	On   bool
	// Damper is in 10% steps, 0 to 10.
	Damper uint8
}

// LegacyState is the content of a legacy gateway.
type LegacyState struct {
	SystemName   string
	TouchpadTemp int
	ACs          []LegacyAC
	Groups       []LegacyGroup
}

// DefaultLegacyState returns a one-AC, three-group installation.
func DefaultLegacyState() LegacyState {
	return LegacyState{
		SystemName:   "Simulated",
		TouchpadTemp: 22,
		ACs: []LegacyAC{
			{
				Name:      "Daikin",
				On:        true,
				Mode:      protocol.ACModeCool,
				Brand:     legacy.BrandDaikin,
				FanSpeeds: []protocol.FanSpeed{protocol.FanSpeedLow, protocol.FanSpeedMedium, protocol.FanSpeedHigh},
				FanSpeed:  protocol.FanSpeedMedium,
				SetTemp:   23,
				Temp:      25,
			},
		},
		Groups: []LegacyGroup{
			{Name: "Lounge", On: true, Damper: 8},
			{Name: "Master", On: false, Damper: 5},
			{Name: "Study", On: true, Damper: 10},
		},
	}
}

// LegacyGateway emulates a fixed-length protocol gateway. It answers each
// command with a full response to the client that sent it.
type LegacyGateway struct {
	*server

	mu          sync.Mutex
	state       LegacyState
	delay       time.Duration
	maxInFlight int
}

// NewLegacyGateway returns a legacy gateway holding state.
func NewLegacyGateway(state LegacyState, opts ...Option) *LegacyGateway {
	o := buildOptions(opts)
	state.ACs = slices.Clone(state.ACs)
	state.Groups = slices.Clone(state.Groups)
	g := &LegacyGateway{
		server: newServer("legacy", o.log),
		state:  state,
	}
	g.handle = g.serveConn
	return g
}

// State returns a copy of the current state.
func (g *LegacyGateway) State() LegacyState {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.state
	s.ACs = slices.Clone(s.ACs)
	s.Groups = slices.Clone(s.Groups)
	return s
}

// Response returns the encoded response for the current state.
func (g *LegacyGateway) Response() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return EncodeLegacyResponse(g.state)
}

// SetResponseDelay holds every response back by d, as a busy gateway would.
func (g *LegacyGateway) SetResponseDelay(d time.Duration) {
	g.mu.Lock()
	g.delay = d
	g.mu.Unlock()
}

// MaxInFlight returns the largest number of commands one client had sent
// without yet receiving their responses.
func (g *LegacyGateway) MaxInFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInFlight
}

func (g *LegacyGateway) serveConn(c *conn) {
	var (
		inFlight int
		commands = make(chan legacy.Command, 16)
		done     = make(chan struct{})
	)
	defer close(done)

	// The reader runs ahead of the responder so overlapping commands are
	// counted.
	go func() {
		defer close(commands)
		buf := make([]byte, legacy.CommandLength)
		for {
			if _, err := io.ReadFull(c, buf); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					g.log.Debug("Client read failed", zap.Error(err))
				}
				return
			}
			cmd, err := legacy.ParseCommand(buf)
			if err != nil {
				g.log.Warn("Dropped client command", zap.Error(err))
				continue
			}
			g.log.Debug("Command received", zap.Stringer("command", cmd))

			g.mu.Lock()
			inFlight++
			g.maxInFlight = max(g.maxInFlight, inFlight)
			g.mu.Unlock()

			select {
			case commands <- cmd:
			case <-done:
				return
			}
		}
	}()

	for cmd := range commands {
		g.mu.Lock()
		delay := g.delay
		g.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		g.apply(cmd)
		resp := g.Response()

		g.mu.Lock()
		inFlight--
		g.mu.Unlock()
		if err := c.send(resp); err != nil {
			return
		}
	}
}

func (g *LegacyGateway) apply(cmd legacy.Command) {
	action := cmd.Action()
	if action == legacy.ActionRequestState {
		g.count(RequestLegacyState)
		return
	}
	g.count(RequestLegacyCommand)

	g.mu.Lock()
	defer g.mu.Unlock()

	switch action {
	case legacy.ActionToggleAC, legacy.ActionSetMode, legacy.ActionSetFanSpeed,
		legacy.ActionSetpointDown, legacy.ActionSetpointUp:
		if int(cmd.Target()) >= len(g.state.ACs) {
			return
		}
		ac := &g.state.ACs[cmd.Target()]
		switch action {
		case legacy.ActionToggleAC:
			ac.On = !ac.On
		case legacy.ActionSetMode:
			ac.Mode = protocol.ACMode(cmd.Arg())
		case legacy.ActionSetFanSpeed:
			if speed, ok := legacy.FanSpeedFromValue(ac.FanSpeeds, cmd.Arg()); ok {
				ac.FanSpeed = speed
			}
		case legacy.ActionSetpointDown:
			ac.SetTemp = max(ac.SetTemp-1, protocol.SetpointMin)
		case legacy.ActionSetpointUp:
			ac.SetTemp = min(ac.SetTemp+1, protocol.SetpointMax)
		}

	case legacy.ActionToggleGroup, legacy.ActionDamperDown, legacy.ActionDamperUp:
		if int(cmd.Target()) >= len(g.state.Groups) {
			return
		}
		grp := &g.state.Groups[cmd.Target()]
		switch action {
		case legacy.ActionToggleGroup:
			grp.On = !grp.On
		case legacy.ActionDamperDown:
			grp.Damper = uint8(max(int(grp.Damper)-1, 0))
		case legacy.ActionDamperUp:
			grp.Damper = min(grp.Damper+1, 10)
		}

	default:
		g.log.Warn("Unknown command", zap.Stringer("command", cmd))
	}
}

// EncodeLegacyResponse lays state out as a 395-byte response, with one zone
// per group.
func EncodeLegacyResponse(state LegacyState) []byte {
	b := make([]byte, legacy.ResponseLength)

	copy(b[legacy.OffsetSystemName:legacy.OffsetSystemName+16], state.SystemName)
	b[legacy.OffsetTouchpadTemp] = byte(state.TouchpadTemp)

	for n, ac := range state.ACs[:min(len(state.ACs), legacy.MaxACs)] {
		status := byte(0)
		if ac.On {
			status |= 0x80
		}
		if ac.ErrorCode != 0 {
			status |= 0x40
		}
		b[legacy.OffsetACStatus+n] = status
		b[legacy.OffsetACBrand+n] = byte(ac.Brand)
		b[legacy.OffsetACMode+n] = byte(ac.Mode)
		b[legacy.OffsetACSetTemp+n] = byte(ac.SetTemp)
		b[legacy.OffsetACTemp+n] = byte(ac.Temp)
		b[legacy.OffsetACError+n] = ac.ErrorCode
		b[legacy.OffsetACGateway+n] = ac.GatewayID

		count := len(ac.FanSpeeds)
		if slices.Contains(ac.FanSpeeds, protocol.FanSpeedAuto) {
			count--
		}
		value, _ := legacy.FanSpeedValue(ac.FanSpeeds, ac.FanSpeed)
		b[legacy.OffsetACFan+n] = byte(count)<<4 | value&0x0F

		nameAt := legacy.OffsetACNames + n*8
		copy(b[nameAt:nameAt+8], ac.Name)
	}

	groups := state.Groups[:min(len(state.Groups), legacy.MaxZones)]
	b[legacy.OffsetNumGroups] = byte(len(groups))
	b[legacy.OffsetTurboGroup] = 0xFF
	for g, grp := range groups {
		zone := byte(0)
		if grp.On {
			zone |= 0x80
		}
		b[legacy.OffsetZoneStatus+g] = zone
		b[legacy.OffsetGroupZones+g] = byte(g)<<4 | 1
		b[legacy.OffsetZoneDampers+g] = grp.Damper

		nameAt := legacy.OffsetGroupNames + g*8
		copy(b[nameAt:nameAt+8], grp.Name)
	}

	legacy.Seal(b)
	return b
}
