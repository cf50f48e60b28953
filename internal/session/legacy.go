package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/protocol/legacy"
)

// LegacyClient is a session with a gateway speaking the fixed-length
// protocol. Every command is answered by a full status response, and the
// gateway copes with only one command in flight.
type LegacyClient struct {
	*Registry

	cfg       Config
	log       *zap.Logger
	rec       Recorder
	dumper    *FrameDumper
	transport *Transport
	reader    *legacy.Reader
	first     *firstAC
	dropLog   rate.Sometimes

	// slot admits one outstanding command.
	slot chan struct{}

	mu       sync.Mutex
	status   chan struct{} // closed and replaced on every response
	system   *legacy.SystemInfo
	lifetime context.Context
	cancel   context.CancelFunc
}

// NewLegacyClient returns a legacy client for cfg.
func NewLegacyClient(cfg Config, opts ...Option) *LegacyClient {
	cfg = cfg.withDefaults()
	o := buildOptions(cfg, opts)

	c := &LegacyClient{
		Registry: NewRegistry(),
		cfg:      cfg,
		log:      o.log,
		rec:      o.rec,
		dumper:   o.dumper,
		first:    newFirstAC(),
		dropLog:  rate.Sometimes{First: 3, Interval: 10 * time.Second},
		slot:     make(chan struct{}, 1),
		status:   make(chan struct{}),
	}
	if c.dumper == nil && cfg.DumpDir != "" {
		d, err := NewFrameDumper(cfg.DumpDir, c.log)
		if err != nil {
			c.log.Warn("Frame dumps disabled", zap.Error(err))
		}
		c.dumper = d
	}
	request := legacy.RequestState()
	c.transport = NewTransport(cfg, o.dialer, c.log, c.rec, request.Bytes())
	c.reader = legacy.NewReader(c.transport, cfg.VerifyLegacyChecksum)
	return c
}

// Connect dials the gateway and requests the system state.
func (c *LegacyClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.lifetime, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.log.Info("Connecting")
	if err := c.transport.Connect(ctx); err != nil {
		c.cancel()
		return fmt.Errorf("connect to %s: %w", c.cfg.Addr(), err)
	}
	return nil
}

// Run is the receive loop. It returns nil after Stop, or the context error
// when ctx ends first.
func (c *LegacyClient) Run(ctx context.Context) error {
	for {
		raw, err := c.reader.Next(ctx)
		if err != nil {
			var lost *ConnectionLostError
			switch {
			case errors.Is(err, ErrStopped):
				return nil
			case errors.As(err, &lost):
				c.reader.Reset()
				c.log.Debug("Receive loop waiting for reconnect", zap.Error(err))
				continue
			case protocol.IsRecoverable(err):
				c.dropped(err)
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				return fmt.Errorf("receive: %w", err)
			}
		}

		c.dumper.Dump(raw)
		info, err := legacy.DecodeResponse(raw)
		if err != nil {
			c.dropped(err)
			continue
		}
		c.rec.FrameReceived("ok")
		c.rec.MessageDecoded("system_status")
		c.apply(info)
	}
}

// Stop closes the connection. The registry keeps the units seen so far.
func (c *LegacyClient) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.transport.Stop()
	c.log.Info("Stopped")
}

// State returns the transport state.
func (c *LegacyClient) State() State { return c.transport.State() }

// WaitForAC blocks until the first response listing an AC has arrived.
func (c *LegacyClient) WaitForAC(ctx context.Context) error {
	return waitFirstAC(ctx, c.first)
}

// System returns the last decoded response, or nil.
func (c *LegacyClient) System() *legacy.SystemInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system
}

func (c *LegacyClient) dropped(err error) {
	reason := protocol.DropReason(err)
	c.rec.FrameReceived(reason)
	logged := false
	c.dropLog.Do(func() {
		logged = true
		c.log.Warn("Dropped response", zap.String("reason", reason), zap.Error(err))
	})
	if !logged {
		c.log.Debug("Dropped response", zap.String("reason", reason), zap.Error(err))
	}
}

func (c *LegacyClient) apply(info *legacy.SystemInfo) {
	for _, w := range info.Warnings {
		c.log.Warn("Gateway state", zap.String("warning", w))
	}

	for _, ac := range info.ACs {
		if c.updateAC(ac.Number, func(s *ACState) { applyACInfo(s, ac) }) {
			acs, _ := c.counts()
			c.rec.Units(string(UnitAC), acs)
			c.log.Info("Found AC", zap.Stringer("ac", ac))
		}
	}
	for _, g := range info.Groups {
		for _, w := range g.Warnings {
			c.log.Warn("Group state", zap.Uint8("group", g.Number), zap.String("warning", w))
		}
		if c.updateGroup(g.Number, func(s *GroupState) { applyGroupInfo(s, g) }) {
			_, groups := c.counts()
			c.rec.Units(string(UnitGroup), groups)
			c.log.Info("Found group", zap.Stringer("group", g))
		}
	}
	if len(info.ACs) > 0 {
		c.first.signal()
	}

	c.mu.Lock()
	c.system = info
	close(c.status)
	c.status = make(chan struct{})
	c.mu.Unlock()
}

func applyACInfo(s *ACState, ac legacy.ACInfo) {
	s.Name = ac.Name
	s.Power = protocol.ACPowerOff
	if ac.On {
		s.Power = protocol.ACPowerOn
	}
	s.Mode = ac.Mode
	s.FanSpeed = ac.FanSpeed
	s.FanSpeeds = ac.FanSpeeds
	s.Setpoint, s.HasSetpoint = float64(ac.SetTemp), true
	s.Temperature, s.HasTemperature = float64(ac.MeasuredTemp), true
	s.Turbo = ac.Turbo
	s.Spill = ac.Spill
	s.Safety = ac.Safety
	s.ErrorCode = int(ac.ErrorCode)
	s.Brand = ac.Brand.String()
}

func applyGroupInfo(s *GroupState, g legacy.GroupInfo) {
	s.Name = g.Name
	s.Power = protocol.GroupPowerOff
	switch {
	case g.On && g.Turbo:
		s.Power = protocol.GroupPowerTurbo
	case g.On:
		s.Power = protocol.GroupPowerOn
	}
	s.Damper = g.DamperPercent()
	s.Spill = g.Spill
	s.Turbo = g.Turbo
	s.Warnings = g.Warnings
}

// Send writes cmd and waits for the response it provokes, or for
// CommandTimeout. Only one command is in flight at a time.
//
// A command that times out keeps its slot for up to another CommandTimeout
// so that a late response cannot be taken as the answer to the next
// command. After a reconnect the response to the replayed state request
// answers whatever command is waiting; that command may have been lost
// with the old connection.
func (c *LegacyClient) Send(ctx context.Context, cmd legacy.Command) error {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.log.Debug("Sending command", zap.Stringer("command", cmd))
	c.mu.Lock()
	answered := c.status
	c.mu.Unlock()
	if err := c.transport.Send(ctx, cmd.Bytes()); err != nil {
		<-c.slot
		return fmt.Errorf("send %s: %w", cmd.Type(), err)
	}

	timeout := time.NewTimer(c.cfg.CommandTimeout)
	defer timeout.Stop()
	select {
	case <-answered:
		<-c.slot
		return nil
	case <-timeout.C:
		c.log.Warn("No response to command", zap.Stringer("command", cmd), zap.Duration("timeout", c.cfg.CommandTimeout))
		go c.releaseLate(answered)
		return nil
	case <-ctx.Done():
		go c.releaseLate(answered)
		return ctx.Err()
	}
}

// releaseLate frees the command slot once the late response has arrived,
// CommandTimeout has passed again, or the client has stopped.
func (c *LegacyClient) releaseLate(answered <-chan struct{}) {
	defer func() { <-c.slot }()

	c.mu.Lock()
	lifetime := c.lifetime
	c.mu.Unlock()
	var stopped <-chan struct{}
	if lifetime != nil {
		stopped = lifetime.Done()
	}

	grace := time.NewTimer(c.cfg.CommandTimeout)
	defer grace.Stop()
	select {
	case <-answered:
		c.log.Debug("Late response arrived")
	case <-grace.C:
	case <-stopped:
	}
}

// RequestStatus asks for a fresh response.
func (c *LegacyClient) RequestStatus(ctx context.Context) error {
	return c.Send(ctx, legacy.RequestState())
}

func (c *LegacyClient) knownAC(id uint8) (ACState, error) {
	ac, ok := c.AC(id)
	if !ok {
		return ACState{}, fmt.Errorf("AC %d: %w", id, ErrUnknownUnit)
	}
	return ac, nil
}

func (c *LegacyClient) knownGroup(id uint8) (GroupState, error) {
	g, ok := c.Group(id)
	if !ok {
		return GroupState{}, fmt.Errorf("group %d: %w", id, ErrUnknownUnit)
	}
	return g, nil
}

// SetACPower turns AC id on or off. Nothing is sent when it already is.
func (c *LegacyClient) SetACPower(ctx context.Context, id uint8, on bool) error {
	ac, err := c.knownAC(id)
	if err != nil {
		return err
	}
	if ac.On() == on {
		return nil
	}
	return c.Send(ctx, legacy.ToggleAC(id))
}

// SetACMode changes the mode of AC id.
func (c *LegacyClient) SetACMode(ctx context.Context, id uint8, mode protocol.ACSetMode) error {
	if _, err := c.knownAC(id); err != nil {
		return err
	}
	if mode > protocol.ACSetModeCool {
		return &protocol.ValidationError{Field: "ac mode", Value: mode, Reason: "must be auto, heat, dry, fan or cool"}
	}
	return c.Send(ctx, legacy.SetACMode(id, protocol.ACMode(mode)))
}

// SetACFanSpeed changes the fan speed of AC id, which must support it.
func (c *LegacyClient) SetACFanSpeed(ctx context.Context, id uint8, speed protocol.FanSpeed) error {
	ac, err := c.knownAC(id)
	if err != nil {
		return err
	}
	value, err := legacy.FanSpeedValue(ac.FanSpeeds, speed)
	if err != nil {
		return err
	}
	return c.Send(ctx, legacy.SetACFanSpeed(id, value))
}

// SetACSetpoint moves the setpoint of AC id one degree at a time until it
// reaches the nearest whole degree to celsius.
func (c *LegacyClient) SetACSetpoint(ctx context.Context, id uint8, celsius float64) error {
	ac, err := c.knownAC(id)
	if err != nil {
		return err
	}
	if math.IsNaN(celsius) || celsius < protocol.SetpointMin || celsius > protocol.SetpointMax {
		return &protocol.ValidationError{Field: "setpoint", Value: celsius, Reason: "must be between 10 and 35"}
	}
	steps := int(math.Round(celsius)) - int(ac.Setpoint)
	for range abs(steps) {
		if err := c.Send(ctx, legacy.StepSetpoint(id, steps > 0)); err != nil {
			return err
		}
	}
	return nil
}

// SetGroupPower opens or closes group id. Nothing is sent when it already is.
func (c *LegacyClient) SetGroupPower(ctx context.Context, id uint8, on bool) error {
	g, err := c.knownGroup(id)
	if err != nil {
		return err
	}
	if g.On() == on {
		return nil
	}
	return c.Send(ctx, legacy.ToggleGroup(id))
}

// SetGroupDamper sets the damper opening of group id. The gateway moves in
// 10% steps, so percent is rounded to the nearest step; zero closes the
// group, anything else opens it first.
func (c *LegacyClient) SetGroupDamper(ctx context.Context, id uint8, percent int) error {
	if percent < 0 || percent > 100 {
		return &protocol.ValidationError{Field: "damper", Value: percent, Reason: "must be between 0 and 100"}
	}
	target := (percent + 5) / 10
	if target == 0 {
		return c.SetGroupPower(ctx, id, false)
	}
	if err := c.SetGroupPower(ctx, id, true); err != nil {
		return err
	}

	g, err := c.knownGroup(id)
	if err != nil {
		return err
	}
	steps := target - g.Damper/10
	for range abs(steps) {
		if err := c.Send(ctx, legacy.StepDamper(id, steps > 0)); err != nil {
			return err
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
