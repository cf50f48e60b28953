package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/airtouch/internal/logging"
	"github.com/muurk/airtouch/internal/protocol"
)

// Client is a session with a gateway speaking the framed protocol.
//
// Commands are fire and forget: the gateway answers with a status push,
// which reaches the registry through the receive loop.
type Client struct {
	*Registry

	cfg       Config
	log       *zap.Logger
	rec       Recorder
	dumper    *FrameDumper
	transport *Transport
	first     *firstAC
	dropLog   rate.Sometimes

	// abilitySlot admits one outstanding ability request at a time.
	abilitySlot chan struct{}
	pendingMu   sync.Mutex
	pending     *pendingAbility

	mu       sync.Mutex
	lifetime context.Context
	cancel   context.CancelFunc
	fetching map[uint8]bool
	wg       sync.WaitGroup
}

type pendingAbility struct {
	id    uint8
	reply chan protocol.ACAbility
}

// NewClient returns a client for cfg. Nothing is dialled until Connect.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	o := buildOptions(cfg, opts)

	c := &Client{
		Registry:    NewRegistry(),
		cfg:         cfg,
		log:         o.log,
		rec:         o.rec,
		dumper:      o.dumper,
		first:       newFirstAC(),
		dropLog:     rate.Sometimes{First: 3, Interval: 10 * time.Second},
		abilitySlot: make(chan struct{}, 1),
		fetching:    make(map[uint8]bool),
	}
	if c.dumper == nil && cfg.DumpDir != "" {
		d, err := NewFrameDumper(cfg.DumpDir, c.log)
		if err != nil {
			c.log.Warn("Frame dumps disabled", zap.Error(err))
		}
		c.dumper = d
	}
	c.transport = NewTransport(cfg, o.dialer, c.log, c.rec,
		protocol.RequestGroupStatus(),
		protocol.RequestACStatus(),
	)
	return c
}

// Connect dials the gateway and requests the status of every unit.
func (c *Client) Connect(ctx context.Context) error {
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
func (c *Client) Run(ctx context.Context) error {
	for {
		frame, err := protocol.ReadFrame(ctx, c.transport, protocol.FromGateway)
		if err != nil {
			var lost *ConnectionLostError
			switch {
			case errors.Is(err, ErrStopped):
				return nil
			case errors.As(err, &lost):
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

		if frame.Skipped > 0 {
			c.log.Debug("Skipped bytes before frame", zap.Int("bytes", frame.Skipped))
		}
		c.dumper.Dump(frame.Bytes())

		msg, err := protocol.DecodeMessage(frame)
		if err != nil {
			c.dropped(err)
			continue
		}
		c.rec.FrameReceived("ok")
		c.handle(msg)
	}
}

// Stop closes the connection and ends background work. The registry keeps
// the units seen so far.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.transport.Stop()
	c.wg.Wait()
	c.log.Info("Stopped")
}

// State returns the transport state.
func (c *Client) State() State { return c.transport.State() }

// WaitForAC blocks until the first AC status has been received.
func (c *Client) WaitForAC(ctx context.Context) error {
	return waitFirstAC(ctx, c.first)
}

func (c *Client) dropped(err error) {
	reason := protocol.DropReason(err)
	c.rec.FrameReceived(reason)
	logged := false
	c.dropLog.Do(func() {
		logged = true
		c.log.Warn("Dropped frame", zap.String("reason", reason), zap.Error(err))
	})
	if !logged {
		c.log.Debug("Dropped frame", zap.String("reason", reason), zap.Error(err))
	}
}

func (c *Client) handle(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.ACStatusMessage:
		c.rec.MessageDecoded("ac_status")
		for _, s := range m.Statuses {
			c.onACStatus(s)
		}
	case protocol.GroupStatusMessage:
		c.rec.MessageDecoded("group_status")
		_, before := c.counts()
		for _, s := range m.Statuses {
			c.onGroupStatus(s)
		}
		if before == 0 && len(m.Statuses) > 0 {
			c.goSend("group names", protocol.RequestGroupNames())
		}
	case protocol.ACAbilityMessage:
		c.rec.MessageDecoded("ac_ability")
		for _, a := range m.Abilities {
			c.onAbility(a)
		}
	case protocol.GroupNamesMessage:
		c.rec.MessageDecoded("group_names")
		for _, n := range m.Names {
			name := n.Name.String()
			if !c.modifyGroup(n.ID, func(g *GroupState) { g.Name = name }) {
				c.log.Debug("Name for unknown group", zap.Uint8("group", n.ID), zap.String("name", name))
			}
		}
	case protocol.ErrorMessage:
		c.rec.MessageDecoded("error")
		c.log.Warn("Gateway reported an error", logging.HexBytes("data", m.Data))
	default:
		c.rec.MessageDecoded("other")
		c.log.Debug("Ignoring message", zap.Stringer("message", msg))
	}
}

func (c *Client) onACStatus(s protocol.ACStatus) {
	created := c.updateAC(s.ID, func(a *ACState) { applyACStatus(a, s) })
	if created {
		acs, _ := c.counts()
		c.rec.Units(string(UnitAC), acs)
		c.log.Info("Found AC", zap.Uint8("ac", s.ID), zap.Stringer("status", s))
		c.first.signal()
	}
	if a, ok := c.AC(s.ID); ok && a.Ability == nil {
		c.fetchAbility(s.ID)
	}
}

func (c *Client) onGroupStatus(s protocol.GroupStatus) {
	if c.updateGroup(s.ID, func(g *GroupState) { applyGroupStatus(g, s) }) {
		_, groups := c.counts()
		c.rec.Units(string(UnitGroup), groups)
		c.log.Info("Found group", zap.Uint8("group", s.ID), zap.Stringer("status", s))
	}
}

func applyACStatus(a *ACState, s protocol.ACStatus) {
	a.Power = s.Power
	a.Mode = s.Mode
	a.FanSpeed = s.FanSpeed
	a.Setpoint, a.HasSetpoint = s.Setpoint.Celsius()
	a.Temperature, a.HasTemperature = s.Temperature.Celsius()
	a.Turbo = s.Turbo
	a.Bypass = s.Bypass
	a.Spill = s.Spill
	a.Timer = s.Timer
	a.ErrorCode = int(s.ErrorCode)
}

func applyGroupStatus(g *GroupState, s protocol.GroupStatus) {
	g.Power = s.Power
	g.Damper = int(s.Damper)
	g.Spill = s.Spill
	g.Turbo = s.Power == protocol.GroupPowerTurbo
	g.SupportsTurbo = s.SupportsTurbo
}

func applyAbility(a *ACState, ability protocol.ACAbility) {
	a.Ability = &ability
	a.Name = ability.Name.String()
	a.FanSpeeds = ability.FanSpeeds.Speeds()
}

// fetchAbility starts a background ability request for id unless one is
// already running.
func (c *Client) fetchAbility(id uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetching[id] || c.lifetime == nil || c.lifetime.Err() != nil {
		return
	}
	c.fetching[id] = true
	lifetime := c.lifetime
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.fetching, id)
			c.mu.Unlock()
		}()

		ability, err := c.RequestAbility(lifetime, id)
		if err != nil {
			c.log.Debug("Ability request abandoned", zap.Uint8("ac", id), zap.Error(err))
			return
		}
		c.modifyAC(id, func(a *ACState) { applyAbility(a, ability) })
		c.log.Info("AC ability received", zap.Stringer("ability", ability))
	}()
}

// RequestAbility asks the gateway to describe AC id and waits for the
// answer. Only one request is outstanding at a time; the request is sent
// again every AbilityRetryInterval until the matching answer arrives.
func (c *Client) RequestAbility(ctx context.Context, id uint8) (protocol.ACAbility, error) {
	frame, err := protocol.RequestACAbility(id)
	if err != nil {
		return protocol.ACAbility{}, err
	}

	select {
	case c.abilitySlot <- struct{}{}:
	case <-ctx.Done():
		return protocol.ACAbility{}, ctx.Err()
	}
	defer func() { <-c.abilitySlot }()

	p := &pendingAbility{id: id, reply: make(chan protocol.ACAbility, 1)}
	c.pendingMu.Lock()
	c.pending = p
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.pendingMu.Unlock()
	}()

	retry := time.NewTicker(c.cfg.AbilityRetryInterval)
	defer retry.Stop()

	for attempt := 1; ; attempt++ {
		if err := c.transport.Send(ctx, frame); err != nil {
			return protocol.ACAbility{}, fmt.Errorf("request ability of AC %d: %w", id, err)
		}
		c.rec.AbilityRequest("sent")

		select {
		case ability := <-p.reply:
			c.rec.AbilityRequest("matched")
			return ability, nil
		case <-retry.C:
			c.rec.AbilityRequest("retry")
			c.log.Debug("Ability request unanswered, sending again", zap.Uint8("ac", id), zap.Int("attempt", attempt))
		case <-ctx.Done():
			return protocol.ACAbility{}, ctx.Err()
		}
	}
}

// onAbility hands an ability record to the outstanding request. Records
// for another AC are discarded; unsolicited records for a known AC are
// attached directly.
func (c *Client) onAbility(a protocol.ACAbility) {
	c.pendingMu.Lock()
	p := c.pending
	if p != nil && p.id == a.ID {
		c.pending = nil
	}
	c.pendingMu.Unlock()

	switch {
	case p == nil:
		if c.modifyAC(a.ID, func(s *ACState) { applyAbility(s, a) }) {
			c.log.Debug("Unsolicited ability attached", zap.Uint8("ac", a.ID))
		}
	case p.id != a.ID:
		c.rec.AbilityRequest("mismatch")
		c.log.Warn("Discarding ability response", zap.Error(&CorrelationMismatchError{Want: p.id, Got: a.ID}))
	default:
		p.reply <- a
	}
}

func (c *Client) goSend(what string, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifetime == nil || c.lifetime.Err() != nil {
		return
	}
	lifetime := c.lifetime
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.transport.Send(lifetime, frame); err != nil {
			c.log.Debug("Request not sent", zap.String("request", what), zap.Error(err))
		}
	}()
}

// RequestStatus asks for the status of every group and AC.
func (c *Client) RequestStatus(ctx context.Context) error {
	if err := c.transport.Send(ctx, protocol.RequestGroupStatus()); err != nil {
		return err
	}
	return c.transport.Send(ctx, protocol.RequestACStatus())
}

// ControlAC sends AC control records.
func (c *Client) ControlAC(ctx context.Context, controls ...protocol.ACControl) error {
	frame, err := protocol.ControlACs(controls...)
	if err != nil {
		return err
	}
	c.log.Debug("Sending AC control", zap.Int("records", len(controls)))
	return c.transport.Send(ctx, frame)
}

// ControlGroup sends group control records.
func (c *Client) ControlGroup(ctx context.Context, controls ...protocol.GroupControl) error {
	frame, err := protocol.ControlGroups(controls...)
	if err != nil {
		return err
	}
	c.log.Debug("Sending group control", zap.Int("records", len(controls)))
	return c.transport.Send(ctx, frame)
}

// SetACPower turns AC id on or off.
func (c *Client) SetACPower(ctx context.Context, id uint8, on bool) error {
	ctl := protocol.NewACControl(id)
	ctl.Power = protocol.ACSetPowerOff
	if on {
		ctl.Power = protocol.ACSetPowerOn
	}
	return c.ControlAC(ctx, ctl)
}

// SetACMode changes the mode of AC id. A mode the AC does not list in its
// ability is rejected.
func (c *Client) SetACMode(ctx context.Context, id uint8, mode protocol.ACSetMode) error {
	if a, ok := c.AC(id); ok && a.Ability != nil && !a.Ability.Modes.Has(protocol.ACMode(mode)) {
		return &protocol.ValidationError{Field: "ac mode", Value: mode, Reason: fmt.Sprintf("not supported by AC %d", id)}
	}
	ctl := protocol.NewACControl(id)
	ctl.Mode = mode
	return c.ControlAC(ctx, ctl)
}

// SetACFanSpeed changes the fan speed of AC id. A speed the AC does not
// list in its ability is rejected.
func (c *Client) SetACFanSpeed(ctx context.Context, id uint8, speed protocol.FanSpeed) error {
	if a, ok := c.AC(id); ok && a.Ability != nil && !a.Ability.FanSpeeds.Has(speed) {
		return &protocol.ValidationError{Field: "fan speed", Value: speed, Reason: fmt.Sprintf("not supported by AC %d", id)}
	}
	ctl := protocol.NewACControl(id)
	ctl.FanSpeed = speed
	return c.ControlAC(ctx, ctl)
}

// SetACSetpoint changes the target temperature of AC id. When the AC's
// ability is known the value must lie within the range for its mode.
func (c *Client) SetACSetpoint(ctx context.Context, id uint8, celsius float64) error {
	if a, ok := c.AC(id); ok && a.Ability != nil {
		if limits := a.Ability.Limits(a.Mode); !limits.Contains(celsius) {
			return &protocol.ValidationError{
				Field:  "setpoint",
				Value:  celsius,
				Reason: fmt.Sprintf("AC %d accepts %d to %d in %s mode", id, limits.Min, limits.Max, a.Mode),
			}
		}
	}
	ctl, err := protocol.NewACControl(id).WithSetpoint(celsius)
	if err != nil {
		return err
	}
	return c.ControlAC(ctx, ctl)
}

// SetGroupPower opens or closes group id.
func (c *Client) SetGroupPower(ctx context.Context, id uint8, on bool) error {
	ctl := protocol.NewGroupControl(id)
	ctl.Power = protocol.GroupSetPowerOff
	if on {
		ctl.Power = protocol.GroupSetPowerOn
	}
	return c.ControlGroup(ctx, ctl)
}

// SetGroupDamper sets the damper opening of group id in percent.
func (c *Client) SetGroupDamper(ctx context.Context, id uint8, percent int) error {
	if percent < 0 || percent > 100 {
		return &protocol.ValidationError{Field: "damper", Value: percent, Reason: "must be between 0 and 100"}
	}
	return c.ControlGroup(ctx, protocol.NewGroupControl(id).WithDamper(uint8(percent)))
}
