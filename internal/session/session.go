// Package session keeps one connection to a gateway alive and turns its
// traffic into unit state.
//
// Client speaks the framed protocol and LegacyClient the fixed-length one.
// Both reconnect with backoff on any network failure, replay their
// handshake on each new connection, and keep the units they have seen in a
// Registry whose observers are notified of every change.
//
// Typical use:
//
//	c := session.NewClient(cfg, session.WithLogger(log))
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
//	defer c.Stop()
//	go c.Run(ctx)
//	if err := c.WaitForAC(ctx); err != nil {
//		return err
//	}
//	for _, ac := range c.ACs() {
//		fmt.Println(ac.Name, ac.Power)
//	}
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/muurk/airtouch/internal/protocol"
)

// Session is what the command line and the dashboard need from either
// client.
type Session interface {
	Connect(ctx context.Context) error
	Run(ctx context.Context) error
	Stop()
	WaitForAC(ctx context.Context) error
	State() State

	ACs() []ACState
	Groups() []GroupState
	AC(id uint8) (ACState, bool)
	Group(id uint8) (GroupState, bool)
	SubscribeAC(id uint8, fn func(ACState)) (Handle, error)
	SubscribeGroup(id uint8, fn func(GroupState)) (Handle, error)
	SubscribeNewUnits(fn func(NewUnit)) Handle
	Unsubscribe(h Handle) bool

	SetACPower(ctx context.Context, id uint8, on bool) error
	SetACMode(ctx context.Context, id uint8, mode protocol.ACSetMode) error
	SetACFanSpeed(ctx context.Context, id uint8, speed protocol.FanSpeed) error
	SetACSetpoint(ctx context.Context, id uint8, celsius float64) error
	SetGroupPower(ctx context.Context, id uint8, on bool) error
	SetGroupDamper(ctx context.Context, id uint8, percent int) error
}

var (
	_ Session = (*Client)(nil)
	_ Session = (*LegacyClient)(nil)
)

// New returns the client for cfg.Generation.
func New(cfg Config, opts ...Option) (Session, error) {
	switch cfg.Generation {
	case GenerationPlus, "":
		return NewClient(cfg, opts...), nil
	case GenerationLegacy:
		return NewLegacyClient(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("unknown gateway generation %q", cfg.Generation)
	}
}

// firstAC is closed once, when the first AC is seen.
type firstAC struct {
	once sync.Once
	ch   chan struct{}
}

func newFirstAC() *firstAC { return &firstAC{ch: make(chan struct{})} }

func (f *firstAC) signal() {
	f.once.Do(func() { close(f.ch) })
}

func waitFirstAC(ctx context.Context, f *firstAC) error {
	select {
	case <-f.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
