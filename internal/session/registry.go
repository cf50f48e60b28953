package session

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/muurk/airtouch/internal/protocol"
)

// ACState is the generation-independent view of one AC.
type ACState struct {
	ID        uint8               `json:"id"`
	Name      string              `json:"name,omitempty"`
	Power     protocol.ACPower    `json:"power"`
	Mode      protocol.ACMode     `json:"mode"`
	FanSpeed  protocol.FanSpeed   `json:"fan_speed"`
	FanSpeeds []protocol.FanSpeed `json:"fan_speeds,omitempty"`

	Setpoint       float64 `json:"setpoint"`
	HasSetpoint    bool    `json:"has_setpoint"`
	Temperature    float64 `json:"temperature"`
	HasTemperature bool    `json:"has_temperature"`

	Turbo     bool   `json:"turbo"`
	Bypass    bool   `json:"bypass"`
	Spill     bool   `json:"spill"`
	Timer     bool   `json:"timer"`
	Safety    bool   `json:"safety"`
	ErrorCode int    `json:"error_code"`
	Brand     string `json:"brand,omitempty"`

	// Ability is nil until the gateway has described the unit.
	Ability *protocol.ACAbility `json:"ability,omitempty"`
}

// On reports whether the AC is running.
func (s ACState) On() bool { return s.Power.IsOn() }

// GroupState is the generation-independent view of one zone group.
type GroupState struct {
	ID            uint8               `json:"id"`
	Name          string              `json:"name,omitempty"`
	Power         protocol.GroupPower `json:"power"`
	Damper        int                 `json:"damper"`
	Spill         bool                `json:"spill"`
	Turbo         bool                `json:"turbo"`
	SupportsTurbo bool                `json:"supports_turbo"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// On reports whether the group is open.
func (s GroupState) On() bool { return s.Power != protocol.GroupPowerOff }

// UnitKind tells ACs and groups apart in notifications.
type UnitKind string

const (
	UnitAC    UnitKind = "ac"
	UnitGroup UnitKind = "group"
)

// NewUnit is passed to new-unit observers.
type NewUnit struct {
	Kind UnitKind
	ID   uint8
}

// Handle identifies one subscription.
type Handle struct {
	kind handleKind
	id   uint8
	seq  uint64
}

type handleKind uint8

const (
	handleAC handleKind = iota + 1
	handleGroup
	handleNewUnit
)

// Registry holds the units seen on a gateway and their observers. Observers
// of one unit run synchronously in subscription order and never
// concurrently with each other.
type Registry struct {
	mu     sync.RWMutex
	acs    map[uint8]*entry[ACState]
	groups map[uint8]*entry[GroupState]

	newUnits observers[NewUnit]
	seq      atomic.Uint64
}

type entry[T any] struct {
	state     T
	observers observers[T]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		acs:    make(map[uint8]*entry[ACState]),
		groups: make(map[uint8]*entry[GroupState]),
	}
}

// ACs returns every AC sorted by id.
func (r *Registry) ACs() []ACState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.acs)
}

// Groups returns every group sorted by id.
func (r *Registry) Groups() []GroupState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.groups)
}

// AC returns one AC.
func (r *Registry) AC(id uint8) (ACState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.acs[id]
	if !ok {
		return ACState{}, false
	}
	return e.state, true
}

// Group returns one group.
func (r *Registry) Group(id uint8) (GroupState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.groups[id]
	if !ok {
		return GroupState{}, false
	}
	return e.state, true
}

// SubscribeAC registers fn for updates of AC id.
func (r *Registry) SubscribeAC(id uint8, fn func(ACState)) (Handle, error) {
	r.mu.RLock()
	e, ok := r.acs[id]
	r.mu.RUnlock()
	if !ok {
		return Handle{}, ErrUnknownUnit
	}
	seq := r.seq.Add(1)
	e.observers.add(seq, fn)
	return Handle{kind: handleAC, id: id, seq: seq}, nil
}

// SubscribeGroup registers fn for updates of group id.
func (r *Registry) SubscribeGroup(id uint8, fn func(GroupState)) (Handle, error) {
	r.mu.RLock()
	e, ok := r.groups[id]
	r.mu.RUnlock()
	if !ok {
		return Handle{}, ErrUnknownUnit
	}
	seq := r.seq.Add(1)
	e.observers.add(seq, fn)
	return Handle{kind: handleGroup, id: id, seq: seq}, nil
}

// SubscribeNewUnits registers fn for units seen for the first time.
func (r *Registry) SubscribeNewUnits(fn func(NewUnit)) Handle {
	seq := r.seq.Add(1)
	r.newUnits.add(seq, fn)
	return Handle{kind: handleNewUnit, seq: seq}
}

// Unsubscribe removes a subscription. It reports whether h was registered.
func (r *Registry) Unsubscribe(h Handle) bool {
	switch h.kind {
	case handleNewUnit:
		return r.newUnits.remove(h.seq)
	case handleAC:
		r.mu.RLock()
		e, ok := r.acs[h.id]
		r.mu.RUnlock()
		return ok && e.observers.remove(h.seq)
	case handleGroup:
		r.mu.RLock()
		e, ok := r.groups[h.id]
		r.mu.RUnlock()
		return ok && e.observers.remove(h.seq)
	default:
		return false
	}
}

// updateAC applies fn to AC id, creating it if needed, then notifies. It
// reports whether the AC was new.
func (r *Registry) updateAC(id uint8, fn func(*ACState)) bool {
	return update(r, r.acs, UnitAC, id, func(s *ACState) {
		s.ID = id
		fn(s)
	})
}

// updateGroup is updateAC for groups.
func (r *Registry) updateGroup(id uint8, fn func(*GroupState)) bool {
	return update(r, r.groups, UnitGroup, id, func(s *GroupState) {
		s.ID = id
		fn(s)
	})
}

// modifyAC applies fn to a known AC only.
func (r *Registry) modifyAC(id uint8, fn func(*ACState)) bool {
	return modify(r, r.acs, id, fn)
}

// modifyGroup applies fn to a known group only.
func (r *Registry) modifyGroup(id uint8, fn func(*GroupState)) bool {
	return modify(r, r.groups, id, fn)
}

func (r *Registry) counts() (acs, groups int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.acs), len(r.groups)
}

func update[T any](r *Registry, units map[uint8]*entry[T], kind UnitKind, id uint8, fn func(*T)) bool {
	r.mu.Lock()
	e, ok := units[id]
	if !ok {
		e = &entry[T]{}
		units[id] = e
	}
	fn(&e.state)
	r.mu.Unlock()

	if !ok {
		r.newUnits.notify(NewUnit{Kind: kind, ID: id})
	}
	e.observers.notifyLatest(current(r, e))
	return !ok
}

func modify[T any](r *Registry, units map[uint8]*entry[T], id uint8, fn func(*T)) bool {
	r.mu.Lock()
	e, ok := units[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	fn(&e.state)
	r.mu.Unlock()

	e.observers.notifyLatest(current(r, e))
	return true
}

// current reads the state when the observers are about to run, so that
// racing updates never deliver an older state after a newer one.
func current[T any](r *Registry, e *entry[T]) func() T {
	return func() T {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return e.state
	}
}

func snapshot[T any](units map[uint8]*entry[T]) []T {
	out := make([]T, 0, len(units))
	for _, id := range slices.Sorted(maps.Keys(units)) {
		out = append(out, units[id].state)
	}
	return out
}

// observers is an ordered list of callbacks. notify holds callMu for the
// whole pass so that callbacks for one subject never overlap; add and remove
// only take mu, so a callback may subscribe or unsubscribe.
type observers[T any] struct {
	mu      sync.Mutex
	callMu  sync.Mutex
	entries []observer[T]
}

type observer[T any] struct {
	seq uint64
	fn  func(T)
}

func (o *observers[T]) add(seq uint64, fn func(T)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, observer[T]{seq: seq, fn: fn})
}

func (o *observers[T]) remove(seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := slices.IndexFunc(o.entries, func(e observer[T]) bool { return e.seq == seq })
	if i < 0 {
		return false
	}
	o.entries = slices.Delete(o.entries, i, i+1)
	return true
}

func (o *observers[T]) notify(v T) {
	o.notifyLatest(func() T { return v })
}

func (o *observers[T]) notifyLatest(get func() T) {
	o.callMu.Lock()
	defer o.callMu.Unlock()
	v := get()

	o.mu.Lock()
	fns := make([]func(T), len(o.entries))
	for i, e := range o.entries {
		fns[i] = e.fn
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
