package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/airtouch/internal/protocol"
)

func TestRegistryNewUnitsAndSnapshots(t *testing.T) {
	r := NewRegistry()

	var seen []NewUnit
	r.SubscribeNewUnits(func(u NewUnit) { seen = append(seen, u) })

	assert.True(t, r.updateAC(3, func(s *ACState) { s.Power = protocol.ACPowerOn }))
	assert.True(t, r.updateAC(1, func(s *ACState) { s.Power = protocol.ACPowerOff }))
	assert.False(t, r.updateAC(3, func(s *ACState) { s.Mode = protocol.ACModeHeat }))
	assert.True(t, r.updateGroup(0, func(s *GroupState) { s.Damper = 50 }))

	assert.Equal(t, []NewUnit{{UnitAC, 3}, {UnitAC, 1}, {UnitGroup, 0}}, seen)

	acs := r.ACs()
	require.Len(t, acs, 2)
	assert.Equal(t, uint8(1), acs[0].ID)
	assert.Equal(t, uint8(3), acs[1].ID)
	assert.True(t, acs[1].On())
	assert.Equal(t, protocol.ACModeHeat, acs[1].Mode)

	g, ok := r.Group(0)
	require.True(t, ok)
	assert.Equal(t, 50, g.Damper)

	_, ok = r.AC(7)
	assert.False(t, ok)
}

func TestRegistryObserversRunInOrder(t *testing.T) {
	r := NewRegistry()
	r.updateAC(0, func(*ACState) {})

	var calls []string
	first, err := r.SubscribeAC(0, func(ACState) { calls = append(calls, "first") })
	require.NoError(t, err)
	_, err = r.SubscribeAC(0, func(ACState) { calls = append(calls, "second") })
	require.NoError(t, err)

	r.updateAC(0, func(s *ACState) { s.Setpoint = 22 })
	assert.Equal(t, []string{"first", "second"}, calls)

	assert.True(t, r.Unsubscribe(first))
	assert.False(t, r.Unsubscribe(first))

	calls = nil
	r.updateAC(0, func(s *ACState) { s.Setpoint = 23 })
	assert.Equal(t, []string{"second"}, calls)
}

func TestRegistryObserversOnlyForTheirUnit(t *testing.T) {
	r := NewRegistry()
	r.updateGroup(0, func(*GroupState) {})
	r.updateGroup(1, func(*GroupState) {})

	var got []GroupState
	_, err := r.SubscribeGroup(1, func(g GroupState) { got = append(got, g) })
	require.NoError(t, err)

	r.updateGroup(0, func(g *GroupState) { g.Damper = 10 })
	assert.Empty(t, got)

	assert.True(t, r.modifyGroup(1, func(g *GroupState) { g.Name = "Kitchen" }))
	require.Len(t, got, 1)
	assert.Equal(t, "Kitchen", got[0].Name)

	assert.False(t, r.modifyGroup(9, func(g *GroupState) { g.Name = "Nowhere" }))
	_, ok := r.Group(9)
	assert.False(t, ok)
}

func TestRegistrySubscribeUnknownUnit(t *testing.T) {
	r := NewRegistry()
	_, err := r.SubscribeAC(2, func(ACState) {})
	assert.ErrorIs(t, err, ErrUnknownUnit)
	_, err = r.SubscribeGroup(2, func(GroupState) {})
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestRegistryObserverMaySubscribe(t *testing.T) {
	r := NewRegistry()

	var updates int
	r.SubscribeNewUnits(func(u NewUnit) {
		if u.Kind != UnitAC {
			return
		}
		_, err := r.SubscribeAC(u.ID, func(ACState) { updates++ })
		assert.NoError(t, err)
	})

	r.updateAC(4, func(*ACState) {})
	r.updateAC(4, func(*ACState) {})
	assert.Equal(t, 2, updates)
}
