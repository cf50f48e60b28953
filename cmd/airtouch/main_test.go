package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/session"
	"github.com/muurk/airtouch/internal/simulator"
)

func writeCapture(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "message_20240101-120000_1.dump")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDecodeFramedCapture(t *testing.T) {
	sp, err := protocol.SetpointFromCelsius(22)
	require.NoError(t, err)
	frame, err := protocol.EncodeMessage(protocol.ACStatusMessage{Statuses: []protocol.ACStatus{{
		ID: 1, Power: protocol.ACPowerOn, Mode: protocol.ACModeHeat, FanSpeed: protocol.FanSpeedLow,
		Setpoint: sp, Temperature: protocol.NoTemperature,
	}}}, protocol.FromGateway)
	require.NoError(t, err)

	data := append([]byte{0x00, 0x13}, frame...)
	data = append(data, frame...)

	var out bytes.Buffer
	require.NoError(t, decodeFile(context.Background(), &out, writeCapture(t, data)))
	assert.Contains(t, out.String(), "skipped 2 bytes")
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("Frame{")))
}

func TestDecodeLegacyCapture(t *testing.T) {
	data := simulator.EncodeLegacyResponse(simulator.DefaultLegacyState())

	var out bytes.Buffer
	require.NoError(t, decodeFile(context.Background(), &out, writeCapture(t, data)))
	assert.Contains(t, out.String(), `system "Simulated"`)
	assert.Contains(t, out.String(), "Lounge")
	assert.NotContains(t, out.String(), "checksum mismatch")
}

func TestDecodeEmptyCapture(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, decodeFile(context.Background(), &out, writeCapture(t, nil)))
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "ON", "true", "1"} {
		on, err := parseOnOff(s)
		require.NoError(t, err)
		assert.True(t, on, s)
	}
	on, err := parseOnOff("off")
	require.NoError(t, err)
	assert.False(t, on)
	_, err = parseOnOff("maybe")
	assert.Error(t, err)
}

func TestParseUnitID(t *testing.T) {
	id, err := parseUnitID("7")
	require.NoError(t, err)
	assert.Equal(t, uint8(7), id)

	for _, bad := range []string{"-1", "256", "one"} {
		_, err := parseUnitID(bad)
		assert.Error(t, err, bad)
	}
}

func TestACChangeReached(t *testing.T) {
	on := true
	auto := protocol.ACSetModeAuto
	setpoint := 22.0
	c := acChange{power: &on, mode: &auto, setpoint: &setpoint}

	ac := session.ACState{Power: protocol.ACPowerOn, Mode: protocol.ACModeAutoHeat, Setpoint: 22}
	assert.True(t, c.reached(ac))

	ac.Setpoint = 24
	assert.False(t, c.reached(ac))

	ac.Setpoint = 22
	ac.Power = protocol.ACPowerOff
	assert.False(t, c.reached(ac))
}
