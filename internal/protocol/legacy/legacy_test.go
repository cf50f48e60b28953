package legacy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/muurk/airtouch/internal/protocol"
)

func TestCommands(t *testing.T) {
	tests := []struct {
		name   string
		cmd    Command
		want   []byte
		action Action
	}{
		{
			name:   "request state",
			cmd:    RequestState(),
			want:   []byte{0x55, 0x01, 0x0C, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x62},
			action: ActionRequestState,
		},
		{
			name:   "toggle ac",
			cmd:    ToggleAC(0),
			want:   []byte{0x55, 0x86, 0x0C, 0, 0x80, 0, 0, 0, 0, 0, 0, 0, 0x67},
			action: ActionToggleAC,
		},
		{
			name:   "set mode",
			cmd:    SetACMode(1, protocol.ACModeCool),
			want:   []byte{0x55, 0x86, 0x0C, 1, 0x81, 4, 0, 0, 0, 0, 0, 0, 0x6D},
			action: ActionSetMode,
		},
		{
			name:   "setpoint up",
			cmd:    StepSetpoint(0, true),
			want:   []byte{0x55, 0x86, 0x0C, 0, 0xA3, 0, 0, 0, 0, 0, 0, 0, 0x8A},
			action: ActionSetpointUp,
		},
		{
			name:   "toggle group",
			cmd:    ToggleGroup(3),
			want:   []byte{0x55, 0x81, 0x0C, 3, 0x80, 0, 0, 0, 0, 0, 0, 0, 0x65},
			action: ActionToggleGroup,
		},
		{
			name:   "damper down",
			cmd:    StepDamper(2, false),
			want:   []byte{0x55, 0x81, 0x0C, 2, 0x01, 0x01, 0, 0, 0, 0, 0, 0, 0xE6},
			action: ActionDamperDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Bytes(); !bytes.Equal(got, tt.want) {
				t.Fatalf("Bytes() = % x, want % x", got, tt.want)
			}
			parsed, err := ParseCommand(tt.want)
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if parsed != tt.cmd {
				t.Errorf("ParseCommand() = %s, want %s", parsed, tt.cmd)
			}
			if got := parsed.Action(); got != tt.action {
				t.Errorf("Action() = %d, want %d", got, tt.action)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	bad := RequestState()
	bad[12]++
	if _, err := ParseCommand(bad.Bytes()); !protocol.IsRecoverable(err) {
		t.Errorf("bad checksum error = %v", err)
	}
	if _, err := ParseCommand(make([]byte, 5)); !protocol.IsRecoverable(err) {
		t.Errorf("short command error = %v", err)
	}
}

func TestSupportedFanSpeeds(t *testing.T) {
	const (
		auto     = protocol.FanSpeedAuto
		quiet    = protocol.FanSpeedQuiet
		low      = protocol.FanSpeedLow
		medium   = protocol.FanSpeedMedium
		high     = protocol.FanSpeedHigh
		powerful = protocol.FanSpeedPowerful
	)

	tests := []struct {
		name    string
		brand   Brand
		count   int
		gateway uint8
		want    []protocol.FanSpeed
		wantOK  bool
	}{
		{"fujitsu four speeds", BrandFujitsu, 4, 0x0D, []protocol.FanSpeed{auto, quiet, low, medium, high}, true},
		{"generic four speeds", BrandLG, 4, 0, []protocol.FanSpeed{auto, low, medium, high, powerful}, true},
		{"generic three speeds", BrandToshiba, 3, 0, []protocol.FanSpeed{auto, low, medium, high}, true},
		{"two speeds", BrandPanasonic, 2, 0, []protocol.FanSpeed{auto, low, high}, true},
		{"daikin has no auto", BrandDaikin, 3, 0x08, []protocol.FanSpeed{low, medium, high}, true},
		{"gateway 0xff three speeds", BrandNone, 3, 0xFF, []protocol.FanSpeed{low, medium, high}, true},
		{"gateway 0x14", BrandNone, 2, 0x14, []protocol.FanSpeed{low, high}, true},
		{"one speed", BrandNone, 1, 0, []protocol.FanSpeed{auto}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SupportedFanSpeeds(tt.brand, tt.count, tt.gateway)
			if !reflect.DeepEqual(got, tt.want) || ok != tt.wantOK {
				t.Errorf("SupportedFanSpeeds() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFanSpeedValues(t *testing.T) {
	withAuto := []protocol.FanSpeed{protocol.FanSpeedAuto, protocol.FanSpeedLow, protocol.FanSpeedMedium, protocol.FanSpeedHigh}
	noAuto := []protocol.FanSpeed{protocol.FanSpeedLow, protocol.FanSpeedMedium, protocol.FanSpeedHigh}

	for _, supported := range [][]protocol.FanSpeed{withAuto, noAuto} {
		for _, speed := range supported {
			v, err := FanSpeedValue(supported, speed)
			if err != nil {
				t.Fatalf("FanSpeedValue(%v, %s) error = %v", supported, speed, err)
			}
			got, ok := FanSpeedFromValue(supported, v)
			if !ok || got != speed {
				t.Errorf("FanSpeedFromValue(%v, %d) = %s, %v; want %s", supported, v, got, ok, speed)
			}
		}
	}

	if v, _ := FanSpeedValue(noAuto, protocol.FanSpeedLow); v != 1 {
		t.Errorf("low without auto = %d, want 1", v)
	}
	if got, _ := FanSpeedFromValue(noAuto, 7); got != protocol.FanSpeedAuto {
		t.Errorf("value 7 = %s, want auto", got)
	}
	if _, err := FanSpeedValue(noAuto, protocol.FanSpeedAuto); err == nil {
		t.Error("FanSpeedValue(unsupported) error = nil")
	}
}

func TestResolveBrand(t *testing.T) {
	if b, ok := ResolveBrand(0x0D, BrandLG); b != BrandFujitsu || !ok {
		t.Errorf("ResolveBrand(0x0D) = %s, %v", b, ok)
	}
	if b, ok := ResolveBrand(0, BrandLG); b != BrandLG || !ok {
		t.Errorf("ResolveBrand(0) = %s, %v", b, ok)
	}
	if b, ok := ResolveBrand(0x99, BrandLG); b != BrandLG || ok {
		t.Errorf("ResolveBrand(0x99) = %s, %v", b, ok)
	}
}

// testResponse describes one Fujitsu AC (AC1 absent) and two groups: group 0
// spans zones 0-1 and agrees, group 1 spans zones 2-3 and does not.
func testResponse() []byte {
	b := make([]byte, ResponseLength)
	copy(b[OffsetSystemName:], "HOME")
	b[OffsetTouchpadTemp] = 23

	b[OffsetACStatus] = 0x80 | 0x01
	b[OffsetACBrand] = byte(BrandLG)
	b[OffsetACMode] = byte(protocol.ACModeCool)
	b[OffsetACFan] = 0x43
	b[OffsetACSetTemp] = 22
	b[OffsetACGateway] = 0x0D
	b[OffsetACFlags] = 1 << 5
	copy(b[OffsetACNames:], "Ducted")

	b[OffsetNumGroups] = 2
	b[OffsetTurboGroup] = 1
	copy(b[OffsetGroupNames:], "Living")
	copy(b[OffsetGroupNames+8:], "Beds")
	b[OffsetGroupZones] = 0x02
	b[OffsetGroupZones+1] = 0x22
	b[OffsetZoneStatus+0], b[OffsetZoneDampers+0] = 0x80, 5
	b[OffsetZoneStatus+1], b[OffsetZoneDampers+1] = 0x80|0x40, 5
	b[OffsetZoneStatus+2], b[OffsetZoneDampers+2] = 0x80, 7
	b[OffsetZoneStatus+3], b[OffsetZoneDampers+3] = 0x00, 3

	Seal(b)
	return b
}

func TestDecodeResponse(t *testing.T) {
	info, err := DecodeResponse(testResponse())
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}

	if info.SystemName != "HOME" || info.TouchpadTemp != 23 {
		t.Errorf("system = %q, %d", info.SystemName, info.TouchpadTemp)
	}
	if len(info.Warnings) != 0 {
		t.Errorf("Warnings = %v", info.Warnings)
	}

	if len(info.ACs) != 1 {
		t.Fatalf("len(ACs) = %d, want 1", len(info.ACs))
	}
	ac := info.ACs[0]
	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"name", ac.Name, "Ducted"},
		{"on", ac.On, true},
		{"program", ac.Program, uint8(1)},
		{"thermistor", ac.Thermistor, true},
		{"turbo", ac.Turbo, true},
		{"brand", ac.Brand, BrandFujitsu},
		{"mode", ac.Mode, protocol.ACModeCool},
		{"fan", ac.FanSpeed, protocol.FanSpeedMedium},
		{"set temp", ac.SetTemp, 22},
		{"measured falls back to touchpad", ac.MeasuredTemp, 23},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("AC %s = %v, want %v", c.field, c.got, c.want)
		}
	}

	if len(info.Groups) != 2 {
		t.Fatalf("len(Groups) = %d, want 2", len(info.Groups))
	}
	living := info.Groups[0]
	if !living.On || !living.Spill || living.Turbo || living.DamperPercent() != 50 || len(living.Warnings) != 0 {
		t.Errorf("group 0 = %+v", living)
	}
}

func TestDecodeResponseGroupMismatch(t *testing.T) {
	info, err := DecodeResponse(testResponse())
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	beds := info.Groups[1]

	if beds.Name != "Beds" || !beds.On || beds.Damper != 7 || !beds.Turbo {
		t.Errorf("group 1 = %+v, want first zone values", beds)
	}
	want := []string{
		`zones of group "Beds" have mismatching damper percents`,
		`zones of group "Beds" have mismatching on/off states`,
	}
	if !reflect.DeepEqual(beds.Warnings, want) {
		t.Errorf("Warnings = %q, want %q", beds.Warnings, want)
	}
}

func TestDecodeResponseUnknownGateway(t *testing.T) {
	b := testResponse()
	b[OffsetACGateway] = 0x77
	b[OffsetACFan] = 0x10
	Seal(b)

	info, err := DecodeResponse(b)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if len(info.Warnings) != 2 {
		t.Errorf("Warnings = %q, want gateway and fan speed warnings", info.Warnings)
	}
}

func TestReaderResyncs(t *testing.T) {
	resp := testResponse()
	stream := append([]byte{0x01, 0x02, 0x03}, resp...)
	r := NewReader(protocol.NewReaderSource(bytes.NewReader(stream)), true)

	var mismatches int
	for {
		got, err := r.Next(context.Background())
		var sumErr *protocol.ChecksumError
		if errors.As(err, &sumErr) {
			mismatches++
			continue
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !bytes.Equal(got, resp) {
			t.Fatalf("Next() returned a misaligned window")
		}
		break
	}
	if mismatches != 1 {
		t.Errorf("mismatches = %d, want 1", mismatches)
	}
}

func TestReaderReportsEachMisalignmentOnce(t *testing.T) {
	resp := testResponse()
	stray := byte(0x04)
	for ValidChecksum(append([]byte{stray}, resp[:ResponseLength-1]...)) {
		stray++
	}
	var stream []byte
	stream = append(stream, 0x01, 0x02, 0x03)
	stream = append(stream, resp...)
	stream = append(stream, stray)
	stream = append(stream, resp...)
	r := NewReader(protocol.NewReaderSource(bytes.NewReader(stream)), true)

	var mismatches, responses int
	for {
		got, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		var sumErr *protocol.ChecksumError
		if errors.As(err, &sumErr) {
			mismatches++
			continue
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !bytes.Equal(got, resp) {
			t.Fatalf("Next() returned a misaligned window")
		}
		responses++
	}
	if mismatches != 2 || responses != 2 {
		t.Errorf("mismatches = %d, responses = %d, want 2 and 2", mismatches, responses)
	}
}

func TestReaderWithoutVerification(t *testing.T) {
	resp := testResponse()
	resp[OffsetChecksum]++
	r := NewReader(protocol.NewReaderSource(bytes.NewReader(resp)), false)

	got, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !bytes.Equal(got, resp) {
		t.Error("Next() changed the window")
	}
}
