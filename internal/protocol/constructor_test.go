package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestRequestBuilders(t *testing.T) {
	ability, err := RequestACAbility(2)
	if err != nil {
		t.Fatalf("RequestACAbility(2) error = %v", err)
	}

	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{
			name: "group status",
			got:  RequestGroupStatus(),
			want: []byte{0x55, 0x55, 0x80, 0xB0, 0x01, 0xC0, 0x00, 0x08, 0x21, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x66, 0xB0},
		},
		{
			name: "ability for one AC",
			got:  ability,
			want: []byte{0x55, 0x55, 0x90, 0xB0, 0x01, 0x1F, 0x00, 0x03, 0xFF, 0x11, 0x02, 0xC8, 0x02},
		},
		{
			name: "group names",
			got:  RequestGroupNames(),
			want: []byte{0x55, 0x55, 0x90, 0xB0, 0x01, 0x1F, 0x00, 0x02, 0xFF, 0x12, 0x82, 0x0C},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("got % x, want % x", tt.got, tt.want)
			}
		})
	}
}

func TestRequestAllACAbilities(t *testing.T) {
	got := RequestAllACAbilities()
	if len(got) != NonDataLength+ExtendedSubHeaderLength {
		t.Fatalf("len = %d, want %d", len(got), NonDataLength+ExtendedSubHeaderLength)
	}
	if got[8] != 0xFF || got[9] != byte(SubTypeAbility) {
		t.Errorf("sub-header = % x", got[8:10])
	}
}

func TestControlACs(t *testing.T) {
	ctl := NewACControl(1)
	ctl.Power = ACSetPowerOn
	ctl.Mode = ACSetModeCool
	ctl, err := ctl.WithSetpoint(22)
	if err != nil {
		t.Fatalf("WithSetpoint() error = %v", err)
	}

	if got, want := ctl.Bytes(), []byte{0x31, 0x4F, 0x40, 120}; !bytes.Equal(got, want) {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}

	frame, err := ControlACs(ctl)
	if err != nil {
		t.Fatalf("ControlACs() error = %v", err)
	}
	wantPayload := []byte{0x22, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x01, 0x31, 0x4F, 0x40, 120}
	if got := frame[HeaderLength : len(frame)-ChecksumLength]; !bytes.Equal(got, wantPayload) {
		t.Errorf("payload = % x, want % x", got, wantPayload)
	}
}

func TestControlValidation(t *testing.T) {
	badSetpoint := NewACControl(0)
	badSetpoint.SetpointControl = SetpointChange

	tests := []struct {
		name string
		fn   func() ([]byte, error)
	}{
		{"no ac records", func() ([]byte, error) { return ControlACs() }},
		{"ac id too large", func() ([]byte, error) { return ControlACs(NewACControl(MaxACs)) }},
		{"setpoint change without value", func() ([]byte, error) { return ControlACs(badSetpoint) }},
		{"no group records", func() ([]byte, error) { return ControlGroups() }},
		{"group id too large", func() ([]byte, error) { return ControlGroups(NewGroupControl(MaxGroups)) }},
		{"damper over 100", func() ([]byte, error) { return ControlGroups(NewGroupControl(0).WithDamper(101)) }},
		{"ability id too large", func() ([]byte, error) { return RequestACAbility(8) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestControlGroups(t *testing.T) {
	on := NewGroupControl(3)
	on.Power = GroupSetPowerOn

	frame, err := ControlGroups(on, NewGroupControl(4).WithDamper(55))
	if err != nil {
		t.Fatalf("ControlGroups() error = %v", err)
	}
	want := []byte{
		0x20, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x02,
		0x03, 0x03, 0xFF, 0x00,
		0x04, 0x80, 55, 0x00,
	}
	if got := frame[HeaderLength : len(frame)-ChecksumLength]; !bytes.Equal(got, want) {
		t.Errorf("payload = % x, want % x", got, want)
	}
}
