package protocol

import (
	"encoding/binary"
	"fmt"
)

// Record widths
const (
	ACStatusLength  = 10
	ACControlLength = 4
)

// ACStatus is one AC status repeat record.
//
// Layout:
//
//	[0]   power<<4 | id
//	[1]   mode<<4 | fan speed
//	[2]   setpoint
//	[3]   flags: turbo (bit 3), bypass (bit 2), spill (bit 1), timer (bit 0)
//	[4-5] measured temperature (big-endian)
//	[6-7] error code (big-endian)
//	[8-9] reserved
type ACStatus struct {
	ID          uint8
	Power       ACPower
	Mode        ACMode
	FanSpeed    FanSpeed
	Setpoint    Setpoint
	Turbo       bool
	Bypass      bool
	Spill       bool
	Timer       bool
	Temperature Temperature
	ErrorCode   uint16

	// unmodelled bits, kept so that re-encoding is lossless
	extra [ACStatusLength]byte
}

// DecodeACStatus decodes a 10-byte AC status record.
func DecodeACStatus(b []byte) (ACStatus, error) {
	if len(b) != ACStatusLength {
		return ACStatus{}, &RecordLengthError{Record: "ac status", Got: len(b), Want: ACStatusLength}
	}
	s := ACStatus{
		ID:          b[0] & 0x0F,
		Power:       ACPower(b[0] >> 4),
		Mode:        ACMode(b[1] >> 4),
		FanSpeed:    FanSpeed(b[1] & 0x0F),
		Setpoint:    Setpoint(b[2]),
		Turbo:       b[3]&0x08 != 0,
		Bypass:      b[3]&0x04 != 0,
		Spill:       b[3]&0x02 != 0,
		Timer:       b[3]&0x01 != 0,
		Temperature: Temperature(binary.BigEndian.Uint16(b[4:6])),
		ErrorCode:   binary.BigEndian.Uint16(b[6:8]),
	}
	s.extra[3] = b[3] &^ 0x0F
	s.extra[8], s.extra[9] = b[8], b[9]
	return s, nil
}

// Bytes encodes the record.
func (s ACStatus) Bytes() []byte {
	b := make([]byte, ACStatusLength)
	b[0] = byte(s.Power&0x0F)<<4 | s.ID&0x0F
	b[1] = byte(s.Mode&0x0F)<<4 | byte(s.FanSpeed&0x0F)
	b[2] = byte(s.Setpoint)
	b[3] = s.extra[3] | bit(s.Turbo, 3) | bit(s.Bypass, 2) | bit(s.Spill, 1) | bit(s.Timer, 0)
	binary.BigEndian.PutUint16(b[4:6], uint16(s.Temperature))
	binary.BigEndian.PutUint16(b[6:8], s.ErrorCode)
	b[8], b[9] = s.extra[8], s.extra[9]
	return b
}

// HasError reports whether the unit is reporting a fault code.
func (s ACStatus) HasError() bool { return s.ErrorCode != 0 }

func (s ACStatus) String() string {
	sp, spOK := s.Setpoint.Celsius()
	temp, tempOK := s.Temperature.Celsius()
	return fmt.Sprintf("AC%d{power=%s mode=%s fan=%s setpoint=%s temp=%s turbo=%t bypass=%t spill=%t timer=%t error=%d}",
		s.ID, s.Power, s.Mode, s.FanSpeed, optCelsius(sp, spOK), optCelsius(temp, tempOK),
		s.Turbo, s.Bypass, s.Spill, s.Timer, s.ErrorCode)
}

// SetpointControl says whether an AC control record changes the setpoint.
type SetpointControl uint8

const (
	SetpointKeep   SetpointControl = 0x00
	SetpointChange SetpointControl = 0x40
)

// ACControl is one AC control repeat record. Fields left at their
// "unchanged" values are not touched by the gateway.
//
// Layout:
//
//	[0] power<<4 | id
//	[1] mode<<4 | fan speed
//	[2] setpoint control (0x00 keep, 0x40 change)
//	[3] setpoint
type ACControl struct {
	ID              uint8
	Power           ACSetPower
	Mode            ACSetMode
	FanSpeed        FanSpeed
	SetpointControl SetpointControl
	Setpoint        Setpoint
}

// NewACControl returns a control record for id that changes nothing.
func NewACControl(id uint8) ACControl {
	return ACControl{
		ID:              id,
		Power:           ACSetPowerUnchanged,
		Mode:            ACSetModeUnchanged,
		FanSpeed:        FanSpeedUnchanged,
		SetpointControl: SetpointKeep,
		Setpoint:        NoSetpoint,
	}
}

// WithSetpoint returns a copy that sets the setpoint to celsius.
func (c ACControl) WithSetpoint(celsius float64) (ACControl, error) {
	sp, err := SetpointFromCelsius(celsius)
	if err != nil {
		return c, err
	}
	c.SetpointControl = SetpointChange
	c.Setpoint = sp
	return c, nil
}

// Validate checks the record can be sent to a gateway.
func (c ACControl) Validate() error {
	if c.ID >= MaxACs {
		return &ValidationError{Field: "ac id", Value: c.ID, Reason: fmt.Sprintf("must be below %d", MaxACs)}
	}
	if c.SetpointControl == SetpointChange {
		if _, ok := c.Setpoint.Celsius(); !ok {
			return &ValidationError{Field: "setpoint", Value: c.Setpoint, Reason: "outside 10-35"}
		}
	}
	return nil
}

// DecodeACControl decodes a 4-byte AC control record.
func DecodeACControl(b []byte) (ACControl, error) {
	if len(b) != ACControlLength {
		return ACControl{}, &RecordLengthError{Record: "ac control", Got: len(b), Want: ACControlLength}
	}
	return ACControl{
		ID:              b[0] & 0x0F,
		Power:           ACSetPower(b[0] >> 4),
		Mode:            ACSetMode(b[1] >> 4),
		FanSpeed:        FanSpeed(b[1] & 0x0F),
		SetpointControl: SetpointControl(b[2]),
		Setpoint:        Setpoint(b[3]),
	}, nil
}

// Bytes encodes the record.
func (c ACControl) Bytes() []byte {
	return []byte{
		byte(c.Power&0x0F)<<4 | c.ID&0x0F,
		byte(c.Mode&0x0F)<<4 | byte(c.FanSpeed&0x0F),
		byte(c.SetpointControl),
		byte(c.Setpoint),
	}
}

func bit(v bool, n uint) byte {
	if v {
		return 1 << n
	}
	return 0
}

func optCelsius(c float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", c)
}
