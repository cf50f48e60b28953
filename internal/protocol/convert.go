package protocol

import (
	"bytes"
	"math"
	"strings"
)

// Device limits
const (
	MaxACs    = 8
	MaxGroups = 16

	SetpointMin    = 10
	SetpointMax    = 35
	TemperatureMin = -50
	TemperatureMax = 150
)

// Setpoint is the wire encoding of a target temperature: celsius*10 - 100.
type Setpoint uint8

// NoSetpoint is sent when a record carries no setpoint.
const NoSetpoint Setpoint = SetpointMax*10 - 100 + 1

// SetpointFromCelsius encodes c, which must lie within [SetpointMin, SetpointMax].
func SetpointFromCelsius(c float64) (Setpoint, error) {
	if math.IsNaN(c) || c < SetpointMin || c > SetpointMax {
		return 0, &ValidationError{Field: "setpoint", Value: c, Reason: "must be between 10 and 35"}
	}
	return Setpoint(math.Round(c*10) - 100), nil
}

// Celsius decodes the setpoint. ok is false when the value lies outside the
// device setpoint range.
func (s Setpoint) Celsius() (c float64, ok bool) {
	c = float64(int(s)+100) / 10
	if c < SetpointMin || c > SetpointMax {
		return 0, false
	}
	return c, true
}

// Temperature is the wire encoding of a measured temperature: celsius*10 + 500.
type Temperature uint16

// NoTemperature is sent when a record carries no temperature.
const NoTemperature Temperature = TemperatureMax*10 + 501

// TemperatureFromCelsius encodes c, which must lie within
// [TemperatureMin, TemperatureMax].
func TemperatureFromCelsius(c float64) (Temperature, error) {
	if math.IsNaN(c) || c < TemperatureMin || c > TemperatureMax {
		return 0, &ValidationError{Field: "temperature", Value: c, Reason: "must be between -50 and 150"}
	}
	return Temperature(math.Round(c*10) + 500), nil
}

// Celsius decodes the temperature. ok is false outside the sensor range.
func (t Temperature) Celsius() (c float64, ok bool) {
	c = (float64(t) - 500) / 10
	if c < TemperatureMin || c > TemperatureMax {
		return 0, false
	}
	return c, true
}

// Label16 is a NUL-padded 16-byte ASCII name.
type Label16 [16]byte

// MakeLabel16 truncates s to 16 bytes.
func MakeLabel16(s string) Label16 {
	var l Label16
	copy(l[:], asciiOnly(s))
	return l
}

func (l Label16) String() string { return labelString(l[:]) }

// Label8 is a NUL-padded 8-byte ASCII name.
type Label8 [8]byte

// MakeLabel8 truncates s to 8 bytes.
func MakeLabel8(s string) Label8 {
	var l Label8
	copy(l[:], asciiOnly(s))
	return l
}

func (l Label8) String() string { return labelString(l[:]) }

func labelString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0x7E || r < 0x20 {
			return '?'
		}
		return r
	}, s)
}

func (l Label16) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
func (l Label8) MarshalText() ([]byte, error)  { return []byte(l.String()), nil }
