package protocol

import "fmt"

// The byte at offset 1 of an ability record counts the bytes that follow it.
const (
	abilityFollowingSingle = 22
	abilityFollowingDual   = 24

	ACAbilityLength     = abilityFollowingSingle + 2
	ACAbilityDualLength = abilityFollowingDual + 2
)

// SetpointLimits is an inclusive setpoint range in whole degrees.
type SetpointLimits struct {
	Min uint8
	Max uint8
}

// Contains reports whether c lies within the range.
func (l SetpointLimits) Contains(c float64) bool {
	return c >= float64(l.Min) && c <= float64(l.Max)
}

// ACAbility is the immutable capability record of one AC.
//
// Layout:
//
//	[0]     id
//	[1]     following length: 22 (single range) or 24 (cool/heat ranges)
//	[2-17]  name, NUL padded
//	[18]    first group
//	[19]    group count
//	[20]    supported modes (bit n = ACMode n)
//	[21]    supported fan speeds (bit n = FanSpeed n)
//	[22-23] min, max setpoint                          single range
//	[22-25] cool min, cool max, heat min, heat max     dual range
type ACAbility struct {
	ID         uint8
	Name       Label16
	StartGroup uint8
	GroupCount uint8
	Modes      ModeSet
	FanSpeeds  FanSpeedSet

	// Dual selects the Cool/Heat layout instead of Setpoint.
	Dual     bool
	Setpoint SetpointLimits
	Cool     SetpointLimits
	Heat     SetpointLimits
}

// Len returns the encoded size of the record.
func (a ACAbility) Len() int {
	if a.Dual {
		return ACAbilityDualLength
	}
	return ACAbilityLength
}

// Limits returns the setpoint range that applies in mode.
func (a ACAbility) Limits(mode ACMode) SetpointLimits {
	if !a.Dual {
		return a.Setpoint
	}
	if mode == ACModeHeat || mode == ACModeAutoHeat {
		return a.Heat
	}
	return a.Cool
}

// DecodeACAbility decodes exactly one ability record.
func DecodeACAbility(b []byte) (ACAbility, error) {
	if len(b) < 2 {
		return ACAbility{}, &RecordLengthError{Record: "ac ability", Got: len(b), Want: ACAbilityLength}
	}
	want := int(b[1]) + 2
	if want != ACAbilityLength && want != ACAbilityDualLength {
		return ACAbility{}, &RecordLengthError{Record: "ac ability length byte", Got: want, Want: ACAbilityLength}
	}
	if len(b) != want {
		return ACAbility{}, &RecordLengthError{Record: "ac ability", Got: len(b), Want: want}
	}

	a := ACAbility{
		ID:         b[0],
		StartGroup: b[18],
		GroupCount: b[19],
		Modes:      ModeSet(b[20]),
		FanSpeeds:  FanSpeedSet(b[21]),
		Dual:       want == ACAbilityDualLength,
	}
	copy(a.Name[:], b[2:18])
	if a.Dual {
		a.Cool = SetpointLimits{Min: b[22], Max: b[23]}
		a.Heat = SetpointLimits{Min: b[24], Max: b[25]}
	} else {
		a.Setpoint = SetpointLimits{Min: b[22], Max: b[23]}
	}
	return a, nil
}

// DecodeACAbilities decodes back-to-back ability records of either variant.
func DecodeACAbilities(b []byte) ([]ACAbility, error) {
	var out []ACAbility
	for off := 0; off < len(b); {
		if len(b)-off < 2 {
			return out, &RecordLengthError{Record: "ac ability", Got: len(b) - off, Want: ACAbilityLength}
		}
		n := int(b[off+1]) + 2
		if off+n > len(b) {
			return out, &RecordLengthError{Record: "ac ability", Got: len(b) - off, Want: n}
		}
		a, err := DecodeACAbility(b[off : off+n])
		if err != nil {
			return out, err
		}
		out = append(out, a)
		off += n
	}
	return out, nil
}

// Bytes encodes the record.
func (a ACAbility) Bytes() []byte {
	following := byte(abilityFollowingSingle)
	if a.Dual {
		following = abilityFollowingDual
	}
	b := make([]byte, 0, a.Len())
	b = append(b, a.ID, following)
	b = append(b, a.Name[:]...)
	b = append(b, a.StartGroup, a.GroupCount, byte(a.Modes), byte(a.FanSpeeds))
	if a.Dual {
		return append(b, a.Cool.Min, a.Cool.Max, a.Heat.Min, a.Heat.Max)
	}
	return append(b, a.Setpoint.Min, a.Setpoint.Max)
}

func (a ACAbility) String() string {
	limits := fmt.Sprintf("setpoint=%d-%d", a.Setpoint.Min, a.Setpoint.Max)
	if a.Dual {
		limits = fmt.Sprintf("cool=%d-%d heat=%d-%d", a.Cool.Min, a.Cool.Max, a.Heat.Min, a.Heat.Max)
	}
	return fmt.Sprintf("Ability%d{name=%q groups=%d+%d modes=%v fans=%v %s}",
		a.ID, a.Name, a.StartGroup, a.GroupCount, a.Modes.Modes(), a.FanSpeeds.Speeds(), limits)
}
