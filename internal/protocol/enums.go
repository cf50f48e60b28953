package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// ACSetPower is the power field of an AC control record.
type ACSetPower uint8

const (
	ACSetPowerToggle    ACSetPower = 1
	ACSetPowerOff       ACSetPower = 2
	ACSetPowerOn        ACSetPower = 3
	ACSetPowerAway      ACSetPower = 4
	ACSetPowerSleep     ACSetPower = 5
	ACSetPowerUnchanged ACSetPower = 15
)

var acSetPowerNames = map[ACSetPower]string{
	ACSetPowerToggle:    "toggle",
	ACSetPowerOff:       "off",
	ACSetPowerOn:        "on",
	ACSetPowerAway:      "away",
	ACSetPowerSleep:     "sleep",
	ACSetPowerUnchanged: "unchanged",
}

func (p ACSetPower) String() string { return enumName(acSetPowerNames, p) }

// ParseACSetPower parses a name such as "on" or "toggle".
func ParseACSetPower(s string) (ACSetPower, error) { return parseEnum("ac power", acSetPowerNames, s) }

// ACPower is the power field of an AC status record.
type ACPower uint8

const (
	ACPowerOff          ACPower = 0
	ACPowerOn           ACPower = 1
	ACPowerAwayOff      ACPower = 2
	ACPowerAwayOn       ACPower = 3
	ACPowerSleep        ACPower = 5
	ACPowerNotAvailable ACPower = 15
)

var acPowerNames = map[ACPower]string{
	ACPowerOff:          "off",
	ACPowerOn:           "on",
	ACPowerAwayOff:      "away-off",
	ACPowerAwayOn:       "away-on",
	ACPowerSleep:        "sleep",
	ACPowerNotAvailable: "n/a",
}

func (p ACPower) String() string { return enumName(acPowerNames, p) }

// IsOn reports whether the unit is running in any on state.
func (p ACPower) IsOn() bool {
	return p == ACPowerOn || p == ACPowerAwayOn || p == ACPowerSleep
}

// ACSetMode is the mode field of an AC control record.
type ACSetMode uint8

const (
	ACSetModeAuto      ACSetMode = 0
	ACSetModeHeat      ACSetMode = 1
	ACSetModeDry       ACSetMode = 2
	ACSetModeFan       ACSetMode = 3
	ACSetModeCool      ACSetMode = 4
	ACSetModeUnchanged ACSetMode = 15
)

var acSetModeNames = map[ACSetMode]string{
	ACSetModeAuto:      "auto",
	ACSetModeHeat:      "heat",
	ACSetModeDry:       "dry",
	ACSetModeFan:       "fan",
	ACSetModeCool:      "cool",
	ACSetModeUnchanged: "unchanged",
}

func (m ACSetMode) String() string { return enumName(acSetModeNames, m) }

// ParseACSetMode parses a name such as "cool".
func ParseACSetMode(s string) (ACSetMode, error) { return parseEnum("ac mode", acSetModeNames, s) }

// ACMode is the mode field of an AC status record.
type ACMode uint8

const (
	ACModeAuto         ACMode = 0
	ACModeHeat         ACMode = 1
	ACModeDry          ACMode = 2
	ACModeFan          ACMode = 3
	ACModeCool         ACMode = 4
	ACModeAutoHeat     ACMode = 8
	ACModeAutoCool     ACMode = 9
	ACModeNotAvailable ACMode = 15
)

var acModeNames = map[ACMode]string{
	ACModeAuto:         "auto",
	ACModeHeat:         "heat",
	ACModeDry:          "dry",
	ACModeFan:          "fan",
	ACModeCool:         "cool",
	ACModeAutoHeat:     "auto-heat",
	ACModeAutoCool:     "auto-cool",
	ACModeNotAvailable: "n/a",
}

func (m ACMode) String() string { return enumName(acModeNames, m) }

// FanSpeed is shared by AC status and control records.
type FanSpeed uint8

const (
	FanSpeedAuto      FanSpeed = 0
	FanSpeedQuiet     FanSpeed = 1
	FanSpeedLow       FanSpeed = 2
	FanSpeedMedium    FanSpeed = 3
	FanSpeedHigh      FanSpeed = 4
	FanSpeedPowerful  FanSpeed = 5
	FanSpeedTurbo     FanSpeed = 6
	FanSpeedUnchanged FanSpeed = 15
)

var fanSpeedNames = map[FanSpeed]string{
	FanSpeedAuto:      "auto",
	FanSpeedQuiet:     "quiet",
	FanSpeedLow:       "low",
	FanSpeedMedium:    "medium",
	FanSpeedHigh:      "high",
	FanSpeedPowerful:  "powerful",
	FanSpeedTurbo:     "turbo",
	FanSpeedUnchanged: "unchanged",
}

func (f FanSpeed) String() string { return enumName(fanSpeedNames, f) }

// ParseFanSpeed parses a name such as "medium".
func ParseFanSpeed(s string) (FanSpeed, error) { return parseEnum("fan speed", fanSpeedNames, s) }

// GroupPower is the power field of a group status record.
type GroupPower uint8

const (
	GroupPowerOff   GroupPower = 0
	GroupPowerOn    GroupPower = 1
	GroupPowerTurbo GroupPower = 3
)

var groupPowerNames = map[GroupPower]string{
	GroupPowerOff:   "off",
	GroupPowerOn:    "on",
	GroupPowerTurbo: "turbo",
}

func (p GroupPower) String() string { return enumName(groupPowerNames, p) }

// GroupSetDamper is the damper mode of a group control record.
type GroupSetDamper uint8

const (
	GroupSetDamperUnchanged GroupSetDamper = 0
	GroupSetDamperIncrease  GroupSetDamper = 2
	GroupSetDamperDecrease  GroupSetDamper = 3
	GroupSetDamperSet       GroupSetDamper = 4
)

var groupSetDamperNames = map[GroupSetDamper]string{
	GroupSetDamperUnchanged: "unchanged",
	GroupSetDamperIncrease:  "increase",
	GroupSetDamperDecrease:  "decrease",
	GroupSetDamperSet:       "set",
}

func (d GroupSetDamper) String() string { return enumName(groupSetDamperNames, d) }

// GroupSetPower is the power field of a group control record.
type GroupSetPower uint8

const (
	GroupSetPowerUnchanged GroupSetPower = 0
	GroupSetPowerNext      GroupSetPower = 1
	GroupSetPowerOff       GroupSetPower = 2
	GroupSetPowerOn        GroupSetPower = 3
	GroupSetPowerTurbo     GroupSetPower = 5
)

var groupSetPowerNames = map[GroupSetPower]string{
	GroupSetPowerUnchanged: "unchanged",
	GroupSetPowerNext:      "next",
	GroupSetPowerOff:       "off",
	GroupSetPowerOn:        "on",
	GroupSetPowerTurbo:     "turbo",
}

func (p GroupSetPower) String() string { return enumName(groupSetPowerNames, p) }

// ParseGroupSetPower parses a name such as "on" or "next".
func ParseGroupSetPower(s string) (GroupSetPower, error) {
	return parseEnum("group power", groupSetPowerNames, s)
}

// ModeSet is an ability bitmap where bit n means ACMode(n) is supported.
type ModeSet uint8

// NewModeSet builds a bitmap from modes. Modes above bit 7 are ignored.
func NewModeSet(modes ...ACMode) ModeSet {
	var s ModeSet
	for _, m := range modes {
		if m < 8 {
			s |= 1 << m
		}
	}
	return s
}

// Has reports whether m is supported.
func (s ModeSet) Has(m ACMode) bool {
	return m < 8 && s&(1<<m) != 0
}

// Modes lists the supported settable modes in ordinal order.
func (s ModeSet) Modes() []ACMode {
	var out []ACMode
	for m := ACModeAuto; m <= ACModeCool; m++ {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// FanSpeedSet is an ability bitmap where bit n means FanSpeed(n) is supported.
type FanSpeedSet uint8

// NewFanSpeedSet builds a bitmap from speeds. Speeds above bit 7 are ignored.
func NewFanSpeedSet(speeds ...FanSpeed) FanSpeedSet {
	var s FanSpeedSet
	for _, f := range speeds {
		if f < 8 {
			s |= 1 << f
		}
	}
	return s
}

// Has reports whether f is supported.
func (s FanSpeedSet) Has(f FanSpeed) bool {
	return f < 8 && s&(1<<f) != 0
}

// Speeds lists the supported speeds in ordinal order.
func (s FanSpeedSet) Speeds() []FanSpeed {
	var out []FanSpeed
	for f := FanSpeedAuto; f <= FanSpeedTurbo; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func enumName[T ~uint8](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(v))
}

func parseEnum[T ~uint8](kind string, names map[T]string, s string) (T, error) {
	for v, name := range names {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return v, nil
		}
	}
	valid := make([]string, 0, len(names))
	for _, name := range names {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return 0, &ValidationError{
		Field:  kind,
		Value:  s,
		Reason: "expected one of " + strings.Join(valid, ", "),
	}
}

// Status enums encode as their names in JSON and YAML.

func (p ACPower) MarshalText() ([]byte, error)    { return []byte(p.String()), nil }
func (m ACMode) MarshalText() ([]byte, error)     { return []byte(m.String()), nil }
func (f FanSpeed) MarshalText() ([]byte, error)   { return []byte(f.String()), nil }
func (p GroupPower) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
