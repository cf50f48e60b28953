package legacy

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/muurk/airtouch/internal/protocol"
)

// Response layout. Per-AC fields hold one byte for each of the two ACs.
const (
	ResponseLength = 395

	MaxACs   = 2
	MaxZones = 16

	OffsetGroupNames   = 100 // 16 x 8 bytes
	OffsetZoneStatus   = 228 // 16 bytes: bit 7 on, bit 6 spill
	OffsetGroupZones   = 244 // 16 bytes: first zone << 4 | zone count
	OffsetZoneDampers  = 276 // 16 bytes, 10% steps
	OffsetNumGroups    = 292
	OffsetTurboGroup   = 297
	OffsetACFlags      = 299 // turbo bit 5-n, safety bit 3-n, spill bit 1-n
	OffsetTouchpadTemp = 323
	OffsetSystemName   = 324 // 16 bytes
	OffsetACStatus     = 354 // bit 7 on, bit 6 error, bit 2 clear = thermistor on AC, bits 0-2 program
	OffsetACBrand      = 356
	OffsetACMode       = 358
	OffsetACFan        = 360 // speed count << 4 | speed value
	OffsetACSetTemp    = 362
	OffsetACTemp       = 364
	OffsetACError      = 366
	OffsetACGateway    = 368
	OffsetACNames      = 370 // 2 x 8 bytes
	OffsetChecksum     = 394

	shortNameLength = 8
	longNameLength  = 16
)

// ACInfo is the state of one AC as reported in a response.
type ACInfo struct {
	Number       uint8
	Name         string
	On           bool
	Error        bool
	ErrorCode    uint8
	Thermistor   bool
	Program      uint8
	Turbo        bool
	Safety       bool
	Spill        bool
	Mode         protocol.ACMode
	Brand        Brand
	GatewayID    uint8
	FanSpeeds    []protocol.FanSpeed
	FanSpeed     protocol.FanSpeed
	SetTemp      int
	MeasuredTemp int
}

// Status lists the raised flags, or NORMAL.
func (a ACInfo) Status() []string {
	return flagNames([]bool{a.Error, a.Safety, a.Spill, a.Turbo}, []string{"ERROR", "SAFETY", "SPILL", "TURBO"})
}

func (a ACInfo) String() string {
	return fmt.Sprintf("AC%d{name=%q on=%t status=%v mode=%s fan=%s/%v set=%d temp=%d brand=%s error=%d}",
		a.Number, a.Name, a.On, a.Status(), a.Mode, a.FanSpeed, a.FanSpeeds, a.SetTemp, a.MeasuredTemp, a.Brand, a.ErrorCode)
}

// GroupInfo is the state of one group, built from its zones.
type GroupInfo struct {
	Number uint8
	Name   string
	On     bool
	// Damper is in 10% steps, 0 to 10.
	Damper uint8
	Spill  bool
	Turbo  bool
	// Warnings lists zone disagreements within the group.
	Warnings []string
}

// DamperPercent returns the damper opening in percent.
func (g GroupInfo) DamperPercent() int { return int(g.Damper) * 10 }

// Status lists the raised flags, or NORMAL.
func (g GroupInfo) Status() []string {
	return flagNames([]bool{g.Spill, g.Turbo}, []string{"SPILL", "TURBO"})
}

func (g GroupInfo) String() string {
	return fmt.Sprintf("Group%d{name=%q on=%t status=%v damper=%d%%}",
		g.Number, g.Name, g.On, g.Status(), g.DamperPercent())
}

// SystemInfo is a decoded response.
type SystemInfo struct {
	SystemName   string
	TouchpadTemp int
	ACs          []ACInfo
	Groups       []GroupInfo
	// Warnings lists oddities in the AC fields.
	Warnings []string
}

// DecodeResponse decodes a 395-byte response. The checksum is not checked;
// Reader does that.
func DecodeResponse(b []byte) (*SystemInfo, error) {
	if len(b) != ResponseLength {
		return nil, &protocol.RecordLengthError{Record: "legacy response", Got: len(b), Want: ResponseLength}
	}

	info := &SystemInfo{
		SystemName:   cString(b[OffsetSystemName : OffsetSystemName+longNameLength]),
		TouchpadTemp: int(b[OffsetTouchpadTemp]),
	}

	for n := range uint8(MaxACs) {
		ac, warnings, ok := decodeAC(b, n, info.TouchpadTemp)
		info.Warnings = append(info.Warnings, warnings...)
		if ok {
			info.ACs = append(info.ACs, ac)
		}
	}

	numGroups := min(int(b[OffsetNumGroups]), MaxZones)
	turbo := b[OffsetTurboGroup]
	for g := range uint8(numGroups) {
		info.Groups = append(info.Groups, decodeGroup(b, g, turbo))
	}
	return info, nil
}

func decodeAC(b []byte, n uint8, touchpad int) (ACInfo, []string, bool) {
	fan := b[OffsetACFan+int(n)]
	gateway := b[OffsetACGateway+int(n)]
	if fan == 0 && gateway == 0 {
		return ACInfo{}, nil, false
	}

	var warnings []string
	status := b[OffsetACStatus+int(n)]
	flags := b[OffsetACFlags]
	nameAt := OffsetACNames + int(n)*shortNameLength

	brand, known := ResolveBrand(gateway, Brand(b[OffsetACBrand+int(n)]))
	if !known {
		warnings = append(warnings, fmt.Sprintf("AC%d has an unfamiliar gateway id 0x%02x", n, gateway))
	}

	count := int(fan >> 4)
	speeds, ok := SupportedFanSpeeds(brand, count, gateway)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("AC%d reports %d fan speeds", n, count))
	}
	speed, ok := FanSpeedFromValue(speeds, fan&0x0F)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("AC%d fan value %d is outside %v", n, fan&0x0F, speeds))
	}

	measured := int(b[OffsetACTemp+int(n)])
	if measured <= 0 {
		measured = touchpad
	}

	return ACInfo{
		Number:       n,
		Name:         cString(b[nameAt : nameAt+shortNameLength]),
		On:           status&0x80 != 0,
		Error:        status&0x40 != 0,
		ErrorCode:    b[OffsetACError+int(n)],
		Thermistor:   status&0x04 == 0,
		Program:      status & 0x07,
		Turbo:        flags&(1<<(5-n)) != 0,
		Safety:       flags&(1<<(3-n)) != 0,
		Spill:        flags&(1<<(1-n)) != 0,
		Mode:         protocol.ACMode(b[OffsetACMode+int(n)]),
		Brand:        brand,
		GatewayID:    gateway,
		FanSpeeds:    speeds,
		FanSpeed:     speed,
		SetTemp:      int(b[OffsetACSetTemp+int(n)]),
		MeasuredTemp: measured,
	}, warnings, true
}

// decodeGroup takes on/off and damper from the group's first zone. A group
// spills when any of its zones spills.
func decodeGroup(b []byte, g uint8, turboGroup byte) GroupInfo {
	nameAt := OffsetGroupNames + int(g)*shortNameLength
	zones := b[OffsetGroupZones+int(g)]
	first := int(zones >> 4)
	last := min(first+int(zones&0x0F), MaxZones)

	zoneOn := func(z int) bool { return b[OffsetZoneStatus+z]&0x80 != 0 }
	zoneSpill := func(z int) bool { return b[OffsetZoneStatus+z]&0x40 != 0 }

	group := GroupInfo{
		Number: g,
		Name:   cString(b[nameAt : nameAt+shortNameLength]),
		On:     zoneOn(first),
		Damper: b[OffsetZoneDampers+first],
		Spill:  zoneSpill(first),
		Turbo:  turboGroup == g,
	}

	var damperMismatch, onMismatch bool
	for z := first + 1; z < last; z++ {
		group.Spill = group.Spill || zoneSpill(z)
		damperMismatch = damperMismatch || b[OffsetZoneDampers+z] != group.Damper
		onMismatch = onMismatch || zoneOn(z) != group.On
	}
	if damperMismatch {
		group.Warnings = append(group.Warnings, fmt.Sprintf("zones of group %q have mismatching damper percents", group.Name))
	}
	if onMismatch {
		group.Warnings = append(group.Warnings, fmt.Sprintf("zones of group %q have mismatching on/off states", group.Name))
	}
	return group
}

// ValidChecksum reports whether the last byte of resp is the additive sum
// of the rest.
func ValidChecksum(resp []byte) bool {
	if len(resp) == 0 {
		return false
	}
	return resp[len(resp)-1] == Sum(resp[:len(resp)-1])
}

// Seal writes the checksum into the last byte of resp.
func Seal(resp []byte) {
	if len(resp) > 0 {
		resp[len(resp)-1] = Sum(resp[:len(resp)-1])
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

func flagNames(flags []bool, names []string) []string {
	var out []string
	for i, f := range flags {
		if f {
			out = append(out, names[i])
		}
	}
	if len(out) == 0 {
		out = append(out, "NORMAL")
	}
	return out
}
