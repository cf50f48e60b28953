package legacy

import (
	"fmt"
	"slices"

	"github.com/muurk/airtouch/internal/protocol"
)

// Brand is the AC manufacturer as configured on the touch panel.
type Brand uint8

const (
	BrandNone Brand = iota
	BrandDaikin
	BrandFujitsu
	BrandHitachi
	BrandLG
	BrandMitsubishiElectric
	BrandMitsubishiHeavy
	BrandPanasonic
	BrandSamsung
	BrandToshiba
)

var brandNames = [...]string{
	BrandNone:               "none",
	BrandDaikin:             "Daikin",
	BrandFujitsu:            "Fujitsu",
	BrandHitachi:            "Hitachi",
	BrandLG:                 "LG",
	BrandMitsubishiElectric: "Mitsubishi Electric",
	BrandMitsubishiHeavy:    "Mitsubishi Heavy Industries",
	BrandPanasonic:          "Panasonic",
	BrandSamsung:            "Samsung",
	BrandToshiba:            "Toshiba",
}

func (b Brand) String() string {
	if int(b) < len(brandNames) {
		return brandNames[b]
	}
	return fmt.Sprintf("brand(%d)", uint8(b))
}

// The brand implied by the gateway id takes priority over the brand byte.
var gatewayBrands = map[uint8]Brand{
	0x08: BrandDaikin,
	0x0D: BrandFujitsu,
	0x22: BrandFujitsu,
	0x0F: BrandMitsubishiElectric,
	0x12: BrandSamsung,
}

// ResolveBrand picks the brand for an AC. known is false when a non-zero
// gateway id is not in the lookup table.
func ResolveBrand(gatewayID uint8, reported Brand) (brand Brand, known bool) {
	if gatewayID == 0 {
		return reported, true
	}
	if b, ok := gatewayBrands[gatewayID]; ok {
		return b, true
	}
	return reported, false
}

var allFanSpeeds = []protocol.FanSpeed{
	protocol.FanSpeedAuto,
	protocol.FanSpeedQuiet,
	protocol.FanSpeedLow,
	protocol.FanSpeedMedium,
	protocol.FanSpeedHigh,
	protocol.FanSpeedPowerful,
}

// SupportedFanSpeeds derives the speeds an AC offers from its brand, the
// speed count in the fan byte and its gateway id. ok is false when the unit
// reports fewer than two speeds.
func SupportedFanSpeeds(brand Brand, count int, gatewayID uint8) (speeds []protocol.FanSpeed, ok bool) {
	if brand == BrandFujitsu && count == 4 {
		return slices.Clone(allFanSpeeds[:5]), true
	}

	noAuto := brand == BrandDaikin ||
		(gatewayID == 0xFF && count == 3) ||
		gatewayID == 0x14
	if !noAuto {
		speeds = append(speeds, protocol.FanSpeedAuto)
	}

	switch {
	case count > 2:
		end := min(2+count, len(allFanSpeeds))
		speeds = append(speeds, allFanSpeeds[2:end]...)
	case count == 2:
		speeds = append(speeds, protocol.FanSpeedLow, protocol.FanSpeedHigh)
	default:
		return speeds, false
	}
	return speeds, true
}

// FanSpeedFromValue decodes the low nibble of the fan byte. Values of 5 and
// above always mean auto. Units without an auto speed still number low as 1.
func FanSpeedFromValue(supported []protocol.FanSpeed, value uint8) (protocol.FanSpeed, bool) {
	if value >= 5 {
		return protocol.FanSpeedAuto, true
	}
	idx := int(value)
	if !slices.Contains(supported, protocol.FanSpeedAuto) {
		idx--
	}
	if idx < 0 || idx >= len(supported) {
		return protocol.FanSpeedAuto, false
	}
	return supported[idx], true
}

// FanSpeedValue is the inverse of FanSpeedFromValue.
func FanSpeedValue(supported []protocol.FanSpeed, speed protocol.FanSpeed) (uint8, error) {
	idx := slices.Index(supported, speed)
	if idx < 0 {
		return 0, &protocol.ValidationError{Field: "fan speed", Value: speed, Reason: fmt.Sprintf("not supported by this unit %v", supported)}
	}
	if !slices.Contains(supported, protocol.FanSpeedAuto) {
		idx++
	}
	return uint8(idx), nil
}
