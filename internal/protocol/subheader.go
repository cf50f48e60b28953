package protocol

import (
	"encoding/binary"
	"fmt"
)

// Sub-header sizes
const (
	ControlStatusSubHeaderLength = 8
	ExtendedSubHeaderLength      = 2

	extendedMarker byte = 0xFF
)

// ControlStatusSubType selects the record kind of a control/status message.
type ControlStatusSubType byte

const (
	SubTypeGroupControl ControlStatusSubType = 0x20
	SubTypeGroupStatus  ControlStatusSubType = 0x21
	SubTypeACControl    ControlStatusSubType = 0x22
	SubTypeACStatus     ControlStatusSubType = 0x23
)

func (s ControlStatusSubType) String() string {
	switch s {
	case SubTypeGroupControl:
		return "group control"
	case SubTypeGroupStatus:
		return "group status"
	case SubTypeACControl:
		return "ac control"
	case SubTypeACStatus:
		return "ac status"
	default:
		return fmt.Sprintf("subtype(0x%02x)", byte(s))
	}
}

// ExtendedSubType selects the record kind of an extended message.
type ExtendedSubType byte

const (
	SubTypeError     ExtendedSubType = 0x10
	SubTypeAbility   ExtendedSubType = 0x11
	SubTypeGroupName ExtendedSubType = 0x12
)

func (s ExtendedSubType) String() string {
	switch s {
	case SubTypeError:
		return "error"
	case SubTypeAbility:
		return "ability"
	case SubTypeGroupName:
		return "group name"
	default:
		return fmt.Sprintf("subtype(0x%02x)", byte(s))
	}
}

// SubDataLength is the length descriptor of a control/status sub-header.
type SubDataLength struct {
	Normal       uint16
	RepeatLength uint16
	RepeatCount  uint16
}

// Total returns the number of payload bytes the descriptor covers.
func (l SubDataLength) Total() int {
	return int(l.Normal) + int(l.RepeatLength)*int(l.RepeatCount)
}

// ControlStatusSubHeader is the 8-byte prefix of a control/status payload.
//
//	[0]   sub-type
//	[1]   0x00
//	[2-3] normal data length
//	[4-5] repeat record length
//	[6-7] repeat record count
type ControlStatusSubHeader struct {
	SubType ControlStatusSubType
	Length  SubDataLength
}

// ParseControlStatusSubHeader decodes the first 8 bytes of payload.
func ParseControlStatusSubHeader(payload []byte) (ControlStatusSubHeader, error) {
	if len(payload) < ControlStatusSubHeaderLength {
		return ControlStatusSubHeader{}, &RecordLengthError{
			Record: "control/status sub-header",
			Got:    len(payload),
			Want:   ControlStatusSubHeaderLength,
		}
	}
	return ControlStatusSubHeader{
		SubType: ControlStatusSubType(payload[0]),
		Length: SubDataLength{
			Normal:       binary.BigEndian.Uint16(payload[2:4]),
			RepeatLength: binary.BigEndian.Uint16(payload[4:6]),
			RepeatCount:  binary.BigEndian.Uint16(payload[6:8]),
		},
	}, nil
}

// Bytes serializes the sub-header.
func (h ControlStatusSubHeader) Bytes() []byte {
	b := make([]byte, ControlStatusSubHeaderLength)
	b[0] = byte(h.SubType)
	binary.BigEndian.PutUint16(b[2:4], h.Length.Normal)
	binary.BigEndian.PutUint16(b[4:6], h.Length.RepeatLength)
	binary.BigEndian.PutUint16(b[6:8], h.Length.RepeatCount)
	return b
}

// ParseExtendedSubHeader decodes the 2-byte prefix of an extended payload.
func ParseExtendedSubHeader(payload []byte) (ExtendedSubType, error) {
	if len(payload) < ExtendedSubHeaderLength {
		return 0, &RecordLengthError{
			Record: "extended sub-header",
			Got:    len(payload),
			Want:   ExtendedSubHeaderLength,
		}
	}
	if payload[0] != extendedMarker {
		return 0, &FrameSyncError{Reason: fmt.Sprintf("extended marker 0x%02x, want 0xff", payload[0])}
	}
	return ExtendedSubType(payload[1]), nil
}

func extendedSubHeader(s ExtendedSubType) []byte {
	return []byte{extendedMarker, byte(s)}
}
