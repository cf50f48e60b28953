package protocol

import "fmt"

// Record widths
const (
	GroupStatusLength  = 8
	GroupControlLength = 4
	GroupNameLength    = 9
)

// DamperUnchanged leaves the damper position as is in a group control record.
const DamperUnchanged uint8 = 0xFF

// GroupStatus is one group status repeat record.
//
// Layout:
//
//	[0]   power<<6 | id (6 bits)
//	[1]   damper percentage (7 bits)
//	[2-5] reserved
//	[6]   supports turbo (bit 7), spill (bit 1)
//	[7]   reserved
type GroupStatus struct {
	ID            uint8
	Power         GroupPower
	Damper        uint8
	SupportsTurbo bool
	Spill         bool

	extra [GroupStatusLength]byte
}

// DecodeGroupStatus decodes an 8-byte group status record.
func DecodeGroupStatus(b []byte) (GroupStatus, error) {
	if len(b) != GroupStatusLength {
		return GroupStatus{}, &RecordLengthError{Record: "group status", Got: len(b), Want: GroupStatusLength}
	}
	s := GroupStatus{
		ID:            b[0] & 0x3F,
		Power:         GroupPower(b[0] >> 6),
		Damper:        b[1] & 0x7F,
		SupportsTurbo: b[6]&0x80 != 0,
		Spill:         b[6]&0x02 != 0,
	}
	s.extra[1] = b[1] & 0x80
	copy(s.extra[2:6], b[2:6])
	s.extra[6] = b[6] &^ 0x82
	s.extra[7] = b[7]
	return s, nil
}

// Bytes encodes the record.
func (s GroupStatus) Bytes() []byte {
	b := make([]byte, GroupStatusLength)
	copy(b, s.extra[:])
	b[0] = byte(s.Power&0x03)<<6 | s.ID&0x3F
	b[1] = s.extra[1] | s.Damper&0x7F
	b[6] = s.extra[6] | bit(s.SupportsTurbo, 7) | bit(s.Spill, 1)
	return b
}

func (s GroupStatus) String() string {
	return fmt.Sprintf("Group%d{power=%s damper=%d%% turbo=%t spill=%t}",
		s.ID, s.Power, s.Damper, s.SupportsTurbo, s.Spill)
}

// GroupControl is one group control repeat record.
//
// Layout:
//
//	[0] id
//	[1] damper mode<<5 | power (3 bits)
//	[2] damper percentage, or 0xFF to leave unchanged
//	[3] reserved
type GroupControl struct {
	ID         uint8
	DamperMode GroupSetDamper
	Power      GroupSetPower
	Damper     uint8

	extra [GroupControlLength]byte
}

// NewGroupControl returns a control record for id that changes nothing.
func NewGroupControl(id uint8) GroupControl {
	return GroupControl{
		ID:         id,
		DamperMode: GroupSetDamperUnchanged,
		Power:      GroupSetPowerUnchanged,
		Damper:     DamperUnchanged,
	}
}

// WithDamper returns a copy that sets the damper to percent.
func (c GroupControl) WithDamper(percent uint8) GroupControl {
	c.DamperMode = GroupSetDamperSet
	c.Damper = percent
	return c
}

// Validate checks the record can be sent to a gateway.
func (c GroupControl) Validate() error {
	if c.ID >= MaxGroups {
		return &ValidationError{Field: "group id", Value: c.ID, Reason: fmt.Sprintf("must be below %d", MaxGroups)}
	}
	if c.Damper > 100 && c.Damper != DamperUnchanged {
		return &ValidationError{Field: "damper", Value: c.Damper, Reason: "must be between 0 and 100"}
	}
	if c.DamperMode == GroupSetDamperSet && c.Damper == DamperUnchanged {
		return &ValidationError{Field: "damper", Value: c.Damper, Reason: "set mode needs a percentage"}
	}
	return nil
}

// DecodeGroupControl decodes a 4-byte group control record.
func DecodeGroupControl(b []byte) (GroupControl, error) {
	if len(b) != GroupControlLength {
		return GroupControl{}, &RecordLengthError{Record: "group control", Got: len(b), Want: GroupControlLength}
	}
	c := GroupControl{
		ID:         b[0],
		DamperMode: GroupSetDamper(b[1] >> 5),
		Power:      GroupSetPower(b[1] & 0x07),
		Damper:     b[2],
	}
	c.extra[1] = b[1] & 0x18
	c.extra[3] = b[3]
	return c, nil
}

// Bytes encodes the record.
func (c GroupControl) Bytes() []byte {
	return []byte{
		c.ID,
		byte(c.DamperMode&0x07)<<5 | c.extra[1] | byte(c.Power&0x07),
		c.Damper,
		c.extra[3],
	}
}

// GroupName is one entry of a group-name response.
type GroupName struct {
	ID   uint8
	Name Label8
}

// DecodeGroupName decodes a 9-byte group-name entry.
func DecodeGroupName(b []byte) (GroupName, error) {
	if len(b) != GroupNameLength {
		return GroupName{}, &RecordLengthError{Record: "group name", Got: len(b), Want: GroupNameLength}
	}
	var n GroupName
	n.ID = b[0]
	copy(n.Name[:], b[1:])
	return n, nil
}

// DecodeGroupNames decodes back-to-back group-name entries.
func DecodeGroupNames(b []byte) ([]GroupName, error) {
	if len(b)%GroupNameLength != 0 {
		return nil, &RecordLengthError{Record: "group names", Got: len(b), Want: len(b) / GroupNameLength * GroupNameLength}
	}
	out := make([]GroupName, 0, len(b)/GroupNameLength)
	for off := 0; off < len(b); off += GroupNameLength {
		n, err := DecodeGroupName(b[off : off+GroupNameLength])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Bytes encodes the entry.
func (n GroupName) Bytes() []byte {
	return append([]byte{n.ID}, n.Name[:]...)
}
