package protocol

import "fmt"

// MaxPayloadSize bounds the payload of one frame (the length field is 16 bits).
const MaxPayloadSize = 0xFFFF

// Status requests carry no records but still announce the record width,
// as the gateway expects.

func (m ACStatusMessage) payload() []byte {
	out := controlStatusPayload(SubTypeACStatus, ACStatusLength, len(m.Statuses))
	for _, s := range m.Statuses {
		out = append(out, s.Bytes()...)
	}
	return out
}

func (m GroupStatusMessage) payload() []byte {
	out := controlStatusPayload(SubTypeGroupStatus, GroupStatusLength, len(m.Statuses))
	for _, s := range m.Statuses {
		out = append(out, s.Bytes()...)
	}
	return out
}

func (m ACControlMessage) payload() []byte {
	out := controlStatusPayload(SubTypeACControl, ACControlLength, len(m.Controls))
	for _, c := range m.Controls {
		out = append(out, c.Bytes()...)
	}
	return out
}

func (m GroupControlMessage) payload() []byte {
	out := controlStatusPayload(SubTypeGroupControl, GroupControlLength, len(m.Controls))
	for _, c := range m.Controls {
		out = append(out, c.Bytes()...)
	}
	return out
}

func (m ACAbilityMessage) payload() []byte {
	out := extendedSubHeader(SubTypeAbility)
	for _, a := range m.Abilities {
		out = append(out, a.Bytes()...)
	}
	return out
}

func (m ACAbilityRequest) payload() []byte {
	out := extendedSubHeader(SubTypeAbility)
	if !m.All {
		out = append(out, m.ID)
	}
	return out
}

func (m GroupNamesMessage) payload() []byte {
	out := extendedSubHeader(SubTypeGroupName)
	for _, n := range m.Names {
		out = append(out, n.Bytes()...)
	}
	return out
}

func (m GroupNamesRequest) payload() []byte {
	out := extendedSubHeader(SubTypeGroupName)
	if !m.All {
		out = append(out, m.ID)
	}
	return out
}

func (m ErrorMessage) payload() []byte {
	return append(extendedSubHeader(SubTypeError), m.Data...)
}

func controlStatusPayload(sub ControlStatusSubType, width, count int) []byte {
	h := ControlStatusSubHeader{
		SubType: sub,
		Length: SubDataLength{
			RepeatLength: uint16(width),
			RepeatCount:  uint16(count),
		},
	}
	out := make([]byte, 0, ControlStatusSubHeaderLength+width*count)
	return append(out, h.Bytes()...)
}

// EncodeMessage builds the wire frame for m as produced by dir.
func EncodeMessage(m Message, dir Direction) ([]byte, error) {
	payload := m.payload()
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	h := NewHeader(m.Type(), len(payload))
	h.Direction = dir
	return EncodeFrame(h, payload), nil
}

func mustEncode(m Message) []byte {
	b, err := EncodeMessage(m, FromClient)
	if err != nil {
		panic(err)
	}
	return b
}

// RequestACStatus builds the request for the status of every AC.
func RequestACStatus() []byte { return mustEncode(ACStatusMessage{}) }

// RequestGroupStatus builds the request for the status of every group.
func RequestGroupStatus() []byte { return mustEncode(GroupStatusMessage{}) }

// RequestACAbility builds the ability request for one AC.
func RequestACAbility(id uint8) ([]byte, error) {
	if id >= MaxACs {
		return nil, &ValidationError{Field: "ac id", Value: id, Reason: fmt.Sprintf("must be below %d", MaxACs)}
	}
	return mustEncode(ACAbilityRequest{ID: id}), nil
}

// RequestAllACAbilities builds the broadcast ability request.
func RequestAllACAbilities() []byte { return mustEncode(ACAbilityRequest{All: true}) }

// RequestGroupNames builds the request for the whole group-name table.
func RequestGroupNames() []byte { return mustEncode(GroupNamesRequest{All: true}) }

// ControlACs validates controls and builds one AC control frame.
func ControlACs(controls ...ACControl) ([]byte, error) {
	if len(controls) == 0 {
		return nil, &ValidationError{Field: "ac controls", Value: 0, Reason: "need at least one record"}
	}
	for _, c := range controls {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return EncodeMessage(ACControlMessage{Controls: controls}, FromClient)
}

// ControlGroups validates controls and builds one group control frame.
func ControlGroups(controls ...GroupControl) ([]byte, error) {
	if len(controls) == 0 {
		return nil, &ValidationError{Field: "group controls", Value: 0, Reason: "need at least one record"}
	}
	for _, c := range controls {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return EncodeMessage(GroupControlMessage{Controls: controls}, FromClient)
}
