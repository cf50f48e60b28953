package protocol

import (
	"fmt"
	"strings"
)

// Message is a decoded frame payload. The set of implementations is closed;
// callers dispatch with a type switch.
type Message interface {
	Type() MessageType
	String() string

	// payload returns the encoded payload, sub-header included.
	payload() []byte
}

// ACStatusMessage carries AC status records. Sent by the client with no
// records it is a status request.
type ACStatusMessage struct {
	Statuses []ACStatus
}

// GroupStatusMessage carries group status records. Sent by the client with
// no records it is a status request.
type GroupStatusMessage struct {
	Statuses []GroupStatus
}

// ACControlMessage carries AC control records.
type ACControlMessage struct {
	Controls []ACControl
}

// GroupControlMessage carries group control records.
type GroupControlMessage struct {
	Controls []GroupControl
}

// ACAbilityMessage is the gateway's answer to an ability request.
type ACAbilityMessage struct {
	Abilities []ACAbility
}

// ACAbilityRequest asks for the ability of one AC, or of all of them.
type ACAbilityRequest struct {
	ID  uint8
	All bool
}

// GroupNamesMessage is the gateway's group-name table.
type GroupNamesMessage struct {
	Names []GroupName
}

// GroupNamesRequest asks for the name of one group, or of all of them.
type GroupNamesRequest struct {
	ID  uint8
	All bool
}

// ErrorMessage is an extended error sub-message. Its contents are not
// interpreted.
type ErrorMessage struct {
	Data []byte
}

func (ACStatusMessage) Type() MessageType     { return TypeControlStatus }
func (GroupStatusMessage) Type() MessageType  { return TypeControlStatus }
func (ACControlMessage) Type() MessageType    { return TypeControlStatus }
func (GroupControlMessage) Type() MessageType { return TypeControlStatus }
func (ACAbilityMessage) Type() MessageType    { return TypeExtended }
func (ACAbilityRequest) Type() MessageType    { return TypeExtended }
func (GroupNamesMessage) Type() MessageType   { return TypeExtended }
func (GroupNamesRequest) Type() MessageType   { return TypeExtended }
func (ErrorMessage) Type() MessageType        { return TypeExtended }

func (m ACStatusMessage) String() string {
	if len(m.Statuses) == 0 {
		return "ACStatusRequest"
	}
	return "ACStatus" + joinRecords(m.Statuses)
}

func (m GroupStatusMessage) String() string {
	if len(m.Statuses) == 0 {
		return "GroupStatusRequest"
	}
	return "GroupStatus" + joinRecords(m.Statuses)
}

func (m ACControlMessage) String() string {
	parts := make([]string, len(m.Controls))
	for i, c := range m.Controls {
		parts[i] = fmt.Sprintf("AC%d{power=%s mode=%s fan=%s setpoint=%d/0x%02x}",
			c.ID, c.Power, c.Mode, c.FanSpeed, c.Setpoint, byte(c.SetpointControl))
	}
	return "ACControl[" + strings.Join(parts, " ") + "]"
}

func (m GroupControlMessage) String() string {
	parts := make([]string, len(m.Controls))
	for i, c := range m.Controls {
		parts[i] = fmt.Sprintf("Group%d{power=%s damper=%s/%d}", c.ID, c.Power, c.DamperMode, c.Damper)
	}
	return "GroupControl[" + strings.Join(parts, " ") + "]"
}

func (m ACAbilityMessage) String() string { return "ACAbility" + joinRecords(m.Abilities) }

func (m ACAbilityRequest) String() string {
	if m.All {
		return "ACAbilityRequest{all}"
	}
	return fmt.Sprintf("ACAbilityRequest{id=%d}", m.ID)
}

func (m GroupNamesMessage) String() string {
	parts := make([]string, len(m.Names))
	for i, n := range m.Names {
		parts[i] = fmt.Sprintf("%d=%q", n.ID, n.Name.String())
	}
	return "GroupNames[" + strings.Join(parts, " ") + "]"
}

func (m GroupNamesRequest) String() string {
	if m.All {
		return "GroupNamesRequest{all}"
	}
	return fmt.Sprintf("GroupNamesRequest{id=%d}", m.ID)
}

func (m ErrorMessage) String() string { return fmt.Sprintf("Error{% x}", m.Data) }

func joinRecords[T fmt.Stringer](records []T) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// DecodeMessage classifies a frame's payload and decodes its records.
//
// Errors are recoverable: *UnknownSubTypeError for sub-types this package
// does not know, *RecordLengthError when the length descriptor disagrees
// with the payload or a record has the wrong width, and *FrameSyncError for
// an extended payload without its marker byte.
func DecodeMessage(f *Frame) (Message, error) {
	switch f.Header.Type {
	case TypeControlStatus:
		return decodeControlStatus(f.Payload)
	case TypeExtended:
		return decodeExtended(f.Payload, f.Header.Direction)
	default:
		return nil, &FrameSyncError{Reason: "unknown message type " + f.Header.Type.String()}
	}
}

func decodeControlStatus(payload []byte) (Message, error) {
	sub, err := ParseControlStatusSubHeader(payload)
	if err != nil {
		return nil, err
	}
	data := payload[ControlStatusSubHeaderLength:]
	if sub.Length.Total() != len(data) {
		return nil, &RecordLengthError{
			Record: sub.SubType.String() + " payload",
			Got:    len(data),
			Want:   sub.Length.Total(),
		}
	}

	switch sub.SubType {
	case SubTypeACStatus:
		records, err := decodeRepeats(sub.Length, data, ACStatusLength, DecodeACStatus)
		if err != nil {
			return nil, err
		}
		return ACStatusMessage{Statuses: records}, nil
	case SubTypeGroupStatus:
		records, err := decodeRepeats(sub.Length, data, GroupStatusLength, DecodeGroupStatus)
		if err != nil {
			return nil, err
		}
		return GroupStatusMessage{Statuses: records}, nil
	case SubTypeACControl:
		records, err := decodeRepeats(sub.Length, data, ACControlLength, DecodeACControl)
		if err != nil {
			return nil, err
		}
		return ACControlMessage{Controls: records}, nil
	case SubTypeGroupControl:
		records, err := decodeRepeats(sub.Length, data, GroupControlLength, DecodeGroupControl)
		if err != nil {
			return nil, err
		}
		return GroupControlMessage{Controls: records}, nil
	default:
		return nil, &UnknownSubTypeError{Type: TypeControlStatus, SubType: byte(sub.SubType)}
	}
}

// decodeRepeats skips the normal data and decodes each repeat record.
func decodeRepeats[T any](l SubDataLength, data []byte, width int, decode func([]byte) (T, error)) ([]T, error) {
	if l.RepeatCount == 0 {
		return nil, nil
	}
	if int(l.RepeatLength) != width {
		return nil, &RecordLengthError{Record: "repeat record", Got: int(l.RepeatLength), Want: width}
	}
	records := make([]T, 0, l.RepeatCount)
	for off := int(l.Normal); off < len(data); off += width {
		r, err := decode(data[off : off+width])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func decodeExtended(payload []byte, dir Direction) (Message, error) {
	sub, err := ParseExtendedSubHeader(payload)
	if err != nil {
		return nil, err
	}
	data := payload[ExtendedSubHeaderLength:]

	switch sub {
	case SubTypeAbility:
		if dir == FromClient {
			switch len(data) {
			case 0:
				return ACAbilityRequest{All: true}, nil
			case 1:
				return ACAbilityRequest{ID: data[0]}, nil
			default:
				return nil, &RecordLengthError{Record: "ability request", Got: len(data), Want: 1}
			}
		}
		abilities, err := DecodeACAbilities(data)
		if err != nil {
			return nil, err
		}
		return ACAbilityMessage{Abilities: abilities}, nil

	case SubTypeGroupName:
		if dir == FromClient {
			switch len(data) {
			case 0:
				return GroupNamesRequest{All: true}, nil
			case 1:
				return GroupNamesRequest{ID: data[0]}, nil
			default:
				return nil, &RecordLengthError{Record: "group name request", Got: len(data), Want: 1}
			}
		}
		names, err := DecodeGroupNames(data)
		if err != nil {
			return nil, err
		}
		return GroupNamesMessage{Names: names}, nil

	case SubTypeError:
		return ErrorMessage{Data: append([]byte(nil), data...)}, nil

	default:
		return nil, &UnknownSubTypeError{Type: TypeExtended, SubType: byte(sub)}
	}
}
