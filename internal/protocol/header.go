package protocol

import (
	"encoding/binary"
	"fmt"
)

// Framing constants
const (
	Magic            byte = 0x55
	HeaderLength          = 8
	ChecksumLength        = 2
	NonDataLength         = HeaderLength + ChecksumLength
	DefaultMessageID byte = 1

	// MaxDataLength bounds the payload a header may announce. The largest
	// real payload, a full ability response, is a few hundred bytes.
	MaxDataLength = 1024

	// DefaultPort is the gateway's TCP port for this protocol generation.
	DefaultPort = 9200

	addressConstant byte = 0xB0
)

// Address is the variable half of the header's address pair.
type Address byte

const (
	AddressNormal   Address = 0x80
	AddressExtended Address = 0x90
)

// MessageType selects the sub-header layout of a frame.
type MessageType byte

const (
	TypeControlStatus MessageType = 0xC0
	TypeExtended      MessageType = 0x1F
)

func (t MessageType) String() string {
	switch t {
	case TypeControlStatus:
		return "control/status"
	case TypeExtended:
		return "extended"
	default:
		return fmt.Sprintf("type(0x%02x)", byte(t))
	}
}

// Address returns the address that must accompany the message type.
func (t MessageType) Address() (Address, bool) {
	switch t {
	case TypeControlStatus:
		return AddressNormal, true
	case TypeExtended:
		return AddressExtended, true
	default:
		return 0, false
	}
}

// Direction identifies which peer produced a frame. It decides the order of
// the address pair.
type Direction int

const (
	FromClient Direction = iota
	FromGateway
)

func (d Direction) String() string {
	if d == FromGateway {
		return "gateway->client"
	}
	return "client->gateway"
}

// Header is the fixed 8-byte frame header.
type Header struct {
	Direction  Direction
	Address    Address
	ID         byte
	Type       MessageType
	DataLength uint16
}

// NewHeader returns a client-direction header for the message type.
func NewHeader(t MessageType, dataLength int) Header {
	addr, _ := t.Address()
	return Header{
		Direction:  FromClient,
		Address:    addr,
		ID:         DefaultMessageID,
		Type:       t,
		DataLength: uint16(dataLength),
	}
}

// Bytes serializes the header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderLength)
	b[0], b[1] = Magic, Magic
	if h.Direction == FromGateway {
		b[2], b[3] = addressConstant, byte(h.Address)
	} else {
		b[2], b[3] = byte(h.Address), addressConstant
	}
	b[4] = h.ID
	b[5] = byte(h.Type)
	binary.BigEndian.PutUint16(b[6:], h.DataLength)
	return b
}

// ParseHeader decodes a header produced by the given direction.
//
// For gateway frames only byte 3 of the address pair is checked; byte 2 is
// undefined on received frames. For client frames byte 2 carries the
// address and byte 3 must be 0xB0.
func ParseHeader(b []byte, dir Direction) (Header, error) {
	if len(b) != HeaderLength {
		return Header{}, &FrameSyncError{Reason: fmt.Sprintf("header is %d bytes, want %d", len(b), HeaderLength)}
	}
	if b[0] != Magic || b[1] != Magic {
		return Header{}, &FrameSyncError{Reason: "bad magic", Header: b}
	}

	t := MessageType(b[5])
	want, ok := t.Address()
	if !ok {
		return Header{}, &FrameSyncError{Reason: "unknown message type " + t.String(), Header: b}
	}

	got := b[3]
	if dir == FromClient {
		if b[3] != addressConstant {
			return Header{}, &FrameSyncError{Reason: "bad address constant", Header: b}
		}
		got = b[2]
	}
	if Address(got) != want {
		return Header{}, &FrameSyncError{
			Reason: fmt.Sprintf("address 0x%02x does not match %s", got, t),
			Header: b,
		}
	}

	length := binary.BigEndian.Uint16(b[6:])
	if length > MaxDataLength {
		return Header{}, &FrameSyncError{
			Reason: fmt.Sprintf("data length %d exceeds %d", length, MaxDataLength),
			Header: b,
		}
	}

	return Header{
		Direction:  dir,
		Address:    want,
		ID:         b[4],
		Type:       t,
		DataLength: length,
	}, nil
}
