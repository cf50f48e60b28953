// Package legacy implements the AirTouch 2 fixed-length protocol.
//
// The client sends 13-byte commands; the gateway answers every command, and
// the initial state request, with one 395-byte response describing the
// whole system. Both end in an 8-bit additive checksum of the bytes before
// it. There are no sub-headers and no correlation ids.
package legacy

import (
	"fmt"

	"github.com/muurk/airtouch/internal/protocol"
)

// Wire constants
const (
	DefaultPort   = 8899
	CommandLength = 13

	commandHeader byte = 0x55
	commandFixed  byte = 0x0C
)

// CommandType is byte 1 of a command.
type CommandType byte

const (
	CommandRequestState CommandType = 1
	CommandGroupControl CommandType = 129
	CommandACControl    CommandType = 134
)

func (t CommandType) String() string {
	switch t {
	case CommandRequestState:
		return "request-state"
	case CommandGroupControl:
		return "group-control"
	case CommandACControl:
		return "ac-control"
	default:
		return fmt.Sprintf("command(%d)", byte(t))
	}
}

// Command bytes at offset 4
const (
	cmdToggle      byte = 128
	cmdSetMode     byte = 129
	cmdSetFanSpeed byte = 130
	cmdTempDec     byte = 147
	cmdTempInc     byte = 163

	cmdDamperDec byte = 1
	cmdDamperInc byte = 2

	argGroupToggle  byte = 0
	argDamperChange byte = 1
)

// Command is one encoded 13-byte command.
type Command [CommandLength]byte

// Type returns the command type.
func (c Command) Type() CommandType { return CommandType(c[1]) }

// Target returns the AC or group number the command addresses.
func (c Command) Target() uint8 { return c[3] }

// Code returns the command byte.
func (c Command) Code() byte { return c[4] }

// Arg returns the command argument.
func (c Command) Arg() byte { return c[5] }

// Bytes returns the command as a slice.
func (c Command) Bytes() []byte { return c[:] }

func (c Command) String() string {
	return fmt.Sprintf("%s{target=%d cmd=%d arg=%d}", c.Type(), c.Target(), c.Code(), c.Arg())
}

// ParseCommand decodes and checks a 13-byte command.
func ParseCommand(b []byte) (Command, error) {
	var c Command
	if len(b) != CommandLength {
		return c, &protocol.RecordLengthError{Record: "legacy command", Got: len(b), Want: CommandLength}
	}
	if b[0] != commandHeader || b[2] != commandFixed {
		return c, &protocol.FrameSyncError{Reason: "bad legacy command header", Header: b[:3]}
	}
	if got, want := b[CommandLength-1], Sum(b[:CommandLength-1]); got != want {
		return c, &protocol.ChecksumError{Got: uint16(got), Want: uint16(want)}
	}
	copy(c[:], b)
	return c, nil
}

func newCommand(t CommandType, target, code, arg byte) Command {
	var c Command
	c[0] = commandHeader
	c[1] = byte(t)
	c[2] = commandFixed
	c[3] = target
	c[4] = code
	c[5] = arg
	c[CommandLength-1] = Sum(c[:CommandLength-1])
	return c
}

// RequestState asks for a full response without changing anything.
func RequestState() Command { return newCommand(CommandRequestState, 0, 0, 0) }

// ToggleAC switches AC ac on or off.
func ToggleAC(ac uint8) Command { return newCommand(CommandACControl, ac, cmdToggle, 0) }

// SetACMode sets the mode of AC ac.
func SetACMode(ac uint8, mode protocol.ACMode) Command {
	return newCommand(CommandACControl, ac, cmdSetMode, byte(mode))
}

// SetACFanSpeed sets the fan speed of AC ac. value is the unit-specific wire
// value; see FanSpeedValue.
func SetACFanSpeed(ac uint8, value uint8) Command {
	return newCommand(CommandACControl, ac, cmdSetFanSpeed, value)
}

// StepSetpoint raises or lowers the setpoint of AC ac by one degree.
func StepSetpoint(ac uint8, up bool) Command {
	code := cmdTempDec
	if up {
		code = cmdTempInc
	}
	return newCommand(CommandACControl, ac, code, 0)
}

// ToggleGroup switches group g on or off.
func ToggleGroup(g uint8) Command {
	return newCommand(CommandGroupControl, g, cmdToggle, argGroupToggle)
}

// StepDamper opens or closes the dampers of group g by 10%.
func StepDamper(g uint8, up bool) Command {
	code := cmdDamperDec
	if up {
		code = cmdDamperInc
	}
	return newCommand(CommandGroupControl, g, code, argDamperChange)
}

// Action classifies a decoded command for the gateway side.
type Action int

const (
	ActionUnknown Action = iota
	ActionRequestState
	ActionToggleAC
	ActionSetMode
	ActionSetFanSpeed
	ActionSetpointDown
	ActionSetpointUp
	ActionToggleGroup
	ActionDamperDown
	ActionDamperUp
)

// Action reports what the command asks the gateway to do.
func (c Command) Action() Action {
	switch c.Type() {
	case CommandRequestState:
		return ActionRequestState
	case CommandACControl:
		switch c.Code() {
		case cmdToggle:
			return ActionToggleAC
		case cmdSetMode:
			return ActionSetMode
		case cmdSetFanSpeed:
			return ActionSetFanSpeed
		case cmdTempDec:
			return ActionSetpointDown
		case cmdTempInc:
			return ActionSetpointUp
		}
	case CommandGroupControl:
		switch {
		case c.Code() == cmdToggle && c.Arg() == argGroupToggle:
			return ActionToggleGroup
		case c.Code() == cmdDamperDec && c.Arg() == argDamperChange:
			return ActionDamperDown
		case c.Code() == cmdDamperInc && c.Arg() == argDamperChange:
			return ActionDamperUp
		}
	}
	return ActionUnknown
}

// Sum is the additive checksum: the byte sum of b modulo 256.
func Sum(b []byte) byte {
	var s byte
	for _, v := range b {
		s += v
	}
	return s
}
