// Package protocol implements the AirTouch 2+ framed binary protocol.
//
// This package handles framing, checksum validation, sub-message dispatch
// and the fixed-layout records exchanged with an AirTouch 2+ gateway over
// TCP (default port 9200). The older AirTouch 2 fixed-length protocol lives
// in the legacy subpackage.
//
// # Frame Format
//
// Every frame has the same outer structure:
//   - Magic: 0x55 0x55
//   - Address pair: [addr, 0xB0] when sent by the client, [0xB0, addr] when
//     sent by the gateway. addr is 0x80 for control/status frames and 0x90
//     for extended frames.
//   - Message ID: 1 byte, echoed by the gateway
//   - Message type: 0xC0 (control/status) or 0x1F (extended)
//   - Data length: 2 bytes (big-endian)
//   - Data: variable length
//   - Checksum: CRC-16/MODBUS (big-endian) over everything after the magic
//
// # Sub-Headers
//
// Control/status data starts with an 8-byte sub-header:
//   - Byte 0: sub-type (0x20 group control, 0x21 group status,
//     0x22 AC control, 0x23 AC status)
//   - Byte 1: 0x00
//   - Bytes 2-3: normal data length
//   - Bytes 4-5: length of each repeat record
//   - Bytes 6-7: repeat record count
//
// Extended data starts with a 2-byte sub-header: 0xFF followed by the
// sub-type (0x10 error, 0x11 AC ability, 0x12 group name).
//
// # Records
//
// Repeat records have fixed widths: AC status (10), AC control (4),
// group status (8), group control (4), group name (9) and AC ability
// (24 or 26, selected by the length byte at offset 1). Decoding keeps bits
// the record does not model, so re-encoding a decoded record reproduces
// the original bytes exactly.
//
// # Usage Example - Reading
//
//	src := protocol.NewReaderSource(conn)
//	for {
//	    frame, err := protocol.ReadFrame(ctx, src, protocol.FromGateway)
//	    if protocol.IsRecoverable(err) {
//	        continue // resynchronize on the next magic pair
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    msg, err := protocol.DecodeMessage(frame)
//	    if err != nil {
//	        continue
//	    }
//	    switch m := msg.(type) {
//	    case protocol.ACStatusMessage:
//	        fmt.Println(m.Statuses)
//	    }
//	}
//
// # Usage Example - Construction
//
//	ctl := protocol.NewACControl(0)
//	ctl.Power = protocol.ACSetPowerOn
//	frame, err := protocol.ControlACs(ctl)
//	if err != nil {
//	    return err
//	}
//	_, err = conn.Write(frame)
//
// # Error Handling
//
// The package distinguishes between:
//   - FrameSyncError: bad magic, addressing or message type
//   - ChecksumError: CRC mismatch, frame discarded
//   - UnknownSubTypeError: sub-type this package does not understand
//   - RecordLengthError: malformed length descriptor or record width
//   - ValidationError: out-of-range values when building commands
//
// The first four are recoverable; see IsRecoverable.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
