package protocol

import (
	"errors"
	"fmt"
)

// FrameSyncError reports bytes that do not form a valid frame header.
// The reader has consumed them; the next read resumes scanning for magic.
type FrameSyncError struct {
	Reason string
	Header []byte
}

func (e *FrameSyncError) Error() string {
	if len(e.Header) > 0 {
		return fmt.Sprintf("frame sync: %s (header % x)", e.Reason, e.Header)
	}
	return "frame sync: " + e.Reason
}

// ChecksumError reports a frame whose trailing checksum does not match its
// contents. The frame is discarded.
type ChecksumError struct {
	Got  uint16
	Want uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: got 0x%04x, want 0x%04x", e.Got, e.Want)
}

// UnknownSubTypeError reports a sub-header this package cannot dispatch.
type UnknownSubTypeError struct {
	Type    MessageType
	SubType byte
}

func (e *UnknownSubTypeError) Error() string {
	return fmt.Sprintf("unknown %s sub-type 0x%02x", e.Type, e.SubType)
}

// RecordLengthError reports a record or length descriptor of the wrong size.
type RecordLengthError struct {
	Record string
	Got    int
	Want   int
}

func (e *RecordLengthError) Error() string {
	return fmt.Sprintf("%s: got %d bytes, want %d", e.Record, e.Got, e.Want)
}

// ValidationError reports a value that cannot be encoded.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// IsRecoverable reports whether err leaves the byte stream usable: the frame
// (or record) is dropped and reading continues.
func IsRecoverable(err error) bool {
	var (
		syncErr    *FrameSyncError
		sumErr     *ChecksumError
		subTypeErr *UnknownSubTypeError
		lengthErr  *RecordLengthError
	)
	return errors.As(err, &syncErr) ||
		errors.As(err, &sumErr) ||
		errors.As(err, &subTypeErr) ||
		errors.As(err, &lengthErr)
}

// DropReason returns a short metrics label for a recoverable error.
func DropReason(err error) string {
	var (
		syncErr    *FrameSyncError
		sumErr     *ChecksumError
		subTypeErr *UnknownSubTypeError
		lengthErr  *RecordLengthError
	)
	switch {
	case errors.As(err, &syncErr):
		return "sync"
	case errors.As(err, &sumErr):
		return "checksum"
	case errors.As(err, &subTypeErr):
		return "unknown_subtype"
	case errors.As(err, &lengthErr):
		return "record_length"
	default:
		return "other"
	}
}
