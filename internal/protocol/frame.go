package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Source yields exactly n bytes from a byte stream.
//
// The session transport implements Source directly so that reconnects are
// invisible to the codec; NewReaderSource adapts a plain io.Reader.
type Source interface {
	ReadExactly(ctx context.Context, n int) ([]byte, error)
}

type readerSource struct {
	r io.Reader
}

// NewReaderSource adapts r. The context is only checked between reads.
func NewReaderSource(r io.Reader) Source {
	return readerSource{r: r}
}

func (s readerSource) ReadExactly(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Frame is one validated wire unit.
type Frame struct {
	Header   Header
	Payload  []byte
	Checksum uint16
	// Skipped counts garbage bytes discarded before this frame's magic.
	Skipped int
}

// Bytes re-serializes the frame as received.
func (f *Frame) Bytes() []byte {
	out := f.Header.Bytes()
	out = append(out, f.Payload...)
	return binary.BigEndian.AppendUint16(out, f.Checksum)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{%s, id=%d, len=%d, crc=0x%04x}",
		f.Header.Type, f.Header.ID, len(f.Payload), f.Checksum)
}

// EncodeFrame wraps payload with h and a checksum. h.DataLength is set from
// the payload.
func EncodeFrame(h Header, payload []byte) []byte {
	h.DataLength = uint16(len(payload))
	hb := h.Bytes()

	out := make([]byte, 0, len(hb)+len(payload)+ChecksumLength)
	out = append(out, hb...)
	out = append(out, payload...)
	return binary.BigEndian.AppendUint16(out, frameChecksum(hb, payload))
}

// ReadFrame reads the next frame produced by dir from src.
//
// Bytes before a magic pair are skipped. A malformed header returns a
// *FrameSyncError and a checksum mismatch a *ChecksumError; in both cases
// the bytes are consumed and the next call continues scanning. Any other
// error comes from src.
func ReadFrame(ctx context.Context, src Source, dir Direction) (*Frame, error) {
	skipped, err := scanMagic(ctx, src)
	if err != nil {
		return nil, err
	}

	rest, err := src.ReadExactly(ctx, HeaderLength-2)
	if err != nil {
		return nil, err
	}
	raw := append([]byte{Magic, Magic}, rest...)

	header, err := ParseHeader(raw, dir)
	if err != nil {
		return nil, err
	}

	payload, err := src.ReadExactly(ctx, int(header.DataLength))
	if err != nil {
		return nil, err
	}

	sum, err := src.ReadExactly(ctx, ChecksumLength)
	if err != nil {
		return nil, err
	}
	got := binary.BigEndian.Uint16(sum)
	if want := frameChecksum(raw, payload); got != want {
		return nil, &ChecksumError{Got: got, Want: want}
	}

	return &Frame{
		Header:   header,
		Payload:  payload,
		Checksum: got,
		Skipped:  skipped,
	}, nil
}

// scanMagic consumes bytes one at a time until two consecutive magic bytes
// have been read.
func scanMagic(ctx context.Context, src Source) (int, error) {
	skipped := 0
	pending := false
	for {
		b, err := src.ReadExactly(ctx, 1)
		if err != nil {
			return skipped, err
		}
		if b[0] == Magic {
			if pending {
				return skipped, nil
			}
			pending = true
			continue
		}
		if pending {
			skipped++
			pending = false
		}
		skipped++
	}
}
