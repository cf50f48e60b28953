package legacy

import (
	"context"

	"github.com/muurk/airtouch/internal/protocol"
)

// Reader yields 395-byte response windows from a byte stream.
//
// When checksum verification is on, a window whose last byte is not the
// sum of the others is rejected with *protocol.ChecksumError. The next call
// slides the window forward a byte at a time until it validates, so one
// misalignment yields exactly one error.
type Reader struct {
	src    protocol.Source
	verify bool
	// window holds a rejected window while realigning.
	window []byte
}

// NewReader returns a Reader over src.
func NewReader(src protocol.Source, verify bool) *Reader {
	return &Reader{src: src, verify: verify}
}

// Next returns the next response window.
func (r *Reader) Next(ctx context.Context) ([]byte, error) {
	if r.window != nil {
		return r.realign(ctx)
	}

	b, err := r.src.ReadExactly(ctx, ResponseLength)
	if err != nil {
		return nil, err
	}
	if r.verify && !ValidChecksum(b) {
		r.window = b
		last := b[len(b)-1]
		return nil, &protocol.ChecksumError{Got: uint16(last), Want: uint16(Sum(b[:len(b)-1]))}
	}
	return b, nil
}

func (r *Reader) realign(ctx context.Context) ([]byte, error) {
	for {
		b, err := r.src.ReadExactly(ctx, 1)
		if err != nil {
			r.window = nil
			return nil, err
		}
		r.window = append(r.window[1:], b[0])
		if ValidChecksum(r.window) {
			out := r.window
			r.window = nil
			return out, nil
		}
	}
}

// Reset drops a partially aligned window, e.g. after a reconnect.
func (r *Reader) Reset() {
	r.window = nil
}
