package codec

import (
	"github.com/golang/protobuf/proto"
)

// Codec converts payloads to frames and reassembles frames
// from arbitrarily fragmented input.
// The zero value is ready for use. A Codec is not safe for concurrent use.
type Codec struct {
	buf []byte
}

// Encode returns the wire representation of payload.
func Encode(payload []byte) []byte {
	return AppendEncode(make([]byte, 0, len(payload)+10), payload)
}

// AppendEncode appends the wire representation of payload to dst.
func AppendEncode(dst, payload []byte) []byte {
	dst = append(dst, proto.EncodeVarint(uint64(len(payload)))...)
	return append(dst, payload...)
}

// Encode implements the encoding direction, same as package level Encode.
func (c *Codec) Encode(payload []byte) []byte {
	return Encode(payload)
}

// Decode appends in to the internal buffer and extracts at most one
// complete frame. It returns false if the buffered bytes don't yet hold a
// complete frame; nothing buffered is discarded in that case.
// Call Decode(nil) to drain frames already buffered.
func (c *Codec) Decode(in []byte) ([]byte, bool) {
	c.buf = append(c.buf, in...)
	size, n := proto.DecodeVarint(c.buf)
	if n == 0 || uint64(len(c.buf)-n) < size {
		return nil, false
	}
	end := n + int(size)
	frame := make([]byte, int(size))
	copy(frame, c.buf[n:end])
	if c.buf = c.buf[end:]; len(c.buf) == 0 {
		c.buf = nil
	}
	return frame, true
}

// Prime seeds the buffer with bytes read from the stream by other means
// before framing started.
func (c *Codec) Prime(b []byte) {
	c.buf = append(c.buf, b...)
}

// Buffered returns the number of bytes waiting for a complete frame.
func (c *Codec) Buffered() int {
	return len(c.buf)
}

// Reset drops all buffered bytes.
func (c *Codec) Reset() {
	c.buf = nil
}
