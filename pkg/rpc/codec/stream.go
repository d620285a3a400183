package codec

import (
	"io"
)

// DefaultReadSize is the size of a single read from the underlying stream.
const DefaultReadSize = 1024

// Reader reads frames from an io.Reader.
type Reader struct {
	r     io.Reader
	codec Codec
	buf   []byte
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultReadSize)
}

// NewReaderSize creates a Reader reading at most size bytes at a time.
func NewReaderSize(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultReadSize
	}
	return &Reader{r: r, buf: make([]byte, size)}
}

// Prime seeds bytes already consumed from the stream.
func (r *Reader) Prime(b []byte) {
	r.codec.Prime(b)
}

// ReadFrame blocks until a complete frame is available.
// It returns io.EOF on a clean end of stream, and io.ErrUnexpectedEOF
// when the stream ends in the middle of a frame.
func (r *Reader) ReadFrame() ([]byte, error) {
	if frame, ok := r.codec.Decode(nil); ok {
		return frame, nil
	}
	for {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			if frame, ok := r.codec.Decode(r.buf[:n]); ok {
				return frame, nil
			}
		}
		if err != nil {
			if err == io.EOF && r.codec.Buffered() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

type flusher interface {
	Flush() error
}

// Writer writes frames to an io.Writer.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame encodes payload and writes the frame in a single Write,
// flushing the stream if it buffers.
func (w *Writer) WriteFrame(payload []byte) error {
	w.buf = AppendEncode(w.buf[:0], payload)
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	if f, ok := w.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
