package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/fzrpc.go/pkg/framework"
)

// ErrHandshakeTimeout indicates the device didn't show the expected
// output in time, e.g. it isn't sitting at its shell prompt.
var ErrHandshakeTimeout = errors.New("device not responding")

// ErrStreamAbandoned is wrapped into a handshake error when a pending read
// couldn't be interrupted by a read deadline. The stream was closed if it's
// an io.Closer, otherwise it's still being read in background. Either way
// it must not be reused.
var ErrStreamAbandoned = errors.New("stream abandoned")

// Handshake describes the byte exchange switching the device shell
// into RPC mode.
type Handshake struct {
	// Prompt is the end of the shell prompt to wait for.
	Prompt []byte
	// Command is written to start the RPC session.
	Command []byte
	// Echo is the shell echo of Command. Bytes after it are RPC frames.
	Echo []byte
	// Timeout bounds each wait for Prompt and Echo.
	Timeout time.Duration
}

// DefaultHandshake is what the device shell expects.
// The trailing line feed is not sent: the shell echoes "\r\n" on carriage
// return and a line feed sent ahead would become the first RPC byte.
var DefaultHandshake = Handshake{
	Prompt:  []byte("\n>: "),
	Command: []byte("start_rpc_session\r"),
	Echo:    []byte("start_rpc_session\r\n"),
	Timeout: 5 * time.Second,
}

// Handshake stages reported by HandshakeError.
const (
	StagePrompt  = "prompt"
	StageCommand = "command"
	StageEcho    = "echo"
)

// HandshakeError reports a failed handshake.
type HandshakeError struct {
	Stage   string
	Pattern []byte
	Err     error
}

// Error implements error.
func (e *HandshakeError) Error() string {
	if e.Stage == StageCommand {
		return fmt.Sprintf("handshake %s: write %q: %v", e.Stage, e.Pattern, e.Err)
	}
	return fmt.Sprintf("handshake %s: waiting for %q: %v", e.Stage, e.Pattern, e.Err)
}

// Unwrap returns the cause.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

const (
	patternWindow = 32
	handshakeRead = 1024
)

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type flusher interface {
	Flush() error
}

// Run performs the handshake on rw. It returns the bytes received after
// the echo, which already belong to the framed stream.
func (h Handshake) Run(ctx context.Context, rw io.ReadWriter) ([]byte, error) {
	if _, err := h.await(ctx, rw, StagePrompt, h.Prompt); err != nil {
		return nil, err
	}
	glog.V(1).Info("handshake: got shell prompt")
	if err := writeAll(rw, h.Command); err != nil {
		return nil, &HandshakeError{Stage: StageCommand, Pattern: h.Command, Err: err}
	}
	rest, err := h.await(ctx, rw, StageEcho, h.Echo)
	if err != nil {
		return nil, err
	}
	glog.Info("handshake: RPC session started")
	return rest, nil
}

func (h Handshake) await(ctx context.Context, r io.Reader, stage string, pattern []byte) ([]byte, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHandshake.Timeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var rest []byte
	var deadline readDeadliner
	abandoned := false
	err := fx.RunWithContextAbort(stepCtx, func() bool {
		if d, ok := r.(readDeadliner); ok && d.SetReadDeadline(time.Now()) == nil {
			deadline = d
			return true
		}
		abandoned = true
		if c, ok := r.(io.Closer); ok {
			c.Close()
			return true
		}
		return false
	}, func() error {
		found, err := waitForPattern(r, pattern)
		rest = found
		return err
	})
	if deadline != nil {
		deadline.SetReadDeadline(time.Time{})
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrHandshakeTimeout
		}
		if abandoned {
			err = fmt.Errorf("%w: %w", err, ErrStreamAbandoned)
		}
		return nil, &HandshakeError{Stage: stage, Pattern: pattern, Err: err}
	}
	return rest, nil
}

// waitForPattern reads until pattern shows up in the trailing window of
// received bytes and returns whatever followed it in the same read.
func waitForPattern(r io.Reader, pattern []byte) ([]byte, error) {
	size := max(patternWindow, len(pattern))
	window := make([]byte, 0, size+handshakeRead)
	buf := make([]byte, handshakeRead)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			window = append(window, buf[:n]...)
			if idx := bytes.Index(window, pattern); idx >= 0 {
				return append([]byte(nil), window[idx+len(pattern):]...), nil
			}
			if len(window) > size {
				window = append(window[:0], window[len(window)-size:]...)
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func writeAll(w io.Writer, p []byte) error {
	for written := 0; written < len(p); {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
