//go:build !linux

package serial

import (
	"context"
	"errors"
	"os"
)

// ErrUnsupported indicates device nodes can't be opened on this platform.
// Use New with an already open stream instead.
var ErrUnsupported = errors.New("serial: opening device nodes is only supported on linux")

// OpenPort opens a serial device node in raw mode.
func OpenPort(path string) (*os.File, error) {
	return nil, &os.PathError{Op: "open", Path: path, Err: ErrUnsupported}
}

// Open opens the device node at path and starts a Transport on it.
func Open(ctx context.Context, path string, opts ...Option) (*Transport, error) {
	_, err := OpenPort(path)
	return nil, err
}
