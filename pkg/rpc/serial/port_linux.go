package serial

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// BaudRate is applied to the device node. CDC ACM devices ignore it but
// the tty layer still needs a sane value.
const BaudRate = unix.B115200

// OpenPort opens a serial device node in raw mode.
// The returned file supports read deadlines.
func OpenPort(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	if err := makeRaw(fd); err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "configure", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

func makeRaw(fd int) error {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | BaudRate
	tio.Ispeed, tio.Ospeed = BaudRate, BaudRate
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0
	// input already buffered is kept, it may hold the shell prompt.
	return unix.IoctlSetTermios(fd, unix.TCSETS, tio)
}

// Open opens the device node at path and starts a Transport on it.
func Open(ctx context.Context, path string, opts ...Option) (*Transport, error) {
	f, err := OpenPort(path)
	if err != nil {
		return nil, err
	}
	t, err := New(ctx, f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}
