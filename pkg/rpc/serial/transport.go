// Package serial implements the RPC transport over a serial byte stream
// which starts out as an interactive device shell.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/golang/glog"

	fx "github.com/robotalks/fzrpc.go/pkg/framework"
	"github.com/robotalks/fzrpc.go/pkg/rpc/codec"
	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// Transport owns a serial stream in RPC mode. One task reads frames and
// broadcasts them to subscribers, another writes submitted frames in order.
type Transport struct {
	rw          io.ReadWriter
	broadcaster *transport.Broadcaster
	queue       *transport.Queue
	runner      *fx.Runner

	closeOnce sync.Once
	closeErr  error
}

var _ transport.Transport = (*Transport)(nil)

type options struct {
	handshake        Handshake
	subscriberBuffer int
	readSize         int
}

// Option customizes a Transport.
type Option func(*options)

// WithHandshake replaces DefaultHandshake.
func WithHandshake(h Handshake) Option {
	return func(o *options) {
		o.handshake = h
	}
}

// WithSubscriberBuffer sets the number of frames buffered per subscriber.
func WithSubscriberBuffer(n int) Option {
	return func(o *options) {
		o.subscriberBuffer = n
	}
}

// WithReadSize sets the size of a single read from the stream.
func WithReadSize(n int) Option {
	return func(o *options) {
		o.readSize = n
	}
}

// New switches the device on rw into RPC mode and starts the transport.
// ctx only bounds the handshake. Nothing is started if the handshake
// fails, and rw is left to the caller. An rw supporting read deadlines can
// be handed to New again; otherwise an interrupted handshake closes it and
// the error wraps ErrStreamAbandoned.
// On success the Transport owns rw and closes it on Close if it's an io.Closer.
func New(ctx context.Context, rw io.ReadWriter, opts ...Option) (*Transport, error) {
	o := options{
		handshake:        DefaultHandshake,
		subscriberBuffer: transport.DefaultSubscriberBuffer,
		readSize:         codec.DefaultReadSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	rest, err := o.handshake.Run(ctx, rw)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		rw:          rw,
		broadcaster: transport.NewBroadcaster(o.subscriberBuffer),
		queue:       transport.NewQueue(),
		runner:      fx.NewRunner(),
	}
	reader := codec.NewReaderSize(rw, o.readSize)
	reader.Prime(rest)
	writer := codec.NewWriter(rw)
	t.runner.Go(
		fx.NamedRun("serial-rx", fx.RunFunc(func(ctx context.Context) error {
			return t.readLoop(ctx, reader)
		})),
		fx.NamedRun("serial-tx", fx.RunFunc(func(ctx context.Context) error {
			return t.writeLoop(ctx, writer)
		})),
	)
	return t, nil
}

// Subscribe implements transport.Transport.
func (t *Transport) Subscribe() *transport.Subscription {
	return t.broadcaster.Subscribe()
}

// Submit implements transport.Transport.
func (t *Transport) Submit(frame []byte, done *transport.Completion) error {
	return t.queue.Push(frame, done)
}

// Pending returns the number of frames waiting to be written.
func (t *Transport) Pending() int {
	return t.queue.Len()
}

// Done is closed when both background tasks have exited.
func (t *Transport) Done() <-chan struct{} {
	return t.runner.Done()
}

// Err reports why the background tasks exited, nil for end of stream or Close.
func (t *Transport) Err() error {
	return t.runner.Err()
}

// Close stops both tasks and closes the stream. Pending writes fail.
// All subscriptions must be closed before; a live one is a bug of
// the caller and Close panics.
func (t *Transport) Close() error {
	if n := t.broadcaster.CloseIfIdle(); n > 0 {
		panic(fmt.Sprintf("serial: transport closed with %d live subscriptions", n))
	}
	t.closeOnce.Do(func() {
		t.runner.Cancel()
		t.queue.Close()
		t.broadcaster.Close()
		var errs fx.AggregatedError
		if closer, ok := t.rw.(io.Closer); ok {
			errs.Add(closer.Close())
		}
		t.closeErr = errs.Aggregate()
	})
	return t.closeErr
}

func (t *Transport) readLoop(ctx context.Context, r *codec.Reader) error {
	// end of stream closes all subscriptions.
	defer t.broadcaster.Close()
	for {
		frame, err := r.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				glog.Info("serial: end of stream")
				return nil
			}
			// framing never fails, so this is the stream itself breaking
			// and there is no way to resync.
			glog.Errorf("serial: read failed: %v", err)
			return fmt.Errorf("serial read: %w", err)
		}
		n := t.broadcaster.Send(frame)
		glog.V(2).Infof("RX %d bytes, %d subscribers", len(frame), n)
	}
}

func (t *Transport) writeLoop(ctx context.Context, w *codec.Writer) error {
	defer t.queue.Close()
	for {
		s, err := t.queue.Pop(ctx)
		if err != nil {
			if err == transport.ErrClosed {
				return nil
			}
			return err
		}
		err = w.WriteFrame(s.Frame)
		s.Resolve(err)
		if err == nil {
			glog.V(2).Infof("TX %d bytes", len(s.Frame))
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isBroken(err) {
			glog.Errorf("serial: stream broken: %v", err)
			return fmt.Errorf("serial write: %w", err)
		}
		glog.Warningf("serial: write failed: %v", err)
	}
}

// isBroken tells if the stream can't be written anymore.
func isBroken(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EIO)
}
