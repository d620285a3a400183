package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/fzrpc.go/pkg/framework"
	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// Remote is a transport reaching a device through a bridge, with each
// packet from the peer being one frame.
type Remote struct {
	rw          PacketReadWriter
	broadcaster *transport.Broadcaster
	queue       *transport.Queue
	runner      *fx.Runner

	closeOnce sync.Once
	closeErr  error
}

var _ transport.Transport = (*Remote)(nil)

// NewRemote starts a Remote over rw. It owns rw from now on.
func NewRemote(rw PacketReadWriter) *Remote {
	r := &Remote{
		rw:          rw,
		broadcaster: transport.NewBroadcaster(transport.DefaultSubscriberBuffer),
		queue:       transport.NewQueue(),
		runner:      fx.NewRunner(),
	}
	r.runner.Go(
		fx.NamedRun("remote-rx", fx.RunFunc(r.readLoop)),
		fx.NamedRun("remote-tx", fx.RunFunc(r.writeLoop)),
	)
	return r
}

// Subscribe implements transport.Transport.
func (r *Remote) Subscribe() *transport.Subscription {
	return r.broadcaster.Subscribe()
}

// Submit implements transport.Transport.
func (r *Remote) Submit(frame []byte, done *transport.Completion) error {
	return r.queue.Push(frame, done)
}

// Done is closed when both background tasks have exited.
func (r *Remote) Done() <-chan struct{} {
	return r.runner.Done()
}

// Close stops the tasks and closes the peer if it's an io.Closer.
func (r *Remote) Close() error {
	r.closeOnce.Do(func() {
		r.runner.Cancel()
		r.queue.Close()
		r.broadcaster.Close()
		if closer, ok := r.rw.(io.Closer); ok {
			r.closeErr = closer.Close()
		}
	})
	return r.closeErr
}

func (r *Remote) readLoop(ctx context.Context) error {
	defer r.broadcaster.Close()
	for {
		pkt, err := r.rw.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				glog.Info("remote: peer closed")
				return nil
			}
			return fmt.Errorf("remote read: %w", err)
		}
		r.broadcaster.Send(pkt)
	}
}

func (r *Remote) writeLoop(ctx context.Context) error {
	defer r.queue.Close()
	for {
		s, err := r.queue.Pop(ctx)
		if err != nil {
			if err == transport.ErrClosed {
				return nil
			}
			return err
		}
		err = r.rw.WritePacket(s.Frame)
		s.Resolve(err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// packet peers have no transient errors worth retrying.
			return fmt.Errorf("remote write: %w", err)
		}
	}
}
