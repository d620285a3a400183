package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/fzrpc.go/pkg/framework"
	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// Pipe is a bi-directional pipe between a transport and a remote peer.
// Every inbound frame is written to the peer as one packet and every
// packet from the peer is submitted as an outbound frame.
type Pipe struct {
	Transport  transport.Transport
	ReadWriter PacketReadWriter
	// Name is used in logs.
	Name string

	closeOnce sync.Once
	closeErr  error
}

// NewPipe creates a Pipe.
func NewPipe(t transport.Transport, rw PacketReadWriter) *Pipe {
	return &Pipe{Transport: t, ReadWriter: rw, Name: "pipe"}
}

// Run implements Runnable. It returns when ctx is canceled, the
// transport stops delivering frames or the peer goes away, and closes
// the peer if it's an io.Closer.
func (p *Pipe) Run(ctx context.Context) error {
	sub := p.Transport.Subscribe()
	if sub == nil {
		p.Close()
		return transport.ErrClosed
	}
	defer sub.Close()

	// either direction ending stops the other.
	runner := fx.NewRunnerWith(ctx)
	go func() {
		<-runner.Context.Done()
		// unblocks ReadPacket.
		p.Close()
	}()
	runner.Go(
		fx.NamedRun(p.Name+"-up", fx.RunFunc(func(ctx context.Context) error {
			defer runner.Cancel()
			return p.upstream(ctx, sub)
		})),
		fx.NamedRun(p.Name+"-down", fx.RunFunc(func(ctx context.Context) error {
			defer runner.Cancel()
			return p.downstream(ctx)
		})),
	)
	return runner.Wait()
}

// upstream forwards frames from the device to the peer.
func (p *Pipe) upstream(ctx context.Context, sub *transport.Subscription) error {
	for {
		frame, err := sub.Recv(ctx)
		if err != nil {
			var lagged *transport.LaggedError
			if errors.As(err, &lagged) {
				glog.Warningf("%s: %v", p.Name, err)
				continue
			}
			if err == transport.ErrClosed {
				glog.Infof("%s: transport closed", p.Name)
				return nil
			}
			return err
		}
		if err := p.ReadWriter.WritePacket(frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// downstream submits packets from the peer to the device.
func (p *Pipe) downstream(ctx context.Context) error {
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				glog.Infof("%s: peer closed", p.Name)
				return nil
			}
			return err
		}
		if err := p.Transport.Submit(pkt, nil); err != nil {
			if err == transport.ErrClosed {
				return nil
			}
			return err
		}
	}
}

// Close closes the peer if it's an io.Closer.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		if closer, ok := p.ReadWriter.(io.Closer); ok {
			p.closeErr = closer.Close()
		}
	})
	return p.closeErr
}
