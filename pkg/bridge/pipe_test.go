package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

type testTransport struct {
	b *transport.Broadcaster
	q *transport.Queue
}

func newTestTransport() *testTransport {
	return &testTransport{b: transport.NewBroadcaster(0), q: transport.NewQueue()}
}

func (t *testTransport) Subscribe() *transport.Subscription {
	return t.b.Subscribe()
}

func (t *testTransport) Submit(frame []byte, done *transport.Completion) error {
	return t.q.Push(frame, done)
}

func (t *testTransport) submitted(tt *testing.T) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	s, err := t.q.Pop(ctx)
	require.NoError(tt, err)
	return s.Frame
}

func (t *testTransport) waitSubscribers(n int) {
	for t.b.Subscribers() < n {
		time.Sleep(time.Millisecond)
	}
}

// chanPeer is an in-memory peer.
type chanPeer struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	writeErr  error
}

func newChanPeer() *chanPeer {
	return &chanPeer{
		in:     make(chan []byte, 4),
		out:    make(chan []byte, 4),
		closed: make(chan struct{}),
	}
}

func (p *chanPeer) ReadPacket() ([]byte, error) {
	select {
	case pkt, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return pkt, nil
	case <-p.closed:
		return nil, io.ErrClosedPipe
	}
}

func (p *chanPeer) WritePacket(pkt []byte) error {
	if p.writeErr != nil {
		return p.writeErr
	}
	select {
	case p.out <- pkt:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *chanPeer) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *chanPeer) written(t *testing.T) []byte {
	select {
	case pkt := <-p.out:
		return pkt
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no packet written")
		return nil
	}
}

func runPipe(ctx context.Context, p *Pipe) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx)
	}()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(500 * time.Millisecond):
		t.Fatal("pipe not stopped")
		return nil
	}
}

func TestPipeForwardsBothWays(t *testing.T) {
	tr, peer := newTestTransport(), newChanPeer()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := runPipe(ctx, NewPipe(tr, peer))
	tr.waitSubscribers(1)

	tr.b.Send([]byte{0x08, 0x01})
	require.Equal(t, []byte{0x08, 0x01}, peer.written(t))

	peer.in <- []byte{0x2a, 0x00}
	require.Equal(t, []byte{0x2a, 0x00}, tr.submitted(t))

	cancel()
	require.NoError(t, waitErr(t, errCh))
	require.Zero(t, tr.b.Subscribers())
	select {
	case <-peer.closed:
	default:
		t.Fatal("peer not closed")
	}
}

func TestPipePeerClosed(t *testing.T) {
	tr, peer := newTestTransport(), newChanPeer()
	errCh := runPipe(context.Background(), NewPipe(tr, peer))
	tr.waitSubscribers(1)
	close(peer.in)
	require.NoError(t, waitErr(t, errCh))
	require.Zero(t, tr.b.Subscribers())
}

func TestPipeTransportClosed(t *testing.T) {
	tr, peer := newTestTransport(), newChanPeer()
	errCh := runPipe(context.Background(), NewPipe(tr, peer))
	tr.waitSubscribers(1)
	tr.b.Close()
	require.NoError(t, waitErr(t, errCh))

	tr = newTestTransport()
	tr.b.Close()
	peer = newChanPeer()
	require.Equal(t, transport.ErrClosed, NewPipe(tr, peer).Run(context.Background()))
	select {
	case <-peer.closed:
	default:
		t.Fatal("peer not closed")
	}
}

func TestPipeWriteError(t *testing.T) {
	tr, peer := newTestTransport(), newChanPeer()
	errWrite := errors.New("peer gone")
	peer.writeErr = errWrite
	errCh := runPipe(context.Background(), NewPipe(tr, peer))
	tr.waitSubscribers(1)
	tr.b.Send([]byte{1})
	require.ErrorIs(t, waitErr(t, errCh), errWrite)
}
