package stream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fzrpc.go/pkg/rpc/codec"
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

func TestReadWriter(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	rwA, rwB := New(a), New(b)

	go func() {
		rwA.WritePacket([]byte{0x02, 0x03})
		rwA.WritePacket(nil)
	}()
	pkt, err := rwB.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x03}, pkt)
	pkt, err = rwB.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)

	require.NoError(t, rwB.Close())
	_, err = rwA.ReadPacket()
	require.Error(t, err)
}

func TestServer(t *testing.T) {
	tr := newTestTransport()
	srv, err := Listen("127.0.0.1:0", tr)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return tr.b.Subscribers() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, srv.Conns())

	_, err = conn.Write(codec.Encode([]byte{0x08, 0x05}))
	require.NoError(t, err)
	popCtx, popCancel := context.WithTimeout(ctx, time.Second)
	defer popCancel()
	s, err := tr.q.Pop(popCtx)
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x05}, s.Frame)

	tr.b.Send([]byte{0x10, 0x01})
	conn.SetReadDeadline(time.Now().Add(time.Second))
	frame, err := codec.NewReader(conn).ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte{0x10, 0x01}, frame)

	conn.Close()
	require.Eventually(t, func() bool { return srv.Conns() == 0 }, time.Second, time.Millisecond)
	require.Zero(t, tr.b.Subscribers())

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("server not stopped")
	}
}
