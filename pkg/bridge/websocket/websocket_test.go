package websocket

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

type testTransport struct {
	b *transport.Broadcaster
	q *transport.Queue
}

func (t *testTransport) Subscribe() *transport.Subscription {
	return t.b.Subscribe()
}

func (t *testTransport) Submit(frame []byte, done *transport.Completion) error {
	return t.q.Push(frame, done)
}

func TestHandler(t *testing.T) {
	tr := &testTransport{b: transport.NewBroadcaster(0), q: transport.NewQueue()}
	ws := NewServer("", tr)
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	rw, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tr.b.Subscribers() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, rw.WritePacket([]byte{0x08, 0x07, 0x2a, 0x00}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := tr.q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x07, 0x2a, 0x00}, s.Frame)

	tr.b.Send([]byte{0x08, 0x07})
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x07}, pkt)

	require.NoError(t, rw.Close())
	require.Eventually(t, func() bool { return tr.b.Subscribers() == 0 }, time.Second, time.Millisecond)
}

func TestServeShutdown(t *testing.T) {
	tr := &testTransport{b: transport.NewBroadcaster(0), q: transport.NewQueue()}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ws := NewServer("", tr)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ws.Serve(ctx, ln) }()

	rw, err := Dial("ws://"+ln.Addr().String()+"/", "http://127.0.0.1/")
	require.NoError(t, err)
	defer rw.Close()
	require.Eventually(t, func() bool { return tr.b.Subscribers() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve didn't return")
	}
	// every pipe released its subscription before Serve returned.
	require.Zero(t, tr.b.Subscribers())
	require.Nil(t, ws.acquire(), "no connections after shutdown")
}

func TestHandlerRefusedAfterShutdown(t *testing.T) {
	tr := &testTransport{b: transport.NewBroadcaster(0), q: transport.NewQueue()}
	ws := NewServer("", tr)
	ws.shutdown()
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	rw, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL)
	require.NoError(t, err)
	defer rw.Close()
	_, err = rw.ReadPacket()
	require.Error(t, err)
	require.Zero(t, tr.b.Subscribers())
}
