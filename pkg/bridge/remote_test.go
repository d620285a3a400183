package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

func TestRemote(t *testing.T) {
	peer := newChanPeer()
	r := NewRemote(peer)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub := r.Subscribe()
	peer.in <- []byte{0x08, 0x01}
	frame, err := sub.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x01}, frame)
	sub.Close()

	written, err := transport.Write(ctx, r, []byte{0x2a, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0x2a, 0x00}, written)
	require.Equal(t, []byte{0x2a, 0x00}, peer.written(t))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("tasks not stopped")
	}
	require.Nil(t, r.Subscribe())
	require.Equal(t, transport.ErrClosed, r.Submit([]byte{1}, nil))
}

func TestRemotePeerClosed(t *testing.T) {
	peer := newChanPeer()
	r := NewRemote(peer)
	defer r.Close()
	sub := r.Subscribe()
	defer sub.Close()
	close(peer.in)
	_, err := sub.Recv(context.Background())
	require.Equal(t, transport.ErrClosed, err)
}

func TestRemoteWriteError(t *testing.T) {
	peer := newChanPeer()
	errWrite := errors.New("peer gone")
	peer.writeErr = errWrite
	r := NewRemote(peer)
	defer r.Close()
	_, err := transport.Write(context.Background(), r, []byte{1})
	require.Equal(t, errWrite, err)
	_, err = transport.Write(context.Background(), r, []byte{2})
	require.Error(t, err)
}
