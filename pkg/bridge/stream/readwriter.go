// Package stream carries packets over a byte stream such as a TCP
// connection, framed the same way as on the device link.
package stream

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/fzrpc.go/pkg/bridge"
	fx "github.com/robotalks/fzrpc.go/pkg/framework"
	"github.com/robotalks/fzrpc.go/pkg/rpc/codec"
	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// ReadWriter implements bridge.PacketReadWriter.
// Each packet is prefixed by its length as a varint.
type ReadWriter struct {
	stream io.ReadWriter
	reader *codec.Reader
	writer *codec.Writer
}

var _ bridge.PacketReadWriter = (*ReadWriter)(nil)

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{
		stream: s,
		reader: codec.NewReader(s),
		writer: codec.NewWriter(s),
	}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	return p.reader.ReadFrame()
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return p.writer.WriteFrame(pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.stream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Server accepts stream connections and pipes each one to the transport.
type Server struct {
	Listener  net.Listener
	Transport transport.Transport

	lock  sync.Mutex
	conns map[net.Conn]struct{}
}

// Listen creates a Server listening on a TCP address.
func Listen(addr string, t transport.Transport) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{Listener: ln, Transport: t}, nil
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	go func() {
		<-runner.Context.Done()
		s.Listener.Close()
	}()
	glog.Infof("stream: listening on %s", s.Listener.Addr())
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			runner.Cancel()
			<-runner.Done()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		glog.Infof("stream: %s connected", conn.RemoteAddr())
		s.track(conn, true)
		pipe := bridge.NewPipe(s.Transport, New(conn))
		pipe.Name = "stream " + conn.RemoteAddr().String()
		runner.Go(fx.RunFunc(func(ctx context.Context) error {
			defer s.track(conn, false)
			if err := pipe.Run(ctx); err != nil {
				glog.Warningf("%s: %v", pipe.Name, err)
			}
			glog.Infof("%s: disconnected", pipe.Name)
			return nil
		}))
	}
}

// Conns returns the number of connected peers.
func (s *Server) Conns() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn, add bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}
