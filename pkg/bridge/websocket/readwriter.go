// Package websocket bridges frames over websocket binary messages,
// one frame per message.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/fzrpc.go/pkg/bridge"
	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// ReadWriter implements bridge.PacketReadWriter.
type ReadWriter struct {
	*websocket.Conn
}

var _ bridge.PacketReadWriter = (*ReadWriter)(nil)

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return &ReadWriter{Conn: conn}
}

// Dial connects to a websocket bridge.
func Dial(url, origin string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive(p.Conn, &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send(p.Conn, pkt)
}

// Server serves websocket connections, piping each one to the transport
// until either side goes away.
type Server struct {
	Addr      string
	Transport transport.Transport

	ctx    context.Context
	closed bool
	lock   sync.Mutex
	wg     sync.WaitGroup
}

// NewServer creates a Server listening on addr once run.
func NewServer(addr string, t transport.Transport) *Server {
	return &Server{Addr: addr, Transport: t, ctx: context.Background()}
}

// Handler returns the http.Handler upgrading connections.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serveConn)
}

// acquire registers a connection, or returns nil ctx once shutting down.
func (s *Server) acquire() context.Context {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.wg.Add(1)
	return s.ctx
}

// shutdown refuses new connections and waits for open ones.
func (s *Server) shutdown() {
	s.lock.Lock()
	s.closed = true
	s.lock.Unlock()
	s.wg.Wait()
}

func (s *Server) serveConn(conn *websocket.Conn) {
	name := "websocket " + conn.Request().RemoteAddr
	ctx := s.acquire()
	if ctx == nil {
		glog.Warningf("%s: refused, shutting down", name)
		conn.Close()
		return
	}
	defer s.wg.Done()
	glog.Infof("%s: connected", name)
	pipe := bridge.NewPipe(s.Transport, New(conn))
	pipe.Name = name
	if err := pipe.Run(ctx); err != nil {
		glog.Warningf("%s: %v", name, err)
	}
	glog.Infof("%s: disconnected", name)
}

// Run implements Runnable. Open connections are closed when ctx is
// canceled and Run returns after all of them.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener, which is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.lock.Lock()
	s.ctx = serveCtx
	s.lock.Unlock()
	srv := &http.Server{Handler: s.Handler()}
	go func() {
		<-serveCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	glog.Infof("websocket: listening on %s", ln.Addr())
	err := srv.Serve(ln)
	cancel()
	// hijacked connections are not tracked by http.Server.
	s.shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
