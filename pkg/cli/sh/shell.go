package sh

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/fzrpc.go/pkg/bridge"
	"github.com/robotalks/fzrpc.go/pkg/bridge/mqtt"
	"github.com/robotalks/fzrpc.go/pkg/bridge/stream"
	"github.com/robotalks/fzrpc.go/pkg/bridge/websocket"
	"github.com/robotalks/fzrpc.go/pkg/env"
	"github.com/robotalks/fzrpc.go/pkg/rpc/proto"
	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	// Timeout bounds the wait for each response.
	Timeout time.Duration

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

// Session is an open connection to a device.
type Session struct {
	Ctx       context.Context
	Cancel    func()
	Target    string
	Proto     *proto.Proto
	Transport ClosableTransport
}

// ClosableTransport is a transport owning its connection.
type ClosableTransport interface {
	transport.Transport
	Close() error
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	timeout    = time.Second

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Timeout waiting for a response.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Dial opens a transport to target, which is either a serial port, or
// the URL of a bridge: tcp://host:port, ws://host:port/path or
// mqtt://broker/prefix/#id.
func (s *Shell) Dial(ctx context.Context, target string) (ClosableTransport, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" {
		conf := *s.Config
		conf.Port = target
		t, err := conf.Open(ctx)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	switch u.Scheme {
	case "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return bridge.NewRemote(stream.New(conn)), nil
	case "ws", "wss":
		origin := "http://" + u.Host
		if u.Scheme == "wss" {
			origin = "https://" + u.Host
		}
		rw, err := websocket.Dial(target, origin)
		if err != nil {
			return nil, err
		}
		return bridge.NewRemote(rw), nil
	case "mqtt", "mqtts":
		id := u.Fragment
		if id == "" {
			id = s.Config.ID()
		}
		u.Fragment = ""
		conf := *s.Config
		conf.MQTTBrokerURL = u.String()
		client, err := conf.DialMQTT("cli")
		if err != nil {
			return nil, err
		}
		rw, err := mqtt.ForHost(client, id)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &mqttRemote{Remote: bridge.NewRemote(rw), client: client}, nil
	default:
		return nil, fmt.Errorf("unknown target scheme: %q", u.Scheme)
	}
}

type mqttRemote struct {
	*bridge.Remote
	client *mqtt.Client
}

func (r *mqttRemote) Close() error {
	err := r.Remote.Close()
	r.client.Close()
	return err
}

// Connect opens a session with target.
func (s *Shell) Connect(target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	t, err := s.Dial(ctx, target)
	if err != nil {
		cancel()
		return err
	}
	s.Disconnect()
	s.Session = &Session{
		Ctx:       ctx,
		Cancel:    cancel,
		Target:    target,
		Proto:     proto.New(t),
		Transport: t,
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", displayTarget(target)))
	return nil
}

func displayTarget(target string) string {
	if i := strings.LastIndex(target, "/"); i >= 0 && i+1 < len(target) {
		return target[i+1:]
	}
	return target
}

// Disconnect closes the current session.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		s.Session.Cancel()
		if err := s.Session.Transport.Close(); err != nil {
			s.Shell.Printf("close: %v\n", err)
		}
		s.Session = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Port)
		}
		if err := s.Connect(s.Config.Port); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT|URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			target := s.Config.Port
			if len(c.Args) > 0 {
				target = c.Args[0]
			}
			if err := s.Connect(target); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
