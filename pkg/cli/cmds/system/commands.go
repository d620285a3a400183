package system

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/fzrpc.go/pkg/cli/sh"
	"github.com/robotalks/fzrpc.go/pkg/rpc/proto"
)

var (
	// PingCmd sends a PingRequest.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Help:    "[HEX]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req := &proto.PingRequest{}
			if len(c.Args) > 0 {
				data, err := hex.DecodeString(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("invalid data: %v", err))
					return
				}
				req.Data = data
			}
			sh.DoCommand(c, req)
		}),
	}

	// RebootCmd reboots the device.
	RebootCmd = ishell.Cmd{
		Name: "reboot",
		Help: "[os|dfu|update]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req := &proto.RebootRequest{}
			if len(c.Args) > 0 {
				mode, err := proto.ParseRebootMode(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				req.Mode = mode
			}
			sh.SendOnly(c, req)
		}),
	}

	// InfoCmd dumps device properties.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &proto.DeviceInfoRequest{})
		}),
	}

	// StopCmd ends the RPC session, returning the device to its shell.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if sh.SendOnly(c, &proto.StopSession{}) == nil {
				sh.ShellFrom(c).Disconnect()
			}
		}),
	}

	// RawCmd sends content already encoded.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "FIELD HEX",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			content, err := ParseRaw(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, content)
		}),
	}

	// ListenCmd prints everything received until interrupted.
	ListenCmd = ishell.Cmd{
		Name:    "listen",
		Aliases: []string{"l"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			ctx, cancel := signal.NotifyContext(s.Session.Ctx, os.Interrupt)
			defer cancel()
			err := sh.Listen(ctx, s.Session.Proto, func(m *proto.Main) {
				s.PrintMain(c, m)
			})
			if err != nil && ctx.Err() == nil {
				c.Err(err)
			}
		}),
	}
)

// ParseRaw parses FIELD HEX into a RawContent.
func ParseRaw(args []string) (*proto.RawContent, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expect FIELD HEX")
	}
	field, err := strconv.ParseInt(args[0], 0, 32)
	if err != nil || field <= 3 {
		return nil, fmt.Errorf("invalid content field %q", args[0])
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid data: %v", err)
	}
	return &proto.RawContent{Field: int32(field), Data: data}, nil
}

func init() {
	sh.AddCmds(
		&PingCmd,
		&RebootCmd,
		&InfoCmd,
		&StopCmd,
		&RawCmd,
		&ListenCmd,
	)
}
