package sh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/fzrpc.go/pkg/rpc/proto"
)

// ErrNotConnected is returned when a command runs without a session.
var ErrNotConnected = errors.New("not connected")

// ErrNoResponse indicates the device didn't answer in time.
var ErrNoResponse = errors.New("no response")

// Exchange sends content and collects the responses carrying the same
// command id, until one without has_next. A response with a non-OK
// status ends the exchange with a *proto.CommandError.
// timeout applies to each response.
func Exchange(ctx context.Context, p *proto.Proto, content proto.Content, timeout time.Duration) ([]*proto.Main, error) {
	// subscribe before sending, or a quick response is missed.
	sub := p.Subscribe()
	if sub == nil {
		return nil, ErrNotConnected
	}
	defer sub.Close()

	id := p.AllocCommandID()
	if _, err := p.SendAdvanced(ctx, content, proto.WithCommandID(id)); err != nil {
		return nil, err
	}

	var responses []*proto.Main
	for {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		m, err := p.Receive(rctx, sub)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = ErrNoResponse
			}
			return responses, err
		}
		if m.CommandID != id {
			continue
		}
		responses = append(responses, m)
		if err := m.Err(); err != nil {
			return responses, err
		}
		if !m.HasNext {
			return responses, nil
		}
	}
}

// DoCommand runs a command, waits for the responses and prints them.
func DoCommand(c *ishell.Context, content proto.Content) ([]*proto.Main, error) {
	s := ShellFrom(c)
	if s.Session == nil {
		c.Err(ErrNotConnected)
		return nil, ErrNotConnected
	}
	responses, err := Exchange(s.Session.Ctx, s.Session.Proto, content, s.Timeout)
	for _, m := range responses {
		s.PrintMain(c, m)
	}
	if err != nil {
		c.Err(formatErr(err))
	}
	return responses, err
}

// SendOnly sends a command expecting no response.
func SendOnly(c *ishell.Context, content proto.Content) error {
	s := ShellFrom(c)
	if s.Session == nil {
		c.Err(ErrNotConnected)
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(s.Session.Ctx, s.Timeout)
	defer cancel()
	if _, err := s.Session.Proto.Send(ctx, content); err != nil {
		c.Err(err)
		return err
	}
	c.Println("OK")
	return nil
}

type jsonMain struct {
	CommandID uint32        `json:"command_id"`
	Status    string        `json:"status"`
	HasNext   bool          `json:"has_next,omitempty"`
	Type      string        `json:"type"`
	Content   proto.Content `json:"content,omitempty"`
}

// FormatMain formats an envelope for display.
func (s *Shell) FormatMain(m *proto.Main) (string, error) {
	if !s.OutputJSON {
		return m.String(), nil
	}
	out, err := json.Marshal(&jsonMain{
		CommandID: m.CommandID,
		Status:    m.CommandStatus.String(),
		HasNext:   m.HasNext,
		Type:      proto.ContentName(m.Content),
		Content:   m.Content,
	})
	return string(out), err
}

// PrintMain prints an envelope.
func (s *Shell) PrintMain(c *ishell.Context, m *proto.Main) {
	out, err := s.FormatMain(m)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(out)
}

// Listen prints every envelope received until ctx is done.
func Listen(ctx context.Context, p *proto.Proto, print func(*proto.Main)) error {
	sub := p.Subscribe()
	if sub == nil {
		return ErrNotConnected
	}
	defer sub.Close()
	for {
		m, err := p.Receive(ctx, sub)
		if err != nil {
			return err
		}
		print(m)
	}
}

func formatErr(err error) error {
	var cmdErr *proto.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Errorf("device: %s", cmdErr.Status)
	}
	return err
}
