package proto

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/fzrpc.go/pkg/rpc/transport"
)

// Proto sends commands over a transport, assigning command ids.
// It doesn't match responses to requests; callers subscribe to the
// embedded Transport and correlate by CommandID themselves.
type Proto struct {
	transport.Transport

	nextCommandID atomic.Uint32
}

// New wraps a transport. Command ids start at 0.
func New(t transport.Transport) *Proto {
	return &Proto{Transport: t}
}

type sendOptions struct {
	hasNext   bool
	commandID *uint32
	status    CommandStatus
}

// SendOption customizes SendAdvanced.
type SendOption func(*sendOptions)

// WithHasNext marks the envelope as followed by more chunks.
func WithHasNext(hasNext bool) SendOption {
	return func(o *sendOptions) {
		o.hasNext = hasNext
	}
}

// WithCommandID uses id instead of the next one. The counter is not
// affected.
func WithCommandID(id uint32) SendOption {
	return func(o *sendOptions) {
		o.commandID = &id
	}
}

// WithStatus sets the status, StatusOK by default.
func WithStatus(status CommandStatus) SendOption {
	return func(o *sendOptions) {
		o.status = status
	}
}

// NextCommandID returns the id the next Send will use.
func (p *Proto) NextCommandID() uint32 {
	return p.nextCommandID.Load()
}

// AllocCommandID takes the next command id for use with WithCommandID,
// so the caller knows the id before any response can arrive.
// The counter wraps at 2^32.
func (p *Proto) AllocCommandID() uint32 {
	return p.nextCommandID.Add(1) - 1
}

// Send sends content with the next command id.
// It returns the encoded envelope once written.
func (p *Proto) Send(ctx context.Context, content Content) ([]byte, error) {
	return p.SendAdvanced(ctx, content)
}

// SendAdvanced sends content with explicit envelope settings.
func (p *Proto) SendAdvanced(ctx context.Context, content Content, opts ...SendOption) ([]byte, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	m := &Main{
		CommandStatus: o.status,
		HasNext:       o.hasNext,
		Content:       content,
	}
	if o.commandID != nil {
		m.CommandID = *o.commandID
	} else {
		m.CommandID = p.AllocCommandID()
	}
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("SEND %s", m)
	return transport.Write(ctx, p.Transport, data)
}

// Receive waits for the next envelope on sub.
func (p *Proto) Receive(ctx context.Context, sub *transport.Subscription) (*Main, error) {
	return Receive(ctx, sub)
}

// Receive waits for the next envelope on sub. Frames that fail to decode
// are logged and skipped, so are lagged notifications.
func Receive(ctx context.Context, sub *transport.Subscription) (*Main, error) {
	for {
		frame, err := sub.Recv(ctx)
		if err != nil {
			var lagged *transport.LaggedError
			if errors.As(err, &lagged) {
				glog.Warning(err)
				continue
			}
			return nil, err
		}
		m, err := UnmarshalMain(frame)
		if err != nil {
			glog.Warningf("drop frame: %v", err)
			continue
		}
		glog.V(2).Infof("RECV %s", m)
		return m, nil
	}
}
