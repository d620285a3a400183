package mqtt

import (
	"io"
	"sync"

	"github.com/robotalks/fzrpc.go/pkg/bridge"
)

// Topic suffixes relative to a device.
const (
	// RxSuffix carries frames received from the device.
	RxSuffix = "/rx"
	// TxSuffix carries frames to be sent to the device.
	TxSuffix = "/tx"
)

// DefaultPacketBuffer is the number of received payloads buffered
// before the MQTT dispatcher blocks.
const DefaultPacketBuffer = 32

// ReadWriter implements bridge.PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Client   *Client
	SubTopic string
	PubTopic string

	sub       *Subscription
	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

var _ bridge.PacketReadWriter = (*ReadWriter)(nil)

// NewReadWriter subscribes to sub and publishes to pub.
func NewReadWriter(c *Client, sub, pub string) (*ReadWriter, error) {
	p := &ReadWriter{
		Client:   c,
		SubTopic: sub,
		PubTopic: pub,
		packetCh: make(chan []byte, DefaultPacketBuffer),
		closeCh:  make(chan struct{}),
	}
	p.sub = c.Sub(sub, p.handleMsg)
	p.sub.Token.Wait()
	if err := p.sub.Token.Error(); err != nil {
		p.sub.Close()
		return nil, err
	}
	return p, nil
}

// ForDevice bridges a device: frames from the device go to <id>/rx and
// payloads on <id>/tx go to the device.
func ForDevice(c *Client, id string) (*ReadWriter, error) {
	return NewReadWriter(c, id+TxSuffix, id+RxSuffix)
}

// ForHost talks to a bridged device: the reverse of ForDevice.
func ForHost(c *Client, id string) (*ReadWriter, error) {
	return NewReadWriter(c, id+RxSuffix, id+TxSuffix)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Client.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer. The client stays connected.
func (p *ReadWriter) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closeCh)
		err = p.sub.Close()
	})
	return err
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.closeCh:
	}
}
