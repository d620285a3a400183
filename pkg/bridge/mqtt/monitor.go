package mqtt

import "strings"

// Direction of a monitored frame.
type Direction int

// Directions.
const (
	FromDevice Direction = iota
	ToDevice
)

func (d Direction) String() string {
	if d == ToDevice {
		return "TX"
	}
	return "RX"
}

// MonitorHandler receives frames seen on any bridged device.
type MonitorHandler func(id string, dir Direction, frame []byte)

// Monitor subscribes to the traffic of all bridged devices until the
// returned subscriptions are closed.
func Monitor(c *Client, handler MonitorHandler) []*Subscription {
	dispatch := func(topic string, payload []byte) {
		if id, ok := ParseTopic(topic, RxSuffix); ok {
			handler(id, FromDevice, payload)
		} else if id, ok := ParseTopic(topic, TxSuffix); ok {
			handler(id, ToDevice, payload)
		}
	}
	return []*Subscription{
		c.Sub("+"+RxSuffix, dispatch),
		c.Sub("+"+TxSuffix, dispatch),
	}
}

// ParseTopic extracts the device id from <id><suffix>.
func ParseTopic(topic, suffix string) (string, bool) {
	id := strings.TrimSuffix(topic, suffix)
	if id == topic || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
