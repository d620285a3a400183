// Package env provides the configuration shared by the command line tools.
package env

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robotalks/fzrpc.go/pkg/bridge/mqtt"
	"github.com/robotalks/fzrpc.go/pkg/rpc/serial"
)

// AppID scopes the machine ID.
const AppID = "fzrpc"

// Config provides common options to reach a device.
type Config struct {
	// Port is the serial device node, e.g. /dev/ttyACM0.
	Port string
	// HandshakeTimeout overrides the wait for each handshake step.
	HandshakeTimeout time.Duration

	// DeviceID names the device on bridges. Defaults to the machine ID.
	DeviceID string
	// MQTTBrokerURL specifies the MQTT broker.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// WebSocketAddr is the listen address of the websocket bridge.
	WebSocketAddr string
	// TCPAddr is the listen address of the stream bridge.
	TCPAddr string
}

var defaultConfig = Config{
	Port:             "/dev/ttyACM0",
	HandshakeTimeout: serial.DefaultHandshake.Timeout,
	MQTTBrokerURL:    "mqtt://localhost:1883/fzrpc/",
}

func init() {
	defaultConfig.loadEnv(os.Getenv)
}

func (c *Config) loadEnv(getenv func(string) string) {
	if val := getenv("FZRPC_PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("FZRPC_ID"); val != "" {
		c.DeviceID = val
	}
	if val := getenv("FZRPC_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("FZRPC_WS_ADDR"); val != "" {
		c.WebSocketAddr = val
	}
	if val := getenv("FZRPC_TCP_ADDR"); val != "" {
		c.TCPAddr = val
	}
}

// SetupFlags sets up command line flags for the serial port.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the device.")
	flag.DurationVar(&defaultConfig.HandshakeTimeout, "handshake-timeout", defaultConfig.HandshakeTimeout, "Timeout of each handshake step.")
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID on bridges, machine ID by default.")
}

// SetupBridgeFlags sets up command line flags for the bridges.
func SetupBridgeFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "Websocket listen address, empty to disable.")
	flag.StringVar(&defaultConfig.TCPAddr, "tcp", defaultConfig.TCPAddr, "TCP listen address, empty to disable.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ID returns DeviceID or the machine ID if not set.
func (c *Config) ID() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	return MachineID(AppID)
}

// Handshake returns the handshake with the configured timeout.
func (c *Config) Handshake() serial.Handshake {
	h := serial.DefaultHandshake
	if c.HandshakeTimeout > 0 {
		h.Timeout = c.HandshakeTimeout
	}
	return h
}

// Open opens the serial port and switches the device into RPC mode.
func (c *Config) Open(ctx context.Context, opts ...serial.Option) (*serial.Transport, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("serial port must be specified")
	}
	opts = append([]serial.Option{serial.WithHandshake(c.Handshake())}, opts...)
	t, err := serial.Open(ctx, c.Port, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Port, err)
	}
	return t, nil
}

// DialMQTT connects to the MQTT broker. role distinguishes client IDs of
// the tools running on the same host.
func (c *Config) DialMQTT(role string) (*mqtt.Client, error) {
	if c.MQTTBrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL must be specified")
	}
	client, err := mqtt.Dial(c.MQTTBrokerURL, AppID+"-"+role+":"+c.ID())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.MQTTBrokerURL, err)
	}
	return client, nil
}
