package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/fzrpc.go/pkg/bridge"
	"github.com/robotalks/fzrpc.go/pkg/bridge/mqtt"
	"github.com/robotalks/fzrpc.go/pkg/bridge/stream"
	"github.com/robotalks/fzrpc.go/pkg/bridge/websocket"
	"github.com/robotalks/fzrpc.go/pkg/env"
	fx "github.com/robotalks/fzrpc.go/pkg/framework"
	"github.com/robotalks/fzrpc.go/pkg/rpc/serial"
)

func init() {
	env.SetupFlags()
	env.SetupBridgeFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	runner := fx.NewRunner().HandleSignals()

	ctx, cancel := context.WithTimeout(runner.Context, conf.HandshakeTimeout*3)
	t, err := conf.Open(ctx)
	cancel()
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("device on %s in RPC mode", conf.Port)

	var runnables []fx.Runnable
	if conf.MQTTBrokerURL != "" {
		client, err := conf.DialMQTT("bridge")
		if err != nil {
			glog.Exit(err)
		}
		defer client.Close()
		rw, err := mqtt.ForDevice(client, conf.ID())
		if err != nil {
			glog.Exit(err)
		}
		pipe := bridge.NewPipe(t, rw)
		pipe.Name = "mqtt " + client.TopicPrefix + conf.ID()
		runnables = append(runnables, fx.NamedRun("mqtt", pipe))
	}
	if conf.WebSocketAddr != "" {
		runnables = append(runnables, fx.NamedRun("websocket", websocket.NewServer(conf.WebSocketAddr, t)))
	}
	if conf.TCPAddr != "" {
		srv, err := stream.Listen(conf.TCPAddr, t)
		if err != nil {
			glog.Exit(err)
		}
		runnables = append(runnables, fx.NamedRun("tcp", srv))
	}
	if len(runnables) == 0 {
		glog.Exit("at least one of -mqtt, -ws, -tcp is required")
	}

	runner.Go(runnables...)
	// losing the device stops everything.
	runner.Go(fx.NamedRun("device", fx.RunFunc(func(ctx context.Context) error {
		select {
		case <-t.Done():
			runner.Cancel()
			return t.Err()
		case <-ctx.Done():
			return nil
		}
	})))
	err = runner.Wait()
	if errors.Is(err, fx.ErrForcedExit) {
		// bridges may still hold subscriptions, skip closing the transport.
		glog.Exit(err)
	}
	closeTransport(t)
	if err != nil {
		glog.Exit(err)
	}
}

func closeTransport(t *serial.Transport) {
	if err := t.Close(); err != nil {
		glog.Warningf("close %v", err)
	}
}
