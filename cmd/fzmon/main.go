package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"
	"os/signal"

	"github.com/golang/glog"

	"github.com/robotalks/fzrpc.go/pkg/bridge/mqtt"
	"github.com/robotalks/fzrpc.go/pkg/env"
	"github.com/robotalks/fzrpc.go/pkg/rpc/proto"
)

func init() {
	env.SetupBridgeFlags()
	// traffic is the output.
	flag.Set("logtostderr", "true")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	client, err := env.NewConfig().DialMQTT("mon")
	if err != nil {
		glog.Exit(err)
	}
	defer client.Close()

	subs := mqtt.Monitor(client, func(id string, dir mqtt.Direction, frame []byte) {
		m, err := proto.UnmarshalMain(frame)
		if err != nil {
			glog.Warningf("%s %s: bad frame: %v", id, dir, err)
			return
		}
		glog.Infof("%s %s: %s", id, dir, m)
	})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
	for _, sub := range subs {
		sub.Close()
	}
}
