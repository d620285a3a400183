package main

import (
	"github.com/robotalks/fzrpc.go/pkg/cli/sh"
	"github.com/robotalks/fzrpc.go/pkg/env"

	_ "github.com/robotalks/fzrpc.go/pkg/cli/cmds/system"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
