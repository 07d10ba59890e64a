package main

import (
	"os"

	"neuroglitch/internal/cli"
)

// version is stamped at build time:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/neuroglitch
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
