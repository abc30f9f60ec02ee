package main

import (
	"os"

	"github.com/ajitpratap0/mcp-userhub/cmd/host/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
