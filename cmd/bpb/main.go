package main

import (
	"os"

	"github.com/ashureev/bpb-coach/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
