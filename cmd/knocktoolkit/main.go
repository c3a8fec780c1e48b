package main

import (
	"os"

	"github.com/harun/knocktoolkit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
