package main

import (
	"os"

	"github.com/tpc-app/tpc/cmd/tpc/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
