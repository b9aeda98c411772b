// Package main is the wqlbridge command.
package main

import (
	"os"

	"github.com/leapstack-labs/wqlbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
