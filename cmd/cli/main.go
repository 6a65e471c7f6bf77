// Package main is the entry point for the hubcredo CLI.
// The CLI is the developer terminal tool for interacting with the hubcredo API.
package main

import (
	"os"

	"hubcredo/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
