// Package main provides the entry point for the localsearch CLI.
package main

import (
	"os"

	"github.com/heresalord/localsearchengine/cmd/localsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
