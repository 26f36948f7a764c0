// Package main provides the entry point for the jacc CLI.
package main

import (
	"os"

	"github.com/jacc-ai/jacc-core/cmd/jacc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
