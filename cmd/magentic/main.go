// Package main is the entry point for the magentic CLI.
package main

import (
	"os"

	"github.com/hupe1980/magentic/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
