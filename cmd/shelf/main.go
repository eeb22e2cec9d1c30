// Package main provides the entry point for the shelf CLI.
package main

import (
	"os"

	"github.com/randalmurphal/shelf/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
