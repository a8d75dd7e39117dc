// Package main is the entry point for the voxrelay CLI.
package main

import (
	"os"

	"github.com/voxrelay/voxrelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
