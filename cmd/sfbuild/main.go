// Package main is the entry point for the sfbuild tool.
package main

import (
	"os"

	"github.com/symbiflow/sfbuild/cmd/sfbuild/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
