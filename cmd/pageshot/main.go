// Package main is the entry point for the pageshot CLI.
package main

import (
	"os"

	"github.com/jmylchreest/pageshot/cmd/pageshot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
