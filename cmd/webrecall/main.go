// Package main provides the entry point for the webrecall CLI.
package main

import (
	"os"

	"github.com/webrecall/webrecall/cmd/webrecall/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
