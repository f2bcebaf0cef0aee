// Package main is the entry point for the trustgate command.
package main

import (
	"fmt"
	"os"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/cmd/trustgate/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
