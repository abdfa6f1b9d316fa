// Package main is the entry point for the voicelive CLI.
//
// Usage:
//
//	voicelive [flags] <command> [subcommand] [args]
//
// Commands:
//
//	config     - Configuration management (contexts)
//	talk       - Connect a realtime voice session
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/voicelive/go/cmd/voicelive/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
