// Command realtalk talks to the OpenAI Realtime API from the terminal.
//
// Usage:
//
//	realtalk [flags] <command> [args]
//
// Commands:
//
//	chat     - Interactive text and audio conversation
//	events   - Stream protocol events, optionally through a jq filter
//	history  - List recorded transcripts
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/realtalk/
//	Use 'realtalk config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/realtalk/cmd/realtalk/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
