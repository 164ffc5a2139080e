// Package main is the entry point for the streambuf CLI.
//
// Usage:
//
//	streambuf [flags] <command> [args]
//
// Commands:
//
//	record    - Record a framed byte stream into the capture store
//	replay    - Replay a recorded session through the frame scanner
//	sessions  - List and delete recorded sessions
//	inspect   - Examine the chunks or frames of a session
//	export    - Export a session as a portable dump (local file or s3://)
//	import    - Import a session dump into the store
//	config    - Configuration management (contexts)
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/streambuf/cmd/streambuf/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
