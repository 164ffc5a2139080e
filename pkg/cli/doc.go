// Package cli provides common CLI utilities for the streambuf command-line
// tool.
//
// This package includes:
//   - Configuration management (contexts, capture environments)
//   - Output formatting (JSON, YAML, raw)
//   - Manifest file loading (YAML/JSON)
//   - Terminal styling and hex dumps
//
// Configuration is stored in ~/.streambuf/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	// Initialize config for your app
//	cfg, err := cli.LoadConfig("streambuf")
//
//	// Get current context
//	ctx, err := cfg.GetCurrentContext()
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
