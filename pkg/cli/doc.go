// Package cli provides shared helpers for the voicelive command-line
// tools: request file loading (YAML/JSON), result output, terminal
// print helpers, and lipgloss styles for live status rendering.
package cli
