// Package events provides a small in-process broker for lifecycle events.
//
// The orchestrator and registrar publish stage transitions; the CLI
// subscribes to print progress without coupling the core to any output
// format. Slow subscribers are skipped rather than blocking publishers.
package events
