// Package agent implements the single-agent facade: typed convenience
// methods over the tool registry plus a bounded on-disk memory of recent
// operations.
package agent
