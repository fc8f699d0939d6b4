// Package memory provides in-memory implementations of driven ports.
// Nothing survives the process; they back tests and --ephemeral runs.
package memory
