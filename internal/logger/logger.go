// Package logger provides leveled logging for the WebRAGE CLI.
// Debug, Info and Section output only appears in verbose mode, enabled by the
// --verbose flag or the DEBUG environment variable. Warnings and errors are
// always written so degraded retrievals are visible. Output goes to stderr
// to keep stdout clean for results.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// EnvDebug is the environment variable that turns on verbose mode.
const EnvDebug = "DEBUG"

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// VerboseFromEnv reports whether DEBUG is set to a truthy value.
func VerboseFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvDebug))) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(always bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if always || verbose {
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(false, "[DEBUG] ", format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(false, "[INFO] ", format, args...)
}

// Warn prints a warning. Always written.
func Warn(format string, args ...any) {
	write(true, "[WARN] ", format, args...)
}

// Error prints an error. Always written.
func Error(format string, args ...any) {
	write(true, "[ERROR] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Timed logs the elapsed time of an operation at debug level when the
// returned function is called.
//
//	defer logger.Timed("embed batch")()
func Timed(label string) func() {
	start := time.Now()
	return func() {
		Debug("%s took %s", label, time.Since(start).Round(time.Millisecond))
	}
}
