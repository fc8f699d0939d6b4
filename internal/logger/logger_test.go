package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestDebugAndInfo_OnlyWhenVerbose(t *testing.T) {
	buf := capture(t, false)
	Debug("hidden %d", 1)
	Info("hidden")
	Section("Hidden")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Debug("round %d", 2)
	Info("mode %s", "hybrid")
	Section("Retrieval")

	assert.Equal(t, "[DEBUG] round 2\n[INFO] mode hybrid\n\n=== Retrieval ===\n", buf.String())
}

func TestWarnAndError_AlwaysWritten(t *testing.T) {
	buf := capture(t, false)

	Warn("web search unavailable: %s", "timeout")
	Error("store corrupt")

	assert.Equal(t, "[WARN] web search unavailable: timeout\n[ERROR] store corrupt\n", buf.String())
}

func TestVerboseFromEnv(t *testing.T) {
	tests := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"OFF":   false,
		"1":     true,
		"true":  true,
		"yes":   true,
	}
	for value, want := range tests {
		t.Run(value, func(t *testing.T) {
			t.Setenv(EnvDebug, value)
			assert.Equal(t, want, VerboseFromEnv())
		})
	}
}

func TestTimed(t *testing.T) {
	buf := capture(t, true)

	Timed("embed batch")()

	assert.True(t, strings.HasPrefix(buf.String(), "[DEBUG] embed batch took "))
}
