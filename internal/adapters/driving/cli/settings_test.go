package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsShow(t *testing.T) {
	stdout, _ := setupCLI(t, nil)

	rootCmd.SetArgs([]string{"settings"})
	require.NoError(t, rootCmd.Execute())

	out := stdout.String()
	assert.Contains(t, out, "[Store]")
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "[Web Search]")
	assert.Contains(t, out, "Mode: Hybrid (vector store + web search)")
}

func TestSettingsSet(t *testing.T) {
	t.Run("stores typed value", func(t *testing.T) {
		stdout, _ := setupCLI(t, nil)

		rootCmd.SetArgs([]string{"settings", "set", "retrieval.top_k", "7"})
		require.NoError(t, rootCmd.Execute())

		assert.Contains(t, stdout.String(), "Set retrieval.top_k = 7")
		settings, err := settingsService.Get()
		require.NoError(t, err)
		assert.Equal(t, 7, settings.Retrieval.TopK)
	})

	t.Run("masks api key read from stdin", func(t *testing.T) {
		stdout, _ := setupCLI(t, nil)

		rootCmd.SetIn(strings.NewReader("sk-1234567890abcdef\n"))
		rootCmd.SetArgs([]string{"settings", "set", "llm.api_key"})
		require.NoError(t, rootCmd.Execute())

		assert.Contains(t, stdout.String(), "Set llm.api_key = sk-1...cdef")
		assert.NotContains(t, stdout.String(), "567890ab")
	})

	t.Run("missing value", func(t *testing.T) {
		setupCLI(t, nil)

		rootCmd.SetArgs([]string{"settings", "set", "retrieval.top_k"})
		err := rootCmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing value")
	})

	t.Run("unknown key", func(t *testing.T) {
		setupCLI(t, nil)

		rootCmd.SetArgs([]string{"settings", "set", "nope.key", "1"})
		assert.ErrorIs(t, rootCmd.Execute(), domain.ErrInvalidInput)
	})
}

func TestSettingsKeys(t *testing.T) {
	stdout, _ := setupCLI(t, nil)

	rootCmd.SetArgs([]string{"settings", "keys"})
	require.NoError(t, rootCmd.Execute())

	out := stdout.String()
	assert.Contains(t, out, "retrieval.top_k\n")
	assert.Contains(t, out, "embedding.provider\n")
	assert.Contains(t, out, "timeouts.llm\n")
}

func TestSettingsWizard_DisablesEverything(t *testing.T) {
	stdout, _ := setupCLI(t, nil)

	// Choice 3 is "none" for both providers and for web search.
	rootCmd.SetIn(strings.NewReader("3\n3\n3\n"))
	rootCmd.SetArgs([]string{"settings", "wizard"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, stdout.String(), "Configuration Complete!")
	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderNone, settings.Embedding.Provider)
	assert.Equal(t, domain.AIProviderNone, settings.LLM.Provider)
	assert.Equal(t, domain.WebSearchNone, settings.WebSearch.Backend)
}
