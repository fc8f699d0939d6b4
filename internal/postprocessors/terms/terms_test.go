package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"dedups and folds plurals", "Vector databases in Go: the vector database", []string{"vector", "database", "go"}},
		{"keeps double s", "class", []string{"class"}},
		{"short words keep s", "gas", []string{"gas"}},
		{"digits are terms", "top 10 results", []string{"top", "10", "result"}},
		{"only stopwords", "of the and", []string{}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}
