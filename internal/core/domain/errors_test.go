package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are distinct
func TestErrors_Existence(t *testing.T) {
	all := []error{
		ErrNotFound, ErrInvalidInput, ErrConfigNotFound,
		ErrDimensionMismatch, ErrDuplicateID, ErrCorruptStore, ErrInvalidWindowConfig,
		ErrWebSearchUnavailable, ErrRerankerUnavailable, ErrEmbeddingUnavailable,
		ErrLLMUnavailable, ErrNoEvidenceFound,
	}

	for i, a := range all {
		assert.NotEmpty(t, a.Error())
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("search: %w", ErrWebSearchUnavailable)))
	assert.True(t, IsUnavailable(fmt.Errorf("score: %w", ErrRerankerUnavailable)))
	assert.True(t, IsUnavailable(ErrEmbeddingUnavailable))
	assert.False(t, IsUnavailable(ErrDimensionMismatch))
	assert.False(t, IsUnavailable(ErrNoEvidenceFound))
	assert.False(t, IsUnavailable(nil))
}

func TestErrorf_WrapsSentinel(t *testing.T) {
	err := errorf(ErrCorruptStore, "record %d missing %s", 3, "id")

	assert.ErrorIs(t, err, ErrCorruptStore)
	assert.Equal(t, "record 3 missing id: corrupt store", err.Error())
}
