package lexical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_CapitalOfFrance(t *testing.T) {
	scores, err := New().Score(context.Background(), "capital of France", []string{
		"Paris is the capital of France",
		"The Eiffel Tower is in Paris",
	})

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
}

func TestScore_PartialCoverage(t *testing.T) {
	scores, err := New().Score(context.Background(), "rust borrow checker", []string{"The borrow checker rejects this"})

	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, scores[0], 1e-9)
}

func TestScore_StopwordOnlyQuery(t *testing.T) {
	scores, err := New().Score(context.Background(), "what is the", []string{"anything"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0}, scores)
}

func TestScore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Score(ctx, "q", []string{"p"})
	assert.ErrorIs(t, err, context.Canceled)
}


func TestPing(t *testing.T) {
	r := New()
	assert.NoError(t, r.Ping(context.Background()))
	assert.Equal(t, ModelName, r.ModelName())
}
