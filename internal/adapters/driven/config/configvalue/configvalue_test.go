package configvalue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 5, 5},
		{"int64 from toml", int64(7), 7},
		{"int32", int32(3), 3},
		{"whole float", 5.0, 5},
		{"fractional float", 5.5, 0},
		{"string", "5", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.in))
		})
	}
}

func TestFloat(t *testing.T) {
	assert.InDelta(t, 0.5, Float(0.5), 1e-9)
	assert.InDelta(t, 0.25, Float(float32(0.25)), 1e-9)
	assert.InDelta(t, 3.0, Float(3), 1e-9)
	assert.InDelta(t, 4.0, Float(int64(4)), 1e-9)
	assert.Zero(t, Float("0.5"))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Duration
	}{
		{"string", "15s", 15 * time.Second},
		{"bad string", "soon", 0},
		{"int seconds", 30, 30 * time.Second},
		{"int64 seconds", int64(2), 2 * time.Second},
		{"duration", time.Minute, time.Minute},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Duration(tt.in))
		})
	}
}

func TestStringAndBool(t *testing.T) {
	assert.Equal(t, "x", String("x"))
	assert.Empty(t, String(1))
	assert.True(t, Bool(true))
	assert.False(t, Bool("true"))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("retrieval.top_k"))
	assert.NoError(t, ValidateKey("verbose"))
	for _, bad := range []string{"", ".a", "a.", "a..b"} {
		assert.Error(t, ValidateKey(bad), bad)
	}
}
