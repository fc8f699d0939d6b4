package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetrievalMode_Sources(t *testing.T) {
	tests := []struct {
		mode  RetrievalMode
		valid bool
		local bool
		web   bool
	}{
		{RetrievalModeLocal, true, true, false},
		{RetrievalModeWeb, true, false, true},
		{RetrievalModeHybrid, true, true, true},
		{RetrievalMode("both"), false, false, false},
		{RetrievalMode(""), false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.mode.IsValid())
			assert.Equal(t, tt.local, tt.mode.IncludesLocal())
			assert.Equal(t, tt.web, tt.mode.IncludesWeb())
		})
	}
}

func TestOrigin_RankPrefersLocal(t *testing.T) {
	assert.Less(t, OriginLocal.Rank(), OriginWeb.Rank())
}

func TestDiagnostics_Describe(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostics
		want string
	}{
		{"local only", Diagnostics{LocalUsed: true}, "local only"},
		{"both", Diagnostics{LocalUsed: true, WebUsed: true}, "local+web"},
		{"nothing", Diagnostics{}, "no sources"},
		{
			"degraded",
			Diagnostics{LocalUsed: true, WebUnavailable: true, RerankerUnavailable: true},
			"local only (degraded: web search unavailable, reranker unavailable)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Describe())
		})
	}
}

func TestDiagnostics_Merge(t *testing.T) {
	d := Diagnostics{LocalUsed: true, LocalCandidates: 3}
	d.Merge(Diagnostics{WebUnavailable: true, LocalCandidates: 2, Warnings: []string{"w"}})

	assert.True(t, d.LocalUsed)
	assert.True(t, d.WebUnavailable)
	assert.True(t, d.Degraded())
	assert.Equal(t, 5, d.LocalCandidates)
	assert.Equal(t, []string{"w"}, d.Warnings)
}
