package domain

import (
	"strings"
	"time"
)

// Origin identifies where a candidate passage came from.
type Origin string

// Available origins. Local sorts before web at equal relevance.
const (
	OriginLocal Origin = "local"
	OriginWeb   Origin = "web"
)

// Rank returns the tie-break rank of the origin. Lower sorts first.
func (o Origin) Rank() int {
	if o == OriginLocal {
		return 0
	}
	return 1
}

// String returns the string representation.
func (o Origin) String() string {
	return string(o)
}

// RetrievalMode selects which sources a retrieval consults.
type RetrievalMode string

// Available retrieval modes.
const (
	// RetrievalModeLocal searches only the vector store.
	RetrievalModeLocal RetrievalMode = "local"

	// RetrievalModeWeb searches only the web.
	RetrievalModeWeb RetrievalMode = "web"

	// RetrievalModeHybrid searches both and merges the candidates.
	RetrievalModeHybrid RetrievalMode = "hybrid"
)

// IsValid returns true if the retrieval mode is recognised.
func (m RetrievalMode) IsValid() bool {
	switch m {
	case RetrievalModeLocal, RetrievalModeWeb, RetrievalModeHybrid:
		return true
	default:
		return false
	}
}

// IncludesLocal returns true if the mode consults the vector store.
func (m RetrievalMode) IncludesLocal() bool {
	return m == RetrievalModeLocal || m == RetrievalModeHybrid
}

// IncludesWeb returns true if the mode consults web search.
func (m RetrievalMode) IncludesWeb() bool {
	return m == RetrievalModeWeb || m == RetrievalModeHybrid
}

// String returns the string representation.
func (m RetrievalMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m RetrievalMode) Description() string {
	switch m {
	case RetrievalModeLocal:
		return "Local (vector store only)"
	case RetrievalModeWeb:
		return "Web (web search only)"
	case RetrievalModeHybrid:
		return "Hybrid (vector store + web search)"
	default:
		return "Unknown"
	}
}

// WebSnippet is a normalised web search hit, whatever the upstream API shape.
type WebSnippet struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// SearchResult is a candidate passage produced fresh per query.
type SearchResult struct {
	// Content is the passage text.
	Content string `json:"content"`

	// Score is the producer's own score: cosine similarity for local hits,
	// reciprocal search rank for web hits.
	Score float64 `json:"score"`

	// Origin is the producing source.
	Origin Origin `json:"origin"`

	// SourceRef is the chunk ID for local hits or the URL for web hits.
	SourceRef string `json:"source_ref"`

	// Title is the web page title or the document ID.
	Title string `json:"title,omitempty"`

	// Position is the index within the merged candidate list.
	Position int `json:"-"`
}

// RerankedItem is a SearchResult scored for relevance to the query.
type RerankedItem struct {
	SearchResult

	// Relevance is clamped to [0,1].
	Relevance float64 `json:"relevance"`
}

// RetrieveOptions configures a single retrieval.
type RetrieveOptions struct {
	// Mode selects the sources. Defaults to the configured mode.
	Mode RetrievalMode

	// TopK is the number of items returned. Defaults to the configured value.
	TopK int

	// DocumentIDs restricts local candidates to these documents.
	DocumentIDs []string
}

// Diagnostics records which sources contributed and which degraded.
type Diagnostics struct {
	Mode RetrievalMode `json:"mode"`

	LocalUsed bool `json:"local_used"`
	WebUsed   bool `json:"web_used"`
	Reranked  bool `json:"reranked"`

	EmbeddingUnavailable bool `json:"embedding_unavailable,omitempty"`
	WebUnavailable       bool `json:"web_unavailable,omitempty"`
	RerankerUnavailable  bool `json:"reranker_unavailable,omitempty"`

	LocalCandidates int `json:"local_candidates"`
	WebCandidates   int `json:"web_candidates"`

	Warnings []string `json:"warnings,omitempty"`
}

// Degraded returns true if any requested dependency was unavailable.
func (d *Diagnostics) Degraded() bool {
	return d.EmbeddingUnavailable || d.WebUnavailable || d.RerankerUnavailable
}

// Merge folds another retrieval's diagnostics into d.
func (d *Diagnostics) Merge(o Diagnostics) {
	d.LocalUsed = d.LocalUsed || o.LocalUsed
	d.WebUsed = d.WebUsed || o.WebUsed
	d.Reranked = d.Reranked || o.Reranked
	d.EmbeddingUnavailable = d.EmbeddingUnavailable || o.EmbeddingUnavailable
	d.WebUnavailable = d.WebUnavailable || o.WebUnavailable
	d.RerankerUnavailable = d.RerankerUnavailable || o.RerankerUnavailable
	d.LocalCandidates += o.LocalCandidates
	d.WebCandidates += o.WebCandidates
	d.Warnings = append(d.Warnings, o.Warnings...)
}

// Describe states which sources were actually used.
func (d *Diagnostics) Describe() string {
	var sources string
	switch {
	case d.LocalUsed && d.WebUsed:
		sources = "local+web"
	case d.LocalUsed:
		sources = "local only"
	case d.WebUsed:
		sources = "web only"
	default:
		sources = "no sources"
	}

	var notes []string
	if d.EmbeddingUnavailable {
		notes = append(notes, "embedding unavailable")
	}
	if d.WebUnavailable {
		notes = append(notes, "web search unavailable")
	}
	if d.RerankerUnavailable {
		notes = append(notes, "reranker unavailable")
	}
	if len(notes) == 0 {
		return sources
	}
	return sources + " (degraded: " + strings.Join(notes, ", ") + ")"
}

// RetrievalResult is the ranked evidence of one retrieval.
type RetrievalResult struct {
	Query       string         `json:"query"`
	Items       []RerankedItem `json:"items"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}
