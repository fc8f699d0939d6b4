package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
	"github.com/custodia-labs/webrage/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalConfig tunes hybrid retrieval.
type RetrievalConfig struct {
	Mode            domain.RetrievalMode
	TopK            int
	LocalOversample int
	WebResults      int
	QueryPrefix     string

	// Per-call timeouts. Zero means no limit.
	EmbedTimeout  time.Duration
	WebTimeout    time.Duration
	RerankTimeout time.Duration
}

// RetrievalConfigFromSettings extracts the retrieval tuning from app settings.
func RetrievalConfigFromSettings(s *domain.AppSettings) RetrievalConfig {
	return RetrievalConfig{
		Mode:            s.Retrieval.Mode,
		TopK:            s.Retrieval.TopK,
		LocalOversample: s.Retrieval.LocalOversample,
		WebResults:      s.Retrieval.WebResults,
		QueryPrefix:     s.Embedding.QueryPrefix,
		EmbedTimeout:    s.Timeouts.Embedding,
		WebTimeout:      s.Timeouts.WebSearch,
		RerankTimeout:   s.Timeouts.Reranker,
	}
}

// RetrievalService merges local and web candidates and reranks them.
type RetrievalService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	web      driven.WebSearcher
	reranker driven.Reranker
	cfg      RetrievalConfig
}

// NewRetrievalService creates a retrieval service.
// The embedder, web searcher and reranker are optional (can be nil); a
// missing one is reported in the diagnostics like an unavailable one,
// except the reranker, whose absence only disables reranking.
func NewRetrievalService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	web driven.WebSearcher,
	reranker driven.Reranker,
	cfg RetrievalConfig,
) *RetrievalService {
	defaults := domain.DefaultAppSettings().Retrieval
	if !cfg.Mode.IsValid() {
		cfg.Mode = defaults.Mode
	}
	if cfg.TopK < 1 {
		cfg.TopK = defaults.TopK
	}
	if cfg.WebResults < 1 {
		cfg.WebResults = defaults.WebResults
	}
	return &RetrievalService{
		store:    store,
		embedder: embedder,
		web:      web,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Retrieve returns the top_k most relevant items for query.
//
// Unavailable dependencies degrade the result instead of failing it.
// domain.ErrNoEvidenceFound is returned only when every source the mode
// asks for is unavailable. Store failures such as a dimension mismatch
// abort the retrieval.
//
//nolint:gocyclo // Orchestrates two sources and a reranker with fallbacks.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty: %w", domain.ErrInvalidInput)
	}

	mode := opts.Mode
	if mode == "" {
		mode = s.cfg.Mode
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("retrieval mode %q: %w", mode, domain.ErrInvalidInput)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	logger.Section("Retrieval")
	logger.Debug("Query: %q, mode: %s, top_k: %d", query, mode, topK)

	var (
		local    []domain.ScoredChunk
		web      []domain.WebSnippet
		localErr error
		webErr   error
	)

	// Both sources are read concurrently; Wait is the barrier before merging.
	g, gctx := errgroup.WithContext(ctx)
	if mode.IncludesLocal() {
		g.Go(func() error {
			hits, err := s.searchLocal(gctx, query, topK, opts.DocumentIDs)
			if domain.IsUnavailable(err) {
				localErr = err
				return nil
			}
			local = hits
			return err
		})
	}
	if mode.IncludesWeb() {
		g.Go(func() error {
			snippets, err := s.searchWeb(gctx, query)
			if domain.IsUnavailable(err) {
				webErr = err
				return nil
			}
			web = snippets
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	diag := domain.Diagnostics{Mode: mode}
	if mode.IncludesLocal() {
		if localErr != nil {
			diag.EmbeddingUnavailable = true
			diag.Warnings = append(diag.Warnings, localErr.Error())
			logger.Warn("Local search skipped: %v", localErr)
		} else {
			diag.LocalUsed = true
		}
	}
	if mode.IncludesWeb() {
		if webErr != nil {
			diag.WebUnavailable = true
			diag.Warnings = append(diag.Warnings, webErr.Error())
			logger.Warn("Web search skipped: %v", webErr)
		} else {
			diag.WebUsed = true
		}
	}
	if !diag.LocalUsed && !diag.WebUsed {
		return nil, fmt.Errorf("%s: %w", diag.Describe(), domain.ErrNoEvidenceFound)
	}

	candidates := mergeCandidates(local, web)
	diag.LocalCandidates = len(local)
	diag.WebCandidates = len(candidates) - len(local)
	logger.Debug("Candidates: %d local, %d web", diag.LocalCandidates, diag.WebCandidates)

	items, err := s.rerank(ctx, query, candidates, &diag)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(items) > topK {
		items = items[:topK]
	}

	logger.Info("Retrieved %d items (%s)", len(items), diag.Describe())
	return &domain.RetrievalResult{Query: query, Items: items, Diagnostics: diag}, nil
}

// searchLocal embeds the query and searches the store for N_local candidates.
// Embedding failures come back as domain.ErrEmbeddingUnavailable; anything
// else aborts the retrieval.
func (s *RetrievalService) searchLocal(
	ctx context.Context, query string, topK int, documentIDs []string,
) ([]domain.ScoredChunk, error) {
	if s.embedder == nil || s.store == nil {
		return nil, fmt.Errorf("no embedding provider configured: %w", domain.ErrEmbeddingUnavailable)
	}

	callCtx, cancel := withTimeout(ctx, s.cfg.EmbedTimeout)
	vector, err := s.embedder.Embed(callCtx, s.cfg.QueryPrefix+query)
	cancel()
	if err != nil {
		return nil, asUnavailable(ctx, err, domain.ErrEmbeddingUnavailable)
	}

	var filter domain.ChunkFilter
	if len(documentIDs) > 0 {
		filter = domain.DocumentIn(documentIDs...)
	}

	n := domain.RetrievalSettings{LocalOversample: s.cfg.LocalOversample}.LocalCandidates(topK)
	hits, err := s.store.Search(ctx, vector, n, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

// searchWeb fetches N_web snippets. Failures come back as
// domain.ErrWebSearchUnavailable; cancellation is returned unchanged.
func (s *RetrievalService) searchWeb(ctx context.Context, query string) ([]domain.WebSnippet, error) {
	if s.web == nil {
		return nil, fmt.Errorf("no web search backend configured: %w", domain.ErrWebSearchUnavailable)
	}

	callCtx, cancel := withTimeout(ctx, s.cfg.WebTimeout)
	snippets, err := s.web.Search(callCtx, query, s.cfg.WebResults)
	cancel()
	if err != nil {
		return nil, asUnavailable(ctx, err, domain.ErrWebSearchUnavailable)
	}
	return snippets, nil
}

// mergeCandidates tags both sources and numbers them in one list, local first.
// Web hits are scored by reciprocal rank; snippets with no text are dropped.
func mergeCandidates(local []domain.ScoredChunk, web []domain.WebSnippet) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(local)+len(web))
	for _, hit := range local {
		out = append(out, domain.SearchResult{
			Content:   hit.Chunk.Text,
			Score:     hit.Similarity,
			Origin:    domain.OriginLocal,
			SourceRef: hit.Chunk.ID,
			Title:     hit.Chunk.DocumentID,
			Position:  len(out),
		})
	}

	rank := 0
	for _, snip := range web {
		content := strings.TrimSpace(snip.Content)
		if content == "" {
			content = strings.TrimSpace(snip.Title)
		}
		if content == "" {
			continue
		}
		rank++
		out = append(out, domain.SearchResult{
			Content:   content,
			Score:     1 / float64(rank),
			Origin:    domain.OriginWeb,
			SourceRef: snip.URL,
			Title:     snip.Title,
			Position:  len(out),
		})
	}
	return out
}

// rerank scores and orders candidates. When the reranker is missing or
// unavailable, candidates keep their per-source order with local first and
// carry their own score, clamped, as relevance.
func (s *RetrievalService) rerank(
	ctx context.Context, query string, candidates []domain.SearchResult, diag *domain.Diagnostics,
) ([]domain.RerankedItem, error) {
	items := make([]domain.RerankedItem, len(candidates))
	for i, c := range candidates {
		items[i] = domain.RerankedItem{SearchResult: c, Relevance: clampUnit(c.Score)}
	}
	if len(items) == 0 {
		return items, nil
	}

	if s.reranker == nil {
		logger.Debug("Reranking disabled, keeping source order")
		sortBySource(items)
		return items, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Content
	}

	callCtx, cancel := withTimeout(ctx, s.cfg.RerankTimeout)
	scores, err := s.reranker.Score(callCtx, query, passages)
	cancel()
	if err == nil && len(scores) != len(passages) {
		err = fmt.Errorf("reranker returned %d scores for %d passages: %w",
			len(scores), len(passages), domain.ErrRerankerUnavailable)
	}
	if err != nil {
		err = asUnavailable(ctx, err, domain.ErrRerankerUnavailable)
		if ctx.Err() != nil {
			return nil, err
		}
		diag.RerankerUnavailable = true
		diag.Warnings = append(diag.Warnings, err.Error())
		logger.Warn("Reranking skipped: %v", err)
		sortBySource(items)
		return items, nil
	}

	for i := range items {
		items[i].Relevance = clampUnit(scores[i])
	}
	sortByRelevance(items)
	diag.Reranked = true
	return items, nil
}

// sortByRelevance orders by descending relevance, then local before web,
// then by merged position.
func sortByRelevance(items []domain.RerankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if a.Origin.Rank() != b.Origin.Rank() {
			return a.Origin.Rank() < b.Origin.Rank()
		}
		return a.Position < b.Position
	})
}

// sortBySource is the pre-rerank order: local before web, each in its
// original order.
func sortBySource(items []domain.RerankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Origin.Rank() != b.Origin.Rank() {
			return a.Origin.Rank() < b.Origin.Rank()
		}
		return a.Position < b.Position
	})
}

func clampUnit(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
