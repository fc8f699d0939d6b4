package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
	"github.com/custodia-labs/webrage/internal/logger"
)

// Ensure ResearchService implements the interface.
var _ driving.ResearchService = (*ResearchService)(nil)

// ResearchConfig holds the defaults for deep research requests.
type ResearchConfig struct {
	MaxRounds      int
	MinImprovement float64
	Reformulations int
	Concurrency    int
	TopK           int
}

// ResearchConfigFromSettings extracts the research tuning from app settings.
func ResearchConfigFromSettings(s *domain.AppSettings) ResearchConfig {
	return ResearchConfig{
		MaxRounds:      s.Research.MaxRounds,
		MinImprovement: s.Research.MinImprovement,
		Reformulations: s.Research.Reformulations,
		Concurrency:    s.Research.Concurrency,
		TopK:           s.Retrieval.TopK,
	}
}

// ResearchService runs the bounded multi-round research loop on top of
// hybrid retrieval.
type ResearchService struct {
	retrieval    driving.RetrievalService
	reformulator Reformulator
	cfg          ResearchConfig
}

// NewResearchService creates a research service.
// A nil reformulator uses the deterministic term strategy.
func NewResearchService(
	retrieval driving.RetrievalService, reformulator Reformulator, cfg ResearchConfig,
) *ResearchService {
	defaults := domain.DefaultAppSettings()
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = defaults.Research.MaxRounds
	}
	if cfg.MinImprovement < 0 {
		cfg.MinImprovement = 0
	}
	if cfg.Reformulations < 1 {
		cfg.Reformulations = defaults.Research.Reformulations
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TopK < 1 {
		cfg.TopK = defaults.Retrieval.TopK
	}
	if reformulator == nil {
		reformulator = TermReformulator{}
	}
	return &ResearchService{retrieval: retrieval, reformulator: reformulator, cfg: cfg}
}

// researchRun is the per-request state threaded through the phases.
type researchRun struct {
	session        *domain.ResearchSession
	maxRounds      int
	minImprovement float64
	topK           int
	queries        []string
	prevTop        float64
	roundsRun      int
}

// Research iterates reformulate, retrieve and evaluate until the round bound
// is reached or a round stops improving on the previous one.
//
// Cancellation is honoured between rounds: a round already started runs to
// completion and the evidence gathered so far is returned as a partial
// result. The request fails with domain.ErrNoEvidenceFound only when the
// first round finds nothing and web search was unavailable.
//
//nolint:gocyclo // State machine dispatch.
func (s *ResearchService) Research(
	ctx context.Context, prompt string, opts domain.ResearchOptions,
) (*domain.ResearchResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is empty: %w", domain.ErrInvalidInput)
	}

	run := &researchRun{
		session:        domain.NewResearchSession(prompt),
		maxRounds:      s.cfg.MaxRounds,
		minImprovement: s.cfg.MinImprovement,
		topK:           s.cfg.TopK,
	}
	if opts.MaxRounds > 0 {
		run.maxRounds = opts.MaxRounds
	}
	if opts.MinImprovementSet || opts.MinImprovement > 0 {
		run.minImprovement = max(opts.MinImprovement, 0)
	}
	if opts.TopK > 0 {
		run.topK = opts.TopK
	}

	logger.Section("Deep Research")
	logger.Debug("Prompt: %q, max rounds: %d, margin: %.3f", prompt, run.maxRounds, run.minImprovement)

	sess := run.session
	for {
		switch sess.Phase {
		case domain.PhaseInit:
			sess.Round = 0
			sess.Phase = domain.PhaseReformulate

		case domain.PhaseReformulate:
			if sess.Round > 0 && ctx.Err() != nil {
				logger.Info("Research cancelled after %d rounds", run.roundsRun)
				s.stop(sess, domain.StopCancelled)
				continue
			}
			queries, err := s.subQueries(ctx, sess)
			if err != nil {
				if ctx.Err() != nil {
					s.stop(sess, domain.StopCancelled)
					continue
				}
				logger.Warn("Reformulation failed: %v", err)
			}
			if len(queries) == 0 {
				s.stop(sess, domain.StopNoNewQueries)
				continue
			}
			run.queries = queries
			sess.Phase = domain.PhaseRetrieve

		case domain.PhaseRetrieve:
			logger.Debug("Round %d: %s", sess.Round, describeQueries(run.queries))
			rounds, errs := s.retrieveRound(ctx, sess.Round, run.queries, run.topK)
			sess.Rounds = append(sess.Rounds, rounds...)
			run.roundsRun++
			if sess.Round == 0 {
				if err := firstRoundFailure(rounds[0], errs[0]); err != nil {
					return nil, err
				}
			}
			sess.Phase = domain.PhaseEvaluate

		case domain.PhaseEvaluate:
			top := sess.RoundTop(sess.Round)
			logger.Debug("Round %d top relevance %.3f (previous %.3f)", sess.Round, top, run.prevTop)
			switch {
			case sess.Round+1 >= run.maxRounds:
				s.stop(sess, domain.StopMaxRounds)
			case sess.Round > 0 && top-run.prevTop < run.minImprovement:
				s.stop(sess, domain.StopNoImprovement)
			default:
				run.prevTop = top
				sess.Round++
				sess.Phase = domain.PhaseReformulate
			}

		case domain.PhaseAggregate:
			sess.Terminated = true
			result := aggregate(sess)
			result.RoundsRun = run.roundsRun
			logger.Info("Research finished after %d rounds (%s): %d evidence items",
				run.roundsRun, sess.StopReason, len(result.Evidence))
			return result, nil

		default:
			return nil, fmt.Errorf("research: unknown phase %q", sess.Phase)
		}
	}
}

func (s *ResearchService) stop(sess *domain.ResearchSession, reason domain.StopReason) {
	sess.StopReason = reason
	sess.Phase = domain.PhaseAggregate
}

// subQueries returns the prompt itself for round 0 and fresh
// reformulations afterwards.
func (s *ResearchService) subQueries(ctx context.Context, sess *domain.ResearchSession) ([]string, error) {
	if sess.Round == 0 {
		return []string{sess.Prompt}, nil
	}
	asked := sess.AskedQueries()
	queries, err := s.reformulator.Reformulate(ctx, sess.Prompt, sess.Evidence(), asked, s.cfg.Reformulations)
	return dedupQueries(queries, asked), err
}

// retrieveRound runs every sub-query with bounded parallelism and waits for
// all of them. A failed sub-query is recorded with empty results. The round
// is detached from the caller's cancellation so that it always completes;
// per-call timeouts still bound each retrieval.
func (s *ResearchService) retrieveRound(
	ctx context.Context, round int, queries []string, topK int,
) ([]domain.ResearchRound, []error) {
	roundCtx := context.WithoutCancel(ctx)
	rounds := make([]domain.ResearchRound, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			r := domain.ResearchRound{RoundIndex: round, SubQuery: q, Results: []domain.RerankedItem{}}
			res, err := s.retrieval.Retrieve(roundCtx, q, domain.RetrieveOptions{
				Mode: domain.RetrievalModeHybrid,
				TopK: topK,
			})
			if err != nil {
				logger.Warn("Sub-query %q failed: %v", q, err)
				errs[i] = err
				r.Error = err.Error()
				r.Diagnostics.Mode = domain.RetrievalModeHybrid
				if errors.Is(err, domain.ErrNoEvidenceFound) {
					r.Diagnostics.WebUnavailable = true
				}
			} else {
				r.Results = res.Items
				r.Diagnostics = res.Diagnostics
			}
			rounds[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return rounds, errs
}

// firstRoundFailure decides whether the session fails outright: the original
// prompt found no evidence and web search could not be reached.
func firstRoundFailure(r domain.ResearchRound, err error) error {
	if len(r.Results) > 0 || r.Diagnostics.WebUsed {
		return nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoEvidenceFound) {
			return fmt.Errorf("research: %w", err)
		}
		// Store failures such as a dimension mismatch surface unchanged.
		return fmt.Errorf("research: first round: %w", err)
	}
	return fmt.Errorf("research: %s: %w", r.Diagnostics.Describe(), domain.ErrNoEvidenceFound)
}

// aggregate keeps the most relevant occurrence of each source and orders
// the evidence by relevance, local before web on ties.
func aggregate(sess *domain.ResearchSession) *domain.ResearchResult {
	best := make(map[string]int)
	var evidence []domain.RerankedItem
	for _, item := range sess.Evidence() {
		i, seen := best[item.SourceRef]
		if !seen {
			best[item.SourceRef] = len(evidence)
			item.Position = len(evidence)
			evidence = append(evidence, item)
			continue
		}
		if item.Relevance > evidence[i].Relevance {
			item.Position = evidence[i].Position
			evidence[i] = item
		}
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		a, b := evidence[i], evidence[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return a.Origin.Rank() < b.Origin.Rank()
	})
	if evidence == nil {
		evidence = []domain.RerankedItem{}
	}

	var diag domain.Diagnostics
	diag.Mode = domain.RetrievalModeHybrid
	for i := range sess.Rounds {
		diag.Merge(sess.Rounds[i].Diagnostics)
	}

	return &domain.ResearchResult{
		Prompt:      sess.Prompt,
		Evidence:    evidence,
		Rounds:      sess.Rounds,
		StopReason:  sess.StopReason,
		Partial:     sess.StopReason == domain.StopCancelled,
		Diagnostics: diag,
	}
}
