package domain

// ResearchPhase is a state of the deep research state machine.
type ResearchPhase string

// Research phases in order. Evaluate loops back to Reformulate or ends in Aggregate.
const (
	PhaseInit        ResearchPhase = "init"
	PhaseReformulate ResearchPhase = "reformulate"
	PhaseRetrieve    ResearchPhase = "retrieve"
	PhaseEvaluate    ResearchPhase = "evaluate"
	PhaseAggregate   ResearchPhase = "aggregate"
)

// StopReason records why a research session stopped iterating.
type StopReason string

// Stop reasons.
const (
	StopMaxRounds       StopReason = "max_rounds"
	StopNoImprovement   StopReason = "no_improvement"
	StopNoNewQueries    StopReason = "no_new_queries"
	StopCancelled       StopReason = "cancelled"
	StopNoEvidenceFound StopReason = "no_evidence"
)

// ResearchOptions configures a deep research request.
// Zero values fall back to configured defaults.
type ResearchOptions struct {
	MaxRounds      int
	MinImprovement float64

	// MinImprovementSet distinguishes an explicit zero margin from unset.
	MinImprovementSet bool

	TopK int
}

// ResearchRound is the retrieval of one sub-query within a round.
type ResearchRound struct {
	RoundIndex  int            `json:"round_index"`
	SubQuery    string         `json:"sub_query"`
	Results     []RerankedItem `json:"results"`
	Error       string         `json:"error,omitempty"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}

// TopRelevance returns the highest relevance in the round, or 0 when empty.
func (r *ResearchRound) TopRelevance() float64 {
	best := 0.0
	for _, item := range r.Results {
		if item.Relevance > best {
			best = item.Relevance
		}
	}
	return best
}

// ResearchSession is the state of one deep research request.
// It is discarded once the result is returned.
type ResearchSession struct {
	Prompt     string
	Rounds     []ResearchRound
	Round      int
	Phase      ResearchPhase
	Terminated bool
	StopReason StopReason
}

// NewResearchSession starts a session in the INIT phase.
func NewResearchSession(prompt string) *ResearchSession {
	return &ResearchSession{Prompt: prompt, Phase: PhaseInit}
}

// RoundTop returns the highest relevance across all sub-queries of a round.
func (s *ResearchSession) RoundTop(round int) float64 {
	best := 0.0
	for i := range s.Rounds {
		if s.Rounds[i].RoundIndex != round {
			continue
		}
		if top := s.Rounds[i].TopRelevance(); top > best {
			best = top
		}
	}
	return best
}

// AskedQueries returns every sub-query issued so far.
func (s *ResearchSession) AskedQueries() []string {
	out := make([]string, 0, len(s.Rounds))
	for i := range s.Rounds {
		out = append(out, s.Rounds[i].SubQuery)
	}
	return out
}

// Evidence returns every item gathered so far, in round order.
func (s *ResearchSession) Evidence() []RerankedItem {
	var out []RerankedItem
	for i := range s.Rounds {
		out = append(out, s.Rounds[i].Results...)
	}
	return out
}

// ResearchResult is the final output of a deep research request.
type ResearchResult struct {
	Prompt      string          `json:"prompt"`
	Evidence    []RerankedItem  `json:"evidence"`
	Rounds      []ResearchRound `json:"rounds"`
	RoundsRun   int             `json:"rounds_run"`
	StopReason  StopReason      `json:"stop_reason"`
	Partial     bool            `json:"partial,omitempty"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}
