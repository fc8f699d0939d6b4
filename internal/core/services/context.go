package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// DefaultAnswerPrompt is the generation template: the query, then the evidence.
const DefaultAnswerPrompt = "Using the following search results, provide a comprehensive answer to the query: %s\n\n" +
	"Search results:\n%s"

// BuildAnswerPrompt assembles the prompt handed to the answer generator.
// Evidence is listed in the given order, numbered from 1, each with its
// origin and source so the answer can cite it. prompts may be nil.
func BuildAnswerPrompt(prompts driven.PromptStore, query string, evidence []domain.RerankedItem) string {
	template := DefaultAnswerPrompt
	if prompts != nil {
		if p, err := prompts.Load(driven.PromptAnswer); err == nil && strings.Count(p, "%s") == 2 {
			template = p
		}
	}
	return fmt.Sprintf(template, strings.TrimSpace(query), FormatEvidence(evidence))
}

// FormatEvidence renders evidence as numbered blocks.
func FormatEvidence(evidence []domain.RerankedItem) string {
	if len(evidence) == 0 {
		return "(no results)\n"
	}
	var b strings.Builder
	for i, item := range evidence {
		fmt.Fprintf(&b, "[%d] (%s, relevance %.2f) %s\n", i+1, item.Origin, item.Relevance, sourceLabel(item))
		b.WriteString(strings.TrimSpace(item.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func sourceLabel(item domain.RerankedItem) string {
	switch {
	case item.Origin == domain.OriginWeb && item.Title != "":
		return item.Title + " <" + item.SourceRef + ">"
	case item.Origin == domain.OriginLocal && item.Title != "":
		return item.Title
	default:
		return item.SourceRef
	}
}
