package ai

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// ComponentStatus reports whether one configured component is usable.
type ComponentStatus struct {
	Component string
	Backend   string
	Disabled  bool
	Err       error
}

// OK returns true if the component is enabled and passed validation.
func (s ComponentStatus) OK() bool {
	return !s.Disabled && s.Err == nil
}

// ConfigValidator validates provider configurations by pinging them.
type ConfigValidator struct {
	prompts driven.PromptStore
}

// NewConfigValidator creates a new config validator.
// The prompt store may be nil.
func NewConfigValidator(prompts driven.PromptStore) *ConfigValidator {
	return &ConfigValidator{prompts: prompts}
}

// ValidateEmbedding validates an embedding configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if svc != nil {
		_ = svc.Close()
	}
	return err
}

// ValidateLLM validates an LLM configuration by pinging the provider.
func (v *ConfigValidator) ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error {
	svc, err := CreateAndValidateLLMService(ctx, settings, false)
	if svc != nil {
		_ = svc.Close()
	}
	return err
}

// ValidateReranker validates the reranker configuration by pinging the backend.
func (v *ConfigValidator) ValidateReranker(ctx context.Context, settings *domain.AppSettings) error {
	r, err := CreateReranker(settings, v.prompts)
	if err != nil || r == nil {
		return err
	}
	return ping(ctx, r.Ping)
}

// Check validates every component and reports one status per component.
// Web search is only constructed; probing it would spend a rate limited query.
func (v *ConfigValidator) Check(ctx context.Context, settings *domain.AppSettings) []ComponentStatus {
	statuses := []ComponentStatus{
		{
			Component: "embedding",
			Backend:   string(settings.Embedding.Provider),
			Disabled:  isDisabledProvider(settings.Embedding.Provider),
			Err:       v.ValidateEmbedding(ctx, &settings.Embedding),
		},
		{
			Component: "llm",
			Backend:   string(settings.LLM.Provider),
			Disabled:  isDisabledProvider(settings.LLM.Provider),
			Err:       v.ValidateLLM(ctx, &settings.LLM),
		},
		{
			Component: "reranker",
			Backend:   string(settings.Reranker.Backend),
			Disabled:  settings.Reranker.Backend == domain.RerankerNone || settings.Reranker.Backend == "",
			Err:       v.ValidateReranker(ctx, settings),
		},
	}

	_, err := CreateWebSearcher(settings)
	statuses = append(statuses, ComponentStatus{
		Component: "web_search",
		Backend:   string(settings.WebSearch.Backend),
		Disabled:  settings.WebSearch.Backend == domain.WebSearchNone || settings.WebSearch.Backend == "",
		Err:       err,
	})

	return statuses
}

func isDisabledProvider(p domain.AIProvider) bool {
	return p == domain.AIProviderNone || p == ""
}
