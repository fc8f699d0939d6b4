package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return an error.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptReformulate is the system prompt for query reformulation.
	// The template has no placeholders; the query and evidence are appended.
	PromptReformulate = "reformulate"

	// PromptRerankInstruction is the task line given to instruction-following rerankers.
	PromptRerankInstruction = "rerank_instruction"

	// PromptAnswer frames the assembled evidence for the answer-generation call.
	// The template expects a %s placeholder for the query and one for the evidence.
	PromptAnswer = "answer"
)
