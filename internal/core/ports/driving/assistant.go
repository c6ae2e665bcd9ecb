package driving

import "context"

// Answer is a generated response with the context that informed it.
type Answer struct {
	// Text is the full generated answer.
	Text string

	// ContextSources lists the document titles (with scores) whose chunks
	// were included in the prompt.
	ContextSources []string

	// Degraded is true when the answer was produced without retrieval
	// context or with fallback embeddings in play.
	Degraded bool
}

// Assistant turns a user question into a context-enriched answer.
type Assistant interface {
	// Ask retrieves context, builds the prompt and streams a generation.
	// onToken, when non-nil, receives each partial output as it arrives.
	Ask(ctx context.Context, question string, onToken func(string)) (Answer, error)

	// ClearHistory drops the in-memory conversation history.
	ClearHistory()
}
