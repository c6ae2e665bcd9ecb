package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/core/ports/driving"
	"github.com/lorekit/lorekit/internal/logger"
)

// Ensure AssistantService implements the interface.
var _ driving.Assistant = (*AssistantService)(nil)

// Assistant defaults.
const (
	// contextResultLimit is how many retrieved chunks are folded into
	// the prompt.
	contextResultLimit = 5

	// maxHistoryMessages bounds the conversation history carried into
	// each prompt. Older turns roll off.
	maxHistoryMessages = 6
)

// historyMessage is one remembered conversation turn.
type historyMessage struct {
	role    string // "user" or "assistant"
	content string
}

// AssistantService answers questions grounded in retrieved corpus
// context.
type AssistantService struct {
	retriever driving.Retriever
	runtime   driven.InferenceRuntime

	mu      sync.Mutex
	history []historyMessage
}

// NewAssistantService creates an assistant.
func NewAssistantService(retriever driving.Retriever, runtime driven.InferenceRuntime) *AssistantService {
	return &AssistantService{
		retriever: retriever,
		runtime:   runtime,
	}
}

// Ask retrieves context for the question, builds a source-attributed
// prompt and streams a generation. Retrieval being entirely down does
// not block an answer; the response is just produced without corpus
// context and flagged degraded.
func (s *AssistantService) Ask(ctx context.Context, question string, onToken func(string)) (driving.Answer, error) {
	logger.Section("Assistant")

	question = strings.TrimSpace(question)
	if question == "" {
		return driving.Answer{}, fmt.Errorf("empty question: %w", domain.ErrInvalidInput)
	}

	var answer driving.Answer

	results, err := s.retriever.Retrieve(ctx, question, contextResultLimit)
	switch {
	case errors.Is(err, domain.ErrRetrievalUnavailable):
		logger.Warn("Retrieval unavailable, answering without corpus context")
		answer.Degraded = true
	case err != nil:
		return driving.Answer{}, fmt.Errorf("retrieve context: %w", err)
	}

	for _, r := range results {
		if r.Chunk.Degraded {
			answer.Degraded = true
			break
		}
	}
	answer.ContextSources = sourceAttributions(results)

	prompt := s.buildPrompt(question, results)
	logger.Debug("Prompt: %d characters, %d context chunk(s)", len(prompt), len(results))

	events, err := s.runtime.GenerateStream(ctx, prompt, domain.GenerateOptions{})
	if err != nil {
		return driving.Answer{}, fmt.Errorf("start generation: %w", err)
	}

	var text strings.Builder
	for event := range events {
		switch event.Kind {
		case driven.EventPartialOutput:
			text.WriteString(event.Text)
			if onToken != nil && event.Text != "" {
				onToken(event.Text)
			}
		case driven.EventError:
			return driving.Answer{}, fmt.Errorf("generation: %w", event.Err)
		case driven.EventStatus, driven.EventUnknown:
			// Informational only.
		}
	}
	if err := ctx.Err(); err != nil {
		return driving.Answer{}, err
	}

	answer.Text = text.String()
	s.remember(question, answer.Text)
	return answer, nil
}

// ClearHistory drops the in-memory conversation history.
func (s *AssistantService) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// remember appends one exchange and trims the window.
func (s *AssistantService) remember(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history,
		historyMessage{role: "user", content: question},
		historyMessage{role: "assistant", content: answer},
	)
	if len(s.history) > maxHistoryMessages {
		s.history = s.history[len(s.history)-maxHistoryMessages:]
	}
}

// buildPrompt assembles the system instruction, source-attributed
// context blocks, recent conversation history and the question.
func (s *AssistantService) buildPrompt(question string, results []domain.RetrievalResult) string {
	var b strings.Builder

	b.WriteString("You are a helpful assistant answering questions about the user's document corpus.\n")
	if len(results) > 0 {
		b.WriteString("Answer using the context below. Cite the source titles you relied on.\n\n")
		b.WriteString("Context:\n")
		for _, r := range results {
			fmt.Fprintf(&b, "--- %s ---\n%s\n\n", r.DocumentTitle, r.Chunk.Content)
		}
	} else {
		b.WriteString("No corpus context is available; say so if the question needs it.\n\n")
	}

	s.mu.Lock()
	for _, msg := range s.history {
		fmt.Fprintf(&b, "%s: %s\n", msg.role, msg.content)
	}
	s.mu.Unlock()

	fmt.Fprintf(&b, "user: %s\nassistant:", question)
	return b.String()
}

// sourceAttributions formats the distinct document titles with their
// best fused score.
func sourceAttributions(results []domain.RetrievalResult) []string {
	best := make(map[string]float64)
	var order []string
	for _, r := range results {
		score, seen := best[r.DocumentTitle]
		if !seen {
			order = append(order, r.DocumentTitle)
		}
		if !seen || r.Score > score {
			best[r.DocumentTitle] = r.Score
		}
	}

	attributions := make([]string, len(order))
	for i, title := range order {
		attributions[i] = fmt.Sprintf("%s (score %.2f)", title, best[title])
	}
	return attributions
}
