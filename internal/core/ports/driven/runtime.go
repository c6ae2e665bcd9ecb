package driven

import (
	"context"

	"github.com/lorekit/lorekit/internal/core/domain"
)

// StreamEventKind tags a decoded generation stream event.
type StreamEventKind int

// Stream event kinds. Unknown absorbs forward-compatible or malformed
// payloads without failing the stream.
const (
	EventStatus StreamEventKind = iota
	EventPartialOutput
	EventError
	EventUnknown
)

// StreamEvent is one decoded line of a streaming generation response.
type StreamEvent struct {
	Kind StreamEventKind

	// Text carries partial output for EventPartialOutput and status text
	// for EventStatus.
	Text string

	// Err is set for EventError.
	Err error

	// Done marks the final event of a completed generation.
	Done bool
}

// Progress is one step of a long-running runtime operation such as a
// model download. Consumers pull these from a channel rather than
// registering a callback.
type Progress struct {
	// Fraction is completed/total in [0,1] when both are known.
	Fraction float64

	// Indeterminate is true when totals are unknown and Fraction is
	// meaningless.
	Indeterminate bool

	// Status is human-readable progress text.
	Status string
}

// InferenceRuntime is the supervised local model-serving process.
// The supervisor owns at most one live process handle; all lifecycle
// transitions happen behind this interface.
type InferenceRuntime interface {
	// EnsureReady detects, installs, starts and health-checks the runtime
	// as needed. Idempotent: a healthy runtime is a no-op returning the
	// current status.
	EnsureReady(ctx context.Context) (domain.RuntimeStatus, error)

	// Status reports the current lifecycle state without side effects.
	Status(ctx context.Context) domain.RuntimeStatus

	// Embed generates an embedding vector via the runtime.
	Embed(ctx context.Context, text string) ([]float32, error)

	// GenerateStream starts a streaming generation. The returned channel
	// is closed when the stream ends; cancelling ctx abandons the stream
	// without leaking the background reader.
	GenerateStream(ctx context.Context, prompt string, opts domain.GenerateOptions) (<-chan StreamEvent, error)

	// PullModel downloads a model, reporting progress until the returned
	// channel closes.
	PullModel(ctx context.Context, model string) (<-chan Progress, error)

	// SetModel switches the active generation model for subsequent
	// calls. An empty name is ignored.
	SetModel(model string)

	// Shutdown terminates the owned child process and waits for it.
	// No child process may outlive its supervisor.
	Shutdown(ctx context.Context) error
}
