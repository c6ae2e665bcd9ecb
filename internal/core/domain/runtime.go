package domain

// RuntimeState is the lifecycle state of the supervised inference process.
// Only the Supervisor transitions it.
type RuntimeState string

// Runtime lifecycle states.
const (
	RuntimeAbsent     RuntimeState = "absent"
	RuntimeInstalling RuntimeState = "installing"
	RuntimeStarting   RuntimeState = "starting"
	RuntimeHealthy    RuntimeState = "healthy"
	RuntimeDegraded   RuntimeState = "degraded"
	RuntimeTerminated RuntimeState = "terminated"
)

// ModelInfo describes a model available on the inference runtime.
type ModelInfo struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Digest        string `json:"digest"`
	ParameterSize string `json:"parameter_size,omitempty"`
}

// RuntimeStatus is a point-in-time report of the supervised runtime.
type RuntimeStatus struct {
	State     RuntimeState
	Installed bool
	Running   bool
	Healthy   bool
	Version   string

	// Models lists available models. When the runtime is down this is the
	// last-known list rather than an empty one.
	Models []ModelInfo
}

// GenerateOptions configures a generation call.
type GenerateOptions struct {
	// Model overrides the configured default model when non-empty.
	Model string

	// Temperature controls sampling randomness. Zero means model default.
	Temperature float64

	// MaxTokens bounds the generated output. Zero means model default.
	MaxTokens int
}
