package driven

// ConfigStore persists user-facing settings across runs.
type ConfigStore interface {
	// SetRuntimeModel records the active generation model so future
	// sessions start with it.
	SetRuntimeModel(name string) error
}
