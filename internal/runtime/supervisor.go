package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/logger"
)

// Ensure Supervisor implements the interface.
var _ driven.InferenceRuntime = (*Supervisor)(nil)

// Default supervision parameters.
const (
	DefaultModel          = "phi3:mini"
	DefaultEmbedModel     = "nomic-embed-text"
	DefaultHealthInterval = 30 * time.Second

	healthProbeTimeout = 2 * time.Second
	readinessAttempts  = 10
	readinessInterval  = 500 * time.Millisecond
)

// Config holds configuration for the runtime supervisor.
type Config struct {
	// BaseURL is the daemon API base URL (default: http://127.0.0.1:11434).
	BaseURL string

	// Model is the default generation model (default: phi3:mini).
	Model string

	// EmbedModel is the embedding model (default: nomic-embed-text).
	EmbedModel string

	// BinDir is where a downloaded runtime binary is installed
	// (default: ~/.lorekit/bin).
	BinDir string

	// HealthInterval is the period between health probes (default: 30s).
	HealthInterval time.Duration
}

// Supervisor manages the lifecycle of a local inference daemon. It owns
// at most one child process handle at a time; only Supervisor methods
// transition the lifecycle state.
type Supervisor struct {
	mu sync.Mutex

	cfg       Config
	client    *client
	installer *installer

	state      domain.RuntimeState
	binaryPath string
	model      string

	cmd      *exec.Cmd
	procDone chan error

	procCtx    context.Context
	procCancel context.CancelFunc

	// restartUsed tracks the single automatic restart allowed per
	// unhealthy episode. Reset on every successful probe.
	restartUsed bool

	lastModels  []domain.ModelInfo
	lastVersion string

	healthStop chan struct{}
	healthDone chan struct{}

	// Overridable for tests.
	lookPath   func(file string) (string, error)
	newCommand func(ctx context.Context, path string) *exec.Cmd
}

// NewSupervisor creates a runtime supervisor. No process is started
// until EnsureReady is called.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.BinDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.BinDir = filepath.Join(home, ".lorekit", "bin")
		}
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}

	procCtx, procCancel := context.WithCancel(context.Background())

	return &Supervisor{
		cfg:        cfg,
		client:     newClient(cfg.BaseURL, 0),
		installer:  newInstaller(cfg.BinDir),
		state:      domain.RuntimeAbsent,
		model:      cfg.Model,
		procCtx:    procCtx,
		procCancel: procCancel,
		lookPath:   exec.LookPath,
		newCommand: func(ctx context.Context, path string) *exec.Cmd {
			return exec.CommandContext(ctx, path, "serve")
		},
	}
}

// EnsureReady detects, installs, starts and health-checks the runtime
// as needed. Idempotent: if the daemon already answers on the endpoint
// (including one started outside this supervisor), nothing is changed.
func (s *Supervisor) EnsureReady(ctx context.Context) (domain.RuntimeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.RuntimeTerminated {
		return s.statusLocked(ctx), domain.ErrRuntimeTerminated
	}

	if s.probe(ctx) == nil {
		s.state = domain.RuntimeHealthy
		s.restartUsed = false
		s.refreshCachesLocked(ctx)
		s.startHealthLoopLocked()
		return s.statusLocked(ctx), nil
	}

	binary, err := s.findBinaryLocked()
	if err != nil {
		s.state = domain.RuntimeInstalling
		logger.Section("Installing inference runtime")

		binary, err = s.installer.Install(ctx)
		if err != nil {
			s.state = domain.RuntimeAbsent
			return s.statusLocked(ctx), fmt.Errorf("installing runtime: %w", err)
		}
	}
	s.binaryPath = binary

	if err := s.startLocked(ctx); err != nil {
		return s.statusLocked(ctx), err
	}

	s.refreshCachesLocked(ctx)
	s.startHealthLoopLocked()
	return s.statusLocked(ctx), nil
}

// findBinaryLocked resolves the runtime binary on PATH or in the
// managed bin directory.
func (s *Supervisor) findBinaryLocked() (string, error) {
	if s.binaryPath != "" {
		return s.binaryPath, nil
	}
	if path, err := s.lookPath("ollama"); err == nil {
		return path, nil
	}

	managed := filepath.Join(s.cfg.BinDir, "ollama")
	if _, err := os.Stat(managed); err == nil {
		return managed, nil
	}
	return "", fmt.Errorf("runtime binary not found")
}

// startLocked launches the daemon and polls it to readiness.
func (s *Supervisor) startLocked(ctx context.Context) error {
	s.state = domain.RuntimeStarting
	logger.Info("Starting inference runtime: %s serve", s.binaryPath)

	cmd := s.newCommand(s.procCtx, s.binaryPath)
	if err := cmd.Start(); err != nil {
		s.state = domain.RuntimeAbsent
		return fmt.Errorf("starting runtime: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	s.cmd = cmd
	s.procDone = done

	for attempt := 1; attempt <= readinessAttempts; attempt++ {
		if s.probe(ctx) == nil {
			s.state = domain.RuntimeHealthy
			s.restartUsed = false
			logger.Info("Runtime ready after %d poll(s)", attempt)
			return nil
		}

		select {
		case <-ctx.Done():
			s.stopChildLocked()
			return ctx.Err()
		case err := <-done:
			s.cmd = nil
			s.procDone = nil
			s.state = domain.RuntimeDegraded
			return fmt.Errorf("runtime exited during startup: %v: %w", err, domain.ErrRuntimeUnhealthy)
		case <-time.After(readinessInterval):
		}
	}

	s.stopChildLocked()
	s.state = domain.RuntimeDegraded
	return fmt.Errorf("runtime not ready after %d polls: %w", readinessAttempts, domain.ErrRuntimeUnhealthy)
}

// probe checks daemon liveness with a short bounded timeout.
func (s *Supervisor) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return s.client.ping(probeCtx)
}

// refreshCachesLocked updates the last-known model list and version.
// Failures keep the previous values; the caches exist exactly so
// status stays informative while the daemon is down.
func (s *Supervisor) refreshCachesLocked(ctx context.Context) {
	if models, err := s.client.listModels(ctx); err == nil {
		s.lastModels = models
	}
	if version, err := s.client.version(ctx); err == nil {
		s.lastVersion = version
	}
}

// startHealthLoopLocked launches the periodic health checker once.
func (s *Supervisor) startHealthLoopLocked() {
	if s.healthStop != nil {
		return
	}
	s.healthStop = make(chan struct{})
	s.healthDone = make(chan struct{})
	go s.healthLoop(s.healthStop, s.healthDone)
}

// healthLoop probes the daemon periodically. On a failed probe it
// attempts exactly one automatic restart; if the runtime is still
// unhealthy afterwards it is marked degraded until the next successful
// probe or an explicit EnsureReady.
func (s *Supervisor) healthLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.checkHealth()
		}
	}
}

func (s *Supervisor) checkHealth() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.RuntimeTerminated {
		return
	}

	ctx := context.Background()
	if s.probe(ctx) == nil {
		s.state = domain.RuntimeHealthy
		s.restartUsed = false
		return
	}

	if s.restartUsed {
		if s.state != domain.RuntimeDegraded {
			logger.Warn("Runtime unhealthy and restart budget spent, marking degraded")
			s.state = domain.RuntimeDegraded
		}
		return
	}

	s.restartUsed = true
	logger.Warn("Runtime health probe failed, attempting restart")

	s.stopChildLocked()
	if s.binaryPath == "" {
		if binary, err := s.findBinaryLocked(); err == nil {
			s.binaryPath = binary
		} else {
			s.state = domain.RuntimeDegraded
			return
		}
	}

	if err := s.startLocked(ctx); err != nil {
		logger.Warn("Runtime restart failed: %v", err)
		s.state = domain.RuntimeDegraded
	}
}

// stopChildLocked kills the owned child, if any, and waits for it.
// No child process may outlive its supervisor.
func (s *Supervisor) stopChildLocked() {
	if s.cmd == nil {
		return
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.procDone != nil {
		<-s.procDone
	}
	s.cmd = nil
	s.procDone = nil
}

// Status reports the current lifecycle state without side effects on
// the process. Model list and version fall back to last-known values
// when the daemon is unreachable.
func (s *Supervisor) Status(ctx context.Context) domain.RuntimeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.RuntimeTerminated && s.probe(ctx) == nil {
		s.refreshCachesLocked(ctx)
	}
	return s.statusLocked(ctx)
}

func (s *Supervisor) statusLocked(ctx context.Context) domain.RuntimeStatus {
	_, lookupErr := s.findBinaryLocked()
	healthy := s.state != domain.RuntimeTerminated && s.probe(ctx) == nil

	return domain.RuntimeStatus{
		State:     s.state,
		Installed: lookupErr == nil,
		Running:   s.cmd != nil || healthy,
		Healthy:   healthy,
		Version:   s.lastVersion,
		Models:    s.lastModels,
	}
}

// Model returns the active generation model.
func (s *Supervisor) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the active generation model for subsequent calls.
func (s *Supervisor) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model != "" {
		s.model = model
	}
}

// Embed generates a vector embedding via the runtime.
func (s *Supervisor) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.client.embed(ctx, s.cfg.EmbedModel, text)
}

// GenerateStream starts a streaming generation. Events arrive on the
// returned channel until the stream completes; cancelling ctx abandons
// the stream and the background reader exits.
func (s *Supervisor) GenerateStream(ctx context.Context, prompt string, opts domain.GenerateOptions) (<-chan driven.StreamEvent, error) {
	model := opts.Model
	if model == "" {
		model = s.Model()
	}

	body, err := s.client.startGenerate(ctx, model, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	out := make(chan driven.StreamEvent)
	go decodeGenerateStream(body, out, ctx.Done())
	return out, nil
}

// PullModel downloads a model through the daemon, reporting progress
// until the returned channel closes. The model cache is refreshed once
// the pull completes.
func (s *Supervisor) PullModel(ctx context.Context, model string) (<-chan driven.Progress, error) {
	body, err := s.client.startPull(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("pull model: %w", err)
	}

	out := make(chan driven.Progress)
	go func() {
		decodePullStream(body, out, ctx.Done())

		s.mu.Lock()
		s.refreshCachesLocked(context.Background())
		s.mu.Unlock()
	}()
	return out, nil
}

// Shutdown terminates the owned child process and stops supervision.
// Safe to call more than once.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()

	if s.state == domain.RuntimeTerminated {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.RuntimeTerminated

	healthStop, healthDone := s.healthStop, s.healthDone
	s.healthStop = nil
	s.healthDone = nil

	s.procCancel()
	s.stopChildLocked()
	s.mu.Unlock()

	if healthStop != nil {
		close(healthStop)
		select {
		case <-healthDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	logger.Info("Runtime supervisor shut down")
	return nil
}
