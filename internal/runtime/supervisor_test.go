package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
)

// fakeDaemon is an httptest stand-in for the inference daemon whose
// health can be toggled mid-test.
type fakeDaemon struct {
	server  *httptest.Server
	healthy atomic.Bool
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()

	d := &fakeDaemon{}
	d.healthy.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		if !d.healthy.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"phi3:mini","size":2300000000,"digest":"abc123","details":{"parameter_size":"3.8B"}}]}`)
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"version":"0.5.7"}`)
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"embedding":[0.1,0.2,0.3]}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		fmt.Fprintln(w, `{"response":"The answer "}`)
		fmt.Fprintln(w, `{"response":"is 42."}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})

	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

// newTestSupervisor wires a supervisor to the fake daemon. The command
// hook launches an inert process so child ownership can be observed
// without a real runtime binary.
func newTestSupervisor(t *testing.T, daemon *fakeDaemon) (*Supervisor, *atomic.Int32) {
	t.Helper()

	s := NewSupervisor(Config{
		BaseURL:        daemon.server.URL,
		BinDir:         t.TempDir(),
		HealthInterval: time.Hour, // checkHealth is driven manually in tests
	})

	starts := &atomic.Int32{}
	s.lookPath = func(string) (string, error) { return "/fake/bin/ollama", nil }
	s.newCommand = func(ctx context.Context, _ string) *exec.Cmd {
		starts.Add(1)
		daemon.healthy.Store(true)
		return exec.CommandContext(ctx, "sleep", "300")
	}

	t.Cleanup(func() {
		assert.NoError(t, s.Shutdown(context.Background()))
	})

	return s, starts
}

func TestSupervisor_EnsureReady_AdoptsRunningDaemon(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, starts := newTestSupervisor(t, daemon)

	status, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RuntimeHealthy, status.State)
	assert.True(t, status.Healthy)
	assert.Equal(t, "0.5.7", status.Version)
	require.Len(t, status.Models, 1)
	assert.Equal(t, "phi3:mini", status.Models[0].Name)

	// An already-answering endpoint is adopted, never respawned.
	assert.Equal(t, int32(0), starts.Load())
}

func TestSupervisor_EnsureReady_Idempotent(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, starts := newTestSupervisor(t, daemon)

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)
	status, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RuntimeHealthy, status.State)
	assert.Equal(t, int32(0), starts.Load())
}

func TestSupervisor_EnsureReady_StartsStoppedDaemon(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.healthy.Store(false)
	s, starts := newTestSupervisor(t, daemon)

	status, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RuntimeHealthy, status.State)
	assert.Equal(t, int32(1), starts.Load())
	assert.True(t, status.Running)
}

func TestSupervisor_HealthCheck_RestartsExactlyOnce(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, starts := newTestSupervisor(t, daemon)

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	// Daemon goes down; the command hook brings it back on restart.
	daemon.healthy.Store(false)
	s.checkHealth()

	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, domain.RuntimeHealthy, s.Status(context.Background()).State)
}

func TestSupervisor_HealthCheck_DegradesAfterFailedRestart(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, starts := newTestSupervisor(t, daemon)

	// The restart command must not revive the daemon this time.
	s.newCommand = func(ctx context.Context, _ string) *exec.Cmd {
		starts.Add(1)
		return exec.CommandContext(ctx, "sleep", "300")
	}

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	daemon.healthy.Store(false)
	s.checkHealth()
	assert.Equal(t, domain.RuntimeDegraded, s.Status(context.Background()).State)
	assert.Equal(t, int32(1), starts.Load())

	// A second failing probe must not spend another restart.
	s.checkHealth()
	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, domain.RuntimeDegraded, s.Status(context.Background()).State)
}

func TestSupervisor_HealthCheck_RecoversFromDegraded(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, _ := newTestSupervisor(t, daemon)
	s.newCommand = func(ctx context.Context, _ string) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "300")
	}

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	daemon.healthy.Store(false)
	s.checkHealth()
	require.Equal(t, domain.RuntimeDegraded, s.Status(context.Background()).State)

	// Endpoint comes back on its own: next probe restores health and
	// the restart budget.
	daemon.healthy.Store(true)
	s.checkHealth()
	assert.Equal(t, domain.RuntimeHealthy, s.Status(context.Background()).State)
	assert.False(t, s.restartUsed)
}

func TestSupervisor_Status_UsesLastKnownModelsWhenDown(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, _ := newTestSupervisor(t, daemon)

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	daemon.healthy.Store(false)
	status := s.Status(context.Background())

	assert.False(t, status.Healthy)
	require.Len(t, status.Models, 1, "last-known model list must survive an outage")
	assert.Equal(t, "phi3:mini", status.Models[0].Name)
}

func TestSupervisor_GenerateStream(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, _ := newTestSupervisor(t, daemon)

	events, err := s.GenerateStream(context.Background(), "what is the answer?", domain.GenerateOptions{})
	require.NoError(t, err)

	var text string
	for event := range events {
		require.NotEqual(t, driven.EventError, event.Kind)
		text += event.Text
	}
	assert.Equal(t, "The answer is 42.", text)
}

func TestSupervisor_PullModel_Progress(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, _ := newTestSupervisor(t, daemon)

	progress, err := s.PullModel(context.Background(), "phi3:mini")
	require.NoError(t, err)

	var steps []driven.Progress
	for p := range progress {
		steps = append(steps, p)
	}

	require.Len(t, steps, 2)
	assert.InDelta(t, 0.5, steps[0].Fraction, 1e-9)
	assert.Equal(t, "success", steps[1].Status)
}

func TestSupervisor_Embed(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, _ := newTestSupervisor(t, daemon)

	vec, err := s.Embed(context.Background(), "copper ore")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestSupervisor_Shutdown_KillsChild(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.healthy.Store(false)
	s, starts := newTestSupervisor(t, daemon)

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), starts.Load())

	require.NoError(t, s.Shutdown(context.Background()))

	assert.Nil(t, s.cmd, "no child handle may survive shutdown")
	assert.Equal(t, domain.RuntimeTerminated, s.Status(context.Background()).State)

	_, err = s.EnsureReady(context.Background())
	assert.ErrorIs(t, err, domain.ErrRuntimeTerminated)
}

func TestSupervisor_SetModel(t *testing.T) {
	daemon := newFakeDaemon(t)
	s, _ := newTestSupervisor(t, daemon)

	assert.Equal(t, DefaultModel, s.Model())
	s.SetModel("llama3.2")
	assert.Equal(t, "llama3.2", s.Model())
	s.SetModel("")
	assert.Equal(t, "llama3.2", s.Model(), "empty model name is ignored")
}
