package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekit/lorekit/internal/core/domain"
)

func TestNewStore_Defaults(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())

	cfg := store.Config()
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Runtime.BaseURL)
	assert.Equal(t, "phi3:mini", cfg.Runtime.Model)
	assert.Equal(t, "nomic-embed-text", cfg.Runtime.EmbedModel)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 2, cfg.Retrieval.DocumentCap)
}

func TestStore_UpdateRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	cfg := store.Config()
	cfg.Runtime.Model = "llama3.2"
	cfg.Chunking.ChunkSize = 500
	cfg.Chunking.Overlap = 50
	require.NoError(t, store.Update(cfg))

	// A fresh store sees the persisted values.
	reloaded, err := NewStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", reloaded.Config().Runtime.Model)
	assert.Equal(t, 500, reloaded.Config().Chunking.ChunkSize)
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	cfg := store.Config()
	cfg.Chunking.Overlap = cfg.Chunking.ChunkSize
	err = store.Update(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// The stored configuration is untouched.
	assert.NotEqual(t, cfg.Chunking.Overlap, store.Config().Chunking.Overlap)
}

func TestStore_SetRuntimeModel(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.SetRuntimeModel("llama3.2"))
	assert.Equal(t, "llama3.2", store.Config().Runtime.Model)

	// The switch survives a restart.
	reloaded, err := NewStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", reloaded.Config().Runtime.Model)

	assert.ErrorIs(t, store.SetRuntimeModel(""), domain.ErrInvalidInput)
}

func TestStore_PartialFileMergesOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	partial := []byte("[runtime]\nmodel = \"mistral\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), partial, 0o600))

	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	cfg := store.Config()
	assert.Equal(t, "mistral", cfg.Runtime.Model)
	assert.Equal(t, "nomic-embed-text", cfg.Runtime.EmbedModel, "unset keys keep defaults")
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
}

func TestStore_MalformedFileErrors(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not = [toml"), 0o600))

	_, err := NewStore(tmpDir)
	assert.Error(t, err, "a malformed file must not be silently replaced")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Chunking.ChunkSize = 0
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidInput)

	bad = DefaultConfig()
	bad.Chunking.ChunkSize = domain.MaxChunkSizeRunes + 1
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidInput,
		"windows beyond the store byte ceiling must be rejected")

	bad = DefaultConfig()
	bad.Retrieval.SemanticWeight = 0
	bad.Retrieval.LexicalWeight = 0
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidInput)
}

func TestConfig_RetrievalDomain(t *testing.T) {
	cfg := DefaultConfig()
	retrieval := cfg.RetrievalDomain()
	require.NoError(t, retrieval.Validate())
	assert.Equal(t, cfg.Retrieval.DocumentCap, retrieval.DocumentCap)
}
