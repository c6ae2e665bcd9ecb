// Package file provides the TOML configuration store.
// Configuration lives in a single file under the lorekit home
// directory and is written back with restricted permissions.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ConfigStore = (*Store)(nil)

// Config is the persisted engine configuration.
type Config struct {
	Runtime   RuntimeConfig   `toml:"runtime"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// RuntimeConfig configures the supervised inference daemon.
type RuntimeConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	EmbedModel string `toml:"embed_model"`
}

// ChunkingConfig configures the document splitter.
type ChunkingConfig struct {
	ChunkSize int `toml:"chunk_size"`
	Overlap   int `toml:"overlap"`
}

// RetrievalConfig configures hybrid retrieval fusion.
type RetrievalConfig struct {
	SemanticWeight float64 `toml:"semantic_weight"`
	LexicalWeight  float64 `toml:"lexical_weight"`
	DocumentCap    int     `toml:"document_cap"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	retrieval := domain.DefaultRetrievalConfig()
	return Config{
		Runtime: RuntimeConfig{
			BaseURL:    "http://127.0.0.1:11434",
			Model:      "phi3:mini",
			EmbedModel: "nomic-embed-text",
		},
		Chunking: ChunkingConfig{
			ChunkSize: 1000,
			Overlap:   200,
		},
		Retrieval: RetrievalConfig{
			SemanticWeight: retrieval.SemanticWeight,
			LexicalWeight:  retrieval.LexicalWeight,
			DocumentCap:    retrieval.DocumentCap,
		},
	}
}

// Validate checks configuration bounds.
func (c Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive: %w", domain.ErrInvalidInput)
	}
	if c.Chunking.ChunkSize > domain.MaxChunkSizeRunes {
		return fmt.Errorf("chunk_size must not exceed %d: %w",
			domain.MaxChunkSizeRunes, domain.ErrInvalidInput)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("overlap must be in [0, chunk_size): %w", domain.ErrInvalidInput)
	}
	if err := c.retrievalDomain().Validate(); err != nil {
		return fmt.Errorf("retrieval weights: %w", err)
	}
	return nil
}

// retrievalDomain converts the persisted retrieval section to the
// domain configuration.
func (c Config) retrievalDomain() domain.RetrievalConfig {
	return domain.RetrievalConfig{
		SemanticWeight: c.Retrieval.SemanticWeight,
		LexicalWeight:  c.Retrieval.LexicalWeight,
		DocumentCap:    c.Retrieval.DocumentCap,
	}
}

// RetrievalDomain returns the retrieval section as a domain config.
func (c Config) RetrievalDomain() domain.RetrievalConfig {
	return c.retrievalDomain()
}

// Store loads and persists the engine configuration as TOML.
type Store struct {
	mu       sync.RWMutex
	filePath string
	config   Config
}

// NewStore creates a config store. If configDir is empty it defaults
// to ~/.lorekit. A missing file yields defaults; a malformed file is
// an error rather than silently replaced.
func NewStore(configDir string) (*Store, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".lorekit")
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(configDir, "config.toml"),
		config:   DefaultConfig(),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update replaces the configuration and persists it.
func (s *Store) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	return s.save()
}

// SetRuntimeModel records the active generation model and persists it.
func (s *Store) SetRuntimeModel(name string) error {
	if name == "" {
		return fmt.Errorf("model name must not be empty: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Runtime.Model = name
	return s.save()
}

// Load reads the TOML file, merging it over defaults. A missing file
// leaves the defaults in place.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.config = DefaultConfig()
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", s.filePath, err)
	}

	s.config = cfg
	return nil
}

// Save persists the current configuration to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes the TOML file (caller must hold lock).
func (s *Store) save() error {
	data, err := toml.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0o600)
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.filePath
}
