// Package embedding provides a degradable embedding service backed by
// the local inference runtime.
//
// The primary path asks the runtime for a real model embedding. When
// the runtime is unreachable or times out, the service falls back to a
// deterministic hash-derived pseudo-embedding instead of failing the
// caller: indexing and retrieval keep working at reduced semantic
// quality, and every fallback vector is flagged so the degradation is
// visible downstream.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/logger"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// Default configuration values.
const (
	// DefaultDimensions sizes fallback vectors until the runtime model
	// reports its real width. Embedding models vary (nomic-embed-text is
	// 768-dimensional), so the width of the primary path is adopted from
	// the first successful runtime embedding rather than configured.
	DefaultDimensions  = 384
	DefaultCallTimeout = 30 * time.Second

	// DefaultRatePerSecond paces batch embedding against the runtime so
	// bulk indexing cannot starve interactive queries.
	DefaultRatePerSecond = 10
)

// runtimeEmbedder is the slice of the inference runtime this package
// needs.
type runtimeEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the embedder.
type Config struct {
	// Dimensions sizes fallback vectors until a runtime width is adopted
	// (default: 384).
	Dimensions int

	// CallTimeout bounds each runtime embedding call (default: 30s).
	CallTimeout time.Duration

	// RatePerSecond limits runtime calls during batch embedding
	// (default: 10).
	RatePerSecond float64
}

// Embedder generates embeddings via the runtime with a deterministic
// local fallback.
type Embedder struct {
	runtime     runtimeEmbedder
	callTimeout time.Duration
	limiter     *rate.Limiter

	mu sync.Mutex

	// dimensions is the vector width. Seeded from config, replaced by
	// the width of the first successful runtime embedding so the check
	// below never rejects the configured model's own output.
	dimensions int
	adopted    bool
}

// New creates an embedder on top of the given runtime.
func New(runtime runtimeEmbedder, cfg Config) *Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}

	return &Embedder{
		runtime:     runtime,
		dimensions:  cfg.Dimensions,
		callTimeout: cfg.CallTimeout,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
}

// adoptDimensions records the runtime's vector width on first success
// and reports whether n matches the adopted width afterwards.
func (e *Embedder) adoptDimensions(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.adopted {
		e.dimensions = n
		e.adopted = true
		return true
	}
	return n == e.dimensions
}

// Embed produces an embedding for one text segment. Runtime failures
// degrade to a flagged fallback vector rather than erroring; only
// unusable input fails.
func (e *Embedder) Embed(ctx context.Context, text string) (driven.Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return driven.Embedding{}, fmt.Errorf("empty text: %w", domain.ErrEmbeddingUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	vector, err := e.runtime.Embed(callCtx, text)
	if err != nil {
		if ctx.Err() != nil {
			return driven.Embedding{}, ctx.Err()
		}
		logger.Warn("Runtime embedding failed, using fallback vector: %v", err)
		return driven.Embedding{Vector: e.fallbackVector(text), Degraded: true}, nil
	}

	if len(vector) == 0 || !e.adoptDimensions(len(vector)) {
		// A vector whose width disagrees with the rest of the corpus
		// would poison cosine comparisons against the stored chunks.
		logger.Warn("Runtime returned %d-dimensional vector, expected %d; using fallback",
			len(vector), e.Dimensions())
		return driven.Embedding{Vector: e.fallbackVector(text), Degraded: true}, nil
	}

	return driven.Embedding{Vector: vector}, nil
}

// EmbedBatch produces embeddings for multiple segments under the
// configured rate limit. Individual runtime failures degrade per
// segment; the batch as a whole only fails on cancellation or wholly
// unusable input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]driven.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([]driven.Embedding, len(texts))
	for i, text := range texts {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed segment %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Dimensions returns the current embedding vector size.
func (e *Embedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// fallbackVector derives a deterministic pseudo-embedding from the
// text's tokens. Equal text always maps to the same unit-length
// vector, so degraded indexes remain internally comparable.
func (e *Embedder) fallbackVector(text string) []float32 {
	dims := e.Dimensions()
	vector := make([]float32, dims)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		// Each token contributes to a handful of dimensions drawn from
		// its hash, with alternating sign.
		for k := 0; k < 4; k++ {
			idx := int((sum >> (k * 16)) & 0xffff) % dims
			sign := float32(1)
			if (sum>>(k*16+15))&1 == 1 {
				sign = -1
			}
			vector[idx] += sign
		}
	}

	return normalize(vector)
}

// normalize scales v to unit length. A zero vector is returned as is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
