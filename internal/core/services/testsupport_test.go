package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
)

// memStore is an in-memory chunk store for service tests.
type memStore struct {
	mu     sync.Mutex
	docs   map[string]domain.Document
	chunks map[string]domain.Chunk
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string]domain.Chunk),
	}
}

func (m *memStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (m *memStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *memStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		m.chunks[chunk.ID] = chunk
	}
	return nil
}

func (m *memStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

func (m *memStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []domain.Chunk
	for _, chunk := range m.chunks {
		if chunk.DocumentID == documentID {
			chunks = append(chunks, chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

func (m *memStore) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, documentID)
	for id, chunk := range m.chunks {
		if chunk.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *memStore) ScanChunks(_ context.Context, afterID string, limit int) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if limit <= 0 {
		limit = 256
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	page := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		page[i] = m.chunks[id]
	}
	return page, nil
}

func (m *memStore) Close() error { return nil }

// scriptedEmbedder returns canned vectors by text, or errors.
type scriptedEmbedder struct {
	vectors    map[string][]float32
	defaultVec []float32
	err        error
	degraded   bool
	dims       int
}

func (e *scriptedEmbedder) Embed(_ context.Context, text string) (driven.Embedding, error) {
	if e.err != nil {
		return driven.Embedding{}, e.err
	}
	vec, ok := e.vectors[text]
	if !ok {
		vec = e.defaultVec
	}
	return driven.Embedding{Vector: vec, Degraded: e.degraded}, nil
}

func (e *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]driven.Embedding, error) {
	out := make([]driven.Embedding, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = embedding
	}
	return out, nil
}

func (e *scriptedEmbedder) Dimensions() int {
	if e.dims > 0 {
		return e.dims
	}
	return len(e.defaultVec)
}

// failingLexical always errors, for degradation tests.
type failingLexical struct{}

func (failingLexical) Index(context.Context, string, string, string) error { return nil }
func (failingLexical) Remove(context.Context, string) error                { return nil }
func (failingLexical) Search(context.Context, string, int) ([]driven.LexicalHit, error) {
	return nil, fmt.Errorf("index offline")
}
func (failingLexical) Len() int { return 0 }

// scriptedRetriever returns canned retrieval results.
type scriptedRetriever struct {
	results []domain.RetrievalResult
	err     error
}

func (r *scriptedRetriever) Retrieve(context.Context, string, int) ([]domain.RetrievalResult, error) {
	return r.results, r.err
}

// scriptedRuntime scripts GenerateStream events for assistant tests.
type scriptedRuntime struct {
	events   []driven.StreamEvent
	startErr error
	prompts  []string
}

func (r *scriptedRuntime) EnsureReady(ctx context.Context) (domain.RuntimeStatus, error) {
	return domain.RuntimeStatus{State: domain.RuntimeHealthy, Healthy: true}, nil
}

func (r *scriptedRuntime) Status(context.Context) domain.RuntimeStatus {
	return domain.RuntimeStatus{State: domain.RuntimeHealthy, Healthy: true}
}

func (r *scriptedRuntime) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("not scripted")
}

func (r *scriptedRuntime) GenerateStream(_ context.Context, prompt string, _ domain.GenerateOptions) (<-chan driven.StreamEvent, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.prompts = append(r.prompts, prompt)

	out := make(chan driven.StreamEvent, len(r.events))
	for _, event := range r.events {
		out <- event
	}
	close(out)
	return out, nil
}

func (r *scriptedRuntime) PullModel(context.Context, string) (<-chan driven.Progress, error) {
	out := make(chan driven.Progress)
	close(out)
	return out, nil
}

func (r *scriptedRuntime) SetModel(string) {}

func (r *scriptedRuntime) Shutdown(context.Context) error { return nil }
