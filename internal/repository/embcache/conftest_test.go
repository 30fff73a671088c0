package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/db"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

const testModel = "text-embedding-3-small"

// --- Mocks ---

// countingEmbedder returns vec for every text and records what reached the provider.
type countingEmbedder struct {
	vec      []float32
	tokens   int // per text
	err      error
	embedded []string
	calls    int
}

func (m *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	m.embedded = append(m.embedded, text)
	return domain.EmbeddingResult{Embedding: m.vec, PromptTokens: m.tokens, TotalTokens: m.tokens}, nil
}

func (m *countingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	m.embedded = append(m.embedded, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	n := m.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

// memStore is an in-memory KV store with injectable failures.
type memStore struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	readErr  error
	writeErr error

	reads  int
	writes int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) GetMulti(_ context.Context, keys []string) ([][]byte, error) {
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = s.data[k]
	}
	return out, nil
}

func (s *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data[key], s.ttls[key] = value, ttl
	return nil
}

func (s *memStore) SetMultiWithTTL(_ context.Context, entries []db.Entry, ttl time.Duration) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	for _, e := range entries {
		s.data[e.Key], s.ttls[e.Key] = e.Value, ttl
	}
	return nil
}

func newTestCache(t *testing.T, inner domain.Embedder) (*CachedEmbedder, *memStore) {
	t.Helper()
	s := newMemStore()
	return New(inner, s, Options{Model: testModel, TTL: time.Hour}, zap.NewNop()), s
}

// seed stores vec under the key the cache would use for text.
func seed(c *CachedEmbedder, s *memStore, text string, vec []float32) {
	s.data[c.cacheKey(text)] = vectorToCacheBytes(vec)
}
