package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// --- Embed ---

func TestEmbed_MissStoresVector(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1, 0.2}, tokens: 10}
	c, s := newTestCache(t, inner)

	res, err := c.Embed(context.Background(), "sleep and recovery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalTokens != 10 || len(res.Embedding) != 2 {
		t.Errorf("unexpected result: %+v", res)
	}

	key := c.cacheKey("sleep and recovery")
	if got := s.data[key]; len(got) != 8 {
		t.Errorf("expected 8 stored bytes, got %d", len(got))
	}
	if s.ttls[key] != time.Hour {
		t.Errorf("ttl = %v, want 1h", s.ttls[key])
	}
}

func TestEmbed_HitSkipsProvider(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1}}
	c, s := newTestCache(t, inner)
	seed(c, s, "hamstring strain", []float32{0.4, 0.5})

	res, err := c.Embed(context.Background(), "hamstring strain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("provider called %d times on a hit", inner.calls)
	}
	if res.TotalTokens != 0 || res.Embedding[0] != 0.4 {
		t.Errorf("unexpected cached result: %+v", res)
	}
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name     string
		inner    *countingEmbedder
		store    func(*memStore)
		wantErr  bool
		wantVecs int
	}{
		{"provider error", &countingEmbedder{err: errors.New("provider down")}, nil, true, 0},
		{"read error falls through", &countingEmbedder{vec: []float32{1}}, func(s *memStore) { s.readErr = errors.New("CLUSTERDOWN") }, false, 1},
		{"write error ignored", &countingEmbedder{vec: []float32{1}}, func(s *memStore) { s.writeErr = errors.New("READONLY") }, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := newTestCache(t, tt.inner)
			if tt.store != nil {
				tt.store(s)
			}
			res, err := c.Embed(context.Background(), "q")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(res.Embedding) != tt.wantVecs {
				t.Errorf("embedding len = %d, want %d", len(res.Embedding), tt.wantVecs)
			}
		})
	}
}

func TestEmbed_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &countingEmbedder{vec: []float32{1}}
	c := New(inner, newMemStore(), Options{Model: testModel, CacheTotal: counter}, zap.NewNop())

	for range 2 {
		if _, err := c.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
}

// --- BatchEmbed ---

func TestBatchEmbed_EmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.5}, tokens: 3}
	c, s := newTestCache(t, inner)
	seed(c, s, "hit", []float32{0.9})

	res, err := c.BatchEmbed(context.Background(), []string{"miss1", "hit", "miss2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(inner.embedded, ",") != "miss1,miss2" {
		t.Errorf("provider saw %v", inner.embedded)
	}
	if res.Embeddings[0][0] != 0.5 || res.Embeddings[1][0] != 0.9 || res.Embeddings[2][0] != 0.5 {
		t.Errorf("unexpected vectors: %v", res.Embeddings)
	}
	if res.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6", res.TotalTokens)
	}
	if s.reads != 1 || s.writes != 1 {
		t.Errorf("expected one round-trip each way, got %d reads %d writes", s.reads, s.writes)
	}
	if _, ok := s.data[c.cacheKey("miss2")]; !ok {
		t.Error("miss was not written back")
	}
}

func TestBatchEmbed_AllHitsNoProviderCall(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1}}
	c, s := newTestCache(t, inner)
	seed(c, s, "a", []float32{0.8})
	seed(c, s, "b", []float32{0.7})

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 0 || s.writes != 0 {
		t.Errorf("expected no provider call and no write, got %d calls %d writes", inner.calls, s.writes)
	}
	if res.TotalTokens != 0 || res.Embeddings[1][0] != 0.7 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestBatchEmbed_StoreFailuresAreNotFatal(t *testing.T) {
	for _, fail := range []string{"read", "write"} {
		t.Run(fail, func(t *testing.T) {
			inner := &countingEmbedder{vec: []float32{0.3}, tokens: 2}
			c, s := newTestCache(t, inner)
			seed(c, s, "a", []float32{0.9})
			if fail == "read" {
				s.readErr = errors.New("CLUSTERDOWN")
			} else {
				s.writeErr = errors.New("READONLY")
			}

			res, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
			if err != nil {
				t.Fatalf("store %s failure must not fail the batch: %v", fail, err)
			}
			if len(res.Embeddings) != 2 {
				t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
			}
			if fail == "read" && len(inner.embedded) != 2 {
				t.Errorf("read failure should embed everything, provider saw %v", inner.embedded)
			}
		})
	}
}

func TestBatchEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.3}}
	c, s := newTestCache(t, inner)
	s.data[c.cacheKey("a")] = []byte{1, 2, 3}

	res, err := c.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || res.Embeddings[0][0] != 0.3 {
		t.Errorf("expected corrupt entry to be re-embedded, got %v", res.Embeddings)
	}
	if got := s.data[c.cacheKey("a")]; len(got) != 4 {
		t.Errorf("corrupt entry not overwritten: %v", got)
	}
}

func TestBatchEmbed_ProviderErrorAndEmpty(t *testing.T) {
	c, _ := newTestCache(t, &countingEmbedder{err: errors.New("api down")})
	if _, err := c.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected provider error")
	}

	res, err := c.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Errorf("expected empty result, got %+v, %v", res, err)
	}
}

// --- keys and encoding ---

func TestCacheKey_ScopedByModel(t *testing.T) {
	inner := &countingEmbedder{}
	a := New(inner, newMemStore(), Options{Model: testModel}, zap.NewNop())
	b := New(inner, newMemStore(), Options{Model: "text-embedding-ada-002"}, zap.NewNop())

	if a.cacheKey("hamstring") == b.cacheKey("hamstring") {
		t.Error("expected different keys for different models")
	}
	if a.cacheKey("hamstring") != a.cacheKey("hamstring") {
		t.Error("expected stable key for the same model and text")
	}
	if !strings.HasPrefix(a.cacheKey("hamstring"), cacheKeyPrefix) {
		t.Errorf("expected key prefix %q", cacheKeyPrefix)
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("decoded %v, want %v", out, in)
		}
	}
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for length not multiple of 4")
	}
}

var _ domain.BatchEmbedder = (*countingEmbedder)(nil)
