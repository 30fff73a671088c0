package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	err        error
	batches    [][]string
	shortByOne bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1}}, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	m.batches = append(m.batches, texts)
	n := len(texts)
	if m.shortByOne {
		n--
	}
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = []float32{float32(i), 0.5}
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs, TotalTokens: 10 * len(texts)}, nil
}

type mockUpserter struct {
	err       error
	namespace string
	vectors   []domain.Vector
	calls     int
}

func (m *mockUpserter) Upsert(_ context.Context, ns string, vs []domain.Vector) (int, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	m.namespace = ns
	m.vectors = append(m.vectors, vs...)
	return len(vs), nil
}

func paragraphText(paragraphs, words int) string {
	para := strings.TrimSpace(strings.Repeat("athlete sleep recovery ", words/3))
	ps := make([]string, paragraphs)
	for i := range ps {
		ps[i] = para
	}
	return strings.Join(ps, "\n\n")
}

// --- Tests ---

func TestChunk_RespectsSize(t *testing.T) {
	svc, err := New(&mockEmbedder{}, &mockUpserter{}, Options{ChunkSize: 100, ChunkOverlap: 20}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	chunks, err := svc.Chunk(paragraphText(5, 45))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 5 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Errorf("chunk %d has %d chars, want <= 100", i, len([]rune(c)))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	svc, _ := New(&mockEmbedder{}, &mockUpserter{}, Options{}, nil)

	chunks, err := svc.Chunk("RED-S is relative energy deficiency in sport.")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestNew_InvalidOverlap(t *testing.T) {
	if _, err := New(&mockEmbedder{}, &mockUpserter{}, Options{ChunkSize: 100, ChunkOverlap: 100}, nil); err == nil {
		t.Fatal("expected error when overlap >= chunk size")
	}
}

func TestIndex_BatchesAndMetadata(t *testing.T) {
	emb := &mockEmbedder{}
	up := &mockUpserter{}
	svc, err := New(emb, up, Options{ChunkSize: 100, ChunkOverlap: 0, BatchSize: 2}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := svc.Index(context.Background(), Document{
		Filename: "/data/papers/1736171_Boukhris,O_2024.pdf",
		Text:     paragraphText(5, 12),
	}, "research-papers")
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if res.Chunks != 5 || res.Upserted != 5 {
		t.Fatalf("expected 5 chunks upserted, got %+v", res)
	}
	if up.calls != 3 {
		t.Errorf("expected 3 upsert batches, got %d", up.calls)
	}
	if len(emb.batches) != 3 || len(emb.batches[0]) != 2 || len(emb.batches[2]) != 1 {
		t.Errorf("unexpected embed batches: %d", len(emb.batches))
	}
	if res.Tokens != 50 {
		t.Errorf("expected 50 tokens, got %d", res.Tokens)
	}
	if up.namespace != "research-papers" {
		t.Errorf("namespace = %q", up.namespace)
	}

	v := up.vectors[3]
	if v.ID != "1736171_Boukhris,O_2024.pdf-chunk-3" {
		t.Errorf("ID = %q", v.ID)
	}
	if v.Metadata[domain.MetaChunkIndex] != 3 {
		t.Errorf("chunk_index = %v", v.Metadata[domain.MetaChunkIndex])
	}
	if v.Metadata[domain.MetaFilename] != "1736171_Boukhris,O_2024.pdf" ||
		v.Metadata[domain.MetaSource] != "1736171_Boukhris,O_2024.pdf" {
		t.Errorf("unexpected file metadata: %v", v.Metadata)
	}
	if text, _ := v.Metadata[domain.MetaText].(string); !strings.Contains(text, "athlete") {
		t.Errorf("text metadata = %q", text)
	}
}

func TestIndex_EmptyText(t *testing.T) {
	svc, _ := New(&mockEmbedder{}, &mockUpserter{}, Options{}, nil)

	if _, err := svc.Index(context.Background(), Document{Filename: "a.pdf", Text: "  \n\n "}, "ns"); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestIndex_MissingFilename(t *testing.T) {
	svc, _ := New(&mockEmbedder{}, &mockUpserter{}, Options{}, nil)

	if _, err := svc.Index(context.Background(), Document{Text: "text"}, "ns"); err == nil {
		t.Fatal("expected error for missing filename")
	}
}

func TestIndex_EmbedError(t *testing.T) {
	upstream := &domain.UpstreamError{Service: "embedding", StatusCode: 429, Message: "rate limited"}
	up := &mockUpserter{}
	svc, _ := New(&mockEmbedder{err: upstream}, up, Options{}, nil)

	_, err := svc.Index(context.Background(), Document{Filename: "a.pdf", Text: "some text"}, "ns")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if up.calls != 0 {
		t.Errorf("expected no upsert, got %d", up.calls)
	}
}

func TestIndex_EmbeddingCountMismatch(t *testing.T) {
	svc, _ := New(&mockEmbedder{shortByOne: true}, &mockUpserter{}, Options{}, nil)

	_, err := svc.Index(context.Background(), Document{Filename: "a.pdf", Text: "some text"}, "ns")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error on vector count mismatch, got %v", err)
	}
}

func TestIndex_UpsertError(t *testing.T) {
	up := &mockUpserter{err: &domain.DimensionMismatchError{Expected: 1536, Actual: 2}}
	svc, _ := New(&mockEmbedder{}, up, Options{}, nil)

	_, err := svc.Index(context.Background(), Document{Filename: "a.pdf", Text: "some text"}, "ns")
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}
