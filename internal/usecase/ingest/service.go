// Package ingest splits documents into chunks, embeds them and writes them to a vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// Chunking and batching defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultBatchSize    = 100
)

// separators are tried in order: paragraphs, lines, words, characters.
var separators = []string{"\n\n", "\n", " ", ""}

// Options configures a Service.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Document is one source file's extracted text.
type Document struct {
	Filename string
	Text     string
}

// Result summarizes one indexed document.
type Result struct {
	Chunks   int
	Upserted int
	Tokens   int
}

// Service indexes documents.
type Service struct {
	embed     domain.Embedder
	index     Upserter
	splitter  textsplitter.RecursiveCharacter
	batchSize int
	logger    *zap.Logger
}

// New creates an ingest service. Zero options take the defaults.
func New(embed domain.Embedder, index Upserter, opts Options, logger *zap.Logger) (*Service, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", opts.ChunkOverlap, opts.ChunkSize)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		embed: embed,
		index: index,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
			textsplitter.WithSeparators(separators),
		),
		batchSize: opts.BatchSize,
		logger:    logger,
	}, nil
}

// Chunk splits text into overlapping chunks. Blank chunks are dropped.
func (s *Service) Chunk(text string) ([]string, error) {
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	chunks := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// Index chunks, embeds and upserts one document in batches. Vector IDs are
// "<filename>-chunk-<i>", so re-indexing the same file overwrites its chunks.
func (s *Service) Index(ctx context.Context, doc Document, namespace string) (Result, error) {
	name := filepath.Base(doc.Filename)
	if name == "" || name == "." {
		return Result{}, errors.New("document filename is required")
	}

	chunks, err := s.Chunk(doc.Text)
	if err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("%s: no text to index", name)
	}

	res := Result{Chunks: len(chunks)}
	batches := (len(chunks) + s.batchSize - 1) / s.batchSize

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		emb, err := domain.EmbedAll(ctx, s.embed, batch)
		if err != nil {
			return res, fmt.Errorf("embed chunks %d-%d of %s: %w", start, end-1, name, err)
		}
		res.Tokens += emb.TotalTokens

		vectors := make([]domain.Vector, len(batch))
		for i, text := range batch {
			idx := start + i
			vectors[i] = domain.Vector{
				ID:     fmt.Sprintf("%s-chunk-%d", name, idx),
				Values: emb.Embeddings[i],
				Metadata: map[string]any{
					domain.MetaText:       text,
					domain.MetaChunkIndex: idx,
					domain.MetaFilename:   name,
					domain.MetaSource:     name,
				},
			}
		}

		n, err := s.index.Upsert(ctx, namespace, vectors)
		if err != nil {
			return res, fmt.Errorf("upsert chunks %d-%d of %s: %w", start, end-1, name, err)
		}
		res.Upserted += n

		s.logger.Info("Upserted batch",
			zap.String("file", name),
			zap.Int("batch", start/s.batchSize+1),
			zap.Int("batches", batches),
			zap.Int("vectors", n),
		)
	}

	return res, nil
}
