// Package embedding holds the outermost embedder decorator: input normalization,
// sub-batching and request logging.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one embeddings request.
const DefaultMaxAPIBatchSize = 256

// Options configures an InstrumentedEmbedder.
type Options struct {
	Provider string
	Model    string
	// MaxBatchSize <= 0 falls back to DefaultMaxAPIBatchSize.
	MaxBatchSize int
	// KeepNewlines sends text as-is. By default newlines become spaces, the same
	// normalization the papers were indexed with.
	KeepNewlines bool
}

// InstrumentedEmbedder normalizes input, splits oversized batches and logs each request.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	opts   Options
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. It sits in front of the cache so that
// normalized text is what gets keyed.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options, logger *zap.Logger) *InstrumentedEmbedder {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxAPIBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{inner: inner, opts: opts, logger: logger}
}

// Model returns the embedding model name.
func (p *InstrumentedEmbedder) Model() string { return p.opts.Model }

// Embed normalizes text and delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, p.normalize(text))
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.opts.Provider),
			zap.String("model", p.opts.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("model", p.opts.Model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Bool("cached", result.TotalTokens == 0),
	)
	return result, nil
}

// BatchEmbed normalizes every text and sends sub-batches of at most MaxBatchSize.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = p.normalize(t)
	}

	start := time.Now()
	result, err := p.embedChunked(ctx, normalized)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("model", p.opts.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (p *InstrumentedEmbedder) normalize(text string) string {
	if p.opts.KeepNewlines {
		return text
	}
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", " "), "\n", " ")
}

func (p *InstrumentedEmbedder) embedChunked(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += p.opts.MaxBatchSize {
		end := min(offset+p.opts.MaxBatchSize, len(texts))

		res, err := domain.EmbedAll(ctx, p.inner, texts[offset:end])
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.opts.Provider),
				zap.String("model", p.opts.Model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", end-offset),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed (offset %d): %w", offset, err)
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}
