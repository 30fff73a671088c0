package retrieval

import (
	"context"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs nearest-neighbour queries against a vector index.
type Searcher interface {
	Query(ctx context.Context, q domain.VectorQuery) ([]domain.Match, error)
}
