package ingest

import (
	"context"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// Upserter writes vectors into one namespace of an index.
type Upserter interface {
	Upsert(ctx context.Context, namespace string, vectors []domain.Vector) (int, error)
}
