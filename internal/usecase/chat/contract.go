package chat

import (
	"context"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/prompt"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/memory"
)

// Retriever runs the embedding and search steps for one persona.
type Retriever interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Search(ctx context.Context, vector []float32) ([]domain.Match, error)
	Query(ctx context.Context, text string) ([]domain.Match, error)
	MinScore() float64
}

// Completer generates an answer from a composed request.
type Completer interface {
	Complete(ctx context.Context, req prompt.Request) (prompt.Completion, error)
}

// AuditSink accepts completed turns for background persistence.
type AuditSink interface {
	Record(e domain.ChatLogEntry)
}

// Conversation is the per-persona state a turn reads and writes.
type Conversation interface {
	ContextID() string
	TryBegin() bool
	End()
	Append(m domain.Message)
	Memory() *memory.Buffer
}
