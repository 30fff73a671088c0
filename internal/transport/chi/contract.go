package chi

import (
	"context"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/session"
	chatuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/chat"
	healthuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/health"
)

// ChatService answers questions for a persona.
type ChatService interface {
	Personas() []domain.Persona
	Persona(id string) (domain.Persona, error)
	Search(ctx context.Context, personaID, query string) ([]domain.Match, error)
	Submit(ctx context.Context, conv chatuc.Conversation, meta chatuc.TurnMeta, text string) (chatuc.Turn, error)
}

// SessionStore holds live chat sessions.
type SessionStore interface {
	Create(studyNumber string) *session.Session
	Get(id string) (*session.Session, error)
	Delete(id string) error
}

// HealthChecker aggregates dependency probes.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
