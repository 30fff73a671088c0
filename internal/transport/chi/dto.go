package chi

import (
	"time"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

type queryRequest struct {
	Query string `json:"query" validate:"required,max=8000"`
}

type queryResponse struct {
	Matches []domain.Match `json:"matches"`
}

type createSessionRequest struct {
	StudyNumber string `json:"study_number" validate:"omitempty,max=64"`
}

type sessionResponse struct {
	SessionID   string    `json:"session_id"`
	StudyNumber string    `json:"study_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type messageRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

type messageResponse struct {
	Question string                `json:"question"`
	Answer   string                `json:"answer"`
	Results  []domain.SearchResult `json:"results"`
	Sources  []string              `json:"sources"`
	Message  domain.Message        `json:"message"`
}

type transcriptResponse struct {
	Items  []domain.Message `json:"items"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}

type personaResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Index       string `json:"index,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	ChatModel   string `json:"chat_model,omitempty"`
}

type personaListResponse struct {
	Items []personaResponse `json:"items"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func personaToResponse(p domain.Persona) personaResponse {
	name := p.DisplayName
	if name == "" {
		name = p.ID
	}
	return personaResponse{
		ID:          p.ID,
		DisplayName: name,
		Index:       p.Index,
		Namespace:   p.Namespace,
		ChatModel:   p.ChatModel,
	}
}
