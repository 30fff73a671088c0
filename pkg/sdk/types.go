package ragchat

import "time"

// Persona is a configured research assistant.
type Persona struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Index       string `json:"index,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	ChatModel   string `json:"chat_model,omitempty"`
}

// Match is one raw vector index hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is a retrieved passage that passed the relevance threshold.
type Result struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

// Session identifies a participant's chat session.
type Session struct {
	ID          string    `json:"session_id"`
	StudyNumber string    `json:"study_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Turn is the outcome of one question.
type Turn struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Results  []Result `json:"results"`
	Sources  []string `json:"sources"`
	Message  Message  `json:"message"`
}

// Transcript is one page of a conversation.
type Transcript struct {
	Items  []Message `json:"items"`
	Total  int       `json:"total"`
	Offset int       `json:"offset"`
	Limit  int       `json:"limit"`
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status  string            `json:"status"` // "ok", "degraded", "error"
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"` // component → "ok"/"error"
}
