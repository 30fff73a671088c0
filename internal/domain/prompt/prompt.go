// Package prompt assembles chat-completion requests from retrieved context and conversation state.
package prompt

import (
	"strings"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// Defaults for answer generation.
const (
	DefaultModel         = "gpt-4-turbo-preview"
	DefaultTemperature   = float32(0.3)
	DefaultMaxTokens     = 1000
	DefaultHistoryWindow = 5
)

// DefaultSystemPrompt is the research-assistant instruction used when a persona sets none.
const DefaultSystemPrompt = `You are a sports science expert analyzing research papers.
Use ONLY the provided research context to answer the question.
Be specific about methodology, results, and conclusions from the paper.
If the context contains partial information, share what's available and indicate what's missing.
If the context doesn't contain relevant information, say so.`

// Turn roles as sent to the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one chat message in a completion request.
type Turn struct {
	Role    string
	Content string
}

// Request is a fully composed completion request.
type Request struct {
	Model       string
	Turns       []Turn
	Temperature float32
	MaxTokens   int
}

// Completion is the answer text with its token usage.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Input is everything the composer needs for one turn.
type Input struct {
	SystemPrompt string
	Recent       []domain.Message
	Results      []domain.SearchResult
	History      string
	Question     string

	Model string
	// Temperature nil takes DefaultTemperature; an explicit 0 is kept.
	Temperature *float32
	MaxTokens   int
}

// Compose builds the request: the system turn, the recent messages in order, then a
// final user turn with the context block, the rendered history and the question.
// Returns domain.ErrNoRelevantContext when there are no results.
func Compose(in Input) (Request, error) {
	if len(in.Results) == 0 {
		return Request{}, domain.ErrNoRelevantContext
	}

	system := in.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}

	turns := make([]Turn, 0, len(in.Recent)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: system})
	for _, m := range in.Recent {
		role := RoleAssistant
		if m.Role == domain.RoleUser {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	turns = append(turns, Turn{Role: RoleUser, Content: userContent(in)})

	req := Request{
		Model:       in.Model,
		Turns:       turns,
		Temperature: DefaultTemperature,
		MaxTokens:   in.MaxTokens,
	}
	if in.Temperature != nil {
		req.Temperature = *in.Temperature
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return req, nil
}

// ContextBlock joins result texts with a blank line between them.
func ContextBlock(results []domain.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}

func userContent(in Input) string {
	var b strings.Builder
	b.WriteString("Context: ")
	b.WriteString(ContextBlock(in.Results))
	if in.History != "" {
		b.WriteString("\n\nConversation history:\n")
		b.WriteString(in.History)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(in.Question)
	return b.String()
}
