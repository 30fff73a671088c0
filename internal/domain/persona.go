package domain

// Persona is a named conversation context: a system instruction plus the retrieval
// target and answer parameters it runs with.
type Persona struct {
	ID          string
	DisplayName string

	Index          string
	Namespace      string
	TopK           int
	Filter         map[string]string
	MinScore       float64
	EmbeddingModel string

	SystemPrompt string
	ChatModel    string
	Temperature  float32
	MaxTokens    int
}
