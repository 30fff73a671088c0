package openai

import (
	"context"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/prompt"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
)

const completionService = "completion"

// Completer generates answers through the chat completions API.
type Completer struct {
	client *openai.Client
	logger *zap.Logger
}

// NewCompleter creates a chat completion client. Model and sampling come per request.
func NewCompleter(cfg *Config) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{client: newClient(cfg), logger: logger}
}

// Complete sends the composed turns and returns the first choice.
func (c *Completer) Complete(ctx context.Context, req prompt.Request) (prompt.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Turns))
	for i, t := range req.Turns {
		messages[i] = openai.ChatCompletionMessage{Role: t.Role, Content: t.Content}
	}

	// temperature is omitempty upstream; 0 would otherwise mean the provider default.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		return prompt.Completion{}, parseAPIError(completionService, err)
	}
	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		return prompt.Completion{}, &domain.UpstreamError{
			Service: completionService,
			Message: "malformed response: no choices",
		}
	}

	c.logger.Debug("Chat completion finished",
		zap.String("model", req.Model),
		zap.Int("turns", len(req.Turns)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)

	metrics.CompletionRequestsTotal.WithLabelValues(req.Model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(req.Model).Observe(duration.Seconds())
	metrics.CompletionTokensTotal.WithLabelValues(req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.CompletionTokensTotal.WithLabelValues(req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return prompt.Completion{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
