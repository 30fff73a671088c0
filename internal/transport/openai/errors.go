package openai

import (
	"encoding/json"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// parseAPIError converts a go-openai error into a domain.UpstreamError carrying the
// upstream status and message. The cause stays in the chain so context errors remain visible.
func parseAPIError(service string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.UpstreamError{
			Service:    service,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractMessage(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return &domain.UpstreamError{
			Service:    service,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	return &domain.UpstreamError{
		Service: service,
		Message: err.Error(),
		Err:     err,
	}
}

// extractMessage reads "error.message" or "detail" from a JSON error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return parsed.Detail
}
