package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration signals missing credentials or index settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrRequestParse signals a malformed inbound request body.
	ErrRequestParse = errors.New("failed to parse request body")
	// ErrUpstream signals a non-success response from an external collaborator.
	ErrUpstream = errors.New("upstream error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrNoRelevantContext signals that relevance filtering left nothing to answer from.
	ErrNoRelevantContext = errors.New("no relevant information found in the database")
	// ErrLogging signals a chat log write failure. Never surfaced to users.
	ErrLogging = errors.New("chat log write failed")

	// ErrEmptyQuery signals a blank question.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrTurnInFlight signals a submission while another turn runs in the same context.
	ErrTurnInFlight = errors.New("a turn is already in flight for this conversation")
	// ErrSessionNotFound signals an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPersonaNotFound signals an unknown persona (conversation context).
	ErrPersonaNotFound = errors.New("persona not found")
)

// ConfigurationError lists the required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrConfiguration.Error(), strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UpstreamError carries the status and message returned by an external API.
// StatusCode is 0 for transport-level failures.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Service, ErrUpstream.Error(), e.Message)
	}
	return fmt.Sprintf("%s %s %d: %s", e.Service, ErrUpstream.Error(), e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// NewUpstreamError creates an upstream error.
func NewUpstreamError(service string, status int, message string) error {
	return &UpstreamError{Service: service, StatusCode: status, Message: message}
}

// DimensionMismatchError reports a query vector whose length differs from the index.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: index expects %d, got %d", ErrVectorDimMismatch.Error(), e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrVectorDimMismatch }
