package ragchat

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by APIError. Use errors.Is() to check.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrBusy          = errors.New("conversation busy")
	ErrNoContext     = errors.New("no relevant context")
	ErrUpstream      = errors.New("upstream service error")
	ErrTimeout       = errors.New("timed out")
	ErrServer        = errors.New("server error")
	ErrUnhealthy     = errors.New("service unhealthy")
	errUnexpectedRes = errors.New("unexpected response")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ragchat: %d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("ragchat: %d %s", e.StatusCode, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	return statusSentinel(e.StatusCode) == target
}

func statusSentinel(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrBusy
	case http.StatusUnprocessableEntity:
		return ErrNoContext
	case http.StatusBadGateway:
		return ErrUpstream
	case http.StatusGatewayTimeout:
		return ErrTimeout
	case http.StatusServiceUnavailable:
		return ErrUnhealthy
	}
	if code >= 500 {
		return ErrServer
	}
	return errUnexpectedRes
}
