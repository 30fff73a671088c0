package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// noContextMessage is shown to users when relevance filtering leaves nothing.
const noContextMessage = "No relevant information found in the database."

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, message string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if message == "" {
			message = sentinel.Error()
		}
		writeError(w, status, message, "")
		return true
	}
}

// requestHandler reports parse and validation failures with their details.
func requestHandler(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, domain.ErrRequestParse):
		writeError(w, http.StatusBadRequest, domain.ErrRequestParse.Error(), requestDetails(err))
	case errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, domain.ErrEmptyQuery.Error(), "")
	default:
		return false
	}
	return true
}

// configurationHandler names the missing settings. Values are never echoed.
func configurationHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrConfiguration) {
		return false
	}
	details := ""
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		details = ce.Error()
	}
	writeError(w, http.StatusInternalServerError, domain.ErrConfiguration.Error(), details)
	return true
}

// timeoutHandler maps an exhausted turn deadline.
func timeoutHandler(status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		writeError(w, status, "upstream timeout", err.Error())
		return true
	}
}

// upstreamHandler exposes the collaborator's status and message as details.
func upstreamHandler(status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		var ue *domain.UpstreamError
		if errors.As(err, &ue) {
			details := fmt.Sprintf("%s returned %d: %s", ue.Service, ue.StatusCode, ue.Message)
			if ue.StatusCode == 0 {
				details = fmt.Sprintf("%s unreachable: %s", ue.Service, ue.Message)
			}
			writeError(w, status, domain.ErrUpstream.Error(), details)
			return true
		}
		var de *domain.DimensionMismatchError
		if errors.As(err, &de) {
			writeError(w, status, domain.ErrVectorDimMismatch.Error(), de.Error())
			return true
		}
		return false
	}
}

// chatErrorHandlers map turn failures for the conversation routes.
func chatErrorHandlers() []errorHandler {
	return []errorHandler{
		requestHandler,
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ""),
		sentinelHandler(domain.ErrPersonaNotFound, http.StatusNotFound, ""),
		sentinelHandler(domain.ErrTurnInFlight, http.StatusConflict, ""),
		sentinelHandler(domain.ErrNoRelevantContext, http.StatusUnprocessableEntity, noContextMessage),
		configurationHandler,
		timeoutHandler(http.StatusGatewayTimeout),
		upstreamHandler(http.StatusBadGateway),
	}
}

// queryErrorHandlers map failures for POST /api/query, which reports every
// server-side failure as 500.
func queryErrorHandlers() []errorHandler {
	return []errorHandler{
		requestHandler,
		sentinelHandler(domain.ErrPersonaNotFound, http.StatusNotFound, ""),
		configurationHandler,
		timeoutHandler(http.StatusInternalServerError),
		upstreamHandler(http.StatusInternalServerError),
	}
}

// requestError wraps a decode or validation failure so it maps to 400.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%s: %v", domain.ErrRequestParse.Error(), e.err)
}

func (e *requestError) Unwrap() []error { return []error{domain.ErrRequestParse, e.err} }

func requestDetails(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
		}
	}
	var re *requestError
	if errors.As(err, &re) {
		return re.err.Error()
	}
	return ""
}
