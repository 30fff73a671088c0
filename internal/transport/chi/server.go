package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/logger"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/session"
	chatuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/chat"
	healthuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/health"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/version"
)

// Transcript page bounds used when WithPagination is not called.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// maxBodyBytes caps inbound JSON bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Server serves the chat API.
type Server struct {
	chat     ChatService
	sessions SessionStore
	health   HealthChecker
	logger   *zap.Logger

	defaultPageSize int
	maxPageSize     int

	chatErrors  []errorHandler
	queryErrors []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(chat ChatService, sessions SessionStore, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:            chat,
		sessions:        sessions,
		health:          health,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		chatErrors:      chatErrorHandlers(),
		queryErrors:     queryErrorHandlers(),
	}
}

// WithPagination overrides the transcript page bounds. Non-positive values are ignored.
func (s *Server) WithPagination(defaultSize, maxSize int) *Server {
	if defaultSize > 0 {
		s.defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	if s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = s.maxPageSize
	}
	return s
}

// Query handles POST /api/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.handleError(w, r, s.queryErrors, err)
		return
	}

	personaID := r.URL.Query().Get("persona")
	if personaID == "" {
		if ps := s.chat.Personas(); len(ps) > 0 {
			personaID = ps[0].ID
		}
	}

	matches, err := s.chat.Search(r.Context(), personaID, req.Query)
	if err != nil {
		s.handleError(w, r, s.queryErrors, err)
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}

	writeJSON(w, http.StatusOK, queryResponse{Matches: matches})
}

// ListPersonas handles GET /api/personas.
func (s *Server) ListPersonas(w http.ResponseWriter, _ *http.Request) {
	ps := s.chat.Personas()
	items := make([]personaResponse, len(ps))
	for i, p := range ps {
		items[i] = personaToResponse(p)
	}
	writeJSON(w, http.StatusOK, personaListResponse{Items: items})
}

// CreateSession handles POST /api/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}

	sess := s.sessions.Create(strings.TrimSpace(req.StudyNumber))
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   sess.ID,
		StudyNumber: sess.StudyNumber,
		CreatedAt:   sess.CreatedAt.UTC(),
	})
}

// DeleteSession handles DELETE /api/sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostMessage handles POST /api/sessions/{sessionID}/chats/{persona}/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}

	sess, personaID, err := s.resolveChat(r)
	if err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}
	r = r.WithContext(logger.WithFields(r.Context(),
		zap.String("session_id", sess.ID),
		zap.String("persona", personaID),
	))

	turn, err := s.chat.Submit(r.Context(), sess.Conversation(personaID), chatuc.TurnMeta{
		SessionID:   sess.ID,
		StudyNumber: sess.StudyNumber,
	}, req.Text)
	if err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}

	results := turn.Results
	if results == nil {
		results = []domain.SearchResult{}
	}
	sources := turn.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Question: turn.Question,
		Answer:   turn.Answer,
		Results:  results,
		Sources:  sources,
		Message:  turn.Assistant,
	})
}

// ListMessages handles GET /api/sessions/{sessionID}/chats/{persona}/messages.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := s.pageParams(r)
	if err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}

	sess, personaID, err := s.resolveChat(r)
	if err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}

	items, total := sess.Conversation(personaID).Transcript(offset, limit)
	writeJSON(w, http.StatusOK, transcriptResponse{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// ResetMessages handles DELETE /api/sessions/{sessionID}/chats/{persona}/messages.
func (s *Server) ResetMessages(w http.ResponseWriter, r *http.Request) {
	sess, personaID, err := s.resolveChat(r)
	if err != nil {
		s.handleError(w, r, s.chatErrors, err)
		return
	}

	if !sess.Conversation(personaID).ResetIfIdle() {
		s.handleError(w, r, s.chatErrors, domain.ErrTurnInFlight)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// resolveChat looks up the session and checks the persona before a conversation is touched,
// so unknown personas never allocate one.
func (s *Server) resolveChat(r *http.Request) (*session.Session, string, error) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, "", err
	}
	personaID := chi.URLParam(r, "persona")
	if _, err := s.chat.Persona(personaID); err != nil {
		return nil, "", err
	}
	return sess, personaID, nil
}

func (s *Server) pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = s.defaultPageSize

	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, &requestError{err: errors.New("offset must be a non-negative integer")}
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, &requestError{err: errors.New("limit must be a positive integer")}
		}
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	return offset, limit, nil
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, handlers []errorHandler, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range handlers {
		if h(w, err) {
			log.Warn("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error", "")
}

// decodeJSON reads and validates a request body. allowEmpty accepts a missing body.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return &requestError{err: err}
	}
	if err := validate.Struct(v); err != nil {
		return &requestError{err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
