// Package chat runs one question through retrieval, prompting and answering.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/prompt"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/relevance"
	logpkg "github.com/hareshsuppiah/sport-science-ai-chat/internal/logger"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
)

// DefaultTurnTimeout bounds one turn end to end.
const DefaultTurnTimeout = 60 * time.Second

// Turn outcomes recorded in metrics.
const (
	outcomeSuccess   = "success"
	outcomeNoContext = "no_context"
	outcomeConfig    = "config_error"
	outcomeTimeout   = "timeout"
	outcomeUpstream  = "upstream_error"
	outcomeError     = "error"
)

// Pipeline binds a persona to the retriever that serves it.
type Pipeline struct {
	Persona   domain.Persona
	Retriever Retriever
}

// TurnMeta identifies who asked, for the chat log.
type TurnMeta struct {
	SessionID   string
	StudyNumber string
}

// Turn is the result of one successful submission.
type Turn struct {
	Question  string
	Answer    string
	Results   []domain.SearchResult
	Sources   []string
	User      domain.Message
	Assistant domain.Message
}

// Options configures a Service.
type Options struct {
	Pipelines []Pipeline
	Completer Completer
	Audit     AuditSink
	// Preflight reports missing credentials before any upstream call. Optional.
	Preflight     func() error
	TurnTimeout   time.Duration
	HistoryWindow int
	Now           func() time.Time
	// OnStage observes state transitions. Optional.
	OnStage func(contextID string, stage Stage)
	Logger  *zap.Logger
}

// Service orchestrates chat turns across personas.
type Service struct {
	order         []string
	pipelines     map[string]Pipeline
	completer     Completer
	audit         AuditSink
	preflight     func() error
	turnTimeout   time.Duration
	historyWindow int
	now           func() time.Time
	onStage       func(string, Stage)
	logger        *zap.Logger
}

// New creates a chat service. Pipelines keep their given order for listing.
func New(opts Options) *Service {
	s := &Service{
		pipelines:     make(map[string]Pipeline, len(opts.Pipelines)),
		completer:     opts.Completer,
		audit:         opts.Audit,
		preflight:     opts.Preflight,
		turnTimeout:   opts.TurnTimeout,
		historyWindow: opts.HistoryWindow,
		now:           opts.Now,
		onStage:       opts.OnStage,
		logger:        opts.Logger,
	}
	for _, p := range opts.Pipelines {
		if _, dup := s.pipelines[p.Persona.ID]; !dup {
			s.order = append(s.order, p.Persona.ID)
		}
		s.pipelines[p.Persona.ID] = p
	}
	if s.turnTimeout <= 0 {
		s.turnTimeout = DefaultTurnTimeout
	}
	if s.historyWindow <= 0 {
		s.historyWindow = prompt.DefaultHistoryWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.preflight == nil {
		s.preflight = func() error { return nil }
	}
	return s
}

// Personas lists the configured personas.
func (s *Service) Personas() []domain.Persona {
	out := make([]domain.Persona, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.pipelines[id].Persona)
	}
	return out
}

// Persona returns one persona by ID.
func (s *Service) Persona(id string) (domain.Persona, error) {
	p, ok := s.pipelines[id]
	if !ok {
		return domain.Persona{}, domain.ErrPersonaNotFound
	}
	return p.Persona, nil
}

// Search embeds the query and returns the raw matches for a persona, unfiltered.
func (s *Service) Search(ctx context.Context, personaID, query string) ([]domain.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	p, ok := s.pipelines[personaID]
	if !ok {
		return nil, domain.ErrPersonaNotFound
	}
	if err := s.preflight(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	return p.Retriever.Query(ctx, query)
}

// Submit runs one question through the conversation's persona.
//
// The user message is appended to the transcript before any upstream call and is never
// rolled back. Memory receives the user and assistant messages only when an answer
// arrives, and the chat log entry is queued after that without blocking.
func (s *Service) Submit(ctx context.Context, conv Conversation, meta TurnMeta, text string) (Turn, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Turn{}, domain.ErrEmptyQuery
	}
	contextID := conv.ContextID()
	p, ok := s.pipelines[contextID]
	if !ok {
		return Turn{}, domain.ErrPersonaNotFound
	}
	if !conv.TryBegin() {
		return Turn{}, domain.ErrTurnInFlight
	}
	defer conv.End()

	start := time.Now()
	turn, err := s.run(ctx, conv, p, meta, question)
	s.enter(contextID, StageIdle)

	outcome := outcomeOf(err)
	metrics.ChatTurnsTotal.WithLabelValues(contextID, outcome).Inc()
	metrics.ChatTurnDuration.WithLabelValues(contextID).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logTurnError(ctx, contextID, meta, outcome, err)
		return Turn{}, err
	}
	return turn, nil
}

func (s *Service) run(
	ctx context.Context, conv Conversation, p Pipeline, meta TurnMeta, question string,
) (Turn, error) {
	contextID := conv.ContextID()
	mem := conv.Memory()

	userMsg := domain.NewMessage(domain.RoleUser, question, s.now())
	conv.Append(userMsg)

	if err := s.preflight(); err != nil {
		return Turn{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	s.enter(contextID, StageAwaitingEmbedding)
	vector, err := p.Retriever.Embed(ctx, question)
	if err != nil {
		return Turn{}, &StageError{Stage: StageAwaitingEmbedding, Err: err}
	}

	s.enter(contextID, StageAwaitingSearch)
	matches, err := p.Retriever.Search(ctx, vector)
	if err != nil {
		return Turn{}, &StageError{Stage: StageAwaitingSearch, Err: err}
	}

	results := relevance.Filter(matches, p.Retriever.MinScore())
	if len(results) == 0 {
		s.enter(contextID, StageContextEmpty)
		return Turn{}, &StageError{Stage: StageContextEmpty, Err: domain.ErrNoRelevantContext}
	}

	req, err := prompt.Compose(prompt.Input{
		SystemPrompt: p.Persona.SystemPrompt,
		Recent:       mem.Recent(s.historyWindow),
		Results:      results,
		History:      mem.History(),
		Question:     question,
		Model:        p.Persona.ChatModel,
		Temperature:  &p.Persona.Temperature,
		MaxTokens:    p.Persona.MaxTokens,
	})
	if err != nil {
		return Turn{}, &StageError{Stage: StageContextEmpty, Err: err}
	}

	s.enter(contextID, StageAwaitingAnswer)
	completion, err := s.completer.Complete(ctx, req)
	if err != nil {
		return Turn{}, &StageError{Stage: StageAwaitingAnswer, Err: err}
	}

	sources := relevance.Sources(results)
	answerMsg := domain.NewMessage(domain.RoleAssistant, completion.Content, s.now(), sources...)
	conv.Append(answerMsg)
	mem.Add(userMsg)
	mem.Add(answerMsg)

	s.enter(contextID, StageAwaitingLogWrite)
	if s.audit != nil {
		s.audit.Record(domain.ChatLogEntry{
			SessionID:   meta.SessionID,
			StudyNumber: meta.StudyNumber,
			ContextID:   contextID,
			Query:       question,
			Response:    completion.Content,
			Sources:     sources,
			CreatedAt:   answerMsg.Timestamp,
		})
	}

	return Turn{
		Question:  question,
		Answer:    completion.Content,
		Results:   results,
		Sources:   sources,
		User:      userMsg,
		Assistant: answerMsg,
	}, nil
}

func (s *Service) enter(contextID string, stage Stage) {
	if s.onStage != nil {
		s.onStage(contextID, stage)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrNoRelevantContext):
		return outcomeNoContext
	case errors.Is(err, domain.ErrConfiguration):
		return outcomeConfig
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrVectorDimMismatch):
		return outcomeUpstream
	default:
		return outcomeError
	}
}

// logTurnError writes an operator-facing record with the error name and message.
func (s *Service) logTurnError(ctx context.Context, contextID string, meta TurnMeta, outcome string, err error) {
	fields := []zap.Field{
		zap.String("context_id", contextID),
		zap.String("session_id", meta.SessionID),
		zap.String("outcome", outcome),
		zap.Error(err),
	}
	var se *StageError
	if errors.As(err, &se) {
		fields = append(fields, zap.String("stage", string(se.Stage)))
	}
	log := logpkg.FromContext(ctx, s.logger)
	if outcome == outcomeNoContext {
		log.Info("Chat turn found no relevant context", fields...)
		return
	}
	if ctx.Err() != nil {
		fields = append(fields, zap.NamedError("ctx_err", ctx.Err()))
	}
	log.Error("Chat turn failed", fields...)
}
