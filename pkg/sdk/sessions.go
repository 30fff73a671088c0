package ragchat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SessionService manages chat sessions.
type SessionService struct {
	c *Client
}

// Create opens a session. studyNumber may be empty.
func (s *SessionService) Create(ctx context.Context, studyNumber string) (_ Session, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("session.create", start, err) }()

	var sess Session
	body := map[string]string{"study_number": studyNumber}
	if err = s.c.do(ctx, http.MethodPost, "/api/sessions", nil, body, &sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Delete ends a session and drops all of its conversations.
func (s *SessionService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("session.delete", start, err, zap.String("session_id", id)) }()

	if err = s.c.do(ctx, http.MethodDelete, "/api/sessions/"+id, nil, nil, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ChatService talks to one persona within one session.
type ChatService struct {
	c         *Client
	sessionID string
	persona   string
}

func (s *ChatService) fields() []zap.Field {
	return []zap.Field{zap.String("session_id", s.sessionID), zap.String("persona", s.persona)}
}

func (s *ChatService) path() string {
	return "/api/sessions/" + s.sessionID + "/chats/" + s.persona + "/messages"
}

// Ask submits a question and waits for the grounded answer.
func (s *ChatService) Ask(ctx context.Context, text string) (_ Turn, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("chat.ask", start, err, s.fields()...) }()

	var turn Turn
	if err = s.c.do(ctx, http.MethodPost, s.path(), nil, map[string]string{"text": text}, &turn); err != nil {
		return Turn{}, fmt.Errorf("ask: %w", err)
	}
	return turn, nil
}

// Transcript returns one page of the conversation. A zero limit uses the server default.
func (s *ChatService) Transcript(ctx context.Context, offset, limit int) (_ Transcript, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("chat.transcript", start, err, s.fields()...) }()

	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var tr Transcript
	if err = s.c.do(ctx, http.MethodGet, s.path(), params, nil, &tr); err != nil {
		return Transcript{}, fmt.Errorf("transcript: %w", err)
	}
	return tr, nil
}

// Reset clears the conversation. It fails with ErrBusy while a turn is running.
func (s *ChatService) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("chat.reset", start, err, s.fields()...) }()

	if err = s.c.do(ctx, http.MethodDelete, s.path(), nil, nil, nil); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
