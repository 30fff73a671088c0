package ragchat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/prompt"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/session"
	httpapi "github.com/hareshsuppiah/sport-science-ai-chat/internal/transport/chi"
	chatuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/chat"
	healthuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/health"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockRetriever struct {
	mu      sync.Mutex
	matches []domain.Match
	err     error
}

func (m *mockRetriever) Embed(_ context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2}, nil
}

func (m *mockRetriever) Search(_ context.Context, _ []float32) ([]domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches, nil
}

func (m *mockRetriever) Query(ctx context.Context, text string) ([]domain.Match, error) {
	vec, err := m.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return m.Search(ctx, vec)
}

func (m *mockRetriever) MinScore() float64 { return 0.01 }

type mockCompleter struct{}

func (mockCompleter) Complete(_ context.Context, _ prompt.Request) (prompt.Completion, error) {
	return prompt.Completion{Content: "RED-S is relative energy deficiency in sport."}, nil
}

// --- Fixture ---

const testKey = "secret"

func newTestServer(t *testing.T, r *mockRetriever, health *healthuc.Service) *httptest.Server {
	t.Helper()
	chat := chatuc.New(chatuc.Options{
		Pipelines: []chatuc.Pipeline{
			{Persona: domain.Persona{ID: "female-athlete", DisplayName: "Female Athlete"}, Retriever: r},
			{Persona: domain.Persona{ID: "sleep-scientist", DisplayName: "Sleep Scientist"}, Retriever: r},
		},
		Completer: mockCompleter{},
		Logger:    zap.NewNop(),
	})
	sessions := session.NewRegistry(session.Options{MemoryCapacity: 50})
	if health == nil {
		health = healthuc.New(0, zap.NewNop())
	}
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.NewServer(chat, sessions, health, zap.NewNop()), []string{testKey}))
	t.Cleanup(srv.Close)
	return srv
}

func relevantRetriever() *mockRetriever {
	return &mockRetriever{
		matches: []domain.Match{
			{ID: "paperA-chunk-0", Score: 0.42, Text: "RED-S is...", Source: "paperA.pdf"},
			{ID: "paperA-chunk-1", Score: 0.31, Text: "Energy availability...", Source: "paperA.pdf"},
		},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(srv.URL, append([]Option{WithAPIKey(testKey)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// --- Tests ---

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://bad"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestClient_ConversationFlow(t *testing.T) {
	srv := newTestServer(t, relevantRetriever(), nil)
	c := newTestClient(t, srv)
	ctx := context.Background()

	sess, err := c.Sessions().Create(ctx, "S-042")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" || sess.StudyNumber != "S-042" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	chat := c.Chat(sess.ID, "female-athlete")
	turn, err := chat.Ask(ctx, "What is RED-S?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if turn.Answer != "RED-S is relative energy deficiency in sport." {
		t.Errorf("Answer = %q", turn.Answer)
	}
	if len(turn.Results) != 2 {
		t.Errorf("Results = %d, want 2", len(turn.Results))
	}
	if len(turn.Sources) != 1 || turn.Sources[0] != "paperA.pdf" {
		t.Errorf("Sources = %v, want [paperA.pdf]", turn.Sources)
	}
	if turn.Message.Role != "assistant" {
		t.Errorf("Message.Role = %q, want assistant", turn.Message.Role)
	}

	tr, err := chat.Transcript(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if tr.Total != 2 || len(tr.Items) != 2 || tr.Items[0].Content != "What is RED-S?" {
		t.Errorf("unexpected transcript: %+v", tr)
	}

	page, err := chat.Transcript(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Transcript page: %v", err)
	}
	if page.Offset != 1 || page.Limit != 1 || len(page.Items) != 1 || page.Items[0].Role != "assistant" {
		t.Errorf("unexpected page: %+v", page)
	}

	if err := chat.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	tr, err = chat.Transcript(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Transcript after reset: %v", err)
	}
	if tr.Total != 0 {
		t.Errorf("Total after reset = %d, want 0", tr.Total)
	}

	if err := c.Sessions().Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := chat.Ask(ctx, "again"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Ask after delete: expected ErrNotFound, got %v", err)
	}
}

func TestClient_NoContext(t *testing.T) {
	srv := newTestServer(t, &mockRetriever{}, nil)
	c := newTestClient(t, srv)
	ctx := context.Background()

	sess, err := c.Sessions().Create(ctx, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = c.Chat(sess.ID, "female-athlete").Ask(ctx, "unrelated")
	if !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_UpstreamError(t *testing.T) {
	r := &mockRetriever{err: &domain.UpstreamError{Service: "embedding", StatusCode: 401, Message: "invalid key"}}
	srv := newTestServer(t, r, nil)
	c := newTestClient(t, srv)
	ctx := context.Background()

	sess, _ := c.Sessions().Create(ctx, "")
	_, err := c.Chat(sess.ID, "female-athlete").Ask(ctx, "What is RED-S?")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Details == "" {
		t.Errorf("expected details in %v", err)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t, relevantRetriever(), nil)
	c, err := New(srv.URL, WithAPIKey("wrong"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Personas(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_PersonasAndQuery(t *testing.T) {
	srv := newTestServer(t, relevantRetriever(), nil)
	c := newTestClient(t, srv)
	ctx := context.Background()

	ps, err := c.Personas(ctx)
	if err != nil {
		t.Fatalf("Personas: %v", err)
	}
	if len(ps) != 2 || ps[0].ID != "female-athlete" || ps[1].DisplayName != "Sleep Scientist" {
		t.Errorf("unexpected personas: %+v", ps)
	}

	matches, err := c.Query(ctx, "", "RED-S")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 || matches[0].Source != "paperA.pdf" {
		t.Errorf("unexpected matches: %+v", matches)
	}

	if _, err := c.Query(ctx, "unknown", "RED-S"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown persona: expected ErrNotFound, got %v", err)
	}
	if _, err := c.Query(ctx, "", ""); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty query: expected ErrBadRequest, got %v", err)
	}
}

func TestClient_Health(t *testing.T) {
	healthy := newTestServer(t, relevantRetriever(), nil)
	hs, err := newTestClient(t, healthy).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if hs.Status != "ok" {
		t.Errorf("Status = %q, want ok", hs.Status)
	}

	failing := healthuc.New(0, zap.NewNop()).
		Add("vector_index", healthuc.CheckerFunc(func(context.Context) error { return errors.New("down") }))
	down := newTestServer(t, relevantRetriever(), failing)
	hs, err = newTestClient(t, down).Health(context.Background())
	if err != nil {
		t.Fatalf("Health on unhealthy server: %v", err)
	}
	if hs.Status != "error" || hs.Checks["vector_index"] != "error" {
		t.Errorf("unexpected health: %+v", hs)
	}
}

func TestClient_Metrics(t *testing.T) {
	srv := newTestServer(t, relevantRetriever(), nil)
	reg := prometheus.NewRegistry()
	c := newTestClient(t, srv, WithPrometheus(reg))

	if _, err := c.Personas(context.Background()); err != nil {
		t.Fatalf("Personas: %v", err)
	}
	if _, err := c.Query(context.Background(), "unknown", "x"); err == nil {
		t.Fatal("expected error")
	}

	// Second client on the same registry reuses the collectors.
	c2 := newTestClient(t, srv, WithPrometheus(reg))
	if _, err := c2.Personas(context.Background()); err != nil {
		t.Fatalf("Personas: %v", err)
	}

	m, err := newClientMetrics(reg)
	if err != nil {
		t.Fatalf("newClientMetrics: %v", err)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("personas.list", "ok")); got != 2 {
		t.Errorf("personas.list ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("query", "not_found")); got != 1 {
		t.Errorf("query not_found = %v, want 1", got)
	}
}

func TestAPIError_Sentinels(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrBusy},
		{http.StatusUnprocessableEntity, ErrNoContext},
		{http.StatusBadGateway, ErrUpstream},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusServiceUnavailable, ErrUnhealthy},
		{http.StatusInternalServerError, ErrServer},
	}
	for _, tt := range tests {
		err := error(&APIError{StatusCode: tt.code, Message: "x"})
		if !errors.Is(err, tt.want) {
			t.Errorf("%d: expected %v", tt.code, tt.want)
		}
	}
}

func TestDecodeAPIError_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.Personas(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "gateway exploded" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestObserver_LogsChatOutcome(t *testing.T) {
	core, logs := zapobserver.New(zap.DebugLevel)
	srv := newTestServer(t, &mockRetriever{}, nil)
	reg := prometheus.NewRegistry()
	c := newTestClient(t, srv, WithLogger(zap.New(core)), WithPrometheus(reg))

	sess, err := c.Sessions().Create(context.Background(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Chat(sess.ID, "female-athlete").Ask(context.Background(), "What is RED-S?"); !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}

	entries := logs.FilterField(zap.String("operation", "chat.ask")).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 chat.ask entry, got %d", len(entries))
	}
	e := entries[0]
	fields := e.ContextMap()
	if e.Level != zap.InfoLevel || fields["outcome"] != "no_context" {
		t.Errorf("unexpected entry: level=%s fields=%v", e.Level, fields)
	}
	if fields["session_id"] != sess.ID || fields["persona"] != "female-athlete" || fields["status"] != int64(422) {
		t.Errorf("missing chat fields: %v", fields)
	}

	m, err := newClientMetrics(reg)
	if err != nil {
		t.Fatalf("newClientMetrics: %v", err)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("chat.ask", "no_context")); got != 1 {
		t.Errorf("chat.ask no_context = %v, want 1", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&APIError{StatusCode: 409}, "busy"},
		{&APIError{StatusCode: 502}, "upstream"},
		{&APIError{StatusCode: 504}, "timeout"},
		{&APIError{StatusCode: 500}, "error"},
		{context.Canceled, "canceled"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
