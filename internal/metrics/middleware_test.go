package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Delete("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/chats/{persona}/messages", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"No relevant information found in the database."}`))
		})
	})
	r.Get("/api/personas", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	return r
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()
	const route = "/api/sessions/{sessionID}/chats/{persona}/messages"
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", route, "422"))

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest("POST", "/api/sessions/"+id+"/chats/study-1/messages", http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rr.Code)
		}
	}

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", route, "422")) - before; got != 3 {
		t.Errorf("expected 3 requests on one route label, got %v", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
	if testutil.CollectAndCount(httpResponseBytes) == 0 {
		t.Error("expected response size observations")
	}
}

func TestMiddleware_MountedRootRoute(t *testing.T) {
	r := newRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("DELETE", "/api/sessions/{sessionID}", "204"))

	req := httptest.NewRequest("DELETE", "/api/sessions/abc", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("DELETE", "/api/sessions/{sessionID}", "204")) - before; got != 1 {
		t.Errorf("expected one request on the session route, got %v", got)
	}
}

func TestMiddleware_ImplicitOKAndInFlight(t *testing.T) {
	r := newRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/personas", "200"))

	req := httptest.NewRequest("GET", "/api/personas", http.NoBody)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/personas", "200")) - before; got != 1 {
		t.Errorf("expected implicit 200 to be counted, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Errorf("expected no requests in flight, got %v", got)
	}
}

func TestMiddleware_UnknownRoute(t *testing.T) {
	r := newRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404"))

	req := httptest.NewRequest("GET", "/nope", http.NoBody)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404")) - before; got != 1 {
		t.Errorf("expected unmatched request under unknown, got %v", got)
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/api/sessions/{sessionID}/*/chats/{persona}/messages", "/api/sessions/{sessionID}/chats/{persona}/messages"},
		{"/api/sessions/{sessionID}/", "/api/sessions/{sessionID}"},
		{"/api/*", "/api"},
		{"/*", "/*"},
		{"/", "/"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		if got := normalizeRoute(tc.input); got != tc.expected {
			t.Errorf("normalizeRoute(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestMetricsHandler_ViaPromhttp(t *testing.T) {
	Register()
	Register()

	ChatTurnsTotal.WithLabelValues("study-1", "answered").Inc()

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	for _, name := range []string{"ragchat_chat_turns_total", "ragchat_http_requests_in_flight"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
