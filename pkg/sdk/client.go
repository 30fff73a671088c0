package ragchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

// Client is the chat API entry point.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a Client for the server at baseURL (scheme and host, optional path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ragchat: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ragchat: base url %q must include scheme and host", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{baseURL: u, apiKey: cfg.apiKey, http: hc, obs: obs}, nil
}

// Personas lists the configured personas in server order.
func (c *Client) Personas(ctx context.Context) (_ []Persona, err error) {
	start := time.Now()
	defer func() { c.obs.observe("personas.list", start, err) }()

	var resp struct {
		Items []Persona `json:"items"`
	}
	if err = c.do(ctx, http.MethodGet, "/api/personas", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	return resp.Items, nil
}

// Query runs a raw similarity search. An empty persona selects the server default.
func (c *Client) Query(ctx context.Context, persona, query string) (_ []Match, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err, zap.String("persona", persona)) }()

	var params url.Values
	if persona != "" {
		params = url.Values{"persona": {persona}}
	}
	var resp struct {
		Matches []Match `json:"matches"`
	}
	body := map[string]string{"query": query}
	if err = c.do(ctx, http.MethodPost, "/api/query", params, body, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return resp.Matches, nil
}

// Health reports server health. A degraded or failing server is not an error.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	var hs HealthStatus
	err = c.do(ctx, http.MethodGet, "/health", nil, nil, &hs)
	if err != nil && !errors.Is(err, ErrUnhealthy) {
		return HealthStatus{}, fmt.Errorf("health: %w", err)
	}
	return hs, nil
}

// Sessions returns the session management service.
func (c *Client) Sessions() *SessionService {
	return &SessionService{c: c}
}

// Chat returns the conversation with one persona inside a session.
func (c *Client) Chat(sessionID, persona string) *ChatService {
	return &ChatService{c: c, sessionID: sessionID, persona: persona}
}

// do sends one request. out is decoded for 2xx responses and also for 503,
// which carries a health report.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := *c.baseURL
	u.Path += path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && resp.StatusCode != http.StatusServiceUnavailable {
		return decodeAPIError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	if !ok {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
