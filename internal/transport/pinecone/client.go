// Package pinecone is a data-plane client for a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
)

const (
	service = "vector_search"

	// APIVersion is sent on every request.
	APIVersion = "2024-07"

	// DefaultControlPlaneURL resolves index hosts when none is configured.
	DefaultControlPlaneURL = "https://api.pinecone.io"

	defaultTimeout = 30 * time.Second
)

// Config holds the index connection settings.
type Config struct {
	APIKey string
	// Index is the index name, used for host resolution and metric labels.
	Index string
	// Host is the data-plane host. Resolved through the control plane when empty.
	Host            string
	ControlPlaneURL string
	// Dimension pins the index dimensionality and skips the stats call.
	Dimension  int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to one index.
type Client struct {
	apiKey       string
	index        string
	controlPlane string
	httpClient   *http.Client
	logger       *zap.Logger

	mu        sync.Mutex
	host      string
	dimension int
}

// IndexStats is the describe_index_stats payload.
type IndexStats struct {
	Dimension        int                       `json:"dimension"`
	IndexFullness    float64                   `json:"indexFullness"`
	TotalVectorCount int                       `json:"totalVectorCount"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}

// NamespaceStats holds per-namespace counts.
type NamespaceStats struct {
	VectorCount int `json:"vectorCount"`
}

// New creates an index client. No request is made until the first call.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	controlPlane := cfg.ControlPlaneURL
	if controlPlane == "" {
		controlPlane = DefaultControlPlaneURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:       cfg.APIKey,
		index:        cfg.Index,
		controlPlane: strings.TrimRight(controlPlane, "/"),
		httpClient:   httpClient,
		logger:       logger,
		host:         normalizeHost(cfg.Host),
		dimension:    cfg.Dimension,
	}
}

// Index returns the index name.
func (c *Client) Index() string { return c.index }

type queryRequest struct {
	Vector          []float32                    `json:"vector"`
	TopK            int                          `json:"topK"`
	IncludeMetadata bool                         `json:"includeMetadata"`
	Namespace       string                       `json:"namespace,omitempty"`
	Filter          map[string]map[string]string `json:"filter,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

// Query returns the nearest matches in upstream order. A vector whose length differs
// from the index dimension fails with *domain.DimensionMismatchError and is never sent.
func (c *Client) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Match, error) {
	dim, err := c.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if len(q.Vector) != dim {
		return nil, &domain.DimensionMismatchError{Expected: dim, Actual: len(q.Vector)}
	}

	req := queryRequest{
		Vector:          q.Vector,
		TopK:            q.TopK,
		IncludeMetadata: true,
		Namespace:       q.Namespace,
		Filter:          renderFilter(q.Filter),
	}

	var resp queryResponse
	if err := c.post(ctx, "query", "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]domain.Match, len(resp.Matches))
	for i, m := range resp.Matches {
		matches[i] = domain.NewMatch(m.ID, m.Score, m.Metadata)
	}
	return matches, nil
}

// renderFilter turns exact-match pairs into {"field": {"$eq": "value"}}.
func renderFilter(f map[string]string) map[string]map[string]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]map[string]string, len(f))
	for k, v := range f {
		out[k] = map[string]string{"$eq": v}
	}
	return out
}

// Dimension returns the pinned or cached dimensionality, fetching stats on first use.
func (c *Client) Dimension(ctx context.Context) (int, error) {
	c.mu.Lock()
	dim := c.dimension
	c.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	stats, err := c.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve index dimension: %w", err)
	}
	if stats.Dimension <= 0 {
		return 0, &domain.UpstreamError{Service: service, Message: "index stats reported no dimension"}
	}

	c.mu.Lock()
	c.dimension = stats.Dimension
	c.mu.Unlock()
	return stats.Dimension, nil
}

// DescribeIndexStats returns the index dimension, vector count and namespaces.
func (c *Client) DescribeIndexStats(ctx context.Context) (IndexStats, error) {
	var stats IndexStats
	if err := c.post(ctx, "describe_index_stats", "/describe_index_stats", struct{}{}, &stats); err != nil {
		return IndexStats{}, err
	}
	return stats, nil
}

type upsertVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert writes vectors into a namespace and returns the upserted count.
func (c *Client) Upsert(ctx context.Context, namespace string, vectors []domain.Vector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim, err := c.Dimension(ctx)
	if err != nil {
		return 0, err
	}

	req := upsertRequest{Vectors: make([]upsertVector, len(vectors)), Namespace: namespace}
	for i, v := range vectors {
		if len(v.Values) != dim {
			return 0, fmt.Errorf("vector %s: %w", v.ID, &domain.DimensionMismatchError{Expected: dim, Actual: len(v.Values)})
		}
		req.Vectors[i] = upsertVector{ID: v.ID, Values: v.Values, Metadata: v.Metadata}
	}

	var resp upsertResponse
	if err := c.post(ctx, "upsert", "/vectors/upsert", req, &resp); err != nil {
		return 0, err
	}
	return resp.UpsertedCount, nil
}

// DeleteNamespace removes every vector in the namespace.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	req := struct {
		DeleteAll bool   `json:"deleteAll"`
		Namespace string `json:"namespace,omitempty"`
	}{DeleteAll: true, Namespace: namespace}
	return c.post(ctx, "delete", "/vectors/delete", req, nil)
}

// HealthCheck verifies the index answers a stats call.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.DescribeIndexStats(ctx); err != nil {
		return fmt.Errorf("describe index stats: %w", err)
	}
	return nil
}

type describeIndexResponse struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
}

// resolveHost returns the data-plane host, asking the control plane once when unset.
func (c *Client) resolveHost(ctx context.Context) (string, error) {
	c.mu.Lock()
	host := c.host
	c.mu.Unlock()
	if host != "" {
		return host, nil
	}
	if c.index == "" {
		return "", &domain.ConfigurationError{Missing: []string{"vector_index.name"}}
	}

	endpoint := c.controlPlane + "/indexes/" + url.PathEscape(c.index)
	var desc describeIndexResponse
	if err := c.do(ctx, "describe_index", http.MethodGet, endpoint, nil, &desc); err != nil {
		return "", fmt.Errorf("resolve index host: %w", err)
	}
	if desc.Host == "" {
		return "", &domain.UpstreamError{Service: service, Message: "index description has no host"}
	}

	c.mu.Lock()
	c.host = normalizeHost(desc.Host)
	if c.dimension == 0 && desc.Dimension > 0 {
		c.dimension = desc.Dimension
	}
	host = c.host
	c.mu.Unlock()

	c.logger.Debug("Resolved index host", zap.String("index", c.index), zap.String("host", host))
	return host, nil
}

func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return h
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	host, err := c.resolveHost(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, host+path, body, out)
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Pinecone-API-Version", APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.VectorRequestDuration.WithLabelValues(c.index, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VectorRequestsTotal.WithLabelValues(c.index, op, "error").Inc()
		return &domain.UpstreamError{Service: service, Message: fmt.Sprintf("%s request failed", op), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.VectorRequestsTotal.WithLabelValues(c.index, op, "error").Inc()
		return &domain.UpstreamError{Service: service, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.VectorRequestsTotal.WithLabelValues(c.index, op, "error").Inc()
		return &domain.UpstreamError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody, resp.Status),
		}
	}

	metrics.VectorRequestsTotal.WithLabelValues(c.index, op, "success").Inc()

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &domain.UpstreamError{Service: service, StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

// errorMessage extracts a message from {"message"} or {"error":{"message"}} bodies.
func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		var nested struct {
			Message string `json:"message"`
		}
		if len(parsed.Error) > 0 && json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if len(parsed.Error) > 0 && json.Unmarshal(parsed.Error, &plain) == nil && plain != "" {
			return plain
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fallback
}
