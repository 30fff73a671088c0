// Package retrieval runs the embed, search and filter steps for one persona.
package retrieval

import (
	"context"
	"fmt"
	"maps"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/relevance"
)

// DefaultTopK is the neighbour count used when Params.TopK is unset.
const DefaultTopK = 5

// Params selects what a Service searches and how strictly it filters.
type Params struct {
	TopK      int
	Namespace string
	Filter    map[string]string
	MinScore  float64
}

// ParamsFor extracts retrieval parameters from a persona.
func ParamsFor(p domain.Persona) Params {
	return Params{
		TopK:      p.TopK,
		Namespace: p.Namespace,
		Filter:    p.Filter,
		MinScore:  p.MinScore,
	}
}

// Service is one parameterized retrieval pipeline.
type Service struct {
	embed  Embedder
	search Searcher
	params Params
}

// New creates a retrieval service. The filter map is copied.
func New(embed Embedder, search Searcher, params Params) *Service {
	if params.TopK <= 0 {
		params.TopK = DefaultTopK
	}
	params.Filter = maps.Clone(params.Filter)
	return &Service{embed: embed, search: search, params: params}
}

// Params returns the pipeline parameters.
func (s *Service) Params() Params { return s.params }

// MinScore returns the relevance threshold.
func (s *Service) MinScore() float64 { return s.params.MinScore }

// Embed vectorizes the query text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return res.Embedding, nil
}

// Search runs the vector against the index with the configured namespace, filter and top_k.
func (s *Service) Search(ctx context.Context, vector []float32) ([]domain.Match, error) {
	matches, err := s.search.Query(ctx, domain.VectorQuery{
		Vector:    vector,
		TopK:      s.params.TopK,
		Namespace: s.params.Namespace,
		Filter:    s.params.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return matches, nil
}

// Query embeds the text and returns the raw matches in upstream order.
func (s *Service) Query(ctx context.Context, text string) ([]domain.Match, error) {
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, vec)
}

// Retrieve returns only the matches that pass the relevance filter.
func (s *Service) Retrieve(ctx context.Context, text string) ([]domain.SearchResult, error) {
	matches, err := s.Query(ctx, text)
	if err != nil {
		return nil, err
	}
	return relevance.Filter(matches, s.params.MinScore), nil
}
