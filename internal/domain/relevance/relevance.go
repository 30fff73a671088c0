// Package relevance turns raw vector-search matches into the results a prompt is built from.
package relevance

import "github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"

// DefaultMinScore is the score a match must exceed when a persona does not set its own.
const DefaultMinScore = 0.01

// Filter keeps matches with score > minScore and non-empty text, preserving input order.
func Filter(matches []domain.Match, minScore float64) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score <= minScore || m.Text == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Text:   m.Text,
			Source: m.Source,
			Score:  m.Score,
		})
	}
	return results
}

// Sources returns the distinct non-empty sources in first-seen order.
func Sources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, r := range results {
		if r.Source == "" {
			continue
		}
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		out = append(out, r.Source)
	}
	return out
}
