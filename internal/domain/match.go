package domain

// Metadata keys written by the indexer and read back from search matches.
const (
	MetaText       = "text"
	MetaFilename   = "filename"
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
)

// Match is one candidate returned by vector search, in upstream order.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewMatch normalizes raw metadata into a Match. Source prefers filename over source.
func NewMatch(id string, score float64, metadata map[string]any) Match {
	m := Match{ID: id, Score: score, Metadata: metadata}
	m.Text = metaString(metadata, MetaText)
	if m.Source = metaString(metadata, MetaFilename); m.Source == "" {
		m.Source = metaString(metadata, MetaSource)
	}
	return m
}

func metaString(md map[string]any, key string) string {
	if md == nil {
		return ""
	}
	s, _ := md[key].(string)
	return s
}

// SearchResult is a Match that survived relevance filtering.
type SearchResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// VectorQuery is a nearest-neighbour request against one index.
// Filter holds exact-match metadata constraints (field -> value).
type VectorQuery struct {
	Vector    []float32
	TopK      int
	Namespace string
	Filter    map[string]string
}

// Vector is a record written to the vector index.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}
