package retrieval

import "context"

// Chunk is one ranked passage returned by a connector.
type Chunk struct {
	// ConnectorID names the connector that produced the chunk. It must match
	// the name the connector is registered under.
	ConnectorID string `json:"connector"`

	SourceID string            `json:"source_id"`
	URI      string            `json:"uri"`
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Document is a full source document.
type Document struct {
	SourceID string            `json:"source_id"`
	URI      string            `json:"uri"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Citation references a chunk used to build the request context.
type Citation struct {
	SourceID    string  `json:"source_id"`
	ConnectorID string  `json:"connector"`
	URI         string  `json:"uri"`
	ChunkID     string  `json:"chunk_id"`
	Score       float64 `json:"score"`
}

// Connector searches one knowledge source. Implementations must honor the
// context deadline.
type Connector interface {
	// Search returns at most k chunks ranked by relevance. Filters are
	// metadata equality constraints.
	Search(ctx context.Context, query string, filters map[string]string, k int) ([]Chunk, error)

	// Fetch returns a full document, or nil when it does not exist.
	Fetch(ctx context.Context, sourceID string) (*Document, error)
}

// Result is the outcome of an authorized retrieval.
type Result struct {
	// Chunks are the merged, verified chunks in rank order.
	Chunks []Chunk

	// Authorized is the connector set that was searched.
	Authorized []string

	// Denied lists requested connectors removed by authorization.
	Denied []string

	// TopK is the effective chunk limit.
	TopK int
}

// Citations returns the citation list for the result.
func (r *Result) Citations() []Citation {
	if r == nil {
		return nil
	}
	return Citations(r.Chunks)
}
