package semantic

// SearchResult represents a single similarity hit.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	DocID   string            `json:"doc_id"`
	Source  string            `json:"source"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// VectorRecord represents a single vector to store.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, doc_id, source, chunk_index, page
}

// Text is a chunk of text waiting to be embedded.
type Text struct {
	ID      string
	Content string
	DocID   string
	Source  string
	Index   int
	Page    int
}
