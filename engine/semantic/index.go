// Package semantic provides the similarity index the context selector
// searches: an embedder, a vector store, and the Index tying them together.
package semantic

import (
	"context"
	"errors"
	"fmt"
)

// EmbedBatchSize is the max texts per embedding request.
const EmbedBatchSize = 64

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists vectors and answers k-NN queries.
type Store interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)
}

// collectionEnsurer is implemented by stores that must be sized before use.
type collectionEnsurer interface {
	EnsureCollection(ctx context.Context, dims int) error
}

// dropper is implemented by stores holding state outside the process.
type dropper interface {
	DeleteCollection(ctx context.Context) error
}

// ErrDimensionMismatch is returned when embeddings disagree on length.
var ErrDimensionMismatch = errors.New("semantic: embedding dimension mismatch")

// Index embeds texts into a Store and searches it by query text.
type Index struct {
	embedder Embedder
	store    Store
	size     int
	dims     int
}

// NewIndex creates an empty Index.
func NewIndex(embedder Embedder, store Store) *Index {
	return &Index{embedder: embedder, store: store}
}

// Add embeds texts in batches and upserts them.
func (ix *Index) Add(ctx context.Context, texts []Text) error {
	for start := 0; start < len(texts); start += EmbedBatchSize {
		end := min(start+EmbedBatchSize, len(texts))
		batch := texts[start:end]

		contents := make([]string, len(batch))
		for i, t := range batch {
			contents[i] = t.Content
		}
		vecs, err := ix.embedder.Embed(ctx, contents)
		if err != nil {
			return fmt.Errorf("semantic: embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("semantic: embed batch: got %d vectors for %d texts", len(vecs), len(batch))
		}

		if ix.dims == 0 && len(vecs) > 0 {
			ix.dims = len(vecs[0])
			if e, ok := ix.store.(collectionEnsurer); ok {
				if err := e.EnsureCollection(ctx, ix.dims); err != nil {
					return err
				}
			}
		}

		records := make([]VectorRecord, len(batch))
		for i, t := range batch {
			if len(vecs[i]) != ix.dims {
				return ErrDimensionMismatch
			}
			records[i] = VectorRecord{
				ID:        t.ID,
				Embedding: vecs[i],
				Payload: map[string]any{
					"content":     t.Content,
					"doc_id":      t.DocID,
					"source":      t.Source,
					"chunk_index": t.Index,
					"page":        t.Page,
				},
			}
		}
		if err := ix.store.Upsert(ctx, records); err != nil {
			return err
		}
		ix.size += len(batch)
	}
	return nil
}

// Search embeds query and returns the topK closest texts.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if ix.size == 0 {
		return nil, nil
	}
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("semantic: embed query: got %d vectors", len(vecs))
	}
	return ix.store.Search(ctx, vecs[0], topK)
}

// Len returns the number of indexed texts.
func (ix *Index) Len() int { return ix.size }

// Close releases store state kept outside the process.
func (ix *Index) Close(ctx context.Context) error {
	if d, ok := ix.store.(dropper); ok {
		return d.DeleteCollection(ctx)
	}
	return nil
}
