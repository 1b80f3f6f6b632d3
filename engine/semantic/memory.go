package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store using cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	records []VectorRecord
	norms   []float64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert stores records, replacing any with the same ID.
func (m *MemoryStore) Upsert(_ context.Context, records []VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		n := norm(r.Embedding)
		replaced := false
		for i := range m.records {
			if m.records[i].ID == r.ID {
				m.records[i], m.norms[i] = r, n
				replaced = true
				break
			}
		}
		if !replaced {
			m.records = append(m.records, r)
			m.norms = append(m.norms, n)
		}
	}
	return nil
}

// Search returns the topK records by cosine similarity. Ties keep insertion order.
func (m *MemoryStore) Search(_ context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 || len(m.records) == 0 {
		return nil, nil
	}

	qn := norm(embedding)
	type scored struct {
		i     int
		score float64
	}
	hits := make([]scored, 0, len(m.records))
	for i, r := range m.records {
		if len(r.Embedding) != len(embedding) {
			return nil, ErrDimensionMismatch
		}
		hits = append(hits, scored{i: i, score: cosine(embedding, r.Embedding, qn, m.norms[i])})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	n := min(topK, len(hits))
	out := make([]SearchResult, n)
	for j := 0; j < n; j++ {
		r := m.records[hits[j].i]
		out[j] = toResult(r, float32(hits[j].score))
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func toResult(r VectorRecord, score float32) SearchResult {
	sr := SearchResult{ID: r.ID, Score: score, Meta: make(map[string]string)}
	for k, v := range r.Payload {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		switch k {
		case "content":
			sr.Content = s
		case "doc_id":
			sr.DocID = s
		case "source":
			sr.Source = s
		default:
			sr.Meta[k] = s
		}
	}
	return sr
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
