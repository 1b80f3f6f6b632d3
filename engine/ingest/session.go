package ingest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/semantic"
)

// Session is the corpus built by one ingestion: an optional structured
// snapshot, a similarity index over the chunks, and a query cache.
// A session is replaced wholesale, never updated.
type Session struct {
	ID      string
	Files   []string
	Created time.Time

	snapshot any
	index    *semantic.Index
	chunks   int

	mu    sync.Mutex
	cache map[string][]semantic.SearchResult
}

func newSession(id string) *Session {
	return &Session{ID: id, Created: time.Now(), cache: make(map[string][]semantic.SearchResult)}
}

// Snapshot returns the structured input of the last JSON or YAML file, if any.
func (s *Session) Snapshot() (any, bool) {
	return s.snapshot, s.snapshot != nil
}

// HasIndex reports whether any chunks were indexed.
func (s *Session) HasIndex() bool {
	return s.index != nil && s.chunks > 0
}

// Search returns the k chunks closest to query. Results are cached per
// query for the session lifetime.
func (s *Session) Search(ctx context.Context, query string, k int) ([]semantic.SearchResult, error) {
	if !s.HasIndex() {
		return nil, domain.ErrNoDocuments
	}
	key := strconv.Itoa(k) + "\x00" + query

	s.mu.Lock()
	hit, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return hit, nil
	}

	res, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[key] = res
	s.mu.Unlock()
	return res, nil
}

// Stats summarizes the session.
func (s *Session) Stats() Stats {
	files := make([]string, len(s.Files))
	copy(files, s.Files)
	st := Stats{
		FilesProcessed: len(s.Files),
		Files:          files,
		JSONMode:       s.snapshot != nil,
		VectorDBReady:  s.HasIndex(),
	}
	if st.VectorDBReady {
		st.ChunksIndexed = s.chunks
	}
	return st
}

// Close releases index state held outside the process.
func (s *Session) Close(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	return s.index.Close(ctx)
}
