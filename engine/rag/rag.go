// Package rag selects the document context sent to the model for one
// batch of form fields. A session with structured input is read directly;
// otherwise the section and field prompts are run as similarity queries.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/eventbrief/engine/semantic"
)

// Corpus is the part of an ingestion session context selection reads.
type Corpus interface {
	Snapshot() (any, bool)
	Search(ctx context.Context, query string, k int) ([]semantic.SearchResult, error)
}

// Field is the retrieval view of one form field.
type Field struct {
	Name   string // inputName, else group heading, else "Field"
	Prompt string
}

// Options configures context selection.
type Options struct {
	MaxChars      int // TruncateMiddle limit
	SanitizeLimit int
	MaxQueries    int
	TopK          int
	MaxChunks     int
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		MaxChars:      6000,
		SanitizeLimit: 2000,
		MaxQueries:    5,
		TopK:          2,
		MaxChunks:     6,
	}
}

const chunkSeparator = "\n\n---\n\n"

// Selector builds model context from a Corpus.
type Selector struct {
	opts   Options
	logger *slog.Logger
}

// NewSelector creates a Selector. Zero option values take the defaults.
func NewSelector(opts Options, logger *slog.Logger) *Selector {
	def := DefaultOptions()
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.SanitizeLimit <= 0 {
		opts.SanitizeLimit = def.SanitizeLimit
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = def.MaxQueries
	}
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = def.MaxChunks
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{opts: opts, logger: logger}
}

// Context returns the sanitized, length-bounded context for fields of section.
func (s *Selector) Context(ctx context.Context, c Corpus, section string, fields []Field) (string, error) {
	var raw string
	if snap, ok := c.Snapshot(); ok && !empty(snap) {
		raw = StructuredContext(snap, section)
	} else {
		var err error
		raw, err = s.similarityContext(ctx, c, section, fields)
		if err != nil {
			return "", fmt.Errorf("rag: similarity context: %w", err)
		}
	}
	out := TruncateMiddle(Sanitize(raw, s.opts.SanitizeLimit), s.opts.MaxChars)
	s.logger.Debug("rag: context selected", "section", section, "chars", len(out))
	return out, nil
}

// similarityContext runs the section name and each "name prompt" pair as
// queries and collects distinct non-blank chunks.
func (s *Selector) similarityContext(ctx context.Context, c Corpus, section string, fields []Field) (string, error) {
	queries := make([]string, 0, len(fields)+1)
	queries = append(queries, section)
	for _, f := range fields {
		queries = append(queries, f.Name+" "+f.Prompt)
	}
	if len(queries) > s.opts.MaxQueries {
		queries = queries[:s.opts.MaxQueries]
	}

	seen := make(map[string]bool)
	var chunks []string
	for _, q := range queries {
		results, err := c.Search(ctx, q, s.opts.TopK)
		if err != nil {
			return "", err
		}
		for _, r := range results {
			if seen[r.Content] || strings.TrimSpace(r.Content) == "" {
				continue
			}
			seen[r.Content] = true
			chunks = append(chunks, r.Content)
			if len(chunks) >= s.opts.MaxChunks {
				return strings.Join(chunks, chunkSeparator), nil
			}
		}
	}
	return strings.Join(chunks, chunkSeparator), nil
}
