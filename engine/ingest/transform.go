package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target number of characters per chunk.
	DefaultChunkSize = 800
	// DefaultOverlap is the number of characters carried into the next chunk.
	DefaultOverlap = 150
)

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits text recursively: the first separator present in the text
// is used, pieces under the window are merged greedily, and pieces over the
// window are split again with the remaining separators. Separators stay
// attached to the start of the piece that follows them. Lengths are runes.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a Splitter with the default window, overlap and separators.
func NewSplitter() *Splitter {
	return &Splitter{Size: DefaultChunkSize, Overlap: DefaultOverlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text. Chunks are whitespace-trimmed and never empty.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

// SplitDocuments chunks every document, numbering chunks across the whole set.
func (s *Splitter) SplitDocuments(docs []Document) []Chunk {
	var chunks []Chunk
	for _, d := range docs {
		for _, text := range s.Split(d.Content) {
			chunks = append(chunks, Chunk{Text: text, Index: len(chunks), Source: d.Source, Page: d.Page})
		}
	}
	return chunks
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" {
			sep = candidate
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) < s.Size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge joins pieces into windows of at most Size runes, carrying up to
// Overlap runes of trailing pieces into the next window.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.Size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for total > s.Overlap || (total+n > s.Size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeep splits on sep, prefixing every piece after the first with sep.
// An empty sep splits into runes. Empty pieces are dropped.
func splitKeep(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	for i, p := range raw {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
