package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF returns one document per page with text. The pdf package panics
// on some malformed inputs, so panics become errors.
func loadPDF(path string) (docs []Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("ingest: pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open pdf: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("ingest: pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Content: text, Source: name, Kind: "pdf", Page: i})
	}
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}
