package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/WessleyAI/eventbrief/engine/domain"
)

// ErrNoText is returned by loaders for files that hold no extractable text,
// such as scanned PDFs.
var ErrNoText = errors.New("ingest: no extractable text")

// Loader turns one file into documents.
type Loader interface {
	Load(path string) ([]Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) ([]Document, error)

// Load calls f(path).
func (f LoaderFunc) Load(path string) ([]Document, error) { return f(path) }

// Legacy binary formats go through the OOXML loaders and fail there.
var loaders = map[string]Loader{
	".pdf":  LoaderFunc(loadPDF),
	".docx": LoaderFunc(loadDOCX),
	".doc":  LoaderFunc(loadDOCX),
	".pptx": LoaderFunc(loadPPTX),
	".ppt":  LoaderFunc(loadPPTX),
	".txt":  LoaderFunc(loadText),
	".json": LoaderFunc(loadJSON),
	".yaml": LoaderFunc(loadYAML),
	".yml":  LoaderFunc(loadYAML),
	".xlsx": LoaderFunc(loadExcel),
	".xls":  LoaderFunc(loadExcel),
}

// LoaderFor returns the loader registered for path's extension.
func LoaderFor(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFile, ext)
	}
	return l, nil
}

// Supported reports whether path has a registered loader.
func Supported(path string) bool {
	_, err := LoaderFor(path)
	return err == nil
}

func loadText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", filepath.Base(path), err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("ingest: %s is not valid UTF-8", filepath.Base(path))
	}
	return []Document{{Content: string(data), Source: filepath.Base(path), Kind: "text"}}, nil
}
