package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/WessleyAI/eventbrief/engine/snapshot"
)

func loadJSON(path string) ([]Document, error) {
	return loadStructured(path, "json", snapshot.DecodeJSON)
}

func loadYAML(path string) ([]Document, error) {
	return loadStructured(path, "yaml", snapshot.DecodeYAML)
}

// loadStructured keeps the parsed value for the session snapshot and also
// flattens it to text so it is searchable like any other document.
func loadStructured(path, kind string, decode func([]byte) (any, error)) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", filepath.Base(path), err)
	}
	v, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", filepath.Base(path), err)
	}
	return []Document{{
		Content: snapshot.Text(v),
		Source:  filepath.Base(path),
		Kind:    kind,
		Data:    v,
	}}, nil
}
