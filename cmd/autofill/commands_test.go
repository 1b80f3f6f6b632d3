package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaJSON = `{
  "templateName": "Launch Brief",
  "sections": [
    {"sectionName": "Project Overview", "inputFields": [
      {"fieldsHeading": "Basics", "fields": [
        {"inputName": "Event Name", "dataType": "String"},
        {"inputName": "Venue", "dataType": "String"}
      ]}
    ]}
  ]
}`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// backends fakes the embedding and chat endpoints the fill command calls.
func backends(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embeddings", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.3, 0.4}})
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `{"0":"Expo","1":"Pier 27"}`},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFill_EndToEnd(t *testing.T) {
	srv := backends(t)
	t.Setenv("EVENTBRIEF_EMBED_OLLAMA_URL", srv.URL)
	t.Setenv("EVENTBRIEF_LLM_API_KEY", "test")
	t.Setenv("EVENTBRIEF_EXTRACT_MAX_ATTEMPTS", "1")

	schema := writeTemp(t, "schema.json", schemaJSON)
	notes := writeTemp(t, "notes.txt", "The Expo is held at Pier 27.")
	pdf := filepath.Join(t.TempDir(), "brief.pdf")

	stdout, _, err := execute(t, "fill",
		"--schema", schema, "--event", "Expo", "--pdf", pdf,
		"--llm-base-url", srv.URL+"/v1", "--history-path", "", "--index-backend", "memory",
		notes,
	)
	require.NoError(t, err)

	var res struct {
		Data  json.RawMessage `json:"data"`
		Stats struct {
			TotalFields  int `json:"total_fields"`
			FilledFields int `json:"filled_fields"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, 2, res.Stats.TotalFields)
	assert.Equal(t, 2, res.Stats.FilledFields)
	assert.Contains(t, string(res.Data), `"inputValue":"Pier 27"`)

	doc, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))

	// the fill output renders directly
	filled := writeTemp(t, "filled.json", stdout)
	again := filepath.Join(t.TempDir(), "again.pdf")
	_, _, err = execute(t, "pdf", "--schema", filled, "--out", again)
	require.NoError(t, err)
	_, err = os.Stat(again)
	assert.NoError(t, err)
}

func TestPDF(t *testing.T) {
	schema := writeTemp(t, "schema.json", schemaJSON)
	out := filepath.Join(t.TempDir(), "brief.pdf")
	_, _, err := execute(t, "pdf", "--schema", schema, "--out", out)
	require.NoError(t, err)

	doc, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestPDF_Errors(t *testing.T) {
	_, _, err := execute(t, "pdf", "--out", filepath.Join(t.TempDir(), "x.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")

	bad := writeTemp(t, "bad.json", `{"templateName": "x"}`)
	_, _, err = execute(t, "pdf", "--schema", bad, "--out", filepath.Join(t.TempDir(), "x.pdf"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad.json"), err.Error())

	_, _, err = execute(t, "pdf", "--schema", filepath.Join(t.TempDir(), "missing.json"), "--out", "x.pdf")
	require.Error(t, err)
}

func TestFill_RequiresEvent(t *testing.T) {
	schema := writeTemp(t, "schema.json", schemaJSON)
	_, _, err := execute(t, "fill", "--schema", schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event")
}
