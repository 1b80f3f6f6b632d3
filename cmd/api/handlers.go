package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/WessleyAI/eventbrief/engine/brief"
	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/ingest"
	"github.com/WessleyAI/eventbrief/pkg/metrics"
	"github.com/WessleyAI/eventbrief/pkg/mid"
	"github.com/WessleyAI/eventbrief/pkg/repo"
	"github.com/google/uuid"
)

const (
	onlineMessage  = "Event brief autofill backend is online"
	maxUploadBytes = 64 << 20
	maxMemoryBytes = 32 << 20
	pdfFilename    = "Event_Brief.pdf"
)

type server struct {
	svc       *brief.Service
	metrics   *metrics.FillMetrics
	registry  *metrics.Registry
	uploadDir string
	log       *slog.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("POST /auto-fill", s.handleAutoFill)
	mux.HandleFunc("POST /generate-pdf", s.handleGeneratePDF)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /fills", s.handleListFills)
	mux.HandleFunc("GET /fills/{id}", s.handleGetFill)
	mux.Handle("GET /metrics", s.registry.Handler())
	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running", "message": onlineMessage})
}

func (s *server) handleAutoFill(w http.ResponseWriter, r *http.Request) {
	done := s.metrics.UploadStarted()
	defer done()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	schema, err := domain.ValidateSchemaJSON([]byte(r.FormValue("schema")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eventName := strings.TrimSpace(r.FormValue("event_name"))
	if eventName == "" {
		writeError(w, http.StatusBadRequest, "event_name is required")
		return
	}

	dir := filepath.Join(s.uploadDir, uuid.NewString())
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warn("api: cleanup uploads", "dir", dir, "err", err)
		}
	}()
	paths, err := saveUploads(dir, r.MultipartForm.File["files"])
	if err != nil {
		s.log.Error("api: save uploads", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := s.svc.AutoFill(r.Context(), paths, schema, eventName)
	if err != nil {
		s.log.Error("api: auto-fill failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// saveUploads copies each part into dir under its base name.
func saveUploads(dir string, files []*multipart.FileHeader) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(filepath.Clean("/" + fh.Filename))
		if name == "/" || name == "." {
			continue
		}
		path := filepath.Join(dir, name)
		if err := saveUpload(path, fh); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func saveUpload(path string, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *server) handleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	raw, err := schemaPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schema, err := domain.ValidateSchemaJSON(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.svc.RenderPDF(r.Context(), schema, &buf); err != nil {
		s.log.Error("api: pdf generation failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "PDF Generation Error")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+pdfFilename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// schemaPayload reads the schema from a "schema" form field or, for JSON
// requests, from the body itself.
func schemaPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		return io.ReadAll(r.Body)
	}
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
			return nil, fmt.Errorf("invalid form: %w", err)
		}
		defer r.MultipartForm.RemoveAll()
	}
	raw := r.FormValue("schema")
	if raw == "" {
		return nil, errors.New("schema is required")
	}
	return []byte(raw), nil
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.svc.Stats()
	if !ok {
		st = ingest.Stats{Files: []string{}}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleListFills(w http.ResponseWriter, r *http.Request) {
	store := s.svc.History()
	if store == nil {
		writeError(w, http.StatusNotFound, "fill history is disabled")
		return
	}
	opts := repo.ListOpts{
		Offset: queryInt(r, "offset"),
		Limit:  queryInt(r, "limit"),
	}.Normalize()
	fills, err := store.List(r.Context(), opts)
	if err != nil {
		s.log.Error("api: list fills", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fills":  fills,
		"offset": opts.Offset,
		"limit":  opts.Limit,
	})
}

func (s *server) handleGetFill(w http.ResponseWriter, r *http.Request) {
	store := s.svc.History()
	if store == nil {
		writeError(w, http.StatusNotFound, "fill history is disabled")
		return
	}
	rec, err := store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "fill not found")
		return
	}
	if err != nil {
		s.log.Error("api: get fill", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
