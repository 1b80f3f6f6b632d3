// Package brief runs the whole autofill flow for one request: ingest the
// uploaded files, fill the schema, record the fill and render PDFs.
package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/fill"
	"github.com/WessleyAI/eventbrief/engine/history"
	"github.com/WessleyAI/eventbrief/engine/ingest"
	"github.com/WessleyAI/eventbrief/engine/render"
	"github.com/WessleyAI/eventbrief/pkg/natsutil"
	"github.com/WessleyAI/eventbrief/pkg/repo"
)

// HistoryStore keeps completed fills.
type HistoryStore interface {
	repo.Repository[history.Record, string]
}

// Publisher announces completed fills.
type Publisher interface {
	FillCompleted(ctx context.Context, ev natsutil.FillCompleted) error
}

// Deps holds the collaborators of a Service. History and Events are optional.
type Deps struct {
	Ingester *ingest.Ingester
	Filler   *fill.Filler
	Renderer *render.Renderer
	History  HistoryStore
	Events   Publisher
	Logger   *slog.Logger
}

// Service is the autofill engine behind the HTTP API and the CLI.
type Service struct {
	deps Deps
	log  *slog.Logger

	mu     sync.RWMutex
	latest *ingest.Stats
}

// New creates a Service.
func New(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New(render.Options{}, deps.Logger)
	}
	return &Service{deps: deps, log: deps.Logger}
}

// AutoFill ingests paths, fills schema in place and records the result.
// History and event failures are logged and do not fail the fill.
func (s *Service) AutoFill(ctx context.Context, paths []string, schema *domain.EventSchema, eventName string) (*fill.Result, error) {
	sess, err := s.deps.Ingester.Ingest(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("brief: ingest: %w", err)
	}
	defer func() {
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("brief: close session", "session", sess.ID, "err", err)
		}
	}()

	stats := sess.Stats()
	s.mu.Lock()
	s.latest = &stats
	s.mu.Unlock()

	res, err := s.deps.Filler.Fill(ctx, sess, schema, eventName)
	if err != nil {
		return nil, fmt.Errorf("brief: fill: %w", err)
	}
	s.record(ctx, res, stats.Files, eventName)
	return res, nil
}

func (s *Service) record(ctx context.Context, res *fill.Result, files []string, eventName string) {
	id := ""
	at := time.Now().UTC()
	if s.deps.History != nil {
		data, err := json.Marshal(res.Data)
		if err == nil {
			var rec history.Record
			rec, err = s.deps.History.Create(ctx, history.Record{
				EventName:    eventName,
				TemplateName: res.Data.TemplateName,
				Files:        files,
				Stats:        res.Stats,
				Data:         data,
			})
			if err == nil {
				id, at = rec.ID, rec.CreatedAt
			}
		}
		if err != nil {
			s.log.Error("brief: record history", "err", err)
		}
	}
	if s.deps.Events != nil {
		err := s.deps.Events.FillCompleted(ctx, natsutil.FillCompleted{
			ID:             id,
			EventName:      eventName,
			TemplateName:   res.Data.TemplateName,
			Files:          files,
			TotalFields:    res.Stats.TotalFields,
			FilledFields:   res.Stats.FilledFields,
			CompletionRate: res.Stats.CompletionRate,
			At:             at,
		})
		if err != nil {
			s.log.Warn("brief: publish fill event", "err", err)
		}
	}
	s.log.Info("brief: fill recorded", "id", id, "event", eventName, "filled", res.Stats.FilledFields, "total", res.Stats.TotalFields)
}

// Stats returns the stats of the most recent ingestion.
func (s *Service) Stats() (ingest.Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return ingest.Stats{}, false
	}
	return *s.latest, true
}

// RenderPDF writes schema as a PDF brief to w.
func (s *Service) RenderPDF(ctx context.Context, schema *domain.EventSchema, w io.Writer) error {
	return s.deps.Renderer.Render(ctx, schema, w)
}

// History returns the fill history, or nil when it is disabled.
func (s *Service) History() HistoryStore { return s.deps.History }
