// Package ingest loads uploaded documents, splits them into chunks and
// indexes the chunks into a per-ingestion Session.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/WessleyAI/eventbrief/engine/semantic"
	"github.com/WessleyAI/eventbrief/pkg/fn"
	"github.com/google/uuid"
)

// Deps holds the external dependencies of an Ingester.
type Deps struct {
	Embedder semantic.Embedder
	// NewStore opens the vector store for a session. Nil means in-memory.
	NewStore func(ctx context.Context, sessionID string) (semantic.Store, error)
	Splitter *Splitter
	Logger   *slog.Logger
}

// Ingester builds Sessions from files.
type Ingester struct {
	deps     Deps
	log      *slog.Logger
	pipeline fn.Stage[[]string, *Session]
}

// New creates an Ingester.
func New(deps Deps) *Ingester {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Splitter == nil {
		deps.Splitter = NewSplitter()
	}
	in := &Ingester{deps: deps, log: deps.Logger}
	in.pipeline = in.newPipeline()
	return in
}

// loaded is the output of the load stage.
type loaded struct {
	session *Session
	docs    []Document
}

// chunked is the output of the chunk stage.
type chunked struct {
	session *Session
	chunks  []Chunk
}

// Ingest loads paths in order and returns a new Session. Files that cannot
// be loaded are logged and skipped. When nothing loads the session has no
// index and every similarity query comes back empty.
func (in *Ingester) Ingest(ctx context.Context, paths []string) (*Session, error) {
	return in.pipeline(ctx, paths).Unwrap()
}

func (in *Ingester) newPipeline() fn.Stage[[]string, *Session] {
	load := fn.Then(LoggedTap[[]string]("load", in.log), fn.Stage[[]string, loaded](in.load))
	chunk := fn.Then(load, fn.Then(LoggedTap[loaded]("chunk", in.log), fn.Stage[loaded, chunked](in.chunk)))
	return fn.Then(chunk, fn.Then(LoggedTap[chunked]("index", in.log), fn.Stage[chunked, *Session](in.index)))
}

func (in *Ingester) load(ctx context.Context, paths []string) fn.Result[loaded] {
	sess := newSession(uuid.NewString())
	var docs []Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return fn.Err[loaded](err)
		}
		name := filepath.Base(path)
		l, err := LoaderFor(path)
		if err != nil {
			in.log.Warn("ingest: unsupported file", "file", name)
			continue
		}
		got, err := l.Load(path)
		if errors.Is(err, ErrNoText) {
			in.log.Warn("ingest: no text found, file appears scanned", "file", name)
			continue
		}
		if err != nil {
			in.log.Error("ingest: file skipped", "file", name, "err", truncate(err.Error(), 200))
			continue
		}
		for _, d := range got {
			if d.Data != nil {
				sess.snapshot = d.Data
			}
		}
		docs = append(docs, got...)
		sess.Files = append(sess.Files, name)
		in.log.Info("ingest: file loaded", "file", name, "documents", len(got))
	}
	return fn.Ok(loaded{session: sess, docs: docs})
}

func (in *Ingester) chunk(_ context.Context, l loaded) fn.Result[chunked] {
	return fn.Ok(chunked{session: l.session, chunks: in.deps.Splitter.SplitDocuments(l.docs)})
}

func (in *Ingester) index(ctx context.Context, c chunked) fn.Result[*Session] {
	sess := c.session
	if len(c.chunks) == 0 {
		in.log.Warn("ingest: no documents loaded", "session", sess.ID)
		return fn.Ok(sess)
	}
	if in.deps.Embedder == nil {
		return fn.Errf[*Session]("ingest: no embedder configured")
	}

	var store semantic.Store = semantic.NewMemoryStore()
	if in.deps.NewStore != nil {
		s, err := in.deps.NewStore(ctx, sess.ID)
		if err != nil {
			return fn.Err[*Session](fmt.Errorf("ingest: open store: %w", err))
		}
		store = s
	}

	texts := make([]semantic.Text, len(c.chunks))
	for i, ch := range c.chunks {
		texts[i] = semantic.Text{
			ID:      PointID(sess.ID, ch.Index),
			Content: ch.Text,
			DocID:   ch.Source,
			Source:  ch.Source,
			Index:   ch.Index,
			Page:    ch.Page,
		}
	}

	ix := semantic.NewIndex(in.deps.Embedder, store)
	if err := ix.Add(ctx, texts); err != nil {
		if cerr := ix.Close(context.WithoutCancel(ctx)); cerr != nil {
			in.log.Warn("ingest: drop index", "session", sess.ID, "err", cerr)
		}
		return fn.Err[*Session](fmt.Errorf("ingest: build index: %w", err))
	}
	sess.index = ix
	sess.chunks = len(c.chunks)
	in.log.Info("ingest: indexed", "session", sess.ID, "files", len(sess.Files), "chunks", sess.chunks)
	return fn.Ok(sess)
}

// PointID is the deterministic vector id of a session chunk.
func PointID(sessionID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%d", sessionID, index))).String()
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
