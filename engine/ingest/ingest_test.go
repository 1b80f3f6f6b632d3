package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/semantic"
	"github.com/WessleyAI/eventbrief/engine/snapshot"
)

// wordEmbedder scores texts by which vocabulary words they contain.
type wordEmbedder struct {
	vocab []string
	calls int
	err   error
}

func (w *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(w.vocab)+1)
		v[len(w.vocab)] = 0.01
		for j, word := range w.vocab {
			if strings.Contains(strings.ToLower(t), word) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngest_MixedFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "brief.txt", "The venue is Pier 27.\n\nThe budget is 40k."),
		writeFile(t, dir, "first.json", `{"event":{"name":"Expo"}}`),
		writeFile(t, dir, "photo.png", "png"),
		writeFile(t, dir, "scan.pdf", "garbage"),
		writeFile(t, dir, "second.yaml", "project:\n  name: Summit\n"),
	}

	emb := &wordEmbedder{vocab: []string{"venue", "budget", "expo", "summit"}}
	in := New(Deps{Embedder: emb, Logger: quietLogger()})
	sess, err := in.Ingest(context.Background(), paths)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	defer sess.Close(context.Background())

	if sess.ID == "" {
		t.Fatal("expected a session id")
	}
	if !reflect.DeepEqual(sess.Files, []string{"brief.txt", "first.json", "second.yaml"}) {
		t.Fatalf("unexpected files %v", sess.Files)
	}

	snap, ok := sess.Snapshot()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if _, has := snap.(*snapshot.Object).Get("project"); !has {
		t.Fatal("last structured file should win")
	}

	st := sess.Stats()
	if st.FilesProcessed != 3 || !st.JSONMode || !st.VectorDBReady || st.ChunksIndexed != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSession_SearchIsCached(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeFile(t, dir, "brief.txt", "The venue is Pier 27.")}
	emb := &wordEmbedder{vocab: []string{"venue"}}
	sess, err := New(Deps{Embedder: emb, Logger: quietLogger()}).Ingest(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}

	before := emb.calls
	first, err := sess.Search(context.Background(), "venue", 2)
	if err != nil || len(first) != 1 {
		t.Fatalf("unexpected search %v %v", first, err)
	}
	if _, err := sess.Search(context.Background(), "venue", 2); err != nil {
		t.Fatal(err)
	}
	if emb.calls != before+1 {
		t.Fatalf("expected one embed call for repeated query, got %d", emb.calls-before)
	}
}

func TestIngest_NothingLoaded(t *testing.T) {
	dir := t.TempDir()
	emb := &wordEmbedder{}
	sess, err := New(Deps{Embedder: emb, Logger: quietLogger()}).Ingest(context.Background(), []string{
		writeFile(t, dir, "photo.png", "png"),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if sess.HasIndex() {
		t.Fatal("expected no index")
	}
	if _, err := sess.Search(context.Background(), "anything", 2); !errors.Is(err, domain.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
	if st := sess.Stats(); st.FilesProcessed != 0 || st.VectorDBReady || st.JSONMode || st.ChunksIndexed != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if emb.calls != 0 {
		t.Fatal("embedder should not be called")
	}
}

func TestIngest_EmbedFailure(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Deps{Embedder: &wordEmbedder{err: errors.New("down")}, Logger: quietLogger()}).
		Ingest(context.Background(), []string{writeFile(t, dir, "a.txt", "hello")})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIngest_NoEmbedder(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Deps{Logger: quietLogger()}).Ingest(context.Background(), []string{writeFile(t, dir, "a.txt", "hello")})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIngest_Cancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Deps{Embedder: &wordEmbedder{}, Logger: quietLogger()}).Ingest(ctx, []string{writeFile(t, dir, "a.txt", "hello")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type recordingStore struct {
	*semantic.MemoryStore
	ids []string
}

func (r *recordingStore) Upsert(ctx context.Context, records []semantic.VectorRecord) error {
	for _, rec := range records {
		r.ids = append(r.ids, rec.ID)
	}
	return r.MemoryStore.Upsert(ctx, records)
}

func TestIngest_UsesStoreFactory(t *testing.T) {
	dir := t.TempDir()
	store := &recordingStore{MemoryStore: semantic.NewMemoryStore()}
	var gotSession string
	in := New(Deps{
		Embedder: &wordEmbedder{vocab: []string{"a"}},
		NewStore: func(_ context.Context, sessionID string) (semantic.Store, error) {
			gotSession = sessionID
			return store, nil
		},
		Logger: quietLogger(),
	})
	sess, err := in.Ingest(context.Background(), []string{writeFile(t, dir, "a.txt", "alpha")})
	if err != nil {
		t.Fatal(err)
	}
	if gotSession != sess.ID {
		t.Fatalf("store opened for %q, session is %q", gotSession, sess.ID)
	}
	if len(store.ids) != 1 || store.ids[0] != PointID(sess.ID, 0) {
		t.Fatalf("unexpected point ids %v", store.ids)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	if PointID("s", 1) != PointID("s", 1) {
		t.Fatal("point ids should be deterministic")
	}
	if PointID("s", 1) == PointID("s", 2) {
		t.Fatal("point ids should differ by index")
	}
}
