package fill

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/extract"
	"github.com/WessleyAI/eventbrief/engine/semantic"
	"github.com/WessleyAI/eventbrief/engine/snapshot"
	"github.com/WessleyAI/eventbrief/pkg/fn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct{ snap any }

func (f *fakeCorpus) Snapshot() (any, bool) { return f.snap, f.snap != nil }
func (f *fakeCorpus) HasIndex() bool        { return true }
func (f *fakeCorpus) Search(context.Context, string, int) ([]semantic.SearchResult, error) {
	return []semantic.SearchResult{{Content: "The venue is Pier 27"}}, nil
}

// sectionExtractor answers per section name.
type sectionExtractor struct {
	values map[string]map[string]any
	errs   map[string]error
	panics map[string]bool
	seen   map[string][]extract.Request
}

func (s *sectionExtractor) Extract(_ context.Context, _ extract.Corpus, section string, reqs []extract.Request) (map[string]any, error) {
	if s.seen == nil {
		s.seen = map[string][]extract.Request{}
	}
	s.seen[section] = reqs
	if s.panics[section] {
		panic("boom")
	}
	if err := s.errs[section]; err != nil {
		return nil, err
	}
	return s.values[section], nil
}

type fillCounter struct {
	total, filled, calls int
}

func (f *fillCounter) FillDone(total, filled int, _ time.Duration) {
	f.calls++
	f.total, f.filled = total, filled
}

type fixedLLM struct {
	reply string
	users []string
}

func (l *fixedLLM) Complete(_ context.Context, _, user string) (string, error) {
	l.users = append(l.users, user)
	return l.reply, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noDelay() Options { return Options{SectionDelay: -1} }

func parse(t *testing.T, raw string) *domain.EventSchema {
	t.Helper()
	s, err := domain.ParseSchema([]byte(raw))
	require.NoError(t, err)
	return s
}

const twoSections = `{
  "templateName": "Brief",
  "sections": [
    {"sectionName": "Project Overview", "inputFields": [
      {"fieldsHeading": "Basics", "fields": [
        {"inputName": "Event Name", "dataType": "String", "fieldType": "text"},
        {"inputName": "Colours", "dataType": "Array", "fieldType": "tags"}
      ]}
    ]},
    {"sectionName": "Empty", "inputFields": []},
    {"sectionName": "Stakeholders", "inputFields": [
      {"fieldsHeading": "People", "fields": [
        {"inputName": "Owner", "dataType": "Object", "fieldType": "contact"}
      ]}
    ]}
  ]
}`

func TestFill_WritesBackAndCounts(t *testing.T) {
	schema := parse(t, twoSections)
	ex := &sectionExtractor{values: map[string]map[string]any{
		"Project Overview": {"0": "Expo", "1": "Red, Blue, Green"},
		"Stakeholders":     {"0": "Jane Doe (jane@x.com)"},
	}}
	rec := &fillCounter{}
	f := New(Deps{Extractor: ex, Metrics: rec, Logger: quietLogger()}, noDelay())

	res, err := f.Fill(context.Background(), &fakeCorpus{}, schema, "Expo")
	require.NoError(t, err)

	assert.Equal(t, "Expo", schema.Sections[0].InputFields[0].Fields[0].InputValue)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, schema.Sections[0].InputFields[0].Fields[1].InputValue)
	assert.Equal(t, domain.Contact{Name: "Jane Doe", Email: "jane@x.com"}, schema.Sections[2].InputFields[0].Fields[0].InputValue)
	assert.NotContains(t, ex.seen, "Empty")

	assert.Equal(t, Stats{TotalFields: 3, FilledFields: 3, CompletionRate: 100}, res.Stats)
	assert.Same(t, schema, res.Data)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 3, rec.total)
}

func TestFill_SectionErrorLeavesSiblingsFilled(t *testing.T) {
	for name, ex := range map[string]*sectionExtractor{
		"error": {
			values: map[string]map[string]any{"Stakeholders": {"0": "Jane Doe"}},
			errs:   map[string]error{"Project Overview": errors.New("llm down")},
		},
		"panic": {
			values: map[string]map[string]any{"Stakeholders": {"0": "Jane Doe"}},
			panics: map[string]bool{"Project Overview": true},
		},
	} {
		t.Run(name, func(t *testing.T) {
			schema := parse(t, twoSections)
			f := New(Deps{Extractor: ex, Logger: quietLogger()}, noDelay())

			res, err := f.Fill(context.Background(), &fakeCorpus{}, schema, "Expo")
			require.NoError(t, err)

			for _, field := range schema.Sections[0].InputFields[0].Fields {
				assert.Equal(t, domain.Nil, field.InputValue)
			}
			assert.Equal(t, domain.Contact{Name: "Jane Doe", Email: domain.Nil}, schema.Sections[2].InputFields[0].Fields[0].InputValue)
			assert.Equal(t, 3, res.Stats.TotalFields)
			assert.Equal(t, 1, res.Stats.FilledFields)
			assert.InDelta(t, 33.333, res.Stats.CompletionRate, 0.01)
		})
	}
}

func TestFill_MissingIdsBecomeNil(t *testing.T) {
	schema := parse(t, twoSections)
	ex := &sectionExtractor{values: map[string]map[string]any{}}
	f := New(Deps{Extractor: ex, Logger: quietLogger()}, noDelay())

	res, err := f.Fill(context.Background(), &fakeCorpus{}, schema, "Expo")
	require.NoError(t, err)

	fields := schema.Sections[0].InputFields[0].Fields
	assert.Equal(t, domain.Nil, fields[0].InputValue)
	assert.Equal(t, []string{}, fields[1].InputValue)
	assert.Equal(t, domain.Contact{Name: domain.Nil, Email: domain.Nil}, schema.Sections[2].InputFields[0].Fields[0].InputValue)
	assert.Equal(t, 0, res.Stats.FilledFields)
	assert.Equal(t, 0.0, res.Stats.CompletionRate)
}

func TestFill_EmptySchema(t *testing.T) {
	f := New(Deps{Extractor: &sectionExtractor{}, Logger: quietLogger()}, Options{})
	res, err := f.Fill(context.Background(), &fakeCorpus{}, &domain.EventSchema{}, "Expo")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, res.Stats)
}

func TestFill_CancelledAtSectionBoundary(t *testing.T) {
	schema := parse(t, twoSections)
	ctx, cancel := context.WithCancel(context.Background())
	ex := &sectionExtractor{values: map[string]map[string]any{"Project Overview": {"0": "Expo"}}}
	f := New(Deps{Extractor: cancelAfter{ex, cancel}, Logger: quietLogger()}, Options{SectionDelay: time.Hour})

	_, err := f.Fill(ctx, &fakeCorpus{}, schema, "Expo")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "Expo", schema.Sections[0].InputFields[0].Fields[0].InputValue)
	assert.NotContains(t, ex.seen, "Stakeholders")
}

type cancelAfter struct {
	inner  Extractor
	cancel context.CancelFunc
}

func (c cancelAfter) Extract(ctx context.Context, corpus extract.Corpus, section string, reqs []extract.Request) (map[string]any, error) {
	defer c.cancel()
	return c.inner.Extract(ctx, corpus, section, reqs)
}

func TestFill_EndToEndStructuredSnapshot(t *testing.T) {
	snap, err := snapshot.DecodeJSON([]byte(`{"event":{"name":"Expo"}}`))
	require.NoError(t, err)
	schema := parse(t, `{"templateName":"Brief","sections":[{"sectionName":"Project Overview","inputFields":[
		{"fieldsHeading":"Basics","fields":[{"inputName":"Event Name","dataType":"String","fieldType":"text"}]}]}]}`)

	llm := &fixedLLM{reply: `{"0":"Expo"}`}
	ex := extract.New(extract.Deps{LLM: llm, Logger: quietLogger()}, extract.Options{Backoff: fn.Constant(0)})
	f := New(Deps{Extractor: ex, Logger: quietLogger()}, noDelay())

	res, err := f.Fill(context.Background(), &fakeCorpus{snap: snap}, schema, "Expo")
	require.NoError(t, err)

	require.Len(t, llm.users, 1)
	assert.Contains(t, llm.users[0], "Event: Name: Expo")
	assert.NotContains(t, llm.users[0], "Pier 27")
	assert.Equal(t, "Expo", schema.Sections[0].InputFields[0].Fields[0].InputValue)
	assert.Equal(t, 1, res.Stats.FilledFields)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"stats":{"total_fields":1,"filled_fields":1,"completion_rate":100}`)
	assert.Contains(t, string(out), `"prompt":"Extract information about 'Event Name' for event 'Expo'"`)
}

func TestCollect_PromptsAndLabels(t *testing.T) {
	schema := parse(t, `{"templateName":"T","sections":[{"sectionName":"S","inputFields":[
		{"fieldsHeading":"Venue","fields":[
			{"inputName":"","dataType":"String","fieldType":"text","helperText":["Where it happens","Include city"]},
			{"inputName":"","dataType":"String","fieldType":"text"},
			{"inputName":"Budget","dataType":"Number","fieldType":"text","prompt":"Budget for {event_name}?"}
		]},
		{"fieldsHeading":"","fields":[{"inputName":"","dataType":"String","fieldType":"text"}]}
	]}]}`)

	jobs := Collect(schema, 0, "Expo")
	require.Len(t, jobs, 4)

	assert.Equal(t, extract.Request{
		Label:  "Where it happens",
		Prompt: "Extract information about 'Venue' for event 'Expo': Where it happens Include city",
		Name:   "Venue",
	}, jobs[0].Request)
	assert.Equal(t, "Venue", jobs[1].Request.Label)
	assert.Equal(t, "Extract information about 'Venue' for event 'Expo'", jobs[1].Request.Prompt)
	assert.Equal(t, "Budget for Expo?", jobs[2].Request.Prompt)
	assert.Equal(t, domain.DataType("Number"), jobs[2].Type)
	assert.Equal(t, "Field", jobs[3].Request.Label)
	assert.Equal(t, domain.FieldLocation{Section: 0, Group: 1, Field: 0}, jobs[3].Loc)

	assert.Equal(t, jobs[0].Request.Prompt, schema.Sections[0].InputFields[0].Fields[0].Prompt)
	assert.Equal(t, "Budget for Expo?", schema.Sections[0].InputFields[0].Fields[2].Prompt)
}

func TestSynthesizePrompt_Deterministic(t *testing.T) {
	field := &domain.FormField{InputName: "Venue"}
	a := SynthesizePrompt(field, "", "Expo")
	b := SynthesizePrompt(field, "", "Expo")
	assert.Equal(t, a, b)
	assert.NotContains(t, a, "{event_name}")
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		typ  domain.DataType
		in   any
		want any
	}{
		{"array split", "Array", "Red, Blue, Green", []string{"Red", "Blue", "Green"}},
		{"array nil", "Array", "Nil", []string{}},
		{"array single", "Array", "Red", []string{"Red"}},
		{"array list", "Array", []any{"a", "b"}, []any{"a", "b"}},
		{"array number", "Array", 2.5, []string{"2.5"}},
		{"object email", "Object", "Jane Doe (jane@x.com)", domain.Contact{Name: "Jane Doe", Email: "jane@x.com"}},
		{"object name", "Object", "Jane Doe", domain.Contact{Name: "Jane Doe", Email: "Nil"}},
		{"object nil", "Object", "Nil", domain.Contact{Name: "Nil", Email: "Nil"}},
		{"object map", "Object", map[string]any{"Name": "A"}, map[string]any{"Name": "A"}},
		{"string raw", "String", 42.0, 42.0},
		{"unknown raw", "Weird", "x", "x"},
		{"date raw", "Date", "2025-05-01", "2025-05-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.typ, tt.in))
		})
	}
}

func TestIsFilled(t *testing.T) {
	for _, v := range []any{nil, "", "Nil", 0.0, false, []any{}, map[string]any{}} {
		assert.False(t, IsFilled(v), "%#v", v)
	}
	for _, v := range []any{"x", 1.0, true, []any{"a"}, map[string]any{"a": 1}} {
		assert.True(t, IsFilled(v), "%#v", v)
	}
}
