// Package fill walks an event schema section by section, asks the extractor
// for every field and writes the coerced values back in place.
package fill

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/extract"
	"github.com/WessleyAI/eventbrief/pkg/fn"
)

// DefaultSectionDelay is the pause between two processed sections.
const DefaultSectionDelay = time.Second

// Extractor produces a value for every request, keyed "0".."n-1".
type Extractor interface {
	Extract(ctx context.Context, c extract.Corpus, section string, reqs []extract.Request) (map[string]any, error)
}

// Recorder observes finished fills.
type Recorder interface {
	FillDone(total, filled int, elapsed time.Duration)
}

// Job pairs one extraction request with the field it fills.
type Job struct {
	Request extract.Request
	Loc     domain.FieldLocation
	Type    domain.DataType
}

// Stats summarises a fill.
type Stats struct {
	TotalFields    int     `json:"total_fields"`
	FilledFields   int     `json:"filled_fields"`
	CompletionRate float64 `json:"completion_rate"`
}

// Result is the filled schema and its stats.
type Result struct {
	Data  *domain.EventSchema `json:"data"`
	Stats Stats               `json:"stats"`
}

// Options configures a Filler. A negative SectionDelay disables the pause.
type Options struct {
	SectionDelay time.Duration
}

// Deps holds the collaborators of a Filler.
type Deps struct {
	Extractor Extractor
	Metrics   Recorder
	Logger    *slog.Logger
}

// Filler fills schemas.
type Filler struct {
	deps  Deps
	delay time.Duration
	log   *slog.Logger
}

// New creates a Filler. A zero SectionDelay takes DefaultSectionDelay.
func New(deps Deps, opts Options) *Filler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	delay := opts.SectionDelay
	switch {
	case delay == 0:
		delay = DefaultSectionDelay
	case delay < 0:
		delay = 0
	}
	return &Filler{deps: deps, delay: delay, log: deps.Logger}
}

// Fill mutates schema in place and returns it with fill stats. A failing
// section leaves its fields "Nil" and does not stop the fill. Only context
// cancellation is returned as an error.
func (f *Filler) Fill(ctx context.Context, c extract.Corpus, schema *domain.EventSchema, eventName string) (*Result, error) {
	start := time.Now()
	var total, filled int
	processed := 0

	for si := range schema.Sections {
		jobs := Collect(schema, si, eventName)
		if len(jobs) == 0 {
			continue
		}
		if processed > 0 && f.delay > 0 {
			if err := fn.Sleep(ctx, f.delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		processed++
		total += len(jobs)

		name := schema.Sections[si].SectionName
		n, err := f.section(ctx, c, schema, name, jobs)
		if err != nil {
			f.log.Error("fill: section failed", "section", name, "err", truncate(err.Error(), 200))
			for _, j := range jobs {
				schema.Field(j.Loc).InputValue = domain.Nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		filled += n
	}

	stats := Stats{TotalFields: total, FilledFields: filled}
	if total > 0 {
		stats.CompletionRate = float64(filled) / float64(total) * 100
	}
	elapsed := time.Since(start)
	if f.deps.Metrics != nil {
		f.deps.Metrics.FillDone(total, filled, elapsed)
	}
	f.log.Info("fill: done", "sections", processed, "fields", total, "filled", filled, "duration", elapsed)
	return &Result{Data: schema, Stats: stats}, nil
}

// section extracts and writes back one section, returning how many fields
// were filled. Panics are reported as errors.
func (f *Filler) section(ctx context.Context, c extract.Corpus, schema *domain.EventSchema, name string, jobs []Job) (filled int, err error) {
	defer func() {
		if r := recover(); r != nil {
			filled, err = 0, fmt.Errorf("fill: section %q panicked: %v", name, r)
		}
	}()

	reqs := fn.Map(jobs, func(j Job) extract.Request { return j.Request })
	values, err := f.deps.Extractor.Extract(ctx, c, name, reqs)
	if err != nil {
		return 0, fmt.Errorf("fill: extract %q: %w", name, err)
	}

	for i, j := range jobs {
		v, ok := values[strconv.Itoa(i)]
		if !ok {
			v = domain.Nil
		}
		if IsFilled(v) {
			filled++
		}
		schema.Field(j.Loc).InputValue = Coerce(j.Type, v)
	}
	return filled, nil
}

// Collect builds the jobs for one section in field order. Fields without a
// prompt get a synthesized one, and every prompt has {event_name} replaced;
// the result is written back to the field.
func Collect(schema *domain.EventSchema, section int, eventName string) []Job {
	var jobs []Job
	sec := &schema.Sections[section]
	for gi := range sec.InputFields {
		g := &sec.InputFields[gi]
		for fi := range g.Fields {
			field := &g.Fields[fi]
			name := fieldName(field, g.FieldsHeading)
			field.Prompt = SynthesizePrompt(field, g.FieldsHeading, eventName)

			label := field.InputName
			if label == "" && len(field.HelperText) > 0 {
				label = field.HelperText[0]
			}
			if label == "" {
				label = name
			}
			jobs = append(jobs, Job{
				Request: extract.Request{Label: label, Prompt: field.Prompt, Name: name},
				Loc:     domain.FieldLocation{Section: section, Group: gi, Field: fi},
				Type:    field.DataType,
			})
		}
	}
	return jobs
}

// SynthesizePrompt returns the field's prompt, or a generated one when it
// has none, with {event_name} replaced.
func SynthesizePrompt(field *domain.FormField, heading, eventName string) string {
	prompt := field.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Extract information about '%s' for event '{event_name}'", fieldName(field, heading))
		if len(field.HelperText) > 0 {
			prompt += ": " + strings.Join(field.HelperText, " ")
		}
	}
	return strings.ReplaceAll(prompt, "{event_name}", eventName)
}

func fieldName(field *domain.FormField, heading string) string {
	switch {
	case field.InputName != "":
		return field.InputName
	case heading != "":
		return heading
	default:
		return "Field"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
