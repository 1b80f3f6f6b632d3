// Package extract asks the language model for field values in small
// batches, retrying each batch and defaulting to "Nil" when it fails.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/rag"
	"github.com/WessleyAI/eventbrief/pkg/fn"
	"github.com/WessleyAI/eventbrief/pkg/resilience"
)

const sanitizeLimit = 2000

// ErrInvalidReply is returned when the model reply is not a JSON object.
var ErrInvalidReply = errors.New("extract: reply is not a JSON object")

// Completer sends one system/user exchange to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Corpus is an ingestion session as the extractor sees it.
type Corpus interface {
	rag.Corpus
	HasIndex() bool
}

// Request describes one field to extract.
type Request struct {
	Label  string // shown to the model
	Prompt string
	Name   string // retrieval name: inputName, else group heading
}

// CallRecorder observes model call outcomes.
type CallRecorder interface {
	LLMCall(outcome string)
}

// Call outcomes passed to CallRecorder.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeInvalidJSON = "invalid_json"
	OutcomeCircuitOpen = "circuit_open"
)

// Options configures an Extractor.
type Options struct {
	BatchSize   int
	MaxAttempts int
	Backoff     fn.BackoffFunc
	BatchDelay  time.Duration
}

// DefaultOptions returns batches of 3, three attempts with 1s and 2s
// backoff, and half a second between batches.
func DefaultOptions() Options {
	return Options{
		BatchSize:   3,
		MaxAttempts: 3,
		Backoff:     fn.Exponential(time.Second, 30*time.Second),
		BatchDelay:  500 * time.Millisecond,
	}
}

// Deps holds the collaborators of an Extractor. Only LLM and Selector are required.
type Deps struct {
	LLM      Completer
	Selector *rag.Selector
	Limiter  *resilience.Limiter
	Breaker  *resilience.Breaker
	Metrics  CallRecorder
	Logger   *slog.Logger
}

// Extractor turns field requests into extracted values.
type Extractor struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

// New creates an Extractor. Zero BatchSize, MaxAttempts and Backoff take
// the defaults; a zero BatchDelay means no delay.
func New(deps Deps, opts Options) *Extractor {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = def.Backoff
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Selector == nil {
		deps.Selector = rag.NewSelector(rag.DefaultOptions(), deps.Logger)
	}
	return &Extractor{deps: deps, opts: opts, log: deps.Logger}
}

// batch is one slice of requests with their global starting index.
type batch struct {
	start int
	reqs  []Request
}

// Extract returns a value for every request, keyed "0".."n-1". Values the
// model could not supply are "Nil". The only error returned is context
// cancellation; the partial result is still complete.
func (e *Extractor) Extract(ctx context.Context, c Corpus, section string, reqs []Request) (map[string]any, error) {
	results := make(map[string]any, len(reqs))
	for i := range reqs {
		results[strconv.Itoa(i)] = domain.Nil
	}
	if len(reqs) == 0 {
		return results, nil
	}
	if !c.HasIndex() {
		e.log.Warn("extract: no documents indexed", "section", section)
		return results, nil
	}

	batches := fn.Chunk(reqs, e.opts.BatchSize)
	run := fn.TracedStage("extract.batch", e.batchStage(c, section))
	filled := 0
	for n, reqBatch := range batches {
		b := batch{start: n * e.opts.BatchSize, reqs: reqBatch}
		got, err := run(ctx, b).Unwrap()
		switch {
		case err != nil && ctx.Err() != nil:
			return results, ctx.Err()
		case err != nil:
			e.log.Warn("extract: batch failed", "section", section, "batch", n+1, "of", len(batches), "err", truncate(err.Error(), 200))
		default:
			for i := range b.reqs {
				id := strconv.Itoa(b.start + i)
				if v, ok := got[id]; ok {
					if v == nil {
						v = domain.Nil
					}
					results[id] = v
				}
			}
		}

		if n < len(batches)-1 && e.opts.BatchDelay > 0 {
			if err := fn.Sleep(ctx, e.opts.BatchDelay); err != nil {
				return results, err
			}
		}
	}

	for _, v := range results {
		if s, ok := v.(string); !ok || (s != "" && s != domain.Nil) {
			filled++
		}
	}
	e.log.Info("extract: section done", "section", section, "fields", len(reqs), "filled", filled)
	return results, nil
}

func (e *Extractor) batchStage(c Corpus, section string) fn.Stage[batch, map[string]any] {
	return func(ctx context.Context, b batch) fn.Result[map[string]any] {
		tasks := make([]Task, len(b.reqs))
		fields := make([]rag.Field, len(b.reqs))
		for i, r := range b.reqs {
			tasks[i] = Task{
				ID:    strconv.Itoa(b.start + i),
				Label: rag.Sanitize(label(r), sanitizeLimit),
				Task:  rag.Sanitize(r.Prompt, sanitizeLimit),
			}
			fields[i] = rag.Field{Name: r.Name, Prompt: r.Prompt}
		}

		opts := fn.RetryOpts{
			MaxAttempts: e.opts.MaxAttempts,
			Backoff:     e.opts.Backoff,
			Retryable:   func(err error) bool { return !errors.Is(err, resilience.ErrCircuitOpen) },
			OnRetry: func(attempt int, err error, wait time.Duration) {
				e.log.Debug("extract: retrying batch", "section", section, "attempt", attempt, "wait", wait, "err", truncate(err.Error(), 200))
			},
		}
		return fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[map[string]any] {
			return e.attempt(ctx, c, section, fields, tasks)
		})
	}
}

// attempt selects context, calls the model once and parses its reply.
func (e *Extractor) attempt(ctx context.Context, c Corpus, section string, fields []rag.Field, tasks []Task) fn.Result[map[string]any] {
	docContext, err := e.deps.Selector.Context(ctx, c, section, fields)
	if err != nil {
		return fn.Err[map[string]any](err)
	}
	user, err := UserPrompt(docContext, tasks)
	if err != nil {
		return fn.Err[map[string]any](err)
	}

	reply, err := e.complete(ctx, SystemPrompt(section), user)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			e.record(OutcomeCircuitOpen)
		} else {
			e.record(OutcomeError)
		}
		return fn.Err[map[string]any](err)
	}
	parsed, err := ParseReply(reply)
	if err != nil {
		e.record(OutcomeInvalidJSON)
		e.log.Warn("extract: invalid reply", "section", section, "reply", truncate(reply, 100))
		return fn.Err[map[string]any](err)
	}
	e.record(OutcomeOK)
	return fn.Ok(parsed)
}

func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	if e.deps.Limiter != nil {
		if err := e.deps.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("extract: rate limit: %w", err)
		}
	}
	if e.deps.Breaker == nil {
		return e.deps.LLM.Complete(ctx, system, user)
	}
	var reply string
	err := e.deps.Breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		reply, err = e.deps.LLM.Complete(ctx, system, user)
		return err
	})
	return reply, err
}

func (e *Extractor) record(outcome string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.LLMCall(outcome)
	}
}

// label picks what the model sees as the field name.
func label(r Request) string {
	switch {
	case r.Label != "":
		return r.Label
	case r.Name != "":
		return r.Name
	default:
		return "Narrative Summary"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
