package metrics

import "time"

// Metric names exported by the autofill service.
const (
	FillsTotal        = "eventbrief_fills_total"
	FieldsTotal       = "eventbrief_fields_total"
	FieldsFilledTotal = "eventbrief_fields_filled_total"
	LLMCallsTotal     = "eventbrief_llm_calls_total"
	FillDuration      = "eventbrief_fill_duration_seconds"
	UploadsInFlight   = "eventbrief_uploads_in_flight"
)

// FillMetrics records fill and model call outcomes.
type FillMetrics struct {
	reg      *Registry
	fills    *Counter
	fields   *Counter
	filled   *Counter
	duration *Histogram
	uploads  *Gauge
}

// NewFillMetrics registers the fill metrics on r.
func NewFillMetrics(r *Registry) *FillMetrics {
	return &FillMetrics{
		reg:      r,
		fills:    r.Counter(FillsTotal, "Completed schema fills."),
		fields:   r.Counter(FieldsTotal, "Fields submitted for extraction."),
		filled:   r.Counter(FieldsFilledTotal, "Fields that received a value."),
		duration: r.Histogram(FillDuration, "Wall time of a schema fill.", nil),
		uploads:  r.Gauge(UploadsInFlight, "Auto-fill requests holding uploaded files."),
	}
}

// FillDone records one finished fill.
func (m *FillMetrics) FillDone(total, filled int, elapsed time.Duration) {
	m.fills.Inc()
	m.fields.Add(int64(total))
	m.filled.Add(int64(filled))
	m.duration.Observe(elapsed.Seconds())
}

// LLMCall counts one model call by outcome.
func (m *FillMetrics) LLMCall(outcome string) {
	m.reg.Counter(WithLabels(LLMCallsTotal, "outcome", outcome), "Language model calls by outcome.").Inc()
}

// UploadStarted marks a request as holding uploads; call the returned func when they are removed.
func (m *FillMetrics) UploadStarted() func() {
	m.uploads.Inc()
	return m.uploads.Dec
}
