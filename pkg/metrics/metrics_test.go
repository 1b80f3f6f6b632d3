package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("test_total", "A test counter")
	c.Inc()
	c.Inc()
	c.Add(5)
	if c.Value() != 7 {
		t.Fatalf("expected 7, got %d", c.Value())
	}
	if r.Counter("test_total", "") != c {
		t.Fatal("expected same counter instance")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("test_gauge", "")
	g.Set(42)
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 43 {
		t.Fatalf("expected 43, got %d", g.Value())
	}
}

func TestHistogram_Render(t *testing.T) {
	r := New()
	h := r.Histogram("test_seconds", "A test histogram", []float64{1, 0.125, 0.5})
	for _, v := range []float64{0.0625, 0.125, 0.25, 0.75, 2} {
		h.Observe(v)
	}
	if h.Count() != 5 {
		t.Fatalf("expected 5 observations, got %d", h.Count())
	}

	out := r.Render()
	for _, want := range []string{
		"# HELP test_seconds A test histogram\n",
		"# TYPE test_seconds histogram\n",
		`test_seconds_bucket{le="0.125"} 2` + "\n",
		`test_seconds_bucket{le="0.5"} 3` + "\n",
		`test_seconds_bucket{le="1"} 4` + "\n",
		`test_seconds_bucket{le="+Inf"} 5` + "\n",
		"test_seconds_sum 3.1875\n",
		"test_seconds_count 5\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHistogram_LabelledSeries(t *testing.T) {
	r := New()
	r.Histogram(WithLabels("lat_seconds", "route", "fill"), "", []float64{1}).Observe(0.5)
	out := r.Render()
	for _, want := range []string{
		`lat_seconds_bucket{route="fill",le="1"} 1`,
		`lat_seconds_sum{route="fill"} 0.5`,
		`lat_seconds_count{route="fill"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHistogramSince(t *testing.T) {
	h := New().Histogram("since_seconds", "", nil)
	h.Since(time.Now().Add(-50 * time.Millisecond))
	if h.Count() != 1 {
		t.Fatalf("expected 1 observation, got %d", h.Count())
	}
}

func TestWithLabels(t *testing.T) {
	tests := []struct {
		kvs  []string
		want string
	}{
		{nil, "m"},
		{[]string{"a"}, "m"},
		{[]string{"a", "1"}, `m{a="1"}`},
		{[]string{"a", "1", "b", "2"}, `m{a="1",b="2"}`},
	}
	for _, tt := range tests {
		if got := WithLabels("m", tt.kvs...); got != tt.want {
			t.Errorf("WithLabels(%v) = %q, want %q", tt.kvs, got, tt.want)
		}
	}
}

func TestRender_OrderAndLabels(t *testing.T) {
	r := New()
	r.Counter(WithLabels("calls_total", "outcome", "ok"), "Calls.").Add(3)
	r.Counter(WithLabels("calls_total", "outcome", "error"), "").Inc()
	r.Gauge("inflight", "In flight.").Set(2)

	want := "# HELP calls_total Calls.\n" +
		"# TYPE calls_total counter\n" +
		`calls_total{outcome="error"} 1` + "\n" +
		`calls_total{outcome="ok"} 3` + "\n" +
		"# HELP inflight In flight.\n" +
		"# TYPE inflight gauge\n" +
		"inflight 2\n"
	if got := r.Render(); got != want {
		t.Fatalf("Render:\n%s\nwant:\n%s", got, want)
	}
}

func TestRegistry_KindMismatchPanics(t *testing.T) {
	r := New()
	r.Counter("dup", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("dup", "")
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("req_total", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "req_total 1") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestFillMetrics(t *testing.T) {
	r := New()
	m := NewFillMetrics(r)
	m.FillDone(10, 7, 2*time.Second)
	m.FillDone(4, 0, time.Second)
	m.LLMCall("ok")
	m.LLMCall("ok")
	m.LLMCall("invalid_json")
	done := m.UploadStarted()

	out := r.Render()
	for _, want := range []string{
		"eventbrief_fills_total 2\n",
		"eventbrief_fields_total 14\n",
		"eventbrief_fields_filled_total 7\n",
		`eventbrief_llm_calls_total{outcome="ok"} 2`,
		`eventbrief_llm_calls_total{outcome="invalid_json"} 1`,
		"eventbrief_fill_duration_seconds_count 2\n",
		"eventbrief_uploads_in_flight 1\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	done()
	if !strings.Contains(r.Render(), "eventbrief_uploads_in_flight 0\n") {
		t.Fatal("expected upload gauge to drop back to 0")
	}
}
