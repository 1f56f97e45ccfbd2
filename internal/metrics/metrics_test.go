package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"proctord/internal/exam"
)

func TestCounter(t *testing.T) {
	r := NewRegistry("test")
	c := r.RegisterCounter("requests_total", "Total requests", nil)

	c.Inc()
	c.Inc()
	c.Add(3)

	if c.Value() != 5 {
		t.Errorf("counter = %d, want 5", c.Value())
	}
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry("test")

	a := r.RegisterCounter("requests_total", "Total requests", nil)
	b := r.RegisterCounter("requests_total", "Total requests", nil)
	if a != b {
		t.Error("re-registering the same counter must return the existing one")
	}

	// Distinct labels are distinct series.
	c := r.RegisterCounter("requests_total", "Total requests", Labels{"type": "x"})
	if a == c {
		t.Error("different labels must yield a different series")
	}
}

func TestGauge(t *testing.T) {
	r := NewRegistry("test")
	g := r.RegisterGauge("active", "Active sessions", nil)

	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()

	if g.Value() != 4 {
		t.Errorf("gauge = %d, want 4", g.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("test")
	h := r.RegisterHistogram("latency_seconds", "Latency", nil, []float64{1, 5, 10})

	h.Observe(0.5) // le=1
	h.Observe(1)   // le=1 (boundary is inclusive)
	h.Observe(3)   // le=5
	h.Observe(100) // +Inf

	if h.Count() != 4 {
		t.Errorf("count = %d, want 4", h.Count())
	}

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		`test_latency_seconds_bucket{le="1"} 2`,
		`test_latency_seconds_bucket{le="5"} 3`,
		`test_latency_seconds_bucket{le="10"} 3`,
		`test_latency_seconds_bucket{le="+Inf"} 4`,
		`test_latency_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramObserveDuration(t *testing.T) {
	r := NewRegistry("test")
	h := r.RegisterHistogram("duration_seconds", "Duration", nil, DurationBuckets)

	h.ObserveDuration(90 * time.Second)
	if h.Count() != 1 {
		t.Errorf("count = %d, want 1", h.Count())
	}
}

func TestWritePrometheusFormat(t *testing.T) {
	r := NewRegistry("proctord")
	r.RegisterCounter("attempts_started_total", "Attempts started", nil).Inc()
	r.RegisterGauge("active_attempts", "Active attempts", nil).Set(1)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		"# HELP proctord_attempts_started_total Attempts started",
		"# TYPE proctord_attempts_started_total counter",
		"proctord_attempts_started_total 1",
		"# TYPE proctord_active_attempts gauge",
		"proctord_active_attempts 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePrometheusSharedHelpOnce(t *testing.T) {
	r := NewRegistry("proctord")
	r.RegisterCounter("violations_total", "Violations", Labels{"type": "tab_switch"}).Inc()
	r.RegisterCounter("violations_total", "Violations", Labels{"type": "devtools"}).Add(2)

	var sb strings.Builder
	r.WritePrometheus(&sb)
	out := sb.String()

	if n := strings.Count(out, "# HELP proctord_violations_total"); n != 1 {
		t.Errorf("HELP emitted %d times, want 1", n)
	}
	if !strings.Contains(out, `proctord_violations_total{type="devtools"} 2`) {
		t.Errorf("missing labelled series:\n%s", out)
	}
	if !strings.Contains(out, `proctord_violations_total{type="tab_switch"} 1`) {
		t.Errorf("missing labelled series:\n%s", out)
	}
}

func TestHTTPHandler(t *testing.T) {
	r := NewRegistry("test")
	r.RegisterCounter("hits_total", "Hits", nil).Inc()

	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "test_hits_total 1") {
		t.Errorf("body missing metric:\n%s", rec.Body.String())
	}
}

func TestCounterConcurrency(t *testing.T) {
	r := NewRegistry("test")
	c := r.RegisterCounter("concurrent_total", "Concurrent", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if c.Value() != 1000 {
		t.Errorf("counter = %d, want 1000", c.Value())
	}
}

func TestProctordMetricsLifecycle(t *testing.T) {
	r := NewRegistry("proctord")
	pm := NewProctordMetrics(r)

	pm.AttemptStarted()
	if pm.ActiveAttempts.Value() != 1 {
		t.Errorf("active = %d, want 1", pm.ActiveAttempts.Value())
	}

	a := &exam.Attempt{
		Status:    exam.StatusCompleted,
		Duration:  30 * time.Minute,
		TimeSpent: 12 * time.Minute,
		Outcome:   &exam.Outcome{Score: 8, TotalQuestions: 10, Percentage: 80, Passed: true},
	}
	pm.AttemptFinished(a, false)

	if pm.ActiveAttempts.Value() != 0 {
		t.Errorf("active = %d, want 0", pm.ActiveAttempts.Value())
	}
	if pm.AttemptsCompletedTotal.Value() != 1 {
		t.Errorf("completed = %d, want 1", pm.AttemptsCompletedTotal.Value())
	}
	if pm.AttemptsTerminatedTotal.Value() != 0 {
		t.Errorf("terminated = %d, want 0", pm.AttemptsTerminatedTotal.Value())
	}

	pm.RecordViolation(exam.ViolationTabSwitch)
	pm.RecordViolation(exam.ViolationTabSwitch)

	var sb strings.Builder
	r.WritePrometheus(&sb)
	if !strings.Contains(sb.String(), `proctord_violations_total{type="tab_switch"} 2`) {
		t.Errorf("violations series missing:\n%s", sb.String())
	}
}

func TestProctordMetricsTerminated(t *testing.T) {
	r := NewRegistry("proctord")
	pm := NewProctordMetrics(r)

	pm.AttemptStarted()
	a := &exam.Attempt{
		Status:    exam.StatusTerminated,
		Duration:  30 * time.Minute,
		TimeSpent: 5 * time.Minute,
		Outcome:   &exam.Outcome{Score: 2, TotalQuestions: 10, Percentage: 20},
	}
	pm.AttemptFinished(a, false)

	if pm.AttemptsTerminatedTotal.Value() != 1 {
		t.Errorf("terminated = %d, want 1", pm.AttemptsTerminatedTotal.Value())
	}
	if pm.AttemptsCompletedTotal.Value() != 0 {
		t.Errorf("completed = %d, want 0", pm.AttemptsCompletedTotal.Value())
	}
}
