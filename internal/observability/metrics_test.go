package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	t.Parallel()
	m := NewMetrics()

	m.ObserveAPI("GET", "/health", "200", 5*time.Millisecond)
	m.IncTransition("problem", "completed")
	m.IncTransition("problem", "completed")
	m.ObserveJob("solution_solve", "succeeded", time.Second)
	m.SetQueueDepth(3)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("problem", "completed")); got != 2 {
		t.Fatalf("transitions: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 3 {
		t.Fatalf("queue depth: want=3 got=%v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{
		`pythagon_api_requests_total{method="GET",route="/health",status="200"} 1`,
		"pythagon_job_queue_depth 3",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.IncTransition("solution", "failed")
	m.ObserveJob("x", "failed", time.Millisecond)
	m.SetQueueDepth(1)
	m.ApiInflightInc()
	m.ApiInflightDec()
	if m.Registry() != nil {
		t.Fatalf("nil metrics returned a registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want=%d got=%d", http.StatusNotFound, rec.Code)
	}
}
