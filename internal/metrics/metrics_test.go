package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAction(t *testing.T) {
	m := New()
	m.ObserveAction("ping", "success", 5*time.Millisecond)
	m.ObserveAction("ping", "success", 5*time.Millisecond)
	m.ObserveAction("ping", "error", time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("ping", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAction("x", "y", time.Second)
	m.ObserveLockWait("k", time.Second, true)
	m.CacheLookup("hit")
	m.Notice("sent")
	m.SecurityEvent("rate_limited")
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveLockWait("fees/A1", 10*time.Millisecond, true)
	m.CacheLookup("hit")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"scuola_lock_wait_seconds", "scuola_client_cache_lookups_total", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("missing %s in metrics output", name)
		}
	}
}
