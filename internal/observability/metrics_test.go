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

func TestMetrics_CountersAndGauges(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveCycle("completed", 2*time.Second)
	m.ObserveCycle("completed", time.Second)
	m.AddPredictionOutcome("settled", 3)
	m.AddPredictionOutcome("settled", 0)
	m.ObserveUpstreamRequest("fixtures_by_date", "ok", 150*time.Millisecond)
	m.SetCircuitState("sportmonks", "open")
	m.ObserveCacheLookup("date", "hit")

	if got := testutil.ToFloat64(m.cycles.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected 2 completed cycles, got %v", got)
	}
	if got := testutil.ToFloat64(m.predictionOutcomes.WithLabelValues("settled")); got != 3 {
		t.Fatalf("expected 3 settled predictions, got %v", got)
	}
	if got := testutil.ToFloat64(m.upstreamRequests.WithLabelValues("fixtures_by_date", "ok")); got != 1 {
		t.Fatalf("expected 1 upstream request, got %v", got)
	}
	if got := testutil.ToFloat64(m.circuitState.WithLabelValues("sportmonks")); got != 2 {
		t.Fatalf("expected open circuit gauge 2, got %v", got)
	}

	m.SetCircuitState("sportmonks", "half_open")
	if got := testutil.ToFloat64(m.circuitState.WithLabelValues("sportmonks")); got != 1 {
		t.Fatalf("expected half open circuit gauge 1, got %v", got)
	}
	m.SetCircuitState("sportmonks", "closed")
	if got := testutil.ToFloat64(m.circuitState.WithLabelValues("sportmonks")); got != 0 {
		t.Fatalf("expected closed circuit gauge 0, got %v", got)
	}
}

func TestMetrics_HandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveCacheLookup("detail", "stale")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `settlement_fixture_cache_lookups_total{kind="detail",result="stale"} 1`) {
		t.Fatalf("metrics output missing cache lookup series:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics output missing go collector")
	}
}
