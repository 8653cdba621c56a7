package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/config"
	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

func newTestConfig(providerURL string) config.Config {
	return config.Config{
		AppEnv:                 config.EnvDev,
		ServiceName:            "prediction-settlement-test",
		HTTPAddr:               "127.0.0.1:0",
		ReadTimeout:            time.Second,
		WriteTimeout:           time.Second,
		StoreDriver:            config.StoreDriverMemory,
		SportMonksBaseURL:      providerURL,
		SportMonksTimeout:      time.Second,
		SportMonksRetryBackoff: time.Millisecond,
		FixtureCacheDateTTL:    time.Minute,
		FixtureCacheStaleBound: 10 * time.Minute,
		MatchKickoffWindow:     6 * time.Hour,
		MatchSideThreshold:     0.6,
		MatchAcceptThreshold:   0.7,
		SyncSchedule:           "@every 1m",
		SyncWorkerCount:        2,
		SyncPageSize:           100,
		SyncFetchTimeout:       time.Second,
		InternalJobToken:       "secret",
		MetricsEnabled:         true,
	}
}

func emptyProvider(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/fixtures/date/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"pagination":{"has_more":false}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_MemoryStoreRunsCycle(t *testing.T) {
	var calls atomic.Int32
	provider := emptyProvider(t, &calls)

	a, err := New(context.Background(), newTestConfig(provider.URL), logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	summary, err := a.Settlement().RunCycle(context.Background(), usecase.SyncInput{})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Errors != 0 {
		t.Fatalf("expected no errors, got %+v", summary)
	}
	if summary.Voided != 1 || summary.NoMatch != 3 {
		t.Fatalf("expected the unsupported seed voided and the rest unmatched, got %+v", summary)
	}
	if calls.Load() == 0 {
		t.Fatalf("expected the provider to be queried")
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `settlement_cycles_total{status="success"} 1`) {
		t.Fatalf("metrics output missing cycle counter:\n%s", rec.Body.String())
	}
}

func TestNew_SyncEndpointRequiresToken(t *testing.T) {
	var calls atomic.Int32
	provider := emptyProvider(t, &calls)

	a, err := New(context.Background(), newTestConfig(provider.URL), logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/settlement-sync", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/settlement-sync", strings.NewReader(`{}`))
	req.Header.Set("X-Internal-Job-Token", "secret")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1")
	cfg.SyncEnabled = true
	cfg.SyncSchedule = "every now and then"

	if _, err := New(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for invalid cron schedule")
	}
}

func TestNew_RejectsUnknownStoreDriver(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1")
	cfg.StoreDriver = "sqlite"

	if _, err := New(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
}

func TestApp_ShutdownStopsScheduler(t *testing.T) {
	var calls atomic.Int32
	provider := emptyProvider(t, &calls)

	cfg := newTestConfig(provider.URL)
	cfg.SyncEnabled = true
	a, err := New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	errs := a.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-errs:
		t.Fatalf("unexpected serve error: %v", err)
	default:
	}
}
