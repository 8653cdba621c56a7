package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

type fakeSettlementRunner struct {
	mu     sync.Mutex
	inputs []usecase.SyncInput
	err    error
	last   *usecase.SyncSummary
}

func (f *fakeSettlementRunner) RunCycle(_ context.Context, input usecase.SyncInput) (usecase.SyncSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return usecase.SyncSummary{}, f.err
	}
	summary := usecase.SyncSummary{
		CycleID:   "cycle-1",
		Date:      input.Date,
		Settled:   2,
		StartedAt: time.Date(2026, 10, 17, 22, 0, 0, 0, time.UTC),
	}
	f.last = &summary
	return summary, nil
}

func (f *fakeSettlementRunner) LastSummary() (usecase.SyncSummary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return usecase.SyncSummary{}, false
	}
	return *f.last, true
}

func newTestRouter(runner SettlementRunner) http.Handler {
	handler := NewHandler(runner, logging.NewNop())
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("settlement_cycles_total 0\n"))
	})
	return NewRouter(handler, logging.NewNop(), metrics, "secret")
}

func postSync(t *testing.T, router http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/settlement-sync", strings.NewReader(body))
	if token != "" {
		req.Header.Set(internalJobTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	return body
}

func TestRunSettlementSync_RequiresToken(t *testing.T) {
	t.Parallel()

	runner := &fakeSettlementRunner{}
	router := newTestRouter(runner)

	if rec := postSync(t, router, "", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := postSync(t, router, "wrong", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if len(runner.inputs) != 0 {
		t.Fatalf("runner must not be called without a valid token")
	}
}

func TestRunSettlementSync_UnconfiguredTokenIsUnavailable(t *testing.T) {
	t.Parallel()

	router := NewRouter(NewHandler(&fakeSettlementRunner{}, nil), logging.NewNop(), nil, " ")
	rec := postSync(t, router, "anything", `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when token is not configured, got %d", rec.Code)
	}
}

func TestRunSettlementSync_Success(t *testing.T) {
	t.Parallel()

	runner := &fakeSettlementRunner{}
	router := newTestRouter(runner)

	rec := postSync(t, router, "secret", `{"date":"2026-10-17"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(runner.inputs) != 1 || runner.inputs[0].Date != "2026-10-17" {
		t.Fatalf("unexpected runner inputs: %+v", runner.inputs)
	}

	body := decodeEnvelope(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	if data["cycle_id"] != "cycle-1" || data["settled"] != float64(2) {
		t.Fatalf("unexpected summary payload: %v", data)
	}
}

func TestRunSettlementSync_EmptyBodyUsesDefaultDate(t *testing.T) {
	t.Parallel()

	runner := &fakeSettlementRunner{}
	rec := postSync(t, newTestRouter(runner), "secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(runner.inputs) != 1 || runner.inputs[0].Date != "" {
		t.Fatalf("unexpected runner inputs: %+v", runner.inputs)
	}
}

func TestRunSettlementSync_RejectsBadPayloads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"date":`},
		{name: "unknown field", body: `{"date":"2026-10-17","force":true}`},
		{name: "bad date", body: `{"date":"17/10/2026"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeSettlementRunner{}
			rec := postSync(t, newTestRouter(runner), "secret", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(runner.inputs) != 0 {
				t.Fatalf("runner must not be called for %s", tt.name)
			}
		})
	}
}

func TestRunSettlementSync_CycleInProgressIsConflict(t *testing.T) {
	t.Parallel()

	rec := postSync(t, newTestRouter(&fakeSettlementRunner{err: usecase.ErrCycleInProgress}), "secret", `{}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	errorObj, ok := decodeEnvelope(t, rec)["error"].(map[string]any)
	if !ok || errorObj["status"] != "ABORTED" {
		t.Fatalf("unexpected error envelope: %v", errorObj)
	}
}

func TestLastSettlementSync(t *testing.T) {
	t.Parallel()

	runner := &fakeSettlementRunner{}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodGet, "/v1/internal/jobs/settlement-sync/last", nil)
	req.Header.Set(internalJobTokenHeader, "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any cycle, got %d", rec.Code)
	}

	postSync(t, router, "secret", `{"date":"2026-10-16"}`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after a cycle, got %d", rec.Code)
	}
	data, _ := decodeEnvelope(t, rec)["data"].(map[string]any)
	if data["date"] != "2026-10-16" {
		t.Fatalf("unexpected last summary: %v", data)
	}
}

func TestRouter_HealthzAndMetrics(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeSettlementRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "settlement_cycles_total") {
		t.Fatalf("metrics: unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	t.Parallel()

	router := newTestRouter(panickingRunner{})
	rec := postSync(t, router, "secret", `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

type panickingRunner struct{}

func (panickingRunner) RunCycle(context.Context, usecase.SyncInput) (usecase.SyncSummary, error) {
	panic("boom")
}

func (panickingRunner) LastSummary() (usecase.SyncSummary, bool) {
	return usecase.SyncSummary{}, false
}
