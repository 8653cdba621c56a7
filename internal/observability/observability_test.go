package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riskibarqy/prediction-settlement/internal/config"
	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
)

func TestInitUptrace_Disabled(t *testing.T) {
	cfg := config.Config{
		UptraceEnabled: false,
		ServiceName:    "prediction-settlement",
		ServiceVersion: "dev",
		AppEnv:         config.EnvDev,
	}

	shutdown, err := InitUptrace(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("init uptrace: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown uptrace: %v", err)
	}
}

func TestInitUptrace_EnabledWithoutDSNIsNoop(t *testing.T) {
	cfg := config.Config{UptraceEnabled: true, UptraceDSN: "  "}

	shutdown, err := InitUptrace(cfg, nil)
	if err != nil {
		t.Fatalf("init uptrace: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown uptrace: %v", err)
	}
}

func TestInitPyroscope_Disabled(t *testing.T) {
	stop, err := InitPyroscope(config.Config{}, nil)
	if err != nil {
		t.Fatalf("init pyroscope: %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("stop pyroscope: %v", err)
	}
}

func TestStartPprofServer_Disabled(t *testing.T) {
	stop, err := StartPprofServer(config.Config{}, nil)
	if err != nil {
		t.Fatalf("start pprof: %v", err)
	}
	if err := stop(context.Background()); err != nil {
		t.Fatalf("stop disabled pprof: %v", err)
	}
}

func TestPprofMux_ServesNamedProfiles(t *testing.T) {
	mux := newPprofMux()
	for _, path := range []string{"/debug/pprof/", "/debug/pprof/heap", "/debug/pprof/goroutine"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, rec.Code)
		}
	}
}

func TestPyroscopeConfig_TagsAndProfiles(t *testing.T) {
	cfg := config.Config{
		AppEnv:                 config.EnvStage,
		ServiceName:            "prediction-settlement",
		ServiceVersion:         "1.2.0",
		StoreDriver:            config.StoreDriverPostgres,
		PyroscopeAppName:       "prediction-settlement",
		PyroscopeServerAddress: "http://pyroscope:4040",
	}

	got := pyroscopeConfig(cfg, logging.NewNop())
	if got.ApplicationName != "prediction-settlement" || got.ServerAddress != "http://pyroscope:4040" {
		t.Fatalf("unexpected pyroscope target: %+v", got)
	}
	if got.Tags["env"] != config.EnvStage || got.Tags["store_driver"] != config.StoreDriverPostgres || got.Tags["version"] != "1.2.0" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if len(got.ProfileTypes) != len(workerProfileTypes) {
		t.Fatalf("unexpected profile types: %v", got.ProfileTypes)
	}
}
