package sportmonks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/platform/resilience"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

const fixturesPageOne = `{
  "data": [
    {
      "id": 19135003,
      "starting_at": "2026-10-17 19:00:00",
      "state_id": 5,
      "result_info": "Real Madrid won after full-time.",
      "participants": [
        {"id": 3468, "name": "Real Madrid", "meta": {"location": "home"}},
        {"id": 83, "name": "FC Barcelona", "meta": {"location": "away"}}
      ],
      "scores": [
        {"participant_id": 3468, "description": "1ST_HALF", "score": {"goals": 1, "participant": "home"}},
        {"participant_id": 83, "description": "1ST_HALF", "score": {"goals": 0, "participant": "away"}},
        {"participant_id": 3468, "description": "CURRENT", "score": {"goals": 3, "participant": "home"}},
        {"participant_id": 83, "description": "CURRENT", "score": {"goals": 1, "participant": "away"}}
      ]
    },
    {
      "id": 19135004,
      "starting_at": "2026-10-17 21:00:00",
      "state_id": 1,
      "participants": [{"id": 1, "name": "Sevilla", "meta": {"location": "home"}}]
    }
  ],
  "pagination": {"count": 2, "per_page": 50, "current_page": 1, "has_more": true}
}`

const fixturesPageTwo = `{
  "data": [
    {
      "id": 19135005,
      "starting_at": "2026-10-17 16:00:00",
      "state_id": 10,
      "participants": [
        {"id": 7, "name": "Villarreal", "meta": {"location": "home"}},
        {"id": 8, "name": "Getafe", "meta": {"location": "away"}}
      ]
    }
  ],
  "pagination": {"count": 1, "per_page": 50, "current_page": 2, "has_more": false}
}`

const fixtureDetail = `{
  "data": {
    "id": 19135003,
    "starting_at": "2026-10-17 19:00:00",
    "state": {"data": {"id": 5, "state": "FT", "developer_name": "FT"}},
    "participants": [
      {"id": 3468, "name": "Real Madrid", "meta": {"location": "home"}},
      {"id": 83, "name": "FC Barcelona", "meta": {"location": "away"}}
    ],
    "scores": [
      {"participant_id": 3468, "description": "CURRENT", "score": {"goals": 2}},
      {"participant_id": 83, "description": "CURRENT", "score": {"goals": 2}}
    ],
    "statistics": [
      {"participant_id": 3468, "type_id": 34, "data": {"value": 7}, "type": {"id": 34, "developer_name": "CORNERS"}},
      {"participant_id": 83, "type_id": 34, "data": {"value": 4}, "type": {"id": 34, "developer_name": "CORNERS"}},
      {"participant_id": 3468, "type_id": 84, "data": {"value": 2}},
      {"participant_id": 83, "type_id": 84, "data": {"value": 3}},
      {"participant_id": 83, "type_id": 83, "data": {"value": 1}},
      {"participant_id": 83, "type_id": 45, "data": {"value": 55}}
    ]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg ClientConfig) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	if cfg.Token == "" {
		cfg.Token = "secret-token"
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return NewClient(cfg)
}

func TestClient_FetchFixturesByDate_PaginatesAndMaps(t *testing.T) {
	t.Parallel()

	var pages atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fixtures/date/2026-10-17" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_token") != "secret-token" {
			t.Errorf("missing api token")
		}
		if !strings.Contains(r.URL.Query().Get("include"), "participants") {
			t.Errorf("missing include")
		}
		pages.Add(1)
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(fixturesPageTwo))
			return
		}
		_, _ = w.Write([]byte(fixturesPageOne))
	}, ClientConfig{})

	items, err := client.FetchFixturesByDate(context.Background(), "2026-10-17")
	if err != nil {
		t.Fatalf("fetch fixtures: %v", err)
	}
	if pages.Load() != 2 {
		t.Fatalf("expected 2 page requests, got=%d", pages.Load())
	}
	if len(items) != 2 {
		t.Fatalf("expected malformed fixture to be skipped, got=%d items", len(items))
	}

	first := items[0]
	if first.ExternalID != 19135003 || first.HomeTeam != "Real Madrid" || first.AwayTeam != "FC Barcelona" {
		t.Fatalf("unexpected fixture: %+v", first)
	}
	if first.Status != fixture.StatusFinished || first.Date != "2026-10-17" {
		t.Fatalf("unexpected status/date: %s %s", first.Status, first.Date)
	}
	if first.HomeGoals == nil || *first.HomeGoals != 3 || first.AwayGoals == nil || *first.AwayGoals != 1 {
		t.Fatalf("expected current score 3-1, got %v-%v", first.HomeGoals, first.AwayGoals)
	}
	if first.HalfTimeHomeGoals == nil || *first.HalfTimeHomeGoals != 1 || *first.HalfTimeAwayGoals != 0 {
		t.Fatalf("expected half-time score 1-0")
	}
	if !first.KickoffAt.Equal(time.Date(2026, 10, 17, 19, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected kickoff %s", first.KickoffAt)
	}
	if items[1].Status != fixture.StatusPostponed {
		t.Fatalf("expected postponed status, got=%s", items[1].Status)
	}
}

func TestClient_FetchFixtureByID_MapsStats(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fixtures/19135003" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(fixtureDetail))
	}, ClientConfig{})

	item, found, err := client.FetchFixtureByID(context.Background(), 19135003)
	if err != nil || !found {
		t.Fatalf("expected fixture, found=%t err=%v", found, err)
	}
	if item.Status != fixture.StatusFinished {
		t.Fatalf("expected state relation to map to FINISHED, got=%s", item.Status)
	}
	if corners, ok := item.TotalCorners(); !ok || corners != 11 {
		t.Fatalf("expected 11 corners, got=%d ok=%t", corners, ok)
	}
	if cards, ok := item.TotalCards(); !ok || cards != 6 {
		t.Fatalf("expected 6 cards, got=%d ok=%t", cards, ok)
	}

	_, found, err = client.FetchFixtureByID(context.Background(), 1)
	if err != nil || found {
		t.Fatalf("expected 404 to be not found without error, found=%t err=%v", found, err)
	}
}

func TestClient_FetchLiveFixtures(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/livescores/inplay" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data": [
			{
				"id": 19135010,
				"starting_at": "2026-10-17 18:30:00",
				"state_id": 3,
				"participants": [
					{"id": 7, "name": "Villarreal", "meta": {"location": "home"}},
					{"id": 8, "name": "Getafe", "meta": {"location": "away"}}
				],
				"scores": [
					{"participant_id": 7, "description": "CURRENT", "score": {"goals": 1}},
					{"participant_id": 8, "description": "CURRENT", "score": {"goals": 0}}
				]
			},
			{"id": 19135011, "state_id": 3, "participants": []}
		]}`))
	}, ClientConfig{})

	items, err := client.FetchLiveFixtures(context.Background())
	if err != nil {
		t.Fatalf("fetch live fixtures: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected fixture without participants to be skipped, got=%d items", len(items))
	}
	if items[0].Status != fixture.StatusLive || items[0].HomeGoals == nil || *items[0].HomeGoals != 1 {
		t.Fatalf("unexpected live fixture: %+v", items[0])
	}
}

func TestClient_RetriesTransientThenUnavailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded api_token=secret-token", http.StatusBadGateway)
	}, ClientConfig{MaxRetries: 2, CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false}})

	_, err := client.FetchLiveFixtures(context.Background())
	if !errors.Is(err, usecase.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got=%d", calls.Load())
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("error leaks api token: %v", err)
	}
}

func TestClient_MalformedPayload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": "not-a-list"`))
	}, ClientConfig{})

	_, err := client.FetchFixturesByDate(context.Background(), "2026-10-17")
	if !errors.Is(err, usecase.ErrUpstreamMalformed) {
		t.Fatalf("expected ErrUpstreamMalformed, got %v", err)
	}
}

func TestClient_CircuitOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, ClientConfig{CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: time.Minute}})

	for i := 0; i < 4; i++ {
		_, err := client.FetchLiveFixtures(context.Background())
		if !errors.Is(err, usecase.ErrUpstreamUnavailable) {
			t.Fatalf("call %d: expected ErrUpstreamUnavailable, got %v", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got=%d", calls.Load())
	}
}

func TestClient_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.FetchFixturesByDate(context.Background(), "17/10/2026"); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
	if _, _, err := client.FetchFixtureByID(context.Background(), 0); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestMapFixtureStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stateID int64
		info    string
		want    string
	}{
		{stateID: 1, want: fixture.StatusScheduled},
		{stateID: 3, want: fixture.StatusLive},
		{stateID: 5, want: fixture.StatusFinished},
		{stateID: 14, want: fixture.StatusFinished},
		{stateID: 7, want: fixture.StatusFinished},
		{stateID: 8, want: fixture.StatusFinished},
		{stateID: 10, want: fixture.StatusPostponed},
		{stateID: 12, want: fixture.StatusCancelled},
		{stateID: 15, want: fixture.StatusCancelled},
		{stateID: 17, want: fixture.StatusCancelled},
		{stateID: 11, want: fixture.StatusLive},
		{stateID: 18, want: fixture.StatusLive},
		{stateID: 13, want: fixture.StatusScheduled},
		{stateID: 16, want: fixture.StatusScheduled},
		{stateID: 19, want: fixture.StatusScheduled},
		{stateID: 25, want: fixture.StatusScheduled},
		{info: "Match abandoned", want: fixture.StatusCancelled},
		{info: "Game finished after penalties", want: fixture.StatusFinished},
		{info: "", want: fixture.StatusScheduled},
	}

	for _, tc := range tests {
		if got := mapFixtureStatus(tc.stateID, tc.info); got != tc.want {
			t.Fatalf("mapFixtureStatus(%d, %q): want %s got %s", tc.stateID, tc.info, tc.want, got)
		}
	}
}

func TestMapFixtureStatus_OnlyTerminalStatesSettle(t *testing.T) {
	t.Parallel()

	for _, stateID := range []int64{11, 13, 16, 18, 19, 25} {
		status := mapFixtureStatus(stateID, "")
		if fixture.IsFinishedStatus(status) || fixture.IsCancelledLikeStatus(status) {
			t.Fatalf("state %d mapped to settling status %s", stateID, status)
		}
	}
	for _, stateID := range []int64{7, 8} {
		if status := mapFixtureStatus(stateID, ""); !fixture.IsFinishedStatus(status) {
			t.Fatalf("state %d must be finished, got %s", stateID, status)
		}
	}
}
