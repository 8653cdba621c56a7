package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	usecasemock "github.com/riskibarqy/prediction-settlement/internal/mocks/usecase"
	"github.com/riskibarqy/prediction-settlement/internal/platform/cache"
	"github.com/stretchr/testify/mock"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memorySnapshots struct {
	mu    sync.Mutex
	items map[int64]fixture.Fixture
}

func (m *memorySnapshots) GetFixture(_ context.Context, fixtureID int64) (fixture.Fixture, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[fixtureID]
	return item, ok, nil
}

func (m *memorySnapshots) PutFixture(_ context.Context, item fixture.Fixture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[int64]fixture.Fixture)
	}
	m.items[item.ExternalID] = item.Clone()
	return nil
}

func newTestFeed(t *testing.T, opts ...FixtureFeedOption) (*FixtureFeed, *usecasemock.FixtureProvider, *manualClock) {
	t.Helper()

	clock := &manualClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	cfg := FixtureFeedConfig{DateTTL: time.Minute, StaleBound: 10 * time.Minute, FetchTimeout: time.Second}
	store := cache.NewStore(cfg.DateTTL, cache.WithRetention(cfg.StaleBound), cache.WithClock(clock.Now))
	provider := usecasemock.NewFixtureProvider(t)
	return NewFixtureFeed(provider, store, cfg, nil, opts...), provider, clock
}

func TestFixtureFeed_FetchFixturesByDate_ServesCacheWithinTTL(t *testing.T) {
	t.Parallel()

	feed, provider, clock := newTestFeed(t)
	provider.On("FetchFixturesByDate", mock.Anything, "2026-10-17").
		Return([]fixture.Fixture{madridBarcelona(fixture.StatusScheduled, 0, 0)}, nil).Once()

	first, err := feed.FetchFixturesByDate(context.Background(), "2026-10-17")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	first.Fixtures[0].HomeTeam = "mutated"

	clock.Advance(30 * time.Second)
	second, err := feed.FetchFixturesByDate(context.Background(), "2026-10-17")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Stale {
		t.Fatalf("cache hit must not be stale")
	}
	if second.Fixtures[0].HomeTeam != "Real Madrid" {
		t.Fatalf("cached entry was mutated through a returned copy: %q", second.Fixtures[0].HomeTeam)
	}
}

func TestFixtureFeed_FetchFixturesByDate_StaleFallbackWithinBound(t *testing.T) {
	t.Parallel()

	feed, provider, clock := newTestFeed(t)
	provider.On("FetchFixturesByDate", mock.Anything, "2026-10-17").
		Return([]fixture.Fixture{madridBarcelona(fixture.StatusLive, 1, 0)}, nil).Once()
	provider.On("FetchFixturesByDate", mock.Anything, "2026-10-17").
		Return(nil, errors.New("502 bad gateway")).Twice()

	if _, err := feed.FetchFixturesByDate(context.Background(), "2026-10-17"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	clock.Advance(5 * time.Minute)
	got, err := feed.FetchFixturesByDate(context.Background(), "2026-10-17")
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if !got.Stale || len(got.Fixtures) != 1 {
		t.Fatalf("expected stale list with one fixture, got %+v", got)
	}

	clock.Advance(10 * time.Minute)
	_, err = feed.FetchFixturesByDate(context.Background(), "2026-10-17")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable past the stale bound, got %v", err)
	}
}

func TestFixtureFeed_FetchFixturesByDate_PropagatesMalformed(t *testing.T) {
	t.Parallel()

	feed, provider, _ := newTestFeed(t)
	provider.On("FetchFixturesByDate", mock.Anything, "2026-10-17").
		Return(nil, ErrUpstreamMalformed).Once()

	_, err := feed.FetchFixturesByDate(context.Background(), "2026-10-17")
	if !errors.Is(err, ErrUpstreamMalformed) {
		t.Fatalf("expected ErrUpstreamMalformed, got %v", err)
	}
}

func TestFixtureFeed_FetchFixtureDetail_FinishedNeverExpires(t *testing.T) {
	t.Parallel()

	snapshots := &memorySnapshots{}
	feed, provider, clock := newTestFeed(t, WithSnapshotStore(snapshots))
	final := madridBarcelona(fixture.StatusFinished, 3, 1)
	provider.On("FetchFixtureByID", mock.Anything, int64(101)).Return(final, true, nil).Once()

	if _, found, err := feed.FetchFixtureDetail(context.Background(), 101); err != nil || !found {
		t.Fatalf("first detail fetch: found=%v err=%v", found, err)
	}

	clock.Advance(24 * time.Hour)
	got, found, err := feed.FetchFixtureDetail(context.Background(), 101)
	if err != nil || !found {
		t.Fatalf("cached detail fetch: found=%v err=%v", found, err)
	}
	if total, ok := got.Fixture.TotalGoals(); got.Stale || !ok || total != 4 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if _, ok := snapshots.items[101]; !ok {
		t.Fatalf("finished fixture should be written to the shared tier")
	}
}

func TestFixtureFeed_FetchFixtureDetail_ReadsSharedTier(t *testing.T) {
	t.Parallel()

	snapshots := &memorySnapshots{}
	_ = snapshots.PutFixture(context.Background(), madridBarcelona(fixture.StatusFinished, 2, 2))
	feed, provider, _ := newTestFeed(t, WithSnapshotStore(snapshots))

	got, found, err := feed.FetchFixtureDetail(context.Background(), 101)
	if err != nil || !found {
		t.Fatalf("shared detail fetch: found=%v err=%v", found, err)
	}
	if total, ok := got.Fixture.TotalGoals(); !ok || total != 4 {
		t.Fatalf("unexpected fixture from shared tier: %+v", got.Fixture)
	}
	provider.AssertNotCalled(t, "FetchFixtureByID", mock.Anything, mock.Anything)
}

func TestFixtureFeed_FetchFixtureDetail_NotFound(t *testing.T) {
	t.Parallel()

	feed, provider, _ := newTestFeed(t)
	provider.On("FetchFixtureByID", mock.Anything, int64(404)).Return(fixture.Fixture{}, false, nil).Once()

	_, found, err := feed.FetchFixtureDetail(context.Background(), 404)
	if err != nil {
		t.Fatalf("detail fetch: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestFixtureFeed_FetchFixtureDetail_StaleLiveAfterFailure(t *testing.T) {
	t.Parallel()

	feed, provider, clock := newTestFeed(t)
	live := madridBarcelona(fixture.StatusLive, 1, 1)
	provider.On("FetchFixtureByID", mock.Anything, int64(101)).Return(live, true, nil).Once()
	provider.On("FetchFixtureByID", mock.Anything, int64(101)).
		Return(fixture.Fixture{}, false, errors.New("timeout")).Once()

	if _, _, err := feed.FetchFixtureDetail(context.Background(), 101); err != nil {
		t.Fatalf("prime detail: %v", err)
	}
	clock.Advance(2 * time.Minute)

	got, found, err := feed.FetchFixtureDetail(context.Background(), 101)
	if err != nil || !found {
		t.Fatalf("expected stale fallback: found=%v err=%v", found, err)
	}
	if !got.Stale {
		t.Fatalf("expected snapshot flagged stale")
	}
}

func TestFixtureFeed_RefreshLive_WarmsDetailCache(t *testing.T) {
	t.Parallel()

	feed, provider, _ := newTestFeed(t)
	live := madridBarcelona(fixture.StatusLive, 0, 0)
	provider.On("FetchLiveFixtures", mock.Anything).Return([]fixture.Fixture{live}, nil).Once()

	items, err := feed.RefreshLive(context.Background())
	if err != nil {
		t.Fatalf("refresh live: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one live fixture, got %d", len(items))
	}

	got, found, err := feed.FetchFixtureDetail(context.Background(), 101)
	if err != nil || !found {
		t.Fatalf("warm detail: found=%v err=%v", found, err)
	}
	if got.Fixture.Status != fixture.StatusLive {
		t.Fatalf("unexpected status: %s", got.Fixture.Status)
	}
	provider.AssertNotCalled(t, "FetchFixtureByID", mock.Anything, mock.Anything)
}
