package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/platform/cache"
	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
	"github.com/riskibarqy/prediction-settlement/internal/platform/resilience"
)

const (
	fixtureDateKeyPrefix   = "fixtures:date:"
	fixtureDetailKeyPrefix = "fixtures:id:"

	defaultFinishedRetention = 72 * time.Hour
)

type FixtureFeedConfig struct {
	DateTTL      time.Duration
	DetailTTL    time.Duration
	StaleBound   time.Duration
	FetchTimeout time.Duration

	// FinishedRetention bounds how long finished fixtures stay in the local cache.
	FinishedRetention time.Duration
}

// FeedMetrics records cache lookups by kind (date, detail) and result (hit,
// miss, stale, shared). It is optional.
type FeedMetrics interface {
	ObserveCacheLookup(kind, result string)
}

type FixtureFeedOption func(*FixtureFeed)

func WithSnapshotStore(store SnapshotStore) FixtureFeedOption {
	return func(f *FixtureFeed) {
		f.snapshots = store
	}
}

func WithFeedMetrics(metrics FeedMetrics) FixtureFeedOption {
	return func(f *FixtureFeed) {
		f.metrics = metrics
	}
}

// FixtureFeed is the cache-aware fixture client. Every read checks the cache
// first; upstream failures fall back to a cached value no older than
// StaleBound, flagged Stale.
type FixtureFeed struct {
	provider  FixtureProvider
	cache     *cache.Store
	snapshots SnapshotStore
	metrics   FeedMetrics
	cfg       FixtureFeedConfig
	logger    *logging.Logger
	details   resilience.SingleFlight[detailResult]
}

type detailResult struct {
	item  fixture.Fixture
	found bool
}

func NewFixtureFeed(provider FixtureProvider, store *cache.Store, cfg FixtureFeedConfig, logger *logging.Logger, opts ...FixtureFeedOption) *FixtureFeed {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DateTTL <= 0 {
		cfg.DateTTL = time.Minute
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = cfg.DateTTL
	}
	if cfg.StaleBound <= 0 {
		cfg.StaleBound = 10 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.FinishedRetention <= 0 {
		cfg.FinishedRetention = defaultFinishedRetention
	}
	if store == nil {
		store = cache.NewStore(cfg.DateTTL, cache.WithRetention(cfg.StaleBound), cache.WithMaxAge(cfg.FinishedRetention))
	}

	feed := &FixtureFeed{
		provider: provider,
		cache:    store,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(feed)
	}
	return feed
}

func (f *FixtureFeed) FetchFixturesByDate(ctx context.Context, date string) (FixtureList, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureFeed.FetchFixturesByDate", attribute.String("fixture.date", date))
	defer span.End()

	key := fixtureDateKeyPrefix + date
	if cached, age, ok := f.cache.Get(key); ok {
		if items, ok := cached.([]fixture.Fixture); ok {
			f.observe("date", "hit")
			return FixtureList{Date: date, Fixtures: fixture.CloneAll(items), Age: age}, nil
		}
	}
	f.observe("date", "miss")

	loaded, err := f.cache.GetOrLoad(ctx, key, func(loadCtx context.Context) (any, error) {
		fetchCtx, cancel := context.WithTimeout(loadCtx, f.cfg.FetchTimeout)
		defer cancel()

		items, err := f.provider.FetchFixturesByDate(fetchCtx, date)
		if err != nil {
			return nil, normalizeUpstreamError(err)
		}
		return fixture.CloneAll(items), nil
	})
	if err == nil {
		items, _ := loaded.([]fixture.Fixture)
		return FixtureList{Date: date, Fixtures: fixture.CloneAll(items)}, nil
	}

	if cached, age, ok := f.cache.Peek(key); ok && age <= f.cfg.StaleBound {
		if items, ok := cached.([]fixture.Fixture); ok {
			f.observe("date", "stale")
			f.logger.WarnContext(ctx, "serve stale fixture list after upstream failure", "date", date, "age", age, "error", err)
			return FixtureList{Date: date, Fixtures: fixture.CloneAll(items), Age: age, Stale: true}, nil
		}
	}
	return FixtureList{}, err
}

// FetchFixtureDetail returns found=false when the provider does not know the id.
// Finished fixtures are cached without expiry.
func (f *FixtureFeed) FetchFixtureDetail(ctx context.Context, fixtureID int64) (FixtureSnapshot, bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureFeed.FetchFixtureDetail", attribute.Int64("fixture.id", fixtureID))
	defer span.End()

	key := fixtureDetailKeyPrefix + strconv.FormatInt(fixtureID, 10)
	if cached, age, ok := f.cache.Get(key); ok {
		if item, ok := cached.(fixture.Fixture); ok {
			f.observe("detail", "hit")
			return FixtureSnapshot{Fixture: item.Clone(), Age: age}, true, nil
		}
	}

	if item, ok := f.sharedSnapshot(ctx, fixtureID); ok {
		f.observe("detail", "shared")
		f.cache.SetWithTTL(key, item.Clone(), cache.NoExpiry)
		return FixtureSnapshot{Fixture: item}, true, nil
	}
	f.observe("detail", "miss")

	result, _, err := f.details.Do(ctx, key, func() (detailResult, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()

		item, found, err := f.provider.FetchFixtureByID(fetchCtx, fixtureID)
		if err != nil {
			return detailResult{}, normalizeUpstreamError(err)
		}
		if found {
			f.storeDetail(ctx, key, item)
		}
		return detailResult{item: item.Clone(), found: found}, nil
	})
	if err == nil {
		if !result.found {
			return FixtureSnapshot{}, false, nil
		}
		return FixtureSnapshot{Fixture: result.item.Clone()}, true, nil
	}

	if cached, age, ok := f.cache.Peek(key); ok && age <= f.cfg.StaleBound {
		if item, ok := cached.(fixture.Fixture); ok {
			f.observe("detail", "stale")
			f.logger.WarnContext(ctx, "serve stale fixture detail after upstream failure", "fixture_id", fixtureID, "age", age, "error", err)
			return FixtureSnapshot{Fixture: item.Clone(), Age: age, Stale: true}, true, nil
		}
	}
	return FixtureSnapshot{}, false, err
}

// RefreshLive replaces cached detail for every in-play fixture and returns them.
func (f *FixtureFeed) RefreshLive(ctx context.Context) ([]fixture.Fixture, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureFeed.RefreshLive")
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	items, err := f.provider.FetchLiveFixtures(fetchCtx)
	if err != nil {
		return nil, normalizeUpstreamError(err)
	}
	for _, item := range items {
		if fixture.IsFinishedStatus(item.Status) {
			continue
		}
		f.cache.SetWithTTL(fixtureDetailKeyPrefix+strconv.FormatInt(item.ExternalID, 10), item.Clone(), f.cfg.DetailTTL)
	}
	return fixture.CloneAll(items), nil
}

// Prune drops cache entries past the stale bound.
func (f *FixtureFeed) Prune() int {
	return f.cache.Prune()
}

func (f *FixtureFeed) storeDetail(ctx context.Context, key string, item fixture.Fixture) {
	if !item.IsFinished() {
		f.cache.SetWithTTL(key, item.Clone(), f.cfg.DetailTTL)
		return
	}

	f.cache.SetWithTTL(key, item.Clone(), cache.NoExpiry)
	if f.snapshots == nil {
		return
	}
	if err := f.snapshots.PutFixture(ctx, item); err != nil {
		f.logger.WarnContext(ctx, "store shared fixture snapshot failed", "fixture_id", item.ExternalID, "error", err)
	}
}

func (f *FixtureFeed) sharedSnapshot(ctx context.Context, fixtureID int64) (fixture.Fixture, bool) {
	if f.snapshots == nil {
		return fixture.Fixture{}, false
	}
	item, found, err := f.snapshots.GetFixture(ctx, fixtureID)
	if err != nil {
		f.logger.WarnContext(ctx, "read shared fixture snapshot failed", "fixture_id", fixtureID, "error", err)
		return fixture.Fixture{}, false
	}
	if !found || !item.IsFinished() {
		return fixture.Fixture{}, false
	}
	return item, true
}

func (f *FixtureFeed) observe(kind, result string) {
	if f.metrics != nil {
		f.metrics.ObserveCacheLookup(kind, result)
	}
}

// normalizeUpstreamError keeps the upstream taxonomy and treats timeouts and
// anything unclassified as unavailability.
func normalizeUpstreamError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUpstreamMalformed), errors.Is(err, ErrUpstreamUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}
