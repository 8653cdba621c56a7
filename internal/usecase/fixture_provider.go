package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
)

// FixtureProvider is the upstream live-sports API. Implementations wrap
// failures in ErrUpstreamUnavailable or ErrUpstreamMalformed.
type FixtureProvider interface {
	FetchFixturesByDate(ctx context.Context, date string) ([]fixture.Fixture, error)
	FetchFixtureByID(ctx context.Context, fixtureID int64) (fixture.Fixture, bool, error)
	FetchLiveFixtures(ctx context.Context) ([]fixture.Fixture, error)
}

// SnapshotStore is an optional shared tier for finished fixtures so worker
// replicas do not refetch immutable results.
type SnapshotStore interface {
	GetFixture(ctx context.Context, fixtureID int64) (fixture.Fixture, bool, error)
	PutFixture(ctx context.Context, item fixture.Fixture) error
}

// FixtureList is a per-date fixture set. Stale means it was served from cache
// after the upstream call failed.
type FixtureList struct {
	Date     string
	Fixtures []fixture.Fixture
	Age      time.Duration
	Stale    bool
}

type FixtureSnapshot struct {
	Fixture fixture.Fixture
	Age     time.Duration
	Stale   bool
}
