package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
)

const (
	fixtureKeyPrefix   = "prediction-settlement:fixture:"
	finishedFixtureTTL = 7 * 24 * time.Hour
	snapshotVersion    = 1
)

// FixtureStore shares fixture snapshots between worker replicas. Finished
// results are kept for a week; anything else only for the short TTL.
type FixtureStore struct {
	rdb      *redis.Client
	shortTTL time.Duration
}

func NewFixtureStore(c *Client, shortTTL time.Duration) *FixtureStore {
	if shortTTL <= 0 {
		shortTTL = time.Minute
	}
	return &FixtureStore{rdb: c.rdb, shortTTL: shortTTL}
}

func (s *FixtureStore) GetFixture(ctx context.Context, fixtureID int64) (fixture.Fixture, bool, error) {
	raw, err := s.rdb.Get(ctx, fixtureKey(fixtureID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fixture.Fixture{}, false, nil
	}
	if err != nil {
		return fixture.Fixture{}, false, fmt.Errorf("get fixture snapshot %d: %w", fixtureID, err)
	}

	item, err := decodeSnapshot(raw)
	if err != nil {
		return fixture.Fixture{}, false, fmt.Errorf("decode fixture snapshot %d: %w", fixtureID, err)
	}
	return item, true, nil
}

func (s *FixtureStore) PutFixture(ctx context.Context, item fixture.Fixture) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := encodeSnapshot(buf, item); err != nil {
		return fmt.Errorf("encode fixture snapshot %d: %w", item.ExternalID, err)
	}
	if err := s.rdb.Set(ctx, fixtureKey(item.ExternalID), buf.Bytes(), s.ttlFor(item)).Err(); err != nil {
		return fmt.Errorf("set fixture snapshot %d: %w", item.ExternalID, err)
	}
	return nil
}

func (s *FixtureStore) ttlFor(item fixture.Fixture) time.Duration {
	if item.IsFinished() {
		return finishedFixtureTTL
	}
	return s.shortTTL
}

func fixtureKey(fixtureID int64) string {
	return fixtureKeyPrefix + strconv.FormatInt(fixtureID, 10)
}

type snapshotStats struct {
	HomeCorners     *int `json:"home_corners,omitempty"`
	AwayCorners     *int `json:"away_corners,omitempty"`
	HomeYellowCards *int `json:"home_yellow_cards,omitempty"`
	AwayYellowCards *int `json:"away_yellow_cards,omitempty"`
	HomeRedCards    *int `json:"home_red_cards,omitempty"`
	AwayRedCards    *int `json:"away_red_cards,omitempty"`
}

type snapshotRecord struct {
	Version           int            `json:"v"`
	ExternalID        int64          `json:"id"`
	Date              string         `json:"date"`
	HomeTeam          string         `json:"home_team"`
	AwayTeam          string         `json:"away_team"`
	KickoffAt         time.Time      `json:"kickoff_at"`
	Status            string         `json:"status"`
	HomeGoals         *int           `json:"home_goals,omitempty"`
	AwayGoals         *int           `json:"away_goals,omitempty"`
	HalfTimeHomeGoals *int           `json:"ht_home_goals,omitempty"`
	HalfTimeAwayGoals *int           `json:"ht_away_goals,omitempty"`
	Stats             *snapshotStats `json:"stats,omitempty"`
	FetchedAt         time.Time      `json:"fetched_at"`
}

func encodeSnapshot(w io.Writer, item fixture.Fixture) error {
	record := snapshotRecord{
		Version:           snapshotVersion,
		ExternalID:        item.ExternalID,
		Date:              item.Date,
		HomeTeam:          item.HomeTeam,
		AwayTeam:          item.AwayTeam,
		KickoffAt:         item.KickoffAt.UTC(),
		Status:            item.Status,
		HomeGoals:         item.HomeGoals,
		AwayGoals:         item.AwayGoals,
		HalfTimeHomeGoals: item.HalfTimeHomeGoals,
		HalfTimeAwayGoals: item.HalfTimeAwayGoals,
		FetchedAt:         item.FetchedAt.UTC(),
	}
	if item.Stats != nil {
		record.Stats = &snapshotStats{
			HomeCorners:     item.Stats.HomeCorners,
			AwayCorners:     item.Stats.AwayCorners,
			HomeYellowCards: item.Stats.HomeYellowCards,
			AwayYellowCards: item.Stats.AwayYellowCards,
			HomeRedCards:    item.Stats.HomeRedCards,
			AwayRedCards:    item.Stats.AwayRedCards,
		}
	}
	return sonic.ConfigDefault.NewEncoder(w).Encode(record)
}

func decodeSnapshot(raw []byte) (fixture.Fixture, error) {
	var record snapshotRecord
	if err := sonic.Unmarshal(raw, &record); err != nil {
		return fixture.Fixture{}, err
	}
	if record.Version != snapshotVersion {
		return fixture.Fixture{}, fmt.Errorf("unsupported snapshot version %d", record.Version)
	}
	if record.ExternalID <= 0 {
		return fixture.Fixture{}, fmt.Errorf("snapshot has no fixture id")
	}

	item := fixture.Fixture{
		ExternalID:        record.ExternalID,
		Date:              record.Date,
		HomeTeam:          record.HomeTeam,
		AwayTeam:          record.AwayTeam,
		KickoffAt:         record.KickoffAt.UTC(),
		Status:            fixture.NormalizeStatus(record.Status),
		HomeGoals:         record.HomeGoals,
		AwayGoals:         record.AwayGoals,
		HalfTimeHomeGoals: record.HalfTimeHomeGoals,
		HalfTimeAwayGoals: record.HalfTimeAwayGoals,
		FetchedAt:         record.FetchedAt.UTC(),
	}
	if record.Stats != nil {
		item.Stats = &fixture.Stats{
			HomeCorners:     record.Stats.HomeCorners,
			AwayCorners:     record.Stats.AwayCorners,
			HomeYellowCards: record.Stats.HomeYellowCards,
			AwayYellowCards: record.Stats.AwayYellowCards,
			HomeRedCards:    record.Stats.HomeRedCards,
			AwayRedCards:    record.Stats.AwayRedCards,
		}
	}
	return item, nil
}
