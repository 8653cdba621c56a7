package memory

import (
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
)

// SeedPredictions returns a small pending set for running the worker without
// a database. Kickoffs are relative to now so the dev cycle has something to
// match against the current fixture list.
func SeedPredictions(now time.Time) []prediction.Prediction {
	now = now.UTC()
	evening := time.Date(now.Year(), now.Month(), now.Day(), 19, 0, 0, 0, time.UTC)
	return []prediction.Prediction{
		{
			ID:              "seed-ou-1",
			HomeTeam:        "Real Madrid CF",
			AwayTeam:        "FC Barcelona",
			MarketType:      "ou",
			MarketText:      "Over 2.5",
			Status:          prediction.StatusPending,
			CreatedAt:       now.Add(-2 * time.Hour),
			ExpectedKickoff: &evening,
		},
		{
			ID:         "seed-1x2-1",
			HomeTeam:   "Man Utd",
			AwayTeam:   "Liverpool",
			MarketType: "1x2",
			MarketText: "Man Utd to win",
			Status:     prediction.StatusPending,
			CreatedAt:  now.Add(-90 * time.Minute),
		},
		{
			ID:         "seed-btts-1",
			HomeTeam:   "Internazionale",
			AwayTeam:   "AC Milan",
			MarketType: "btts",
			MarketText: "Ambos marcan: Sí",
			Status:     prediction.StatusPending,
			CreatedAt:  now.Add(-time.Hour),
		},
		{
			ID:         "seed-special-1",
			HomeTeam:   "Arsenal",
			AwayTeam:   "Chelsea",
			MarketText: "Special Bet XYZ",
			Status:     prediction.StatusPending,
			CreatedAt:  now.Add(-30 * time.Minute),
		},
	}
}
