package postgres

import (
	"database/sql"
	"time"
)

var predictionColumns = []string{
	"id",
	"home_team",
	"away_team",
	"fixture_ref",
	"market_type",
	"market_text",
	"status",
	"created_at",
	"expected_kickoff",
}

type predictionTableModel struct {
	ID              string        `db:"id"`
	HomeTeam        string        `db:"home_team"`
	AwayTeam        string        `db:"away_team"`
	FixtureRef      sql.NullInt64 `db:"fixture_ref"`
	MarketType      string        `db:"market_type"`
	MarketText      string        `db:"market_text"`
	Status          string        `db:"status"`
	CreatedAt       time.Time     `db:"created_at"`
	ExpectedKickoff sql.NullTime  `db:"expected_kickoff"`
}
