// Package matching links a prediction to the fixture it most likely refers to.
package matching

import (
	"math"
	"sort"
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
	"github.com/riskibarqy/prediction-settlement/internal/domain/teamname"
)

const scoreEpsilon = 1e-9

type Config struct {
	KickoffWindow   time.Duration
	SideThreshold   float64
	AcceptThreshold float64
}

func DefaultConfig() Config {
	return Config{
		KickoffWindow:   6 * time.Hour,
		SideThreshold:   0.6,
		AcceptThreshold: 0.7,
	}
}

// Candidate is a scored pairing of a prediction and a fixture. It only lives
// for one matching pass.
type Candidate struct {
	Fixture         fixture.Fixture
	Score           float64
	HomeScore       float64
	AwayScore       float64
	KickoffDistance time.Duration
}

type Matcher struct {
	cfg        Config
	normalizer *teamname.Normalizer
}

func NewMatcher(cfg Config, normalizer *teamname.Normalizer) *Matcher {
	defaults := DefaultConfig()
	if cfg.KickoffWindow <= 0 {
		cfg.KickoffWindow = defaults.KickoffWindow
	}
	if cfg.SideThreshold <= 0 || cfg.SideThreshold > 1 {
		cfg.SideThreshold = defaults.SideThreshold
	}
	if cfg.AcceptThreshold <= 0 || cfg.AcceptThreshold > 1 {
		cfg.AcceptThreshold = defaults.AcceptThreshold
	}
	if normalizer == nil {
		normalizer = teamname.NewNormalizer(nil)
	}
	return &Matcher{cfg: cfg, normalizer: normalizer}
}

func (m *Matcher) Config() Config {
	return m.cfg
}

// Match returns the best fixture for the prediction, or false when nothing
// clears both the per-side and the combined thresholds.
func (m *Matcher) Match(p prediction.Prediction, fixtures []fixture.Fixture) (Candidate, bool) {
	home := m.normalizer.Normalize(p.HomeTeam)
	away := m.normalizer.Normalize(p.AwayTeam)
	if home == "" || away == "" || len(fixtures) == 0 {
		return Candidate{}, false
	}

	candidates := make([]Candidate, 0, 4)
	for _, item := range fixtures {
		distance, ok := m.kickoffDistance(p.ExpectedKickoff, item.KickoffAt)
		if !ok {
			continue
		}

		candidate, ok := m.score(home, away, item)
		if !ok {
			continue
		}
		candidate.KickoffDistance = distance
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return better(candidates[i], candidates[j])
	})
	return candidates[0], true
}

func (m *Matcher) score(home, away string, item fixture.Fixture) (Candidate, bool) {
	fixtureHome := m.normalizer.Normalize(item.HomeTeam)
	fixtureAway := m.normalizer.Normalize(item.AwayTeam)

	homeScore := Similarity(home, fixtureHome)
	awayScore := Similarity(away, fixtureAway)
	if homeScore < m.cfg.SideThreshold || awayScore < m.cfg.SideThreshold {
		return Candidate{}, false
	}

	combined := (homeScore + awayScore) / 2
	if combined < m.cfg.AcceptThreshold {
		return Candidate{}, false
	}

	// Same pairing with sides swapped fits better: the prediction names the
	// reverse fixture, which must not be matched.
	swapped := (Similarity(home, fixtureAway) + Similarity(away, fixtureHome)) / 2
	if swapped > combined+scoreEpsilon {
		return Candidate{}, false
	}

	return Candidate{
		Fixture:   item,
		Score:     combined,
		HomeScore: homeScore,
		AwayScore: awayScore,
	}, true
}

func (m *Matcher) kickoffDistance(expected *time.Time, kickoff time.Time) (time.Duration, bool) {
	if expected == nil || expected.IsZero() {
		return 0, true
	}
	if kickoff.IsZero() {
		return 0, false
	}
	distance := kickoff.Sub(*expected)
	if distance < 0 {
		distance = -distance
	}
	return distance, distance <= m.cfg.KickoffWindow
}

func better(a, b Candidate) bool {
	if math.Abs(a.Score-b.Score) > scoreEpsilon {
		return a.Score > b.Score
	}
	if a.KickoffDistance != b.KickoffDistance {
		return a.KickoffDistance < b.KickoffDistance
	}
	return a.Fixture.ExternalID < b.Fixture.ExternalID
}
