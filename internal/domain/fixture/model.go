package fixture

import (
	"strings"
	"time"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusFinished  = "FINISHED"
	StatusCancelled = "CANCELLED"
	StatusPostponed = "POSTPONED"
)

// DateLayout is the provider's calendar-date format; dates are always UTC.
const DateLayout = "2006-01-02"

// Fixture is one real-world match as last reported by the upstream provider.
type Fixture struct {
	ExternalID        int64
	Date              string
	HomeTeam          string
	AwayTeam          string
	KickoffAt         time.Time
	Status            string
	HomeGoals         *int
	AwayGoals         *int
	HalfTimeHomeGoals *int
	HalfTimeAwayGoals *int
	Stats             *Stats
	FetchedAt         time.Time
}

// Stats holds optional per-side match statistics. Nil means the provider did not report it.
type Stats struct {
	HomeCorners     *int
	AwayCorners     *int
	HomeYellowCards *int
	AwayYellowCards *int
	HomeRedCards    *int
	AwayRedCards    *int
}

// Clone returns a deep copy so cached fixtures can be handed out without sharing pointers.
func (f Fixture) Clone() Fixture {
	out := f
	out.HomeGoals = cloneInt(f.HomeGoals)
	out.AwayGoals = cloneInt(f.AwayGoals)
	out.HalfTimeHomeGoals = cloneInt(f.HalfTimeHomeGoals)
	out.HalfTimeAwayGoals = cloneInt(f.HalfTimeAwayGoals)
	if f.Stats != nil {
		stats := Stats{
			HomeCorners:     cloneInt(f.Stats.HomeCorners),
			AwayCorners:     cloneInt(f.Stats.AwayCorners),
			HomeYellowCards: cloneInt(f.Stats.HomeYellowCards),
			AwayYellowCards: cloneInt(f.Stats.AwayYellowCards),
			HomeRedCards:    cloneInt(f.Stats.HomeRedCards),
			AwayRedCards:    cloneInt(f.Stats.AwayRedCards),
		}
		out.Stats = &stats
	}
	return out
}

func CloneAll(items []Fixture) []Fixture {
	if items == nil {
		return nil
	}
	out := make([]Fixture, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func (f Fixture) IsFinished() bool {
	return IsFinishedStatus(f.Status)
}

// TotalGoals reports the combined score when both sides are known.
func (f Fixture) TotalGoals() (int, bool) {
	return sumPair(f.HomeGoals, f.AwayGoals)
}

func (f Fixture) HalfTimeTotalGoals() (int, bool) {
	return sumPair(f.HalfTimeHomeGoals, f.HalfTimeAwayGoals)
}

func (f Fixture) TotalCorners() (int, bool) {
	if f.Stats == nil {
		return 0, false
	}
	return sumPair(f.Stats.HomeCorners, f.Stats.AwayCorners)
}

// TotalCards counts yellow and red cards for both sides; yellows are required, reds default to zero.
func (f Fixture) TotalCards() (int, bool) {
	if f.Stats == nil {
		return 0, false
	}
	yellow, ok := sumPair(f.Stats.HomeYellowCards, f.Stats.AwayYellowCards)
	if !ok {
		return 0, false
	}
	return yellow + valueOrZero(f.Stats.HomeRedCards) + valueOrZero(f.Stats.AwayRedCards), true
}

func NormalizeStatus(value string) string {
	status := strings.ToUpper(strings.TrimSpace(value))
	if status == "" {
		return StatusScheduled
	}
	return status
}

func IsLiveStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusLive, "IN_PLAY", "HT", "1H", "2H", "ET", "BREAK":
		return true
	default:
		return false
	}
}

func IsFinishedStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFinished, "FT", "AET", "PEN", "FT_PEN":
		return true
	default:
		return false
	}
}

func IsCancelledLikeStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusCancelled, StatusPostponed, "ABANDONED", "AWARDED", "DELETED":
		return true
	default:
		return false
	}
}

func sumPair(a, b *int) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return *a + *b, true
}

func valueOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr is a small helper for building fixtures in adapters and tests.
func IntPtr(v int) *int {
	return &v
}
