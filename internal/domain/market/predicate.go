// Package market turns a prediction's market tag and free text into a closed
// set of predicates the settlement evaluator understands.
package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrParseFailure = errors.New("market parse failure")

type Kind string

const (
	KindTotalGoals       Kind = "total_goals"
	KindMatchWinner      Kind = "match_winner"
	KindBothTeamsToScore Kind = "both_teams_to_score"
	KindTotalCorners     Kind = "total_corners"
	KindTotalCards       Kind = "total_cards"
	KindUnsupported      Kind = "unsupported"
)

type Period string

const (
	PeriodFullTime  Period = "full_time"
	PeriodFirstHalf Period = "first_half"
)

type Comparison string

const (
	ComparisonOver  Comparison = "over"
	ComparisonUnder Comparison = "under"
)

type Side string

const (
	SideHome Side = "home"
	SideDraw Side = "draw"
	SideAway Side = "away"
)

// Predicate is one parsed market. Only the fields relevant to Kind are set.
type Predicate struct {
	Kind       Kind
	Period     Period
	Comparison Comparison
	Line       decimal.Decimal
	Side       Side
	BothScore  bool
	Reason     string
}

func Unsupported(reason string) Predicate {
	return Predicate{Kind: KindUnsupported, Period: PeriodFullTime, Reason: reason}
}

func (p Predicate) IsTotal() bool {
	switch p.Kind {
	case KindTotalGoals, KindTotalCorners, KindTotalCards:
		return true
	default:
		return false
	}
}

func (p Predicate) String() string {
	switch {
	case p.IsTotal():
		return fmt.Sprintf("%s %s %s %s", p.Kind, p.Period, p.Comparison, p.Line.String())
	case p.Kind == KindMatchWinner:
		return fmt.Sprintf("%s %s %s", p.Kind, p.Period, p.Side)
	case p.Kind == KindBothTeamsToScore:
		answer := "no"
		if p.BothScore {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s %s", p.Kind, p.Period, answer)
	default:
		return fmt.Sprintf("%s (%s)", p.Kind, p.Reason)
	}
}

func parseFailure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParseFailure, fmt.Sprintf(format, args...))
}
