// Package settlement decides a prediction's outcome from a parsed market and a fixture.
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/domain/market"
	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
)

type Result string

const (
	ResultWon     Result = "WON"
	ResultLost    Result = "LOST"
	ResultPending Result = "PENDING"
	ResultVoid    Result = "VOID"
)

type Outcome struct {
	Result Result
	Reason string
}

func (o Outcome) IsTerminal() bool {
	return o.Result == ResultWon || o.Result == ResultLost || o.Result == ResultVoid
}

// Status maps a terminal result to the prediction status it settles to.
func (o Outcome) Status() (prediction.Status, bool) {
	switch o.Result {
	case ResultWon:
		return prediction.StatusWon, true
	case ResultLost:
		return prediction.StatusLost, true
	case ResultVoid:
		return prediction.StatusVoid, true
	default:
		return "", false
	}
}

func ForParseFailure(err error) Outcome {
	reason := "unparsable market"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Result: ResultVoid, Reason: reason}
}

// Evaluate is total over the predicate kinds and only decides on finished fixtures.
func Evaluate(p market.Predicate, f fixture.Fixture) Outcome {
	if fixture.IsCancelledLikeStatus(f.Status) {
		return Outcome{Result: ResultVoid, Reason: "fixture " + fixture.NormalizeStatus(f.Status)}
	}
	if !fixture.IsFinishedStatus(f.Status) {
		return Outcome{Result: ResultPending, Reason: "fixture not finished: " + fixture.NormalizeStatus(f.Status)}
	}
	return decide(p, f)
}

// Preview applies the predicate to a live fixture's current state. The result
// is provisional and must never be persisted.
func Preview(p market.Predicate, f fixture.Fixture) Outcome {
	if !fixture.IsLiveStatus(f.Status) {
		return Evaluate(p, f)
	}
	out := decide(p, f)
	out.Reason = "live preview: " + out.Reason
	return out
}

func decide(p market.Predicate, f fixture.Fixture) Outcome {
	switch p.Kind {
	case market.KindUnsupported:
		return Outcome{Result: ResultVoid, Reason: "unsupported market: " + p.Reason}
	case market.KindTotalGoals, market.KindTotalCorners, market.KindTotalCards:
		return decideTotal(p, f)
	case market.KindMatchWinner:
		return decideWinner(p, f)
	case market.KindBothTeamsToScore:
		return decideBothTeamsToScore(p, f)
	default:
		return Outcome{Result: ResultVoid, Reason: fmt.Sprintf("unknown market kind %q", p.Kind)}
	}
}

func decideTotal(p market.Predicate, f fixture.Fixture) Outcome {
	var (
		total int
		ok    bool
	)
	switch {
	case p.Kind == market.KindTotalCorners:
		total, ok = f.TotalCorners()
	case p.Kind == market.KindTotalCards:
		total, ok = f.TotalCards()
	case p.Period == market.PeriodFirstHalf:
		total, ok = f.HalfTimeTotalGoals()
	default:
		total, ok = f.TotalGoals()
	}
	if !ok {
		return Outcome{Result: ResultVoid, Reason: fmt.Sprintf("missing data for %s %s", p.Kind, p.Period)}
	}

	value := decimal.NewFromInt(int64(total))
	reason := fmt.Sprintf("%s %s %d vs %s %s", p.Kind, p.Period, total, p.Comparison, p.Line.String())
	if value.Equal(p.Line) {
		return Outcome{Result: ResultVoid, Reason: "push: " + reason}
	}

	var won bool
	switch p.Comparison {
	case market.ComparisonOver:
		won = value.GreaterThan(p.Line)
	case market.ComparisonUnder:
		won = value.LessThan(p.Line)
	default:
		return Outcome{Result: ResultVoid, Reason: fmt.Sprintf("unknown comparison %q", p.Comparison)}
	}
	return verdict(won, reason)
}

func decideWinner(p market.Predicate, f fixture.Fixture) Outcome {
	home, away, ok := goalsFor(p.Period, f)
	if !ok {
		return Outcome{Result: ResultVoid, Reason: fmt.Sprintf("missing score for %s", p.Period)}
	}

	actual := market.SideDraw
	switch {
	case home > away:
		actual = market.SideHome
	case away > home:
		actual = market.SideAway
	}
	return verdict(actual == p.Side, fmt.Sprintf("%s %d-%d, picked %s", p.Period, home, away, p.Side))
}

func decideBothTeamsToScore(p market.Predicate, f fixture.Fixture) Outcome {
	home, away, ok := goalsFor(p.Period, f)
	if !ok {
		return Outcome{Result: ResultVoid, Reason: fmt.Sprintf("missing score for %s", p.Period)}
	}
	both := home > 0 && away > 0
	return verdict(both == p.BothScore, fmt.Sprintf("%s %d-%d, both scored=%t", p.Period, home, away, both))
}

func goalsFor(period market.Period, f fixture.Fixture) (int, int, bool) {
	h, a := f.HomeGoals, f.AwayGoals
	if period == market.PeriodFirstHalf {
		h, a = f.HalfTimeHomeGoals, f.HalfTimeAwayGoals
	}
	if h == nil || a == nil {
		return 0, 0, false
	}
	return *h, *a, true
}

func verdict(won bool, reason string) Outcome {
	if won {
		return Outcome{Result: ResultWon, Reason: reason}
	}
	return Outcome{Result: ResultLost, Reason: reason}
}
