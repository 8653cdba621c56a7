package settlement

import (
	"errors"
	"strings"
	"testing"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/domain/market"
	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
)

func finished(home, away int) fixture.Fixture {
	return fixture.Fixture{
		ExternalID: 102,
		HomeTeam:   "Real Madrid",
		AwayTeam:   "Barcelona",
		Status:     fixture.StatusFinished,
		HomeGoals:  fixture.IntPtr(home),
		AwayGoals:  fixture.IntPtr(away),
	}
}

func mustParse(t *testing.T, tag, text string) market.Predicate {
	t.Helper()
	p, err := market.ParseForTeams(tag, text, "Real Madrid", "Barcelona")
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return p
}

func TestEvaluate_OverTwoAndHalf(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "", "Over 2.5 Goals")
	if got := Evaluate(p, finished(3, 1)); got.Result != ResultWon {
		t.Fatalf("expected WON for 3-1, got=%s (%s)", got.Result, got.Reason)
	}
	if got := Evaluate(p, finished(1, 0)); got.Result != ResultLost {
		t.Fatalf("expected LOST for 1-0, got=%s (%s)", got.Result, got.Reason)
	}
}

func TestEvaluate_PendingUnlessFinished(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "", "Over 2.5 Goals")
	for _, status := range []string{fixture.StatusScheduled, fixture.StatusLive, "HT", ""} {
		f := finished(5, 4)
		f.Status = status
		if got := Evaluate(p, f); got.Result != ResultPending {
			t.Fatalf("status %q: expected PENDING, got=%s", status, got.Result)
		}
	}
}

func TestEvaluate_CancelledLikeIsVoid(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "", "Over 2.5 Goals")
	for _, status := range []string{fixture.StatusPostponed, fixture.StatusCancelled, "ABANDONED"} {
		f := finished(3, 0)
		f.Status = status
		if got := Evaluate(p, f); got.Result != ResultVoid {
			t.Fatalf("status %q: expected VOID, got=%s", status, got.Result)
		}
	}
}

func TestEvaluate_PushOnIntegerLine(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "ou", "Over 2")
	if got := Evaluate(p, finished(1, 1)); got.Result != ResultVoid {
		t.Fatalf("expected push VOID, got=%s", got.Result)
	}
	under := mustParse(t, "ou", "Under 2")
	if got := Evaluate(under, finished(1, 0)); got.Result != ResultWon {
		t.Fatalf("expected under 2 to win at 1 goal, got=%s", got.Result)
	}
}

func TestEvaluate_MatchWinnerAndBTTS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag, text  string
		home, away int
		want       Result
	}{
		{tag: "1x2", text: "1", home: 2, away: 1, want: ResultWon},
		{tag: "1x2", text: "X", home: 2, away: 1, want: ResultLost},
		{tag: "1x2", text: "X", home: 0, away: 0, want: ResultWon},
		{tag: "", text: "FC Barcelona to win", home: 0, away: 2, want: ResultWon},
		{tag: "btts", text: "Yes", home: 1, away: 1, want: ResultWon},
		{tag: "btts", text: "Yes", home: 3, away: 0, want: ResultLost},
		{tag: "btts", text: "No", home: 3, away: 0, want: ResultWon},
	}

	for _, tc := range tests {
		p := mustParse(t, tc.tag, tc.text)
		if got := Evaluate(p, finished(tc.home, tc.away)); got.Result != tc.want {
			t.Fatalf("%s %q at %d-%d: want %s got %s (%s)", tc.tag, tc.text, tc.home, tc.away, tc.want, got.Result, got.Reason)
		}
	}
}

func TestEvaluate_MissingDataIsVoid(t *testing.T) {
	t.Parallel()

	firstHalf := mustParse(t, "1h_ou", "Over 0.5")
	if got := Evaluate(firstHalf, finished(2, 0)); got.Result != ResultVoid {
		t.Fatalf("expected VOID without half-time score, got=%s", got.Result)
	}

	corners := mustParse(t, "", "Over 9.5 corners")
	f := finished(2, 0)
	if got := Evaluate(corners, f); got.Result != ResultVoid {
		t.Fatalf("expected VOID without stats, got=%s", got.Result)
	}
	f.Stats = &fixture.Stats{HomeCorners: fixture.IntPtr(6), AwayCorners: fixture.IntPtr(5)}
	if got := Evaluate(corners, f); got.Result != ResultWon {
		t.Fatalf("expected WON with 11 corners, got=%s", got.Result)
	}

	f.HalfTimeHomeGoals, f.HalfTimeAwayGoals = fixture.IntPtr(0), fixture.IntPtr(0)
	if got := Evaluate(firstHalf, f); got.Result != ResultLost {
		t.Fatalf("expected LOST at 0-0 half time, got=%s", got.Result)
	}
}

func TestEvaluate_UnsupportedAndParseFailure(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "correct_score", "2-1")
	if got := Evaluate(p, finished(2, 1)); got.Result != ResultVoid {
		t.Fatalf("expected unsupported market to be VOID, got=%s", got.Result)
	}

	_, err := market.Parse("", "Special Bet XYZ")
	if !errors.Is(err, market.ErrParseFailure) {
		t.Fatalf("expected parse failure, got %v", err)
	}
	out := ForParseFailure(err)
	status, ok := out.Status()
	if out.Result != ResultVoid || !ok || status != prediction.StatusVoid {
		t.Fatalf("expected VOID outcome mapped to void status, got=%s status=%s", out.Result, status)
	}
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "", "Under 3.5 Goals")
	f := finished(2, 1)
	first := Evaluate(p, f)
	for i := 0; i < 5; i++ {
		if got := Evaluate(p, f); got != first {
			t.Fatalf("evaluation changed between runs: %+v vs %+v", first, got)
		}
	}
}

func TestPreview_LiveFixture(t *testing.T) {
	t.Parallel()

	p := mustParse(t, "", "Over 2.5 Goals")
	f := finished(2, 1)
	f.Status = fixture.StatusLive
	got := Preview(p, f)
	if got.Result != ResultWon || !strings.HasPrefix(got.Reason, "live preview: ") {
		t.Fatalf("unexpected preview %+v", got)
	}
	if Evaluate(p, f).Result != ResultPending {
		t.Fatalf("live fixture must still evaluate to PENDING")
	}
}
