package market

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/riskibarqy/prediction-settlement/internal/domain/teamname"
)

var (
	numberToken   = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	gluedTotal    = regexp.MustCompile(`\b(o|u|over|under)(\d+[.,]\d+)\b`)
	signedNumber  = regexp.MustCompile(`(^|[^\w.])[+-]\d`)
	tagSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

var firstHalfTagPrefixes = []string{"first_half_", "1st_half_", "1h_", "ht_", "fh_", "h1_"}
var firstHalfTagSuffixes = []string{"_first_half", "_1st_half", "_1h", "_ht", "_fh", "_h1"}

// Parse converts a market tag and its free text into a predicate.
func Parse(tag, text string) (Predicate, error) {
	return ParseForTeams(tag, text, "", "")
}

// ParseForTeams is Parse with the fixture's team names available, so that
// match-winner text like "Real Madrid to win" resolves to a side.
func ParseForTeams(tag, text, homeTeam, awayTeam string) (Predicate, error) {
	normalizedTag := normalizeTag(tag)
	if isUnsupportedTag(normalizedTag) {
		return Unsupported("unsupported market tag " + normalizedTag), nil
	}

	body := normalizeText(text)
	if body == "" {
		return Predicate{}, parseFailure("empty market text")
	}

	family, firstHalf := splitPeriodTag(normalizedTag)
	kind, known := tagKind(family)
	if !known {
		if phrase, ok := findAny(body, unsupportedPhrases); ok {
			return Unsupported("unsupported market " + phrase), nil
		}
	}

	if _, ok := findAny(body, firstHalfPhrases); ok {
		firstHalf = true
		body = removePhrases(body, firstHalfPhrases)
	}
	period := PeriodFullTime
	if firstHalf {
		period = PeriodFirstHalf
	}

	if !known {
		kind = inferKind(body, homeTeam, awayTeam)
		if kind == "" {
			return Predicate{}, parseFailure("cannot determine market for %q", text)
		}
	} else if kind == KindTotalGoals && genericTotalTag(family) {
		if refined := refineTotal(body); refined != "" {
			kind = refined
		}
	}

	switch kind {
	case KindTotalGoals, KindTotalCorners, KindTotalCards:
		if namesSide(body, text, homeTeam, awayTeam) {
			return Unsupported("team total " + string(kind)), nil
		}
		return parseTotal(kind, body, period)
	case KindBothTeamsToScore:
		return parseBothTeamsToScore(body, period)
	case KindMatchWinner:
		if signedNumber.MatchString(strings.ToLower(text)) {
			return Unsupported("handicap line in match winner market"), nil
		}
		return parseMatchWinner(body, text, period, homeTeam, awayTeam)
	default:
		return Predicate{}, parseFailure("unknown market kind %s", kind)
	}
}

func parseTotal(kind Kind, body string, period Period) (Predicate, error) {
	if kind != KindTotalGoals && period == PeriodFirstHalf {
		return Unsupported("first-half " + string(kind) + " are not settled"), nil
	}

	body = gluedTotal.ReplaceAllString(body, "$1 $2")
	_, over := findAny(body, overPhrases)
	_, under := findAny(body, underPhrases)
	if over == under {
		return Predicate{}, parseFailure("missing or ambiguous over/under in %q", body)
	}

	var numbers []string
	for _, token := range strings.Fields(body) {
		if numberToken.MatchString(token) {
			numbers = append(numbers, token)
		}
	}
	if len(numbers) != 1 {
		return Predicate{}, parseFailure("expected exactly one line in %q, found %d", body, len(numbers))
	}

	line, err := decimal.NewFromString(strings.ReplaceAll(numbers[0], ",", "."))
	if err != nil {
		return Predicate{}, parseFailure("invalid line %q", numbers[0])
	}

	comparison := ComparisonOver
	if under {
		comparison = ComparisonUnder
	}
	return Predicate{Kind: kind, Period: period, Comparison: comparison, Line: line}, nil
}

func parseBothTeamsToScore(body string, period Period) (Predicate, error) {
	answer := body
	for _, phrase := range bttsPhrases {
		if !slices.Contains(bttsYesPhrases, phrase) && !slices.Contains(bttsNoPhrases, phrase) {
			answer = removePhrase(answer, phrase)
		}
	}
	answer = removePhrase(answer, "gg ng")

	_, no := findAny(answer, bttsNoPhrases)
	_, yes := findAny(answer, bttsYesPhrases)
	if yes && no {
		return Predicate{}, parseFailure("ambiguous both-teams-to-score answer in %q", body)
	}
	return Predicate{Kind: KindBothTeamsToScore, Period: period, BothScore: !no}, nil
}

func parseMatchWinner(body, raw string, period Period, homeTeam, awayTeam string) (Predicate, error) {
	body = removePhrase(body, "1x2")
	sides := make(map[Side]struct{}, 3)

	if _, ok := findAny(body, drawPhrases); ok {
		sides[SideDraw] = struct{}{}
	}
	if _, ok := findAny(body, homePhrases); ok {
		sides[SideHome] = struct{}{}
	}
	if _, ok := findAny(body, awayPhrases); ok {
		sides[SideAway] = struct{}{}
	}

	teamText := teamname.Clean(raw)
	if mentionsTeam(body, teamText, homeTeam) {
		sides[SideHome] = struct{}{}
	}
	if mentionsTeam(body, teamText, awayTeam) {
		sides[SideAway] = struct{}{}
	}

	if len(sides) != 1 {
		return Predicate{}, parseFailure("expected exactly one side in %q, found %d", body, len(sides))
	}
	for side := range sides {
		return Predicate{Kind: KindMatchWinner, Period: period, Side: side}, nil
	}
	return Predicate{}, parseFailure("no side in %q", body)
}

func inferKind(body, homeTeam, awayTeam string) Kind {
	if refined := refineTotal(body); refined != "" {
		return refined
	}
	if _, ok := findAny(body, bttsPhrases); ok {
		return KindBothTeamsToScore
	}

	glued := gluedTotal.ReplaceAllString(body, "$1 $2")
	_, over := findAny(glued, overPhrases)
	_, under := findAny(glued, underPhrases)
	if (over || under) && hasNumber(glued) {
		return KindTotalGoals
	}
	if _, ok := findAny(body, goalPhrases); ok && hasNumber(glued) {
		return KindTotalGoals
	}

	for _, set := range [][]string{drawPhrases, homePhrases, awayPhrases, winnerPhrases} {
		if _, ok := findAny(body, set); ok {
			return KindMatchWinner
		}
	}
	teamText := teamname.Clean(body)
	if mentionsTeam(body, teamText, homeTeam) || mentionsTeam(body, teamText, awayTeam) {
		return KindMatchWinner
	}
	return ""
}

// namesSide reports whether a total's text is scoped to one team, either by
// a home/away word or by a team name. Bare "1"/"2" are lines there, not sides.
func namesSide(body, raw, homeTeam, awayTeam string) bool {
	for _, set := range [][]string{homePhrases, awayPhrases} {
		for _, phrase := range set {
			if numberToken.MatchString(phrase) {
				continue
			}
			if containsPhrase(body, phrase) {
				return true
			}
		}
	}
	teamText := teamname.Clean(raw)
	return mentionsTeam(body, teamText, homeTeam) || mentionsTeam(body, teamText, awayTeam)
}

func refineTotal(body string) Kind {
	if _, ok := findAny(body, cornerPhrases); ok {
		return KindTotalCorners
	}
	if _, ok := findAny(body, cardPhrases); ok {
		return KindTotalCards
	}
	return ""
}

func mentionsTeam(body, teamText, team string) bool {
	if strings.TrimSpace(team) == "" {
		return false
	}
	for _, name := range []string{teamname.Clean(team), teamname.Normalize(team)} {
		if name == "" {
			continue
		}
		if containsPhrase(teamText, name) || containsPhrase(body, name) {
			return true
		}
	}
	return false
}

func tagKind(tag string) (Kind, bool) {
	switch {
	case tag == "":
		return "", false
	case inSet(goalsTags, tag):
		return KindTotalGoals, true
	case inSet(winnerTags, tag):
		return KindMatchWinner, true
	case inSet(bttsTags, tag):
		return KindBothTeamsToScore, true
	case inSet(cornerTags, tag):
		return KindTotalCorners, true
	case inSet(cardTags, tag):
		return KindTotalCards, true
	default:
		return "", false
	}
}

func genericTotalTag(tag string) bool {
	return tag != "total_goals" && tag != "goals" && tag != "goal_line"
}

func isUnsupportedTag(tag string) bool {
	return inSet(unsupportedTags, tag) || strings.HasPrefix(tag, "player_")
}

func splitPeriodTag(tag string) (string, bool) {
	for _, prefix := range firstHalfTagPrefixes {
		if strings.HasPrefix(tag, prefix) {
			return strings.TrimPrefix(tag, prefix), true
		}
	}
	for _, suffix := range firstHalfTagSuffixes {
		if strings.HasSuffix(tag, suffix) {
			return strings.TrimSuffix(tag, suffix), true
		}
	}
	return tag, false
}

func normalizeTag(tag string) string {
	return strings.Trim(tagSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(tag)), "_"), "_")
}

// normalizeText lower-cases, strips diacritics and reduces the text to
// space-separated words. Dots and commas survive only between digits.
func normalizeText(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}

	src := []rune(folded)
	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range src {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case (r == '.' || r == ',') && i > 0 && i+1 < len(src) && unicode.IsDigit(src[i-1]) && unicode.IsDigit(src[i+1]):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func findAny(body string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if containsPhrase(body, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func containsPhrase(body, phrase string) bool {
	if body == "" || phrase == "" {
		return false
	}
	return strings.Contains(" "+body+" ", " "+phrase+" ")
}

// removePhrases drops the longest phrases first so "1 halbzeit" goes before
// "halbzeit" can strand its leading number.
func removePhrases(body string, phrases []string) string {
	ordered := slices.Clone(phrases)
	slices.SortStableFunc(ordered, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	for _, phrase := range ordered {
		body = removePhrase(body, phrase)
	}
	return body
}

func removePhrase(body, phrase string) string {
	if !containsPhrase(body, phrase) {
		return body
	}
	padded := strings.ReplaceAll(" "+body+" ", " "+phrase+" ", " ")
	// A second pass catches back-to-back repeats that shared a separator.
	padded = strings.ReplaceAll(padded, " "+phrase+" ", " ")
	return strings.Join(strings.Fields(padded), " ")
}

func hasNumber(body string) bool {
	for _, token := range strings.Fields(body) {
		if numberToken.MatchString(token) {
			return true
		}
	}
	return false
}

func inSet(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
