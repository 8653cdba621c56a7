// Package teamname turns raw club names into a canonical form used only for comparison.
package teamname

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// affixTokens are club-form words that carry no identity ("FC", "SK", "Calcio").
var affixTokens = tokenSet(
	"fc", "cf", "sc", "sk", "afc", "ac", "as", "ss", "ssc", "cd", "ud", "sd", "rc", "rcd",
	"fk", "nk", "bk", "if", "sv", "vfb", "vfl", "tsg", "club", "de", "calcio", "cp", "ca",
	"ec", "se", "fbc", "sad", "bc", "kv", "krc", "the", "and",
)

// foldRunes covers letters that do not decompose into base + combining mark.
var foldRunes = map[rune]string{
	'ø': "o",
	'ß': "ss",
	'æ': "ae",
	'œ': "oe",
	'đ': "d",
	'ð': "d",
	'ł': "l",
	'ı': "i",
	'þ': "th",
}

var defaultAliases = map[string]string{
	"man utd":                "manchester united",
	"man united":             "manchester united",
	"manchester utd":         "manchester united",
	"man city":               "manchester city",
	"spurs":                  "tottenham hotspur",
	"tottenham":              "tottenham hotspur",
	"wolves":                 "wolverhampton wanderers",
	"wolverhampton":          "wolverhampton wanderers",
	"newcastle":              "newcastle united",
	"newcastle utd":          "newcastle united",
	"west ham":               "west ham united",
	"leeds":                  "leeds united",
	"nottm forest":           "nottingham forest",
	"sheff utd":              "sheffield united",
	"sheffield utd":          "sheffield united",
	"brighton":               "brighton hove albion",
	"psg":                    "paris saint germain",
	"paris sg":               "paris saint germain",
	"paris st germain":       "paris saint germain",
	"om":                     "olympique marseille",
	"marseille":              "olympique marseille",
	"lyon":                   "olympique lyonnais",
	"ol":                     "olympique lyonnais",
	"inter":                  "internazionale",
	"inter milan":            "internazionale",
	"internazionale milano":  "internazionale",
	"juve":                   "juventus",
	"barca":                  "barcelona",
	"atletico":               "atletico madrid",
	"atl madrid":             "atletico madrid",
	"athletic bilbao":        "athletic",
	"betis":                  "real betis",
	"bayern":                 "bayern munchen",
	"bayern munich":          "bayern munchen",
	"bvb":                    "borussia dortmund",
	"dortmund":               "borussia dortmund",
	"gladbach":               "borussia monchengladbach",
	"leverkusen":             "bayer leverkusen",
	"bayer 04 leverkusen":    "bayer leverkusen",
	"1899 hoffenheim":        "hoffenheim",
	"rasenballsport leipzig": "rb leipzig",
	"leipzig":                "rb leipzig",
	"psv":                    "psv eindhoven",
	"sporting lisbon":        "sporting",
	"sl benfica":             "benfica",
	"benfica lisbon":         "benfica",
	"zenit st petersburg":    "zenit",
	"red star belgrade":      "crvena zvezda",
	"galatasaray istanbul":   "galatasaray",
	"olympiacos piraeus":     "olympiacos",
}

// Normalizer applies the normalization pipeline with a fixed alias table.
// It is safe for concurrent use.
type Normalizer struct {
	aliases map[string]string
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize uses the built-in alias table.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// NewNormalizer builds a normalizer from the built-in aliases plus extra.
// Extra entries win on conflict. Keys and values are normalized and alias
// chains are collapsed so that Normalize stays idempotent.
func NewNormalizer(extra map[string]string) *Normalizer {
	merged := make(map[string]string, len(defaultAliases)+len(extra))
	for alias, canonical := range defaultAliases {
		addAlias(merged, alias, canonical)
	}
	for alias, canonical := range extra {
		addAlias(merged, alias, canonical)
	}

	closed := make(map[string]string, len(merged))
	for alias := range merged {
		if canonical, ok := resolveAlias(merged, alias); ok {
			closed[alias] = canonical
		}
	}
	return &Normalizer{aliases: closed}
}

// Normalize maps raw to its canonical comparable form. The result is never
// persisted or shown to users.
func (n *Normalizer) Normalize(raw string) string {
	base := canonicalTokens(raw)
	if base == "" {
		return ""
	}
	if canonical, ok := n.aliases[base]; ok {
		return canonical
	}
	return base
}

// Clean runs every pipeline step except alias substitution.
func Clean(raw string) string {
	return canonicalTokens(raw)
}

// Aliases returns a copy of the closed alias table.
func (n *Normalizer) Aliases() map[string]string {
	out := make(map[string]string, len(n.aliases))
	for k, v := range n.aliases {
		out[k] = v
	}
	return out
}

func addAlias(table map[string]string, alias, canonical string) {
	key := canonicalTokens(alias)
	value := canonicalTokens(canonical)
	if key == "" || value == "" || key == value {
		return
	}
	table[key] = value
}

// resolveAlias follows alias chains; cycles are dropped.
func resolveAlias(table map[string]string, alias string) (string, bool) {
	seen := map[string]struct{}{alias: {}}
	current := table[alias]
	for {
		next, ok := table[current]
		if !ok {
			return current, true
		}
		if _, loop := seen[current]; loop {
			return "", false
		}
		seen[current] = struct{}{}
		current = next
	}
}

// canonicalTokens runs every pipeline step except alias substitution.
func canonicalTokens(raw string) string {
	// Folding runs again after decomposition: ǿ and ǣ only expose ø and æ once
	// their accent is stripped.
	text := foldSpecial(stripDiacritics(foldSpecial(strings.ToLower(raw))))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\'' || r == '’' || r == '`' || r == '.':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(dropAffixes(tokens), " ")
}

func dropAffixes(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := affixTokens[token]; ok {
			continue
		}
		kept = append(kept, token)
	}
	if len(kept) == 0 {
		return tokens
	}
	return kept
}

func tokenSet(tokens ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func foldSpecial(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { _, ok := foldRunes[r]; return ok }) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := foldRunes[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
