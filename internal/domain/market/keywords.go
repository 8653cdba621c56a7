package market

// Keyword phrases are matched on whole words against text that has been
// lower-cased and stripped of diacritics. Languages: en, es, pt, fr, de, it, nl, id.

var overPhrases = []string{
	"over", "o", "more than", "mas de", "plus de", "uber", "ueber", "mehr als", "sopra", "oltre",
	"acima de", "mais de", "boven", "meer dan", "lebih dari", "diatas", "di atas",
}

var underPhrases = []string{
	"under", "u", "less than", "fewer than", "menos de", "moins de", "unter", "weniger als",
	"sotto", "abaixo de", "onder", "minder dan", "kurang dari", "dibawah", "di bawah",
}

var firstHalfPhrases = []string{
	"1h", "fh", "ht", "1 ht", "1st ht", "1st half", "first half", "half time", "halftime",
	"primer tiempo", "primera parte", "1a parte", "1ª parte", "1er tiempo",
	"primeiro tempo", "1o tempo", "1º tempo",
	"mi temps", "1re mi temps", "premiere mi temps",
	"halbzeit", "1 halbzeit", "erste halbzeit", "1 hz",
	"primo tempo", "1 tempo",
	"eerste helft", "1e helft", "rust",
	"babak pertama", "babak 1",
}

var cornerPhrases = []string{
	"corner", "corners", "esquinas", "saques de esquina", "tiros de esquina", "escanteios", "escanteio",
	"ecken", "eckballe", "eckbaelle", "angoli", "calci d angolo", "hoekschoppen", "hoekschop",
	"tendangan sudut", "sepak pojok",
}

var cardPhrases = []string{
	"card", "cards", "booking", "bookings", "tarjetas", "tarjeta", "cartoes", "cartao", "cartons",
	"karten", "cartellini", "kaarten", "kaart", "kartu",
}

var goalPhrases = []string{
	"goal", "goals", "gol", "goles", "gols", "but", "buts", "tor", "tore", "reti", "doelpunten", "doelpunt",
}

var bttsPhrases = []string{
	"btts", "bts", "gg", "ng", "gg ng", "goal goal", "no goal",
	"both teams to score", "both teams score", "both to score",
	"ambos marcan", "ambos equipos marcan", "ambas marcam", "ambas equipes marcam",
	"les deux equipes marquent", "beide teams treffen", "beide mannschaften treffen",
	"entrambe segnano", "entrambe le squadre segnano", "beide teams scoren",
	"kedua tim mencetak gol", "kedua tim cetak gol",
}

var bttsNoPhrases = []string{
	"no", "not", "ng", "no goal", "nao", "non", "nein", "nee", "tidak",
}

var bttsYesPhrases = []string{
	"yes", "si", "sim", "oui", "ja", "ya", "gg", "goal goal",
}

var drawPhrases = []string{
	"draw", "tie", "x", "empate", "nul", "match nul", "unentschieden", "remis", "pareggio",
	"gelijkspel", "seri", "imbang",
}

var homePhrases = []string{
	"1", "home", "home win", "home team", "local", "casa", "domicile", "heim", "heimsieg",
	"thuis", "tuan rumah",
}

var awayPhrases = []string{
	"2", "away", "away win", "away team", "visitor", "visitors", "visitante", "visitantes", "fora",
	"exterieur", "auswarts", "auswaerts", "gast", "trasferta", "uit", "tandang",
}

var winnerPhrases = []string{
	"win", "wins", "to win", "winner", "victory", "gana", "ganador", "vence", "vencedor", "victoire",
	"gagne", "sieg", "gewinnt", "vittoria", "vince", "winst", "wint", "menang",
}

var unsupportedPhrases = []string{
	"handicap", "asian", "correct score", "exact score", "marcador exacto", "resultado exacto",
	"double chance", "doble oportunidad", "draw no bet", "scorer", "goalscorer", "anytime",
	"clean sheet", "odd", "even", "ht ft", "half time full time", "win to nil", "player",
}

var goalsTags = tagSet("ou", "o_u", "over_under", "total_goals", "goals", "totals", "total", "goal_line")
var winnerTags = tagSet("1x2", "match_winner", "moneyline", "h2h", "result", "match_result", "full_time_result", "ftr", "winner", "three_way")
var bttsTags = tagSet("btts", "bts", "gg_ng", "gg", "both_teams_to_score")
var cornerTags = tagSet("corners", "corner", "total_corners")
var cardTags = tagSet("cards", "card", "total_cards", "bookings", "booking")
var unsupportedTags = tagSet(
	"correct_score", "exact_score", "handicap", "asian_handicap", "ah", "scorer", "anytime_scorer",
	"first_scorer", "last_scorer", "double_chance", "dc", "draw_no_bet", "dnb", "ht_ft", "htft",
	"clean_sheet", "odd_even", "win_to_nil",
)

func tagSet(tags ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		out[tag] = struct{}{}
	}
	return out
}
