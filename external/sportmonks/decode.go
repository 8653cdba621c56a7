package sportmonks

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

type fixturesEnvelope struct {
	Data       []fixtureDetails `json:"data"`
	Pagination *pagination      `json:"pagination"`
}

type fixtureEnvelope struct {
	Data *fixtureDetails `json:"data"`
}

type pagination struct {
	Count       int  `json:"count"`
	PerPage     int  `json:"per_page"`
	CurrentPage int  `json:"current_page"`
	HasMore     bool `json:"has_more"`
}

type fixtureDetails struct {
	ID           int64                  `json:"id"`
	StartingAt   string                 `json:"starting_at"`
	StartingTS   int64                  `json:"starting_at_timestamp"`
	StateID      int64                  `json:"state_id"`
	ResultInfo   string                 `json:"result_info"`
	Participants []fixtureParticipant   `json:"participants"`
	State        relation[stateRef]     `json:"state"`
	Scores       []fixtureScoreItem     `json:"scores"`
	Statistics   []fixtureStatisticItem `json:"statistics"`
}

type fixtureParticipant struct {
	ID   int64                  `json:"id"`
	Name string                 `json:"name"`
	Meta fixtureParticipantMeta `json:"meta"`
}

type fixtureParticipantMeta struct {
	Location string `json:"location"`
}

type stateRef struct {
	ID            int64  `json:"id"`
	State         string `json:"state"`
	DeveloperName string `json:"developer_name"`
}

type fixtureScoreItem struct {
	ParticipantID int64          `json:"participant_id"`
	Description   string         `json:"description"`
	Score         map[string]any `json:"score"`
	Data          map[string]any `json:"data"`
	Goals         any            `json:"goals"`
}

type fixtureStatisticItem struct {
	ParticipantID int64                 `json:"participant_id"`
	TypeID        int64                 `json:"type_id"`
	Location      string                `json:"location"`
	Data          map[string]any        `json:"data"`
	Type          relation[statTypeRef] `json:"type"`
}

type statTypeRef struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Code          string `json:"code"`
	DeveloperName string `json:"developer_name"`
}

// Statistic type ids used when the type relation was not included.
var statTypeNameByID = map[int64]string{
	34: "CORNERS",
	83: "REDCARDS",
	84: "YELLOWCARDS",
}

func mapFixture(item fixtureDetails, fetchedAt time.Time) (fixture.Fixture, error) {
	if item.ID <= 0 {
		return fixture.Fixture{}, fmt.Errorf("%w: fixture without id", usecase.ErrUpstreamMalformed)
	}

	home, away, homeID, awayID := resolveFixtureParticipants(item.Participants)
	if home == "" || away == "" {
		return fixture.Fixture{}, fmt.Errorf("%w: fixture %d missing participants", usecase.ErrUpstreamMalformed, item.ID)
	}

	kickoff := parseProviderDateTime(item.StartingAt)
	if kickoff == nil && item.StartingTS > 0 {
		ts := time.Unix(item.StartingTS, 0).UTC()
		kickoff = &ts
	}

	out := fixture.Fixture{
		ExternalID: item.ID,
		HomeTeam:   home,
		AwayTeam:   away,
		Status:     mapFixtureStatus(item.stateID(), item.ResultInfo),
		FetchedAt:  fetchedAt,
	}
	if kickoff != nil {
		out.KickoffAt = *kickoff
		out.Date = kickoff.Format(fixture.DateLayout)
	}

	out.HomeGoals, out.AwayGoals = resolveFixtureScores(item.Scores, homeID, awayID)
	out.HalfTimeHomeGoals, out.HalfTimeAwayGoals = resolveHalfTimeScores(item.Scores, homeID, awayID)
	out.Stats = resolveFixtureStats(item.Statistics, homeID, awayID)
	return out, nil
}

func (f fixtureDetails) stateID() int64 {
	if f.StateID > 0 {
		return f.StateID
	}
	if f.State.Set {
		return f.State.Data.ID
	}
	return 0
}

func parseProviderDateTime(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		time.RFC3339,
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			v := parsed.UTC()
			return &v
		}
	}
	return nil
}

func resolveFixtureParticipants(participants []fixtureParticipant) (string, string, int64, int64) {
	var homeName, awayName string
	var homeID, awayID int64
	for _, item := range participants {
		switch strings.ToLower(strings.TrimSpace(item.Meta.Location)) {
		case "home":
			homeName = strings.TrimSpace(item.Name)
			homeID = item.ID
		case "away":
			awayName = strings.TrimSpace(item.Name)
			awayID = item.ID
		}
	}
	return homeName, awayName, homeID, awayID
}

// resolveFixtureScores keeps the goals from the highest-weighted score
// description present for both sides.
func resolveFixtureScores(scores []fixtureScoreItem, homeID, awayID int64) (*int, *int) {
	for weight := 6; weight >= 1; weight-- {
		home, away := scoresWithWeight(scores, homeID, awayID, weight)
		if home != nil && away != nil {
			return home, away
		}
	}
	return nil, nil
}

func resolveHalfTimeScores(scores []fixtureScoreItem, homeID, awayID int64) (*int, *int) {
	var home, away *int
	for _, score := range scores {
		if !strings.EqualFold(strings.TrimSpace(score.Description), "1st_half") {
			continue
		}
		value, ok := score.numericScore()
		if !ok {
			continue
		}
		switch {
		case homeID > 0 && score.ParticipantID == homeID:
			home = fixture.IntPtr(value)
		case awayID > 0 && score.ParticipantID == awayID:
			away = fixture.IntPtr(value)
		}
	}
	if home == nil || away == nil {
		return nil, nil
	}
	return home, away
}

func scoresWithWeight(scores []fixtureScoreItem, homeID, awayID int64, weight int) (*int, *int) {
	var home, away *int
	for _, score := range scores {
		if scoreDescriptionWeight(score.Description) != weight {
			continue
		}
		value, ok := score.numericScore()
		if !ok {
			continue
		}
		switch {
		case homeID > 0 && score.ParticipantID == homeID:
			home = fixture.IntPtr(value)
		case awayID > 0 && score.ParticipantID == awayID:
			away = fixture.IntPtr(value)
		}
	}
	return home, away
}

func scoreDescriptionWeight(raw string) int {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case value == "current":
		return 6
	case strings.Contains(value, "normal_time"), strings.Contains(value, "90"):
		return 5
	case strings.Contains(value, "extra_time"):
		return 4
	case strings.Contains(value, "penalt"):
		return 3
	case value == "1st_half", value == "2nd_half":
		return 2
	default:
		return 1
	}
}

func resolveFixtureStats(items []fixtureStatisticItem, homeID, awayID int64) *fixture.Stats {
	if len(items) == 0 {
		return nil
	}

	stats := fixture.Stats{}
	found := false
	for _, item := range items {
		side := item.side(homeID, awayID)
		if side == "" {
			continue
		}
		raw := item.numericValue()
		if raw < 0 {
			continue
		}
		value := fixture.IntPtr(int(raw))

		switch item.typeName() {
		case "CORNERS":
			if side == "home" {
				stats.HomeCorners = value
			} else {
				stats.AwayCorners = value
			}
		case "YELLOWCARDS":
			if side == "home" {
				stats.HomeYellowCards = value
			} else {
				stats.AwayYellowCards = value
			}
		case "REDCARDS":
			if side == "home" {
				stats.HomeRedCards = value
			} else {
				stats.AwayRedCards = value
			}
		default:
			continue
		}
		found = true
	}
	if !found {
		return nil
	}
	return &stats
}

func mapFixtureStatus(stateID int64, resultInfo string) string {
	// Suspended (11) and interrupted (18) matches can resume, so they stay live.
	// TBA, delayed, awaiting updates and pending states have no result yet.
	switch stateID {
	case 2, 3, 4, 6, 9, 11, 18, 21, 22, 23:
		return fixture.StatusLive
	case 5, 7, 8, 14:
		return fixture.StatusFinished
	case 10:
		return fixture.StatusPostponed
	case 12, 15, 17:
		return fixture.StatusCancelled
	case 1, 13, 16, 19, 25:
		return fixture.StatusScheduled
	}

	info := strings.ToLower(strings.TrimSpace(resultInfo))
	switch {
	case strings.Contains(info, "postpon"):
		return fixture.StatusPostponed
	case strings.Contains(info, "cancel"), strings.Contains(info, "abandon"):
		return fixture.StatusCancelled
	case strings.Contains(info, "live"), strings.Contains(info, "in play"), strings.Contains(info, "half"):
		return fixture.StatusLive
	case strings.Contains(info, "finish"), strings.Contains(info, "full time"), strings.Contains(info, "won"),
		strings.Contains(info, "aet"), strings.Contains(info, "pen"):
		return fixture.StatusFinished
	default:
		return fixture.StatusScheduled
	}
}

func (f fixtureStatisticItem) side(homeID, awayID int64) string {
	switch {
	case homeID > 0 && f.ParticipantID == homeID:
		return "home"
	case awayID > 0 && f.ParticipantID == awayID:
		return "away"
	}
	switch strings.ToLower(strings.TrimSpace(f.Location)) {
	case "home":
		return "home"
	case "away":
		return "away"
	}
	return ""
}

func (f fixtureStatisticItem) typeName() string {
	if f.Type.Set {
		if name := strings.TrimSpace(f.Type.Data.DeveloperName); name != "" {
			return strings.ToUpper(name)
		}
		if code := strings.TrimSpace(f.Type.Data.Code); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, "-", ""))
		}
	}
	return statTypeNameByID[f.TypeID]
}

func (f fixtureStatisticItem) numericValue() float64 {
	if f.Data == nil {
		return -1
	}
	if value, ok := f.Data["value"]; ok {
		return asFloat64(value)
	}
	if value, ok := f.Data["total"]; ok {
		return asFloat64(value)
	}
	return -1
}

func (f fixtureScoreItem) numericScore() (int, bool) {
	for _, candidate := range []any{
		f.Goals,
		lookupMapValue(f.Data, "goals"),
		lookupMapValue(f.Score, "goals"),
		lookupMapValue(f.Score, "score"),
		lookupMapValue(f.Score, "value"),
	} {
		if candidate == nil {
			continue
		}
		score := int(asFloat64(candidate))
		if score >= 0 {
			return score, true
		}
	}
	return 0, false
}

// relation decodes SportMonks includes, which arrive either wrapped in
// {"data": ...} or inline.
type relation[T any] struct {
	Data T
	Set  bool
}

func (r *relation[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		r.Set = false
		return nil
	}

	var wrapped struct {
		Data *T `json:"data"`
	}
	if err := sonic.Unmarshal(trimmed, &wrapped); err == nil && wrapped.Data != nil {
		r.Data = *wrapped.Data
		r.Set = true
		return nil
	}

	var direct T
	if err := sonic.Unmarshal(trimmed, &direct); err != nil {
		return err
	}
	r.Data = direct
	r.Set = true
	return nil
}

func lookupMapValue(src map[string]any, key string) any {
	if src == nil {
		return nil
	}
	return src[key]
}

func asFloat64(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return -1
		}
		return parsed
	default:
		return -1
	}
}
