package prediction

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusMatched Status = "matched"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusVoid    Status = "void"
)

var (
	ErrInvalidStatus     = errors.New("invalid prediction status")
	ErrInvalidTransition = errors.New("invalid prediction status transition")
	ErrStatusConflict    = errors.New("prediction status changed concurrently")
)

var statusRank = map[Status]int{
	StatusPending: 0,
	StatusMatched: 1,
	StatusWon:     2,
	StatusLost:    2,
	StatusVoid:    2,
}

// Prediction is a forecast row owned by the upstream producer. The engine only
// ever changes Status and FixtureRef.
type Prediction struct {
	ID              string
	HomeTeam        string
	AwayTeam        string
	FixtureRef      *int64
	MarketType      string
	MarketText      string
	Status          Status
	CreatedAt       time.Time
	ExpectedKickoff *time.Time
}

func (p Prediction) IsMatched() bool {
	return p.FixtureRef != nil && *p.FixtureRef > 0
}

func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusVoid
}

// CanTransition reports whether moving from one status to another goes strictly forward.
func CanTransition(from, to Status) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank > fromRank
}

// TerminalStatuses lists the statuses a prediction never leaves.
func TerminalStatuses() []Status {
	return []Status{StatusWon, StatusLost, StatusVoid}
}
