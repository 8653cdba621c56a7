package prediction

import (
	"context"
	"time"
)

// Filter narrows SelectPending. Empty Statuses means pending and matched.
// Rows come back ordered by (CreatedAt, ID); After resumes strictly past a
// previously returned row.
type Filter struct {
	Statuses []Status
	Limit    int
	After    *Cursor
}

// Cursor is the keyset position of one prediction in SelectPending order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the keyset position of p.
func CursorOf(p Prediction) Cursor {
	return Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// Before reports whether c sorts before other.
func (c Cursor) Before(other Cursor) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// StatusUpdate moves one prediction forward. ExpectedStatus guards against
// concurrent writers; a mismatch yields ErrStatusConflict.
type StatusUpdate struct {
	ID             string
	ExpectedStatus Status
	Status         Status
	FixtureRef     *int64
}

// Repository exposes the two prediction store operations the engine needs.
type Repository interface {
	SelectPending(ctx context.Context, filter Filter) ([]Prediction, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) error
}

func (f Filter) EffectiveStatuses() []Status {
	if len(f.Statuses) == 0 {
		return []Status{StatusPending, StatusMatched}
	}
	return f.Statuses
}

// Validate checks the update is a legal forward transition.
func (u StatusUpdate) Validate() error {
	if u.ID == "" {
		return ErrInvalidTransition
	}
	if !CanTransition(u.ExpectedStatus, u.Status) {
		return ErrInvalidTransition
	}
	if u.Status == StatusMatched && (u.FixtureRef == nil || *u.FixtureRef <= 0) {
		return ErrInvalidTransition
	}
	return nil
}
