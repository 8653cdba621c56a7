package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/prediction-settlement/internal/platform/resilience"
)

// NoExpiry marks an entry that never goes stale.
const NoExpiry time.Duration = -1

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) age(now time.Time) time.Duration {
	return now.Sub(e.storedAt)
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && e.age(now) >= e.ttl
}

// Store is a process-local TTL cache. Entries are replaced whole on every
// write; values handed to Set must not be mutated afterwards.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	retention time.Duration
	maxAge    time.Duration
	flight    resilience.SingleFlight[any]
	now       func() time.Time
}

type Option func(*Store)

// WithRetention keeps expired entries readable through Peek for d after they expire.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithMaxAge bounds how long NoExpiry entries stay cached; Prune drops them
// once they are older than d. Zero keeps them until deleted.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a live entry and its age.
func (s *Store) Get(key string) (any, time.Duration, bool) {
	if key == "" {
		return nil, 0, false
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.expired(now) || s.evictable(e, now) {
		return nil, 0, false
	}
	return e.value, e.age(now), true
}

// Peek returns an entry even after it expired, as long as it is still retained.
func (s *Store) Peek(key string) (any, time.Duration, bool) {
	if key == "" {
		return nil, 0, false
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.evictable(e, now) {
		return nil, 0, false
	}
	return e.value, e.age(now), true
}

func (s *Store) Set(key string, value any) {
	s.SetWithTTL(key, value, s.ttl)
}

// SetWithTTL stores value with its own ttl; NoExpiry (or any ttl <= 0) never
// goes stale and is only bounded by WithMaxAge.
func (s *Store) SetWithTTL(key string, value any, ttl time.Duration) {
	if key == "" {
		return
	}

	e := entry{value: value, storedAt: s.now(), ttl: ttl}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) DeletePrefix(prefix string) {
	if prefix == "" {
		return
	}

	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// Prune drops entries that expired more than the retention period ago and reports how many went.
func (s *Store) Prune() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for key, e := range s.entries {
		if s.evictable(e, now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GetOrLoad returns the live entry for key or runs loader once across concurrent callers.
func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, _, ok := s.Get(key); ok {
		return value, nil
	}

	value, _, err := s.flight.Do(ctx, key, func() (any, error) {
		if cached, _, ok := s.Get(key); ok {
			return cached, nil
		}
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) evictable(e entry, now time.Time) bool {
	if e.ttl <= 0 {
		return s.maxAge > 0 && e.age(now) >= s.maxAge
	}
	return e.age(now) >= e.ttl+s.retention
}
