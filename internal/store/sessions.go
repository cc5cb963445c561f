package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no session exists for an ID.
	ErrNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the session cap is reached.
	ErrTooManySessions = errors.New("too many active sessions")
)

type sessionEntry struct {
	store    *SeriesStore
	lastSeen time.Time
}

// Sessions maps session IDs to independent SeriesStores.
type Sessions struct {
	mu sync.Mutex

	entries map[string]*sessionEntry

	// retention configuration
	maxSessions int           // 0 = unlimited
	idleTTL     time.Duration // 0 = never expire

	now func() time.Time
}

// NewSessions creates a registry. maxSessions <= 0 means unlimited, idleTTL
// <= 0 disables expiry.
func NewSessions(maxSessions int, idleTTL time.Duration) *Sessions {
	return &Sessions{
		entries:     make(map[string]*sessionEntry),
		maxSessions: maxSessions,
		idleTTL:     idleTTL,
		now:         time.Now,
	}
}

// Create opens a new session with an empty store.
func (s *Sessions) Create() (string, *SeriesStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.entries) >= s.maxSessions {
		s.evictLocked()
		if len(s.entries) >= s.maxSessions {
			return "", nil, ErrTooManySessions
		}
	}

	id := uuid.NewString()
	st := NewSeriesStore()
	s.entries[id] = &sessionEntry{store: st, lastSeen: s.now()}
	return id, st, nil
}

// Get returns the store of a live session and refreshes its idle timer.
func (s *Sessions) Get(id string) (*SeriesStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.expired(e) {
		return nil, ErrNotFound
	}
	e.lastSeen = s.now()
	return e.store, nil
}

// Delete ends a session and drops its data.
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.store.Clear()
	delete(s.entries, id)
	return nil
}

// EvictIdle removes sessions idle for longer than the TTL and returns how
// many were removed.
func (s *Sessions) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked()
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) evictLocked() int {
	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			e.store.Clear()
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Sessions) expired(e *sessionEntry) bool {
	return s.idleTTL > 0 && s.now().Sub(e.lastSeen) > s.idleTTL
}
