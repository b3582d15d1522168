// Package memory provides the in-process conversation memory. Each
// session carries rolling counters (turn count, lead score, angry streak)
// plus the escalation flag and collected customer facts.
//
// Concurrency model: a sync.RWMutex guards the session map itself while a
// per-session mutex serializes updates for one session ID. Two requests
// for the same session are applied one after the other; requests for
// different sessions never contend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/rs/zerolog/log"
)

type entry struct {
	mu      sync.Mutex
	session *models.Session
}

// Store is a thread-safe in-memory session store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
}

// NewStore creates a session store. Sessions idle longer than ttl are
// removed by the reaper.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Get returns a copy of the session so callers can read without holding
// the update region.
func (s *Store) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Update runs fn inside the session's exclusive update region, creating
// the session on first use. The returned session is a copy taken after fn
// commits.
func (s *Store) Update(_ context.Context, tenantID, id string, fn func(*models.Session)) (*models.Session, error) {
	e := s.getOrCreate(tenantID, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	e.session.LastActivity = time.Now().UTC()
	return e.session.Clone(), nil
}

// Reset clears the session's accumulated state but keeps the session
// alive, matching an operator-driven "start over" in the chat widget.
func (s *Store) Reset(_ context.Context, id string) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return models.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now().UTC()
	e.session = &models.Session{
		ID:           e.session.ID,
		TenantID:     e.session.TenantID,
		CreatedAt:    now,
		LastActivity: now,
	}
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) getOrCreate(tenantID, id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e
	}
	now := time.Now().UTC()
	e = &entry{session: &models.Session{
		ID:           id,
		TenantID:     tenantID,
		CreatedAt:    now,
		LastActivity: now,
	}}
	s.entries[id] = e
	return e
}

// StartReaper runs the idle-session sweep in a background goroutine. It
// blocks until ctx is canceled.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	log.Info().
		Dur("interval", interval).
		Dur("ttl", s.ttl).
		Msg("Session reaper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Session reaper stopped")
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

// reap removes sessions idle past the TTL. The expiry check and the
// delete both happen under the map write lock so a concurrent Update
// cannot resurrect a session mid-sweep.
func (s *Store) reap() {
	cutoff := time.Now().UTC().Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, e := range s.entries {
		if e.mu.TryLock() {
			expired := e.session.LastActivity.Before(cutoff)
			e.mu.Unlock()
			if expired {
				delete(s.entries, id)
				removed++
			}
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	if removed > 0 {
		log.Info().
			Int("removed", removed).
			Int("remaining", remaining).
			Msg("Expired sessions reaped")
	}
}
