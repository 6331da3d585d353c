package session

import (
	"sync"
	"time"

	"github.com/hupe1980/querymesh/core"
)

// DefaultTimeout is the inactivity window after which a session becomes
// eligible for removal by Sweep.
const DefaultTimeout = 24 * time.Hour

// InMemoryStore is a volatile core.SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for single-process deployments, tests and demo servers. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create allocates a new session with a fresh id and stores it.
func (s *InMemoryStore) Create(userID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := core.NewSession(core.NewID(), userID)
	s.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

// Get returns a clone of an existing session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// AppendTurn appends a single turn to history and advances LastActive.
func (s *InMemoryStore) AppendTurn(id, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	s.appendLocked(sess, role, content)
	return nil
}

// AppendExchange atomically appends the user turn and the resulting
// assistant turn. Both land under one critical section so concurrent
// exchanges never interleave partial pairs.
func (s *InMemoryStore) AppendExchange(id, userContent, assistantContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	s.appendLocked(sess, core.RoleUser, userContent)
	s.appendLocked(sess, core.RoleAssistant, assistantContent)
	return nil
}

// ApplyContextDelta merges keys into ContextVariables, last write wins per key.
func (s *InMemoryStore) ApplyContextDelta(id string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	for k, v := range delta {
		sess.ContextVariables[k] = v
	}
	s.touchLocked(sess)
	return nil
}

// UpdatePreferences merges caller-supplied preference keys.
func (s *InMemoryStore) UpdatePreferences(id string, prefs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	for k, v := range prefs {
		sess.UserPreferences[k] = v
	}
	s.touchLocked(sess)
	return nil
}

// UpdateSchema replaces the cached schema info for the session.
func (s *InMemoryStore) UpdateSchema(id string, schema map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	sess.SchemaInfo = schema
	s.touchLocked(sess)
	return nil
}

// Delete removes the session, reporting whether it existed.
func (s *InMemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// ListActive returns summaries of sessions active within timeout of now.
func (s *InMemoryStore) ListActive(timeout time.Duration) []core.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-timeout)
	summaries := make([]core.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			continue
		}
		summaries = append(summaries, core.SessionSummary{
			ID:         sess.ID,
			UserID:     sess.UserID,
			TurnCount:  len(sess.History),
			Created:    sess.Created,
			LastActive: sess.LastActive,
		})
	}
	return summaries
}

// Sweep removes sessions whose LastActive is strictly older than timeout and
// returns the number removed. Running it twice without intervening activity
// removes nothing the second time.
func (s *InMemoryStore) Sweep(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-timeout)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Stats returns aggregate counters over the live store. A session counts as
// active when it saw activity within the last hour.
func (s *InMemoryStore) Stats() core.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := core.SessionStats{
		TotalSessions:  len(s.sessions),
		SessionTimeout: DefaultTimeout,
	}
	activeCutoff := time.Now().UTC().Add(-time.Hour)
	for _, sess := range s.sessions {
		stats.TotalMessages += len(sess.History)
		if !sess.LastActive.Before(activeCutoff) {
			stats.ActiveSessions++
		}
	}
	return stats
}

// appendLocked appends a turn and advances LastActive; caller must hold the
// write lock.
func (s *InMemoryStore) appendLocked(sess *core.Session, role, content string) {
	sess.History = append(sess.History, core.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	s.touchLocked(sess)
}

// touchLocked advances LastActive keeping it monotonically non-decreasing.
func (s *InMemoryStore) touchLocked(sess *core.Session) {
	now := time.Now().UTC()
	if now.After(sess.LastActive) {
		sess.LastActive = now
	}
}
