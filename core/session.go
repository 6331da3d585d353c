package core

import (
	"time"
)

// Role identifies the author of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in a session's conversation history. After being
// appended it should be treated as immutable.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents a conversational container tracking ordered turn
// history, mutable context variables, caller-owned preferences and a cached
// warehouse schema. Sessions returned by a SessionStore are snapshots; use
// store operations to mutate shared state.
//
// Contract:
//   - History is append-only; insertion order is significant
//   - Any mutation advances LastActive (monotonically non-decreasing)
//   - ContextVariables are merged last-write-wins per key by the coordinator
//   - UserPreferences are set by the caller and read-only to the coordinator
//   - SchemaInfo maps table name to column list, refreshed opportunistically
type Session struct {
	ID               string              `json:"session_id"`
	UserID           string              `json:"user_id,omitempty"`
	History          []Turn              `json:"history"`
	ContextVariables map[string]any      `json:"context_variables"`
	UserPreferences  map[string]any      `json:"user_preferences"`
	SchemaInfo       map[string][]string `json:"schema_info,omitempty"`
	Created          time.Time           `json:"created_at"`
	LastActive       time.Time           `json:"last_active_at"`
}

// NewSession creates an empty session with the given id.
func NewSession(id, userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:               id,
		UserID:           userID,
		History:          []Turn{},
		ContextVariables: map[string]any{},
		UserPreferences:  map[string]any{},
		Created:          now,
		LastActive:       now,
	}
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:               s.ID,
		UserID:           s.UserID,
		History:          make([]Turn, len(s.History)),
		ContextVariables: make(map[string]any, len(s.ContextVariables)),
		UserPreferences:  make(map[string]any, len(s.UserPreferences)),
		Created:          s.Created,
		LastActive:       s.LastActive,
	}
	copy(clone.History, s.History)
	for k, v := range s.ContextVariables {
		clone.ContextVariables[k] = v
	}
	for k, v := range s.UserPreferences {
		clone.UserPreferences[k] = v
	}
	if s.SchemaInfo != nil {
		clone.SchemaInfo = make(map[string][]string, len(s.SchemaInfo))
		for table, cols := range s.SchemaInfo {
			cc := make([]string, len(cols))
			copy(cc, cols)
			clone.SchemaInfo[table] = cc
		}
	}
	return clone
}

// Context assembles the read-only view of the session handed to the
// translation stage.
func (s *Session) Context() SessionContext {
	return SessionContext{
		History:          s.History,
		ContextVariables: s.ContextVariables,
		UserPreferences:  s.UserPreferences,
		SchemaInfo:       s.SchemaInfo,
	}
}

// SessionSummary is the reduced session view returned by listing operations.
type SessionSummary struct {
	ID         string    `json:"session_id"`
	UserID     string    `json:"user_id,omitempty"`
	TurnCount  int       `json:"turn_count"`
	Created    time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active_at"`
}

// SessionStats aggregates store-wide counters.
type SessionStats struct {
	TotalSessions  int           `json:"total_sessions"`
	ActiveSessions int           `json:"active_sessions"`
	TotalMessages  int           `json:"total_messages"`
	SessionTimeout time.Duration `json:"session_timeout"`
}

// SessionStore owns conversational state across turns. Implementations must
// be safe for concurrent use and confine side effects to their own state; a
// store never calls out to adapters.
type SessionStore interface {
	// Create allocates a new session with a fresh id and empty history.
	Create(userID string) (*Session, error)

	// Get returns a snapshot of the session or ErrSessionNotFound.
	Get(id string) (*Session, error)

	// AppendTurn appends a single turn to history and advances LastActive.
	AppendTurn(id, role, content string) error

	// AppendExchange atomically appends a user turn and the resulting
	// assistant turn. Concurrent exchanges against the same session never
	// interleave partial pairs.
	AppendExchange(id, userContent, assistantContent string) error

	// ApplyContextDelta merges keys into ContextVariables, last write wins
	// per key.
	ApplyContextDelta(id string, delta map[string]any) error

	// UpdatePreferences merges caller-supplied preference keys.
	UpdatePreferences(id string, prefs map[string]any) error

	// UpdateSchema replaces the cached schema info for the session.
	UpdateSchema(id string, schema map[string][]string) error

	// Delete removes the session, reporting whether it existed.
	Delete(id string) bool

	// ListActive returns summaries of sessions whose LastActive is within
	// timeout of now.
	ListActive(timeout time.Duration) []SessionSummary

	// Sweep removes sessions inactive beyond timeout and returns the number
	// removed. Idempotent.
	Sweep(timeout time.Duration) int

	// Stats returns aggregate counters over the live store.
	Stats() SessionStats
}
