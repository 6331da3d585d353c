package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/querymesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Create("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Empty(t, sess.History)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_AppendTurnOrdering(t *testing.T) {
	store := NewInMemoryStore()
	sess, _ := store.Create("")

	require.NoError(t, store.AppendTurn(sess.ID, core.RoleUser, "first"))
	require.NoError(t, store.AppendTurn(sess.ID, core.RoleAssistant, "second"))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "second", got.History[len(got.History)-1].Content)

	// History length is monotonically non-decreasing for a live session.
	require.NoError(t, store.AppendTurn(sess.ID, core.RoleUser, "third"))
	again, _ := store.Get(sess.ID)
	assert.Greater(t, len(again.History), len(got.History)-1)

	assert.ErrorIs(t, store.AppendTurn("missing", core.RoleUser, "x"), core.ErrSessionNotFound)
}

func TestInMemoryStore_AppendExchange(t *testing.T) {
	store := NewInMemoryStore()
	sess, _ := store.Create("")

	require.NoError(t, store.AppendExchange(sess.ID, "question", "answer"))

	got, _ := store.Get(sess.ID)
	require.Len(t, got.History, 2)
	assert.Equal(t, core.RoleUser, got.History[0].Role)
	assert.Equal(t, core.RoleAssistant, got.History[1].Role)
	assert.Equal(t, "answer", got.History[1].Content)
}

func TestInMemoryStore_ApplyContextDelta(t *testing.T) {
	store := NewInMemoryStore()
	sess, _ := store.Create("")

	require.NoError(t, store.ApplyContextDelta(sess.ID, map[string]any{"current_quarter": "Q1"}))
	require.NoError(t, store.ApplyContextDelta(sess.ID, map[string]any{"current_quarter": "Q2", "current_year": 2024}))

	got, _ := store.Get(sess.ID)
	assert.Equal(t, "Q2", got.ContextVariables["current_quarter"])
	assert.Equal(t, 2024, got.ContextVariables["current_year"])
}

func TestInMemoryStore_UpdateSchemaAndPreferences(t *testing.T) {
	store := NewInMemoryStore()
	sess, _ := store.Create("")

	require.NoError(t, store.UpdateSchema(sess.ID, map[string][]string{"sales": {"revenue"}}))
	require.NoError(t, store.UpdatePreferences(sess.ID, map[string]any{"language": "en"}))

	got, _ := store.Get(sess.ID)
	assert.Equal(t, []string{"revenue"}, got.SchemaInfo["sales"])
	assert.Equal(t, "en", got.UserPreferences["language"])
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	sess, _ := store.Create("")

	assert.True(t, store.Delete(sess.ID))
	assert.False(t, store.Delete(sess.ID))
	_, err := store.Get(sess.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_LastActiveMonotonic(t *testing.T) {
	store := NewInMemoryStore()
	sess, _ := store.Create("")

	before, _ := store.Get(sess.ID)
	require.NoError(t, store.AppendTurn(sess.ID, core.RoleUser, "hi"))
	after, _ := store.Get(sess.ID)

	assert.False(t, after.LastActive.Before(before.LastActive))
}

func TestInMemoryStore_Sweep(t *testing.T) {
	store := NewInMemoryStore()
	stale, _ := store.Create("")
	fresh, _ := store.Create("")

	// Age one session past the window by back-dating its activity.
	store.mu.Lock()
	store.sessions[stale.ID].LastActive = time.Now().UTC().Add(-2 * time.Hour)
	store.mu.Unlock()

	removed := store.Sweep(time.Hour)
	assert.Equal(t, 1, removed)

	_, err := store.Get(stale.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)

	// Idempotent: nothing left to remove.
	assert.Equal(t, 0, store.Sweep(time.Hour))
}

func TestInMemoryStore_ListActiveAndStats(t *testing.T) {
	store := NewInMemoryStore()
	active, _ := store.Create("u1")
	idle, _ := store.Create("")
	require.NoError(t, store.AppendExchange(active.ID, "q", "a"))

	store.mu.Lock()
	store.sessions[idle.ID].LastActive = time.Now().UTC().Add(-3 * time.Hour)
	store.mu.Unlock()

	summaries := store.ListActive(time.Hour)
	require.Len(t, summaries, 1)
	assert.Equal(t, active.ID, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].TurnCount)

	stats := store.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, DefaultTimeout, stats.SessionTimeout)
}
