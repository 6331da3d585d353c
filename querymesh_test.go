package querymesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/querymesh/adapter"
	"github.com/hupe1980/querymesh/coordinator"
	"github.com/hupe1980/querymesh/core"
)

func TestMesh_DefaultsEndToEnd(t *testing.T) {
	mesh := New()

	resp, err := mesh.Chat(t.Context(), coordinator.Request{
		Message: "What is the total revenue for Q1 2024?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Response)
	require.NotNil(t, resp.QueryResult)
	assert.Empty(t, resp.QueryResult.ErrorMessage)

	// Default wiring runs every stage.
	history := mesh.Registry().History(resp.SessionID, 0)
	assert.Len(t, history, 5)

	sess, err := mesh.Sessions().Get(resp.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.History, 2)
}

func TestMesh_CustomAdapters(t *testing.T) {
	translator := adapter.NewMockTranslator()
	translator.AddResponse("top customers", &core.SQLCandidate{
		SQL:        "SELECT name FROM customers ORDER BY revenue DESC",
		Confidence: 0.95,
	})

	mesh := New(func(o *Options) {
		o.Adapters.Translator = translator
		o.Adapters.Executor = &adapter.StaticExecutor{
			Rows: []map[string]any{{"name": "Acme"}},
		}
	})

	resp, err := mesh.Chat(t.Context(), coordinator.Request{Message: "top customers"})
	require.NoError(t, err)

	require.NotNil(t, resp.QueryResult)
	assert.Contains(t, resp.QueryResult.SQLQuery, "FROM customers")
	assert.InDelta(t, 0.95, resp.AgentMetadata.Confidence, 0.001)
	require.NotNil(t, resp.QueryResult.RowCount)
	assert.Equal(t, 1, *resp.QueryResult.RowCount)
}

func TestMesh_Sweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	mesh := New(func(o *Options) {
		o.SessionTimeout = 0 // every idle session is immediately stale
		o.HistoryMaxAge = 0
	})

	resp, err := mesh.Chat(context.Background(), coordinator.Request{Message: "revenue?"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	mesh.StartSweeper(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := mesh.Sessions().Get(resp.SessionID)
		return err != nil && len(mesh.Registry().History("", 0)) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
}
