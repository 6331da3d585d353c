package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/querymesh/adapter"
	"github.com/hupe1980/querymesh/core"
	"github.com/hupe1980/querymesh/registry"
	"github.com/hupe1980/querymesh/session"
)

type fixture struct {
	coordinator *Coordinator
	sessions    core.SessionStore
	registry    core.Registry
}

func newFixture(t *testing.T, adapters core.Adapters, optFns ...func(o *Options)) *fixture {
	t.Helper()
	if adapters.Translator == nil {
		adapters.Translator = &adapter.MockTranslator{
			Fn: func(_ context.Context, message string, _ core.SessionContext) (*core.SQLCandidate, error) {
				return &core.SQLCandidate{SQL: "SELECT SUM(revenue) FROM sales", Confidence: 0.9}, nil
			},
		}
	}
	if adapters.Executor == nil {
		adapters.Executor = &adapter.MockExecutor{
			Fn: func(_ context.Context, sql string) (*core.QueryResult, error) {
				return core.NewQueryResult(1, 10*time.Millisecond, []map[string]any{{"total_revenue": 1500000}}), nil
			},
		}
	}
	sessions := session.NewInMemoryStore()
	reg := registry.NewInMemoryRegistry()
	return &fixture{
		coordinator: New(sessions, reg, adapters, optFns...),
		sessions:    sessions,
		registry:    reg,
	}
}

func TestCoordinator_HappyPath(t *testing.T) {
	f := newFixture(t, core.Adapters{
		Optimizer: adapter.NewRuleOptimizer(),
		Impact:    adapter.NewRuleImpactAnalyzer(),
	})

	resp, err := f.coordinator.Process(t.Context(), Request{
		Message: "What is the total revenue for Q1 2024?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Response)
	assert.NotEmpty(t, resp.SessionID)
	require.NotNil(t, resp.QueryResult)
	assert.NotEmpty(t, resp.QueryResult.SQLQuery)
	assert.Empty(t, resp.QueryResult.ErrorMessage)
	require.NotNil(t, resp.QueryResult.RowCount)
	assert.Equal(t, 1, *resp.QueryResult.RowCount)
	assert.NotNil(t, resp.ImpactAnalysis)
	assert.NotEmpty(t, resp.AgentMetadata.AgentID)
	assert.Equal(t, "coordinator", resp.AgentMetadata.AgentType)
	assert.Contains(t, resp.AgentMetadata.ProcessingSteps, "translate")
	assert.Contains(t, resp.AgentMetadata.ProcessingSteps, "synthesize")

	// Session was created and recorded exactly one user and one assistant turn.
	sess, err := f.sessions.Get(resp.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, core.RoleUser, sess.History[0].Role)
	assert.Equal(t, "What is the total revenue for Q1 2024?", sess.History[0].Content)
	assert.Equal(t, core.RoleAssistant, sess.History[1].Role)

	// Temporal references folded into session context.
	assert.Equal(t, "Q1", sess.ContextVariables["current_quarter"])
	assert.Equal(t, 2024, sess.ContextVariables["current_year"])

	// All records of the run share one request id and are terminal.
	history := f.registry.History(resp.SessionID, 0)
	require.Len(t, history, 5) // coordinator + 4 stages
	requestID := history[0].RequestID
	for _, exec := range history {
		assert.Equal(t, requestID, exec.RequestID)
		assert.True(t, exec.State.Terminal())
	}
	assert.Empty(t, f.registry.Active())
}

func TestCoordinator_ReusesSession(t *testing.T) {
	f := newFixture(t, core.Adapters{})

	first, err := f.coordinator.Process(t.Context(), Request{Message: "revenue for Q1 2024?"})
	require.NoError(t, err)

	second, err := f.coordinator.Process(t.Context(), Request{
		Message:   "and for Q2?",
		SessionID: first.SessionID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	sess, _ := f.sessions.Get(first.SessionID)
	assert.Len(t, sess.History, 4)
	// Last-write-wins on the quarter mention.
	assert.Equal(t, "Q2", sess.ContextVariables["current_quarter"])
}

func TestCoordinator_TranslationFailure(t *testing.T) {
	f := newFixture(t, core.Adapters{
		Translator: &adapter.MockTranslator{
			Fn: func(context.Context, string, core.SessionContext) (*core.SQLCandidate, error) {
				return nil, errors.New("model unavailable")
			},
		},
	})

	resp, err := f.coordinator.Process(t.Context(), Request{Message: "anything"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Response)
	require.NotNil(t, resp.QueryResult)
	assert.Contains(t, resp.QueryResult.ErrorMessage, "model unavailable")
	assert.Nil(t, resp.ImpactAnalysis)

	// The translator record is failed, and the user turn is still stored.
	var failed *core.Execution
	for _, exec := range f.registry.History(resp.SessionID, 0) {
		if exec.AgentType == core.AgentTypeTranslator {
			failed = exec
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, core.StateFailed, failed.State)

	sess, _ := f.sessions.Get(resp.SessionID)
	require.NotEmpty(t, sess.History)
	assert.Equal(t, core.RoleUser, sess.History[0].Role)
}

func TestCoordinator_ExecutionFailurePreservesSQL(t *testing.T) {
	f := newFixture(t, core.Adapters{
		Executor: &adapter.MockExecutor{
			Fn: func(_ context.Context, sql string) (*core.QueryResult, error) {
				return core.NewQueryError(5*time.Millisecond, "table not found: sales"), nil
			},
		},
		Optimizer: adapter.NewRuleOptimizer(),
	})

	resp, err := f.coordinator.Process(t.Context(), Request{Message: "revenue?"})
	require.NoError(t, err)

	require.NotNil(t, resp.QueryResult)
	assert.Equal(t, "SELECT SUM(revenue) FROM sales", resp.QueryResult.SQLQuery)
	assert.Contains(t, resp.QueryResult.ErrorMessage, "table not found")
	assert.Empty(t, resp.QueryResult.OptimizedSQL)

	// Best-effort stages never ran: only coordinator, translator, executor.
	assert.Len(t, f.registry.History(resp.SessionID, 0), 3)
}

func TestCoordinator_BestEffortFailureDegrades(t *testing.T) {
	f := newFixture(t, core.Adapters{
		Optimizer: &adapter.MockOptimizer{
			Fn: func(context.Context, string, *core.QueryResult) (*core.OptimizedSQL, error) {
				return nil, errors.New("optimizer crashed")
			},
		},
		Impact: adapter.NewRuleImpactAnalyzer(),
	})

	resp, err := f.coordinator.Process(t.Context(), Request{Message: "revenue?"})
	require.NoError(t, err)

	// Run succeeded; the response just omits the optimization output.
	require.NotNil(t, resp.QueryResult)
	assert.Empty(t, resp.QueryResult.ErrorMessage)
	assert.Empty(t, resp.QueryResult.OptimizedSQL)
	assert.NotNil(t, resp.ImpactAnalysis)

	var optimizer *core.Execution
	for _, exec := range f.registry.History(resp.SessionID, 0) {
		if exec.AgentType == core.AgentTypeOptimizer {
			optimizer = exec
		}
	}
	require.NotNil(t, optimizer)
	assert.Equal(t, core.StateFailed, optimizer.State)
	assert.Equal(t, "optimizer crashed", optimizer.Error)
}

func TestCoordinator_StageTimeout(t *testing.T) {
	f := newFixture(t, core.Adapters{
		Executor: &adapter.SlowExecutor{Delay: 200 * time.Millisecond},
	}, func(o *Options) {
		o.StageTimeout = 20 * time.Millisecond
	})

	resp, err := f.coordinator.Process(t.Context(), Request{Message: "revenue?"})
	require.NoError(t, err)

	require.NotNil(t, resp.QueryResult)
	assert.Contains(t, resp.QueryResult.ErrorMessage, "timeout")

	var executor *core.Execution
	for _, exec := range f.registry.History(resp.SessionID, 0) {
		if exec.AgentType == core.AgentTypeExecutor {
			executor = exec
		}
	}
	require.NotNil(t, executor)
	assert.Equal(t, core.StateFailed, executor.State)
	assert.Equal(t, "timeout", executor.Error)
}

func TestCoordinator_ValidationError(t *testing.T) {
	f := newFixture(t, core.Adapters{})

	_, err := f.coordinator.Process(t.Context(), Request{Message: ""})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	// No pipeline or registry state was created.
	assert.Equal(t, 0, f.registry.Statistics().TotalExecuted)
	assert.Equal(t, 0, f.sessions.Stats().TotalSessions)
}

func TestCoordinator_UnknownSession(t *testing.T) {
	f := newFixture(t, core.Adapters{})

	_, err := f.coordinator.Process(t.Context(), Request{Message: "hi", SessionID: "missing"})
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.Equal(t, 0, f.registry.Statistics().TotalExecuted)
}

func TestCoordinator_CallerContextNotPersisted(t *testing.T) {
	f := newFixture(t, core.Adapters{
		Translator: &adapter.MockTranslator{
			Fn: func(_ context.Context, _ string, sessionCtx core.SessionContext) (*core.SQLCandidate, error) {
				// Caller context is visible to translation.
				if sessionCtx.ContextVariables["department"] != "sales" {
					return nil, errors.New("missing caller context")
				}
				return &core.SQLCandidate{SQL: "SELECT 1", Confidence: 1}, nil
			},
		},
	})

	resp, err := f.coordinator.Process(t.Context(), Request{
		Message: "hello",
		Context: map[string]any{"department": "sales"},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.QueryResult)
	assert.Empty(t, resp.QueryResult.ErrorMessage)

	sess, _ := f.sessions.Get(resp.SessionID)
	_, persisted := sess.ContextVariables["department"]
	assert.False(t, persisted)
}

func TestCoordinator_ConcurrentRunsIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, core.Adapters{
		Optimizer: adapter.NewRuleOptimizer(),
		Impact:    adapter.NewRuleImpactAnalyzer(),
	})

	const runs = 8
	sessionIDs := make([]string, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.coordinator.Process(context.Background(), Request{
				Message: fmt.Sprintf("revenue for store %d?", i),
			})
			if err != nil {
				t.Errorf("run %d: %v", i, err)
				return
			}
			sessionIDs[i] = resp.SessionID
		}(i)
	}
	wg.Wait()

	// No run's records appear under another run's session filter.
	for i, sessionID := range sessionIDs {
		require.NotEmpty(t, sessionID, "run %d", i)
		history := f.registry.History(sessionID, 0)
		assert.Len(t, history, 5)
		for _, exec := range history {
			assert.Equal(t, sessionID, exec.SessionID)
		}
	}
}

func TestExtractContextVariables(t *testing.T) {
	tests := []struct {
		message string
		want    map[string]any
	}{
		{"What is the total revenue for Q1 2024?", map[string]any{"current_quarter": "Q1", "current_year": 2024}},
		{"show q3 numbers", map[string]any{"current_quarter": "Q3"}},
		{"compare 2023 to last year", map[string]any{"current_year": 2023}},
		{"hello there", map[string]any{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractContextVariables(tt.message), "message %q", tt.message)
	}
}
