package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestExecution_Elapsed(t *testing.T) {
	start := time.Now().UTC().Add(-2 * time.Second)

	running := &Execution{State: StateRunning, StartTime: start}
	elapsed := running.Elapsed(time.Now().UTC())
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)

	done := &Execution{State: StateCompleted, StartTime: start, Duration: time.Second}
	assert.Equal(t, time.Second, done.Elapsed(time.Now().UTC()))
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		stage AgentType
		want  StagePolicy
	}{
		{AgentTypeTranslator, PolicyCritical},
		{AgentTypeExecutor, PolicyCritical},
		{AgentTypeOptimizer, PolicyBestEffort},
		{AgentTypeImpactAnalyzer, PolicyBestEffort},
		{AgentType("unknown"), PolicyCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PolicyFor(tt.stage), "stage %s", tt.stage)
	}
}

func TestQueryResult_Variants(t *testing.T) {
	ok := NewQueryResult(3, time.Millisecond, []map[string]any{{"revenue": 1}})
	assert.False(t, ok.Failed())
	assert.Empty(t, ok.ErrorMessage)

	failed := NewQueryError(time.Millisecond, "table not found")
	assert.True(t, failed.Failed())
	assert.Nil(t, failed.Preview)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: AgentTypeExecutor, Policy: PolicyCritical, Err: assert.AnError}
	assert.True(t, err.Critical())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "executor")

	soft := &StageError{Stage: AgentTypeOptimizer, Policy: PolicyBestEffort, Err: assert.AnError}
	assert.False(t, soft.Critical())
}
