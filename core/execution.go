package core

import (
	"time"
)

// AgentType categorizes the pipeline stage an execution belongs to.
type AgentType string

// Pipeline stage kinds.
const (
	AgentTypeCoordinator    AgentType = "coordinator"
	AgentTypeTranslator     AgentType = "translator"
	AgentTypeExecutor       AgentType = "executor"
	AgentTypeOptimizer      AgentType = "optimizer"
	AgentTypeImpactAnalyzer AgentType = "impact_analyzer"
)

// ExecutionState captures the lifecycle of one agent execution.
//
// The state machine is pending -> running -> {completed, failed}. There is no
// transition out of a terminal state.
type ExecutionState string

// Execution lifecycle states.
const (
	StatePending   ExecutionState = "pending"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s ExecutionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Execution is the unit of trackable work: one invocation of one agent with
// state and timing. Records are owned exclusively by the Registry for their
// lifetime; callers hold only the AgentID while the stage runs.
//
// Terminal records always carry EndTime and Duration = EndTime - StartTime.
// Success is tri-state: nil while pending/running, then true/false.
type Execution struct {
	AgentID   string         `json:"agent_id"`
	SessionID string         `json:"session_id"`
	RequestID string         `json:"request_id"`
	AgentType AgentType      `json:"agent_type"`
	State     ExecutionState `json:"state"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time,omitzero"`
	Duration  time.Duration  `json:"duration"`
	Success   *bool          `json:"success,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Elapsed returns the duration for terminal records, or the time elapsed
// since StartTime measured against now for running ones.
func (e *Execution) Elapsed(now time.Time) time.Duration {
	if e.State.Terminal() {
		return e.Duration
	}
	return now.Sub(e.StartTime)
}

// RegistryStats aggregates counters over all executions the registry has
// seen. SuccessRate is completed / (completed + failed) in [0, 1];
// AverageDuration is computed over terminal records only.
type RegistryStats struct {
	TotalExecuted   int           `json:"total_executed"`
	ActiveCount     int           `json:"active_count"`
	CompletedCount  int           `json:"completed_count"`
	FailedCount     int           `json:"failed_count"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
}

// Registry tracks all in-flight and historical executions. Every AgentID it
// has ever issued appears in exactly one of the active set or the history,
// never both, never neither. Implementations must serialize mutations of the
// same AgentID while letting unrelated ids proceed; a single coarse lock is
// acceptable as long as hold times stay microseconds-scale.
type Registry interface {
	// Begin creates a record in running state with StartTime = now, inserts
	// it into the active set and returns the new id. Safe to call
	// concurrently.
	Begin(agentType AgentType, sessionID, requestID string) string

	// Complete moves the record from active to history with EndTime = now
	// and State completed or failed. Returns *UnknownAgentError if the id is
	// not active.
	Complete(agentID string, success bool, errMsg string) error

	// Get looks up an execution in the active set, then in history.
	Get(agentID string) (*Execution, error)

	// Active returns a snapshot of running records with elapsed durations
	// computed against now.
	Active() []*Execution

	// History returns terminal records most-recent-first, optionally
	// filtered by session id (empty matches all), capped at limit
	// (limit <= 0 means no cap).
	History(sessionID string, limit int) []*Execution

	// Statistics returns aggregate counts and rates.
	Statistics() RegistryStats

	// Cleanup removes history records whose EndTime is older than maxAge and
	// returns the removed count. Never touches active records; idempotent
	// and safe to run concurrently with Begin/Complete.
	Cleanup(maxAge time.Duration) int
}
