package core

import (
	"context"
	"time"

	"github.com/hupe1980/querymesh/logging"
)

// RunState tracks the coordinator pipeline through one run.
type RunState string

// Pipeline run states. Failed is reachable from any non-terminal state when
// a critical stage fails.
const (
	RunStarted      RunState = "started"
	RunTranslating  RunState = "translating"
	RunExecuting    RunState = "executing"
	RunOptimizing   RunState = "optimizing"
	RunAssessing    RunState = "assessing"
	RunSynthesizing RunState = "synthesizing"
	RunDone         RunState = "done"
	RunFailed       RunState = "failed"
)

// RunContext carries the ephemeral pipeline scope for one coordinator run.
// It aggregates the ambient cancellation context, identifiers, the inbound
// message, a session snapshot taken at run start, and the stage outputs
// accumulated as the pipeline advances. It exists only for the duration of
// one coordinator invocation; nothing outside the data explicitly folded
// into the session and the registry survives it.
//
// A RunContext is confined to the goroutines of its own run. Stage outputs
// are written by the driving goroutine (optimize/assess results are joined
// before being recorded), so no internal locking is required.
type RunContext struct {
	Context   context.Context
	SessionID string
	RequestID string
	Message   string
	Session   *Session

	State     RunState
	StartTime time.Time

	// Accumulated stage outputs, nil until the producing stage completes.
	Candidate *SQLCandidate
	Result    *QueryResult
	Optimized *OptimizedSQL
	Impact    *ImpactAnalysis

	// ExecutionIDs lists every registry record produced by this run in
	// begin order.
	ExecutionIDs []string

	*loggerAdapter
}

// NewRunContext constructs a RunContext in the started state.
func NewRunContext(ctx context.Context, sessionID, requestID, message string, sess *Session, logger logging.Logger) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RequestID:     requestID,
		Message:       message,
		Session:       sess,
		State:         RunStarted,
		StartTime:     time.Now().UTC(),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Advance moves the run to the next pipeline state. Moving out of RunDone or
// RunFailed is a bookkeeping bug; the transition is ignored so terminal
// outcomes are never rewritten.
func (rc *RunContext) Advance(next RunState) {
	if rc.State == RunDone || rc.State == RunFailed {
		return
	}
	rc.State = next
}

// RecordExecution appends a registry record id produced by this run.
func (rc *RunContext) RecordExecution(agentID string) {
	rc.ExecutionIDs = append(rc.ExecutionIDs, agentID)
}

// Elapsed returns the wall time since the run started.
func (rc *RunContext) Elapsed() time.Duration { return time.Since(rc.StartTime) }
