package core

import (
	"context"
	"time"
)

// SessionContext is the read-only slice of session state supplied to the
// translation stage.
type SessionContext struct {
	History          []Turn              `json:"history"`
	ContextVariables map[string]any      `json:"context_variables"`
	UserPreferences  map[string]any      `json:"user_preferences"`
	SchemaInfo       map[string][]string `json:"schema_info,omitempty"`
}

// SQLCandidate is the output of the translation stage.
type SQLCandidate struct {
	SQL        string   `json:"sql"`
	Confidence float64  `json:"confidence"`
	Tables     []string `json:"tables,omitempty"`
}

// QueryResult carries the outcome of executing SQL against the warehouse.
// It is a tagged variant: a successful result carries a preview and never an
// error message, a failed one carries only the error message. Construct via
// NewQueryResult / NewQueryError to preserve the invariant.
type QueryResult struct {
	RowCount      int              `json:"row_count"`
	ExecutionTime time.Duration    `json:"execution_time"`
	Preview       []map[string]any `json:"preview,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
}

// NewQueryResult constructs a successful query result.
func NewQueryResult(rowCount int, execTime time.Duration, preview []map[string]any) *QueryResult {
	return &QueryResult{RowCount: rowCount, ExecutionTime: execTime, Preview: preview}
}

// NewQueryError constructs a failed query result carrying only the error.
func NewQueryError(execTime time.Duration, msg string) *QueryResult {
	return &QueryResult{ExecutionTime: execTime, ErrorMessage: msg}
}

// Failed reports whether the result is the error variant.
func (r *QueryResult) Failed() bool { return r.ErrorMessage != "" }

// OptimizedSQL is the output of the optimization stage. Changed is false
// when the optimizer found nothing to improve; the original SQL is then
// carried through unchanged.
type OptimizedSQL struct {
	SQL     string   `json:"sql"`
	Notes   []string `json:"notes,omitempty"`
	Changed bool     `json:"changed"`
}

// ImpactAnalysis is the output of the business-impact stage. Score and
// Confidence are in [0, 1].
type ImpactAnalysis struct {
	Score           float64  `json:"impact_score"`
	Description     string   `json:"impact_description"`
	AffectedMetrics []string `json:"affected_metrics"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence_level"`
}

// Translator converts a natural-language message plus session context into a
// SQL candidate. Implementations typically wrap a large-language-model
// backend; calls may involve network latency and must respect ctx deadlines.
type Translator interface {
	Translate(ctx context.Context, message string, sessionCtx SessionContext) (*SQLCandidate, error)
}

// Executor runs SQL against the warehouse. A returned *QueryResult may be
// the error variant; a non-nil error indicates the executor itself failed.
type Executor interface {
	Execute(ctx context.Context, sql string) (*QueryResult, error)
}

// Optimizer suggests an improved form of the executed SQL. Returning an
// OptimizedSQL with Changed == false signals "no change".
type Optimizer interface {
	Optimize(ctx context.Context, sql string, result *QueryResult) (*OptimizedSQL, error)
}

// ImpactAnalyzer scores the business impact of a query result.
type ImpactAnalyzer interface {
	AssessImpact(ctx context.Context, result *QueryResult) (*ImpactAnalysis, error)
}

// Adapters bundles the four external capabilities the coordinator sequences.
// Optimizer and Impact may be nil; the corresponding stages are then skipped.
type Adapters struct {
	Translator Translator
	Executor   Executor
	Optimizer  Optimizer
	Impact     ImpactAnalyzer
}

// StagePolicy expresses how the pipeline reacts to a stage failure. The
// critical/best-effort distinction is data consulted by the pipeline driver,
// not control flow scattered through it.
type StagePolicy int

const (
	// PolicyCritical stages abort the run on failure; the synthesized
	// response reports the error as the run's outcome.
	PolicyCritical StagePolicy = iota
	// PolicyBestEffort stages degrade the response on failure; the run
	// continues and the response omits the stage's output.
	PolicyBestEffort
)

// String returns a human-readable policy name.
func (p StagePolicy) String() string {
	if p == PolicyCritical {
		return "critical"
	}
	return "best_effort"
}

var stagePolicies = map[AgentType]StagePolicy{
	AgentTypeTranslator:     PolicyCritical,
	AgentTypeExecutor:       PolicyCritical,
	AgentTypeOptimizer:      PolicyBestEffort,
	AgentTypeImpactAnalyzer: PolicyBestEffort,
}

// PolicyFor returns the failure policy of the given stage kind. Unknown
// kinds default to critical so that bookkeeping bugs surface loudly.
func PolicyFor(stage AgentType) StagePolicy {
	if p, ok := stagePolicies[stage]; ok {
		return p
	}
	return PolicyCritical
}
