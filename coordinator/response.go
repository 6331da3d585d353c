package coordinator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/querymesh/core"
)

// Request is one inbound chat message. SessionID is optional; when empty a
// new session is created. Context keys participate only in this run's
// translation input.
type Request struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
}

// QueryResultView is the caller-facing projection of a run's query outcome.
// Either the preview fields or ErrorMessage are populated, never both.
type QueryResultView struct {
	SQLQuery        string           `json:"sql_query"`
	OptimizedSQL    string           `json:"optimized_sql,omitempty"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
	RowCount        *int             `json:"row_count,omitempty"`
	DataPreview     []map[string]any `json:"data_preview,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// AgentMetadata summarizes the run's execution bookkeeping.
type AgentMetadata struct {
	AgentID         string   `json:"agent_id"`
	AgentType       string   `json:"agent_type"`
	ProcessingSteps []string `json:"processing_steps"`
	Confidence      float64  `json:"confidence"`
	TotalDurationMS float64  `json:"total_duration_ms"`
}

// Response is the synthesized answer for one run.
type Response struct {
	Response       string               `json:"response"`
	QueryResult    *QueryResultView     `json:"query_result,omitempty"`
	ImpactAnalysis *core.ImpactAnalysis `json:"impact_analysis,omitempty"`
	SessionID      string               `json:"session_id"`
	Timestamp      time.Time            `json:"timestamp"`
	AgentMetadata  AgentMetadata        `json:"agent_metadata"`
}

// synthesize combines whatever stage outputs the run accumulated into one
// response. A non-nil stageErr marks a critical failure: the response then
// carries an explanatory text plus the failure in QueryResult.ErrorMessage
// while preserving any SQL produced before the failure for diagnosis.
func (c *Coordinator) synthesize(rc *core.RunContext, stageErr error) *Response {
	resp := &Response{
		SessionID: rc.SessionID,
		Timestamp: time.Now().UTC(),
		AgentMetadata: AgentMetadata{
			AgentType:       string(core.AgentTypeCoordinator),
			ProcessingSteps: stepsOf(rc),
		},
	}
	if rc.Candidate != nil {
		resp.AgentMetadata.Confidence = rc.Candidate.Confidence
	}

	if stageErr != nil {
		resp.QueryResult = failedView(rc, stageErr)
		resp.Response = failureText(stageErr)
		return resp
	}

	view := &QueryResultView{
		SQLQuery:        rc.Candidate.SQL,
		ExecutionTimeMS: durationMS(rc.Result.ExecutionTime),
		DataPreview:     previewOf(rc.Result),
	}
	rows := rc.Result.RowCount
	view.RowCount = &rows
	if rc.Optimized != nil && rc.Optimized.Changed {
		view.OptimizedSQL = rc.Optimized.SQL
	}
	resp.QueryResult = view
	resp.ImpactAnalysis = rc.Impact
	resp.Response = successText(rc)
	return resp
}

// stepsOf lists the stage names the run executed, in pipeline order.
func stepsOf(rc *core.RunContext) []string {
	steps := []string{}
	if rc.Candidate != nil || rc.State == core.RunFailed {
		steps = append(steps, "translate")
	}
	if rc.Result != nil {
		steps = append(steps, "execute")
	}
	if rc.Optimized != nil {
		steps = append(steps, "optimize")
	}
	if rc.Impact != nil {
		steps = append(steps, "assess_impact")
	}
	return append(steps, "synthesize")
}

// failedView reports the failed SQL and error message so callers can
// diagnose what was attempted.
func failedView(rc *core.RunContext, stageErr error) *QueryResultView {
	view := &QueryResultView{ErrorMessage: stageErr.Error()}
	if rc.Candidate != nil {
		view.SQLQuery = rc.Candidate.SQL
	}
	if rc.Result != nil {
		view.ExecutionTimeMS = durationMS(rc.Result.ExecutionTime)
		if rc.Result.ErrorMessage != "" {
			view.ErrorMessage = rc.Result.ErrorMessage
		}
	}
	return view
}

func failureText(stageErr error) string {
	var se *core.StageError
	if errors.As(stageErr, &se) {
		switch se.Stage {
		case core.AgentTypeTranslator:
			return "I could not translate your question into a query. Please rephrase it or add more detail."
		case core.AgentTypeExecutor:
			return "The generated query failed to execute. The SQL and error message are included for diagnosis."
		}
	}
	return "The request could not be processed."
}

// successText builds the comprehensive user-facing answer from all
// available stage outputs.
func successText(rc *core.RunContext) string {
	parts := []string{
		fmt.Sprintf("Query executed successfully, returning %d row(s) in %.0f ms.",
			rc.Result.RowCount, durationMS(rc.Result.ExecutionTime)),
	}
	if rc.Optimized != nil && rc.Optimized.Changed {
		parts = append(parts, "An optimized form of the query is available.")
	}
	if rc.Impact != nil && rc.Impact.Score > 0.5 {
		parts = append(parts, fmt.Sprintf("This query has a %.0f%% business impact score.", rc.Impact.Score*100))
	}
	if rc.Impact != nil && len(rc.Impact.Recommendations) > 0 {
		parts = append(parts, "Key recommendations:")
		for i, rec := range rc.Impact.Recommendations {
			if i == 3 {
				break
			}
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, rec))
		}
	}
	return strings.Join(parts, " ")
}

// previewOf caps the preview at five rows, mirroring what the response
// surface documents as a preview rather than a full result set.
func previewOf(result *core.QueryResult) []map[string]any {
	preview := result.Preview
	if len(preview) > 5 {
		preview = preview[:5]
	}
	return preview
}
