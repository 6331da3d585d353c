package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/querymesh/core"
)

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)

// RuleOptimizer inspects SQL text for well-known anti-patterns (SELECT *,
// missing LIMIT, unfiltered scans) and rewrites what it safely can. Pattern
// coverage is intentionally shallow; real deployments plug a
// warehouse-specific optimizer behind core.Optimizer instead.
type RuleOptimizer struct {
	// DefaultLimit is appended to unbounded SELECTs. Zero disables the rule.
	DefaultLimit int
}

// NewRuleOptimizer constructs a RuleOptimizer with a 1000 row default limit.
func NewRuleOptimizer() *RuleOptimizer {
	return &RuleOptimizer{DefaultLimit: 1000}
}

// Optimize implements core.Optimizer.
func (o *RuleOptimizer) Optimize(_ context.Context, sql string, result *core.QueryResult) (*core.OptimizedSQL, error) {
	optimized := strings.TrimRight(strings.TrimSpace(sql), ";")
	upper := strings.ToUpper(optimized)
	var notes []string

	if strings.Contains(upper, "SELECT *") {
		notes = append(notes, "Use specific column names instead of SELECT * to reduce data scanned")
	}
	if !strings.Contains(upper, "WHERE") && strings.Contains(upper, "FROM") {
		notes = append(notes, "Add WHERE clauses to filter data and reduce bytes processed")
	}
	if strings.Count(upper, "JOIN") > 2 {
		notes = append(notes, "Review JOIN order; more than two joins often benefits from pre-aggregation")
	}

	changed := false
	if o.DefaultLimit > 0 && !limitRe.MatchString(optimized) && strings.HasPrefix(upper, "SELECT") {
		optimized = fmt.Sprintf("%s LIMIT %d", optimized, o.DefaultLimit)
		notes = append(notes, fmt.Sprintf("Appended LIMIT %d to bound the result set", o.DefaultLimit))
		changed = true
	}

	return &core.OptimizedSQL{SQL: optimized, Notes: notes, Changed: changed}, nil
}

// RuleImpactAnalyzer derives a coarse business-impact score from the shape
// of the query result: row volume and the presence of revenue-like metrics
// in the preview columns.
type RuleImpactAnalyzer struct{}

// NewRuleImpactAnalyzer constructs a RuleImpactAnalyzer.
func NewRuleImpactAnalyzer() *RuleImpactAnalyzer {
	return &RuleImpactAnalyzer{}
}

var metricKeywords = []string{"revenue", "sales", "profit", "cost", "orders", "customers", "conversion"}

// AssessImpact implements core.ImpactAnalyzer.
func (a *RuleImpactAnalyzer) AssessImpact(_ context.Context, result *core.QueryResult) (*core.ImpactAnalysis, error) {
	if result == nil || result.Failed() {
		return nil, fmt.Errorf("no successful query result to assess")
	}

	var affected []string
	for _, row := range result.Preview {
		for col := range row {
			lc := strings.ToLower(col)
			for _, kw := range metricKeywords {
				if strings.Contains(lc, kw) && !contains(affected, col) {
					affected = append(affected, col)
				}
			}
		}
		break // column set is identical across preview rows
	}

	score := 0.2
	if len(affected) > 0 {
		score = 0.5 + 0.1*float64(min(len(affected), 4))
	}
	if result.RowCount > 10000 {
		score = min(score+0.1, 1.0)
	}

	desc := "Low business impact: no core business metrics involved"
	var recs []string
	if len(affected) > 0 {
		desc = fmt.Sprintf("Touches %d business metric column(s): %s", len(affected), strings.Join(affected, ", "))
		recs = append(recs, "Monitor the affected metrics over the next reporting period")
	}
	if result.RowCount == 0 {
		recs = append(recs, "Result set is empty; verify filters match the intended time range")
	}

	return &core.ImpactAnalysis{
		Score:           score,
		Description:     desc,
		AffectedMetrics: affected,
		Recommendations: recs,
		Confidence:      0.6,
	}, nil
}

// StaticExecutor returns a canned result for every query after a simulated
// execution delay. It stands in for a warehouse client in examples and local
// development.
type StaticExecutor struct {
	Rows  []map[string]any
	Delay time.Duration
}

// Execute implements core.Executor.
func (s *StaticExecutor) Execute(ctx context.Context, sql string) (*core.QueryResult, error) {
	start := time.Now()
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	return core.NewQueryResult(len(s.Rows), time.Since(start), s.Rows), nil
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
