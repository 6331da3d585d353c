package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/querymesh/core"
)

// MockTranslator is a deterministic Translator for tests and examples. If
// Fn is set it is invoked; otherwise canned responses registered via
// AddResponse are used, falling back to a trivial SELECT.
type MockTranslator struct {
	Fn        func(ctx context.Context, message string, sessionCtx core.SessionContext) (*core.SQLCandidate, error)
	responses map[string]*core.SQLCandidate
}

// NewMockTranslator constructs an empty mock translator.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{responses: make(map[string]*core.SQLCandidate)}
}

// AddResponse registers a canned SQL candidate for an input message.
func (m *MockTranslator) AddResponse(message string, candidate *core.SQLCandidate) {
	m.responses[message] = candidate
}

// Translate implements core.Translator.
func (m *MockTranslator) Translate(ctx context.Context, message string, sessionCtx core.SessionContext) (*core.SQLCandidate, error) {
	if m.Fn != nil {
		return m.Fn(ctx, message, sessionCtx)
	}
	if c, ok := m.responses[message]; ok {
		return c, nil
	}
	return &core.SQLCandidate{
		SQL:        fmt.Sprintf("SELECT 1 /* %s */", message),
		Confidence: 0.5,
	}, nil
}

// MockExecutor is a function-driven Executor. A nil Fn yields an empty
// successful result.
type MockExecutor struct {
	Fn func(ctx context.Context, sql string) (*core.QueryResult, error)
}

// Execute implements core.Executor.
func (m *MockExecutor) Execute(ctx context.Context, sql string) (*core.QueryResult, error) {
	if m.Fn != nil {
		return m.Fn(ctx, sql)
	}
	return core.NewQueryResult(0, 0, nil), nil
}

// MockOptimizer is a function-driven Optimizer. A nil Fn reports no change.
type MockOptimizer struct {
	Fn func(ctx context.Context, sql string, result *core.QueryResult) (*core.OptimizedSQL, error)
}

// Optimize implements core.Optimizer.
func (m *MockOptimizer) Optimize(ctx context.Context, sql string, result *core.QueryResult) (*core.OptimizedSQL, error) {
	if m.Fn != nil {
		return m.Fn(ctx, sql, result)
	}
	return &core.OptimizedSQL{SQL: sql, Changed: false}, nil
}

// MockImpactAnalyzer is a function-driven ImpactAnalyzer. A nil Fn yields a
// neutral analysis.
type MockImpactAnalyzer struct {
	Fn func(ctx context.Context, result *core.QueryResult) (*core.ImpactAnalysis, error)
}

// AssessImpact implements core.ImpactAnalyzer.
func (m *MockImpactAnalyzer) AssessImpact(ctx context.Context, result *core.QueryResult) (*core.ImpactAnalysis, error) {
	if m.Fn != nil {
		return m.Fn(ctx, result)
	}
	return &core.ImpactAnalysis{
		Score:       0.1,
		Description: "No significant business impact detected",
		Confidence:  0.5,
	}, nil
}

// SlowExecutor wraps an Executor adding a fixed delay before delegating.
// Useful for exercising stage timeouts in tests.
type SlowExecutor struct {
	Delay    time.Duration
	Delegate core.Executor
}

// Execute implements core.Executor, honoring context cancellation during the
// artificial delay.
func (s *SlowExecutor) Execute(ctx context.Context, sql string) (*core.QueryResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.Delay):
	}
	if s.Delegate == nil {
		return core.NewQueryResult(0, s.Delay, nil), nil
	}
	return s.Delegate.Execute(ctx, sql)
}
