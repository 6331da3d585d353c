package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/querymesh/core"
	"github.com/hupe1980/querymesh/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// StageTimeout bounds each adapter call. On expiry the stage is treated
	// as failed with error "timeout" under its usual policy.
	StageTimeout time.Duration
	// RunTimeout bounds one whole pipeline run. Exceeding it aborts
	// still-running best-effort stages and proceeds to synthesis with
	// whatever completed.
	RunTimeout time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator sequences adapter calls into one pipeline run per inbound
// message, tracking every stage through the registry and folding the turn
// back into the session store. Public methods are safe for concurrent use;
// concurrent runs only share the injected stores.
type Coordinator struct {
	sessions core.SessionStore
	registry core.Registry
	adapters core.Adapters

	stageTimeout time.Duration
	runTimeout   time.Duration
	logger       logging.Logger
}

// New constructs a Coordinator with optional overrides.
func New(sessions core.SessionStore, registry core.Registry, adapters core.Adapters, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		StageTimeout: 30 * time.Second,
		RunTimeout:   5 * time.Minute,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{
		sessions:     sessions,
		registry:     registry,
		adapters:     adapters,
		stageTimeout: opts.StageTimeout,
		runTimeout:   opts.RunTimeout,
		logger:       opts.Logger,
	}
}

// Process handles one inbound message: resolves or creates the session, runs
// the pipeline and returns the synthesized response plus execution
// metadata.
//
// Critical stage failures do not surface as an error return; they degrade
// into a response carrying the failure in QueryResult.ErrorMessage, and the
// turn is still recorded. The error return covers caller mistakes
// (validation, unknown session) and bookkeeping bugs only.
func (c *Coordinator) Process(ctx context.Context, req Request) (*Response, error) {
	if req.Message == "" {
		return nil, &core.ValidationError{Field: "message", Message: "message must not be empty"}
	}

	sess, err := c.resolveSession(req)
	if err != nil {
		return nil, err
	}

	requestID := core.NewID()
	ctx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	// Caller-supplied context participates in this run's translation input
	// without being persisted; the session only accumulates what synthesis
	// derives.
	for k, v := range req.Context {
		sess.ContextVariables[k] = v
	}

	rc := core.NewRunContext(ctx, sess.ID, requestID, req.Message, sess, c.logger)
	coordinatorID := c.registry.Begin(core.AgentTypeCoordinator, sess.ID, requestID)
	rc.RecordExecution(coordinatorID)

	resp := c.runPipeline(rc)

	runOK := rc.State == core.RunDone
	if err := c.registry.Complete(coordinatorID, runOK, failureOf(resp)); err != nil {
		return nil, fmt.Errorf("pipeline bookkeeping: %w", err)
	}
	resp.AgentMetadata.AgentID = coordinatorID
	resp.AgentMetadata.TotalDurationMS = durationMS(rc.Elapsed())

	if err := c.commitTurn(rc, resp); err != nil {
		return nil, err
	}

	c.logger.Info("pipeline run finished",
		"request_id", requestID,
		"session_id", sess.ID,
		"state", string(rc.State),
		"duration", rc.Elapsed(),
	)
	return resp, nil
}

// resolveSession loads the referenced session or creates a fresh one when no
// id was supplied.
func (c *Coordinator) resolveSession(req Request) (*core.Session, error) {
	if req.SessionID == "" {
		return c.sessions.Create(req.UserID)
	}
	return c.sessions.Get(req.SessionID)
}

// runPipeline drives the state machine for one run, mutating rc as stages
// complete and returning the assembled response.
func (c *Coordinator) runPipeline(rc *core.RunContext) *Response {
	rc.Advance(core.RunTranslating)
	agentID, err := c.runStage(rc, core.AgentTypeTranslator, func(ctx context.Context) error {
		candidate, terr := c.adapters.Translator.Translate(ctx, rc.Message, rc.Session.Context())
		if terr != nil {
			return terr
		}
		rc.Candidate = candidate
		return nil
	})
	rc.RecordExecution(agentID)
	if err != nil {
		rc.State = core.RunFailed
		return c.synthesize(rc, err)
	}

	rc.Advance(core.RunExecuting)
	agentID, err = c.runStage(rc, core.AgentTypeExecutor, func(ctx context.Context) error {
		result, eerr := c.adapters.Executor.Execute(ctx, rc.Candidate.SQL)
		if result != nil {
			// Keep the error variant too; the response reports the failed
			// SQL and message for diagnosis.
			rc.Result = result
		}
		if eerr != nil {
			return eerr
		}
		if result.Failed() {
			return errors.New(result.ErrorMessage)
		}
		return nil
	})
	rc.RecordExecution(agentID)
	if err != nil {
		rc.State = core.RunFailed
		return c.synthesize(rc, err)
	}

	c.runBestEffort(rc)

	rc.Advance(core.RunSynthesizing)
	resp := c.synthesize(rc, nil)
	rc.Advance(core.RunDone)
	return resp
}

// runBestEffort fans out the optimization and impact stages concurrently and
// joins them before synthesis. Failures are recorded on the stage's own
// registry record and the corresponding output is simply absent.
func (c *Coordinator) runBestEffort(rc *core.RunContext) {
	type stageOut struct {
		agentID string
		err     error
	}

	var (
		wg     sync.WaitGroup
		optOut stageOut
		impOut stageOut
		optRes *core.OptimizedSQL
		impRes *core.ImpactAnalysis
	)
	ranOpt := c.adapters.Optimizer != nil
	ranImp := c.adapters.Impact != nil

	if ranOpt {
		rc.Advance(core.RunOptimizing)
		wg.Add(1)
		go func() {
			defer wg.Done()
			optOut.agentID, optOut.err = c.runStage(rc, core.AgentTypeOptimizer, func(ctx context.Context) error {
				out, err := c.adapters.Optimizer.Optimize(ctx, rc.Candidate.SQL, rc.Result)
				if err != nil {
					return err
				}
				optRes = out
				return nil
			})
		}()
	}
	if ranImp {
		rc.Advance(core.RunAssessing)
		wg.Add(1)
		go func() {
			defer wg.Done()
			impOut.agentID, impOut.err = c.runStage(rc, core.AgentTypeImpactAnalyzer, func(ctx context.Context) error {
				out, err := c.adapters.Impact.AssessImpact(ctx, rc.Result)
				if err != nil {
					return err
				}
				impRes = out
				return nil
			})
		}()
	}
	wg.Wait()

	if ranOpt {
		rc.RecordExecution(optOut.agentID)
		if optOut.err == nil {
			rc.Optimized = optRes
		} else {
			rc.LogWarn("optimization stage degraded", "error", optOut.err)
		}
	}
	if ranImp {
		rc.RecordExecution(impOut.agentID)
		if impOut.err == nil {
			rc.Impact = impRes
		} else {
			rc.LogWarn("impact stage degraded", "error", impOut.err)
		}
	}
}

// runStage wraps one adapter call in a registry Begin/Complete pair under
// the stage timeout. Timeouts surface as a "timeout" failure of the stage's
// record. The returned agent id is always valid, success or not.
func (c *Coordinator) runStage(rc *core.RunContext, stage core.AgentType, fn func(ctx context.Context) error) (string, error) {
	agentID := c.registry.Begin(stage, rc.SessionID, rc.RequestID)

	stageCtx, cancel := context.WithTimeout(rc.Context, c.stageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded)) {
		err = errors.New("timeout")
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if cerr := c.registry.Complete(agentID, err == nil, errMsg); cerr != nil {
		// Double completion is a bookkeeping bug; surface it over the stage
		// outcome.
		return agentID, cerr
	}

	c.logger.Debug("stage finished",
		"stage", string(stage),
		"agent_id", agentID,
		"duration", time.Since(start),
		"success", err == nil,
	)

	if err != nil {
		return agentID, &core.StageError{Stage: stage, Policy: core.PolicyFor(stage), Err: err}
	}
	return agentID, nil
}

// commitTurn atomically appends the user/assistant exchange and folds
// derived context variables into the session.
func (c *Coordinator) commitTurn(rc *core.RunContext, resp *Response) error {
	if err := c.sessions.AppendExchange(rc.SessionID, rc.Message, resp.Response); err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	if delta := extractContextVariables(rc.Message); len(delta) > 0 {
		if err := c.sessions.ApplyContextDelta(rc.SessionID, delta); err != nil {
			return fmt.Errorf("failed to update session context: %w", err)
		}
	}
	return nil
}

// failureOf returns the error message carried by a failed run's response, or
// empty for successful runs.
func failureOf(resp *Response) string {
	if resp.QueryResult != nil {
		return resp.QueryResult.ErrorMessage
	}
	return ""
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
