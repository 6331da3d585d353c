// Package querymesh provides a high-level façade over the coordinator
// pipeline and the service abstractions (sessions, execution registry &
// logging) for building conversational analytics systems. Most applications
// interact with this package by:
//  1. Creating a Mesh via New() with the adapter implementations for their
//     model backend and warehouse (defaults cover local development)
//  2. Sending messages through Chat()
//  3. Optionally running StartSweeper() for periodic session/history eviction
//
// The façade delegates orchestration to coordinator.Coordinator while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development and testing; production deployments supply real
// translator/executor adapters and a structured logger.
package querymesh

import (
	"context"
	"time"

	"github.com/hupe1980/querymesh/adapter"
	"github.com/hupe1980/querymesh/coordinator"
	"github.com/hupe1980/querymesh/core"
	"github.com/hupe1980/querymesh/logging"
	"github.com/hupe1980/querymesh/registry"
	"github.com/hupe1980/querymesh/session"
)

// Options configures the Mesh instance.
type Options struct {
	// Adapters supply the external capabilities. Unset fields default to
	// the in-process mock/rule implementations.
	Adapters core.Adapters

	// Stores (default to in-memory implementations if not provided).
	SessionStore core.SessionStore
	Registry     core.Registry

	// Pipeline timeouts (see coordinator.Options).
	StageTimeout time.Duration
	RunTimeout   time.Duration

	// SessionTimeout is the inactivity window used by the sweeper.
	SessionTimeout time.Duration
	// HistoryMaxAge is the retention window for terminal execution records
	// used by the sweeper.
	HistoryMaxAge time.Duration

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the coordinator and services.
type Mesh struct {
	coordinator *coordinator.Coordinator
	sessions    core.SessionStore
	registry    core.Registry

	sessionTimeout time.Duration
	historyMaxAge  time.Duration
	logger         logging.Logger
}

// New creates a new Mesh instance with optional overrides. Any unset service
// is initialized with an in-memory implementation and any unset adapter with
// a local mock/rule implementation.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		SessionStore:   session.NewInMemoryStore(),
		Registry:       registry.NewInMemoryRegistry(),
		StageTimeout:   30 * time.Second,
		RunTimeout:     5 * time.Minute,
		SessionTimeout: session.DefaultTimeout,
		HistoryMaxAge:  registry.DefaultMaxAge,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Adapters.Translator == nil {
		opts.Adapters.Translator = adapter.NewMockTranslator()
	}
	if opts.Adapters.Executor == nil {
		opts.Adapters.Executor = &adapter.StaticExecutor{}
	}
	if opts.Adapters.Optimizer == nil {
		opts.Adapters.Optimizer = adapter.NewRuleOptimizer()
	}
	if opts.Adapters.Impact == nil {
		opts.Adapters.Impact = adapter.NewRuleImpactAnalyzer()
	}

	coord := coordinator.New(opts.SessionStore, opts.Registry, opts.Adapters, func(o *coordinator.Options) {
		o.StageTimeout = opts.StageTimeout
		o.RunTimeout = opts.RunTimeout
		o.Logger = opts.Logger
	})

	return &Mesh{
		coordinator:    coord,
		sessions:       opts.SessionStore,
		registry:       opts.Registry,
		sessionTimeout: opts.SessionTimeout,
		historyMaxAge:  opts.HistoryMaxAge,
		logger:         opts.Logger,
	}
}

// Chat processes one inbound message through the pipeline.
func (m *Mesh) Chat(ctx context.Context, req coordinator.Request) (*coordinator.Response, error) {
	return m.coordinator.Process(ctx, req)
}

// Sessions exposes the session store for lifecycle operations.
func (m *Mesh) Sessions() core.SessionStore { return m.sessions }

// Registry exposes the execution registry for introspection.
func (m *Mesh) Registry() core.Registry { return m.registry }

// StartSweeper launches a goroutine that periodically removes inactive
// sessions and evicts aged execution history. It runs until ctx is
// cancelled; sweeps never run inline with request traffic.
func (m *Mesh) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions := m.sessions.Sweep(m.sessionTimeout)
				records := m.registry.Cleanup(m.historyMaxAge)
				if sessions > 0 || records > 0 {
					m.logger.Info("sweep completed", "sessions_removed", sessions, "records_removed", records)
				}
			}
		}
	}()
}
