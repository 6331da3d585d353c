package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/querymesh/core"
)

// DefaultMaxAge is the history retention window used when callers do not
// supply one to Cleanup.
const DefaultMaxAge = 24 * time.Hour

// InMemoryRegistry is a volatile core.Registry implementation. All records
// live behind a single RWMutex; operations touch maps and small slices only,
// so hold times stay microseconds-scale and a coarse lock satisfies the
// per-id serialization contract without sharding.
//
// Returned records are copies; callers can inspect them freely without
// racing the registry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	active  map[string]*core.Execution
	history []*core.Execution // most recent last; reversed on read
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{active: make(map[string]*core.Execution)}
}

// Begin creates a record in running state and inserts it into the active set.
func (r *InMemoryRegistry) Begin(agentType core.AgentType, sessionID, requestID string) string {
	exec := &core.Execution{
		AgentID:   core.NewID(),
		SessionID: sessionID,
		RequestID: requestID,
		AgentType: agentType,
		State:     core.StateRunning,
		StartTime: time.Now().UTC(),
	}
	r.mu.Lock()
	r.active[exec.AgentID] = exec
	r.mu.Unlock()
	return exec.AgentID
}

// Complete moves the record from active to history with a terminal state.
// Completing an id that is not active returns *core.UnknownAgentError.
func (r *InMemoryRegistry) Complete(agentID string, success bool, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.active[agentID]
	if !ok {
		return &core.UnknownAgentError{AgentID: agentID}
	}
	delete(r.active, agentID)

	exec.EndTime = time.Now().UTC()
	exec.Duration = exec.EndTime.Sub(exec.StartTime)
	exec.Success = &success
	exec.Error = errMsg
	if success {
		exec.State = core.StateCompleted
	} else {
		exec.State = core.StateFailed
	}
	r.history = append(r.history, exec)
	return nil
}

// Get looks up an execution in the active set, then in history.
func (r *InMemoryRegistry) Get(agentID string) (*core.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if exec, ok := r.active[agentID]; ok {
		return copyExec(exec), nil
	}
	for _, exec := range r.history {
		if exec.AgentID == agentID {
			return copyExec(exec), nil
		}
	}
	return nil, &core.UnknownAgentError{AgentID: agentID}
}

// Active returns a snapshot of running records. Durations are the elapsed
// time computed against now, since running records carry no EndTime yet.
func (r *InMemoryRegistry) Active() []*core.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now().UTC()
	snapshot := make([]*core.Execution, 0, len(r.active))
	for _, exec := range r.active {
		c := copyExec(exec)
		c.Duration = exec.Elapsed(now)
		snapshot = append(snapshot, c)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].StartTime.Before(snapshot[j].StartTime)
	})
	return snapshot
}

// History returns terminal records most-recent-first, optionally filtered by
// session id. limit <= 0 means no cap.
func (r *InMemoryRegistry) History(sessionID string, limit int) []*core.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Execution, 0, len(r.history))
	for i := len(r.history) - 1; i >= 0; i-- {
		exec := r.history[i]
		if sessionID != "" && exec.SessionID != sessionID {
			continue
		}
		out = append(out, copyExec(exec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Statistics returns aggregate counts and rates over all known executions.
func (r *InMemoryRegistry) Statistics() core.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := core.RegistryStats{
		TotalExecuted: len(r.history),
		ActiveCount:   len(r.active),
	}
	var total time.Duration
	for _, exec := range r.history {
		total += exec.Duration
		if exec.State == core.StateCompleted {
			stats.CompletedCount++
		} else {
			stats.FailedCount++
		}
	}
	if terminal := stats.CompletedCount + stats.FailedCount; terminal > 0 {
		stats.SuccessRate = float64(stats.CompletedCount) / float64(terminal)
		stats.AverageDuration = total / time.Duration(terminal)
	}
	return stats
}

// Cleanup removes history records whose EndTime is older than maxAge. Active
// records are never touched. Idempotent: a second call with no intervening
// completions removes nothing.
func (r *InMemoryRegistry) Cleanup(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	kept := r.history[:0]
	removed := 0
	for _, exec := range r.history {
		if exec.EndTime.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, exec)
	}
	// Release the tail so evicted records can be collected.
	for i := len(kept); i < len(r.history); i++ {
		r.history[i] = nil
	}
	r.history = kept
	return removed
}

func copyExec(exec *core.Execution) *core.Execution {
	c := *exec
	if exec.Success != nil {
		v := *exec.Success
		c.Success = &v
	}
	return &c
}
