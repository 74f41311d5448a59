package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// ExecutionRepository is an in-memory execution store.
type ExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*entities.Execution
}

// NewExecutionRepository creates an empty in-memory execution repository
func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{executions: make(map[string]*entities.Execution)}
}

// Save inserts or updates an execution
func (r *ExecutionRepository) Save(ctx context.Context, execution *entities.Execution) error {
	clone, err := cloneExecution(execution)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[execution.ID().String()] = clone
	return nil
}

// GetByID retrieves an execution by id
func (r *ExecutionRepository) GetByID(ctx context.Context, id valueobjects.ExecutionID) (*entities.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	execution, ok := r.executions[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFound("execution not found: " + id.String())
	}
	return cloneExecution(execution)
}

// GetByAgentID retrieves an agent's executions, newest first
func (r *ExecutionRepository) GetByAgentID(ctx context.Context, agentID valueobjects.AgentID) ([]*entities.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Execution
	for _, execution := range r.executions {
		if execution.AgentID().Equals(agentID) {
			clone, err := cloneExecution(execution)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

// DeleteByAgentID removes every execution belonging to the agent
func (r *ExecutionRepository) DeleteByAgentID(ctx context.Context, agentID valueobjects.AgentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, execution := range r.executions {
		if execution.AgentID().Equals(agentID) {
			delete(r.executions, id)
		}
	}
	return nil
}

func cloneExecution(execution *entities.Execution) (*entities.Execution, error) {
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		copied := *t
		return &copied
	}
	return entities.ReconstructExecution(
		execution.ID(),
		execution.AgentID(),
		execution.Status(),
		copyTime(execution.StartedAt()),
		copyTime(execution.CompletedAt()),
		execution.DurationSeconds(),
		execution.InputSnapshot(),
		execution.OutputSnapshot(),
		execution.ErrorMessage(),
		execution.ErrorCount(),
		execution.ConfidenceScore(),
		execution.Metrics(),
		execution.CreatedAt(),
		execution.UpdatedAt(),
	)
}
