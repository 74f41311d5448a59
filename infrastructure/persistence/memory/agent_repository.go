// Package memory provides mutex-guarded in-memory repositories used in
// development and tests. Entities are cloned on every read and write so no
// caller ever shares mutable state with the store.
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

// AgentRepository is an in-memory agent store.
type AgentRepository struct {
	mu     sync.RWMutex
	agents map[string]*entities.Agent
}

// NewAgentRepository creates an empty in-memory agent repository
func NewAgentRepository() *AgentRepository {
	return &AgentRepository{agents: make(map[string]*entities.Agent)}
}

// Save inserts or updates an agent
func (r *AgentRepository) Save(ctx context.Context, agent *entities.Agent) error {
	clone, err := cloneAgent(agent)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID().String()] = clone
	return nil
}

// GetByID retrieves an agent by id
func (r *AgentRepository) GetByID(ctx context.Context, id valueobjects.AgentID) (*entities.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFound("agent not found: " + id.String())
	}
	return cloneAgent(agent)
}

// GetByOwner retrieves all agents registered by the owner
func (r *AgentRepository) GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*entities.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Agent
	for _, agent := range r.agents {
		if agent.BelongsTo(owner) {
			clone, err := cloneAgent(agent)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

// FindNeedingExecution retrieves the owner's stale enabled agents ordered by
// priority ascending
func (r *AgentRepository) FindNeedingExecution(ctx context.Context, owner valueobjects.Owner, cutoff time.Time) ([]*entities.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Agent
	for _, agent := range r.agents {
		if agent.BelongsTo(owner) && agent.NeedsExecution(cutoff) {
			clone, err := cloneAgent(agent)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out, nil
}

// Owners lists every owner with at least one registered agent
func (r *AgentRepository) Owners(ctx context.Context) ([]valueobjects.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]valueobjects.Owner)
	for _, agent := range r.agents {
		seen[agent.Owner().String()] = agent.Owner()
	}
	out := make([]valueobjects.Owner, 0, len(seen))
	for _, owner := range seen {
		out = append(out, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Delete removes an agent
func (r *AgentRepository) Delete(ctx context.Context, id valueobjects.AgentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id.String()]; !ok {
		return pkgerrors.NewNotFound("agent not found: " + id.String())
	}
	delete(r.agents, id.String())
	return nil
}

func cloneAgent(agent *entities.Agent) (*entities.Agent, error) {
	var lastExecution *time.Time
	if t := agent.LastExecution(); t != nil {
		copied := *t
		lastExecution = &copied
	}
	return entities.ReconstructAgent(
		agent.ID(),
		agent.Owner(),
		agent.Name(),
		agent.Description(),
		agent.Type(),
		agent.Enabled(),
		agent.Priority(),
		agent.TimeoutSeconds(),
		agent.RetryAttempts(),
		agent.Status(),
		lastExecution,
		agent.Parameters(),
		agent.CreatedAt(),
		agent.UpdatedAt(),
	)
}
