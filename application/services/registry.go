package services

import (
	"context"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// RegisterAgentCommand carries the fields for registering a new agent.
// Zero policy fields fall back to the defaults.
type RegisterAgentCommand struct {
	Name           string
	Description    string
	Type           entities.AgentType
	Priority       int
	TimeoutSeconds int
	RetryAttempts  *int
	Parameters     map[string]string
}

// UpdateAgentCommand carries a partial update of an agent's descriptor.
// Nil fields are left unchanged.
type UpdateAgentCommand struct {
	Name           *string
	Description    *string
	Priority       *int
	TimeoutSeconds *int
	RetryAttempts  *int
	Parameters     map[string]string
}

// Registry manages the catalogue of agent descriptors and their policies.
type Registry struct {
	agentRepo ports.AgentRepository
	execRepo  ports.ExecutionRepository
	logger    *zap.Logger
}

// NewRegistry creates an agent registry service
func NewRegistry(agentRepo ports.AgentRepository, execRepo ports.ExecutionRepository, logger *zap.Logger) *Registry {
	return &Registry{agentRepo: agentRepo, execRepo: execRepo, logger: logger}
}

// RegisterAgent creates a new agent descriptor for the owner
func (r *Registry) RegisterAgent(ctx context.Context, owner valueobjects.Owner, cmd RegisterAgentCommand) (*entities.Agent, error) {
	agent, err := entities.NewAgent(owner, cmd.Name, cmd.Type)
	if err != nil {
		return nil, err
	}
	if cmd.Description != "" {
		agent.SetDescription(cmd.Description)
	}
	if cmd.Priority != 0 {
		if err := agent.SetPriority(cmd.Priority); err != nil {
			return nil, err
		}
	}
	if cmd.TimeoutSeconds != 0 {
		if err := agent.SetTimeoutSeconds(cmd.TimeoutSeconds); err != nil {
			return nil, err
		}
	}
	if cmd.RetryAttempts != nil {
		if err := agent.SetRetryAttempts(*cmd.RetryAttempts); err != nil {
			return nil, err
		}
	}
	for k, v := range cmd.Parameters {
		if err := agent.SetParameter(k, v); err != nil {
			return nil, err
		}
	}

	if err := r.agentRepo.Save(ctx, agent); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting agent")
	}
	r.logger.Info("agent registered",
		zap.String("agentId", agent.ID().String()),
		zap.String("type", string(agent.Type())),
		zap.String("owner", owner.String()))
	return agent, nil
}

// GetAgent retrieves an owner's agent
func (r *Registry) GetAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) (*entities.Agent, error) {
	agent, err := r.agentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !agent.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("agent belongs to another owner")
	}
	return agent, nil
}

// ListAgents retrieves all of the owner's agents
func (r *Registry) ListAgents(ctx context.Context, owner valueobjects.Owner) ([]*entities.Agent, error) {
	return r.agentRepo.GetByOwner(ctx, owner)
}

// UpdateAgent applies a partial descriptor update
func (r *Registry) UpdateAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID, cmd UpdateAgentCommand) (*entities.Agent, error) {
	agent, err := r.GetAgent(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		if err := agent.Rename(*cmd.Name); err != nil {
			return nil, err
		}
	}
	if cmd.Description != nil {
		agent.SetDescription(*cmd.Description)
	}
	if cmd.Priority != nil {
		if err := agent.SetPriority(*cmd.Priority); err != nil {
			return nil, err
		}
	}
	if cmd.TimeoutSeconds != nil {
		if err := agent.SetTimeoutSeconds(*cmd.TimeoutSeconds); err != nil {
			return nil, err
		}
	}
	if cmd.RetryAttempts != nil {
		if err := agent.SetRetryAttempts(*cmd.RetryAttempts); err != nil {
			return nil, err
		}
	}
	for k, v := range cmd.Parameters {
		if err := agent.SetParameter(k, v); err != nil {
			return nil, err
		}
	}

	if err := r.agentRepo.Save(ctx, agent); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting agent update")
	}
	return agent, nil
}

// EnableAgent marks the agent eligible for the periodic sweep
func (r *Registry) EnableAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) error {
	return r.mutate(ctx, owner, id, func(a *entities.Agent) error {
		a.Enable()
		return nil
	})
}

// DisableAgent removes the agent from periodic sweep consideration
func (r *Registry) DisableAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) error {
	return r.mutate(ctx, owner, id, func(a *entities.Agent) error {
		a.Disable()
		return nil
	})
}

// PauseAgent suspends the agent
func (r *Registry) PauseAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) error {
	return r.mutate(ctx, owner, id, (*entities.Agent).Pause)
}

// ResetAgent returns a failed or paused agent to idle
func (r *Registry) ResetAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) error {
	return r.mutate(ctx, owner, id, (*entities.Agent).Reset)
}

// DeleteAgent removes the agent and cascade-deletes its execution history
func (r *Registry) DeleteAgent(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) error {
	agent, err := r.GetAgent(ctx, owner, id)
	if err != nil {
		return err
	}
	if agent.Status() == entities.AgentStatusRunning {
		return pkgerrors.NewValidation("cannot delete a running agent")
	}

	if err := r.execRepo.DeleteByAgentID(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting execution history")
	}
	if err := r.agentRepo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting agent")
	}
	r.logger.Info("agent deleted",
		zap.String("agentId", id.String()), zap.String("owner", owner.String()))
	return nil
}

func (r *Registry) mutate(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID, fn func(*entities.Agent) error) error {
	agent, err := r.GetAgent(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := fn(agent); err != nil {
		return err
	}
	return r.agentRepo.Save(ctx, agent)
}
