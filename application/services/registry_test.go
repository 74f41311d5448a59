package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"analyst-backend/application/agents"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/infrastructure/persistence/memory"
	pkgerrors "analyst-backend/pkg/errors"
	"analyst-backend/tests/fixtures"
)

type registryFixture struct {
	registry  *services.Registry
	agentRepo *memory.AgentRepository
	execRepo  *memory.ExecutionRepository
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{
		agentRepo: memory.NewAgentRepository(),
		execRepo:  memory.NewExecutionRepository(),
	}
	f.registry = services.NewRegistry(f.agentRepo, f.execRepo, zap.NewNop())
	return f
}

func TestRegisterAgent_AppliesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	agent, err := f.registry.RegisterAgent(ctx, fixtures.DefaultOwner(), services.RegisterAgentCommand{
		Name: "competitor tracker",
		Type: entities.AgentTypeDeepResearch,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.DefaultPriority, agent.Priority())
	assert.Equal(t, entities.DefaultTimeoutSeconds, agent.TimeoutSeconds())
	assert.Equal(t, entities.DefaultRetryAttempts, agent.RetryAttempts())
	assert.Equal(t, entities.AgentStatusIdle, agent.Status())
	assert.True(t, agent.Enabled())

	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, "competitor tracker", stored.Name())
}

func TestRegisterAgent_ExplicitZeroRetries(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	// A pointer distinguishes "no retries" from "use the default".
	zero := 0
	agent, err := f.registry.RegisterAgent(ctx, fixtures.DefaultOwner(), services.RegisterAgentCommand{
		Name:          "one shot",
		Type:          entities.AgentTypeDeepResearch,
		RetryAttempts: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, agent.RetryAttempts())
}

func TestRegisterAgent_RejectsInvalidPolicy(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	_, err := f.registry.RegisterAgent(ctx, fixtures.DefaultOwner(), services.RegisterAgentCommand{
		Name:     "bad",
		Type:     entities.AgentTypeDeepResearch,
		Priority: -3,
	})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.registry.RegisterAgent(ctx, fixtures.DefaultOwner(), services.RegisterAgentCommand{
		Name: "",
		Type: entities.AgentTypeDeepResearch,
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUpdateAgent_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)
	owner := fixtures.DefaultOwner()

	agent := fixtures.NewAgent().WithOwner(owner).WithName("before").Build()
	saveAgent(t, f.agentRepo, agent)

	name := "after"
	timeout := 45
	updated, err := f.registry.UpdateAgent(ctx, owner, agent.ID(), services.UpdateAgentCommand{
		Name:           &name,
		TimeoutSeconds: &timeout,
		Parameters:     map[string]string{"query": "pricing"},
	})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Name())
	assert.Equal(t, 45, updated.TimeoutSeconds())
	assert.Equal(t, "pricing", updated.Parameters()["query"])
	// Untouched fields keep their values.
	assert.Equal(t, agent.Priority(), updated.Priority())
	assert.Equal(t, agent.RetryAttempts(), updated.RetryAttempts())
}

func TestRegistry_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	agent := fixtures.NewAgent().Build()
	saveAgent(t, f.agentRepo, agent)

	_, err := f.registry.GetAgent(ctx, fixtures.Owner("intruder"), agent.ID())
	assert.True(t, pkgerrors.IsAccessDenied(err))

	err = f.registry.PauseAgent(ctx, fixtures.Owner("intruder"), agent.ID())
	assert.True(t, pkgerrors.IsAccessDenied(err))

	mine, err := f.registry.ListAgents(ctx, agent.Owner())
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.registry.ListAgents(ctx, fixtures.Owner("intruder"))
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	agent := fixtures.NewAgent().Build()
	saveAgent(t, f.agentRepo, agent)
	owner := agent.Owner()

	require.NoError(t, f.registry.DisableAgent(ctx, owner, agent.ID()))
	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.False(t, stored.Enabled())

	require.NoError(t, f.registry.EnableAgent(ctx, owner, agent.ID()))
	require.NoError(t, f.registry.PauseAgent(ctx, owner, agent.ID()))
	stored, err = f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusPaused, stored.Status())

	require.NoError(t, f.registry.ResetAgent(ctx, owner, agent.ID()))
	stored, err = f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusIdle, stored.Status())
}

func TestDeleteAgent_RejectsRunning(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	agent := fixtures.NewAgent().Build()
	require.NoError(t, agent.BeginRun())
	saveAgent(t, f.agentRepo, agent)

	err := f.registry.DeleteAgent(ctx, agent.Owner(), agent.ID())
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.agentRepo.GetByID(ctx, agent.ID())
	assert.NoError(t, err)
}

func TestDeleteAgent_CascadesExecutionHistory(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	agent := fixtures.NewAgent().Build()
	saveAgent(t, f.agentRepo, agent)

	input := agents.Input{
		Kind:         entities.AgentTypeDeepResearch,
		DeepResearch: &agents.DeepResearchInput{Query: "q"},
	}
	for i := 0; i < 2; i++ {
		execution, err := entities.NewExecution(agent.ID(), input.Snapshot())
		require.NoError(t, err)
		require.NoError(t, f.execRepo.Save(ctx, execution))
	}

	require.NoError(t, f.registry.DeleteAgent(ctx, agent.Owner(), agent.ID()))

	_, err := f.agentRepo.GetByID(ctx, agent.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	executions, err := f.execRepo.GetByAgentID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestDeleteAgent_UnknownAgent(t *testing.T) {
	f := newRegistryFixture(t)

	err := f.registry.DeleteAgent(context.Background(),
		fixtures.DefaultOwner(), valueobjects.NewAgentID())
	assert.True(t, pkgerrors.IsNotFound(err))
}
