package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

func newExecution(t *testing.T, agentID valueobjects.AgentID) *entities.Execution {
	t.Helper()
	execution, err := entities.NewExecution(agentID, `{"query":"q"}`)
	require.NoError(t, err)
	return execution
}

func TestExecutionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository()

	execution := newExecution(t, valueobjects.NewAgentID())
	require.NoError(t, repo.Save(ctx, execution))

	stored, err := repo.GetByID(ctx, execution.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionStatusPending, stored.Status())
	assert.Equal(t, `{"query":"q"}`, stored.InputSnapshot())

	_, err = repo.GetByID(ctx, valueobjects.NewExecutionID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestExecutionRepository_CloneIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository()

	execution := newExecution(t, valueobjects.NewAgentID())
	require.NoError(t, repo.Save(ctx, execution))

	stored, err := repo.GetByID(ctx, execution.ID())
	require.NoError(t, err)
	require.NoError(t, stored.Start())

	again, err := repo.GetByID(ctx, execution.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionStatusPending, again.Status())
}

func TestExecutionRepository_GetByAgentIDNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository()
	agentID := valueobjects.NewAgentID()

	older := newExecution(t, agentID)
	require.NoError(t, repo.Save(ctx, older))
	time.Sleep(2 * time.Millisecond)
	newer := newExecution(t, agentID)
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, newExecution(t, valueobjects.NewAgentID())))

	out, err := repo.GetByAgentID(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].ID().Equals(newer.ID()))
	assert.True(t, out[1].ID().Equals(older.ID()))
}

func TestExecutionRepository_DeleteByAgentID(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository()
	agentID := valueobjects.NewAgentID()
	otherID := valueobjects.NewAgentID()

	require.NoError(t, repo.Save(ctx, newExecution(t, agentID)))
	require.NoError(t, repo.Save(ctx, newExecution(t, agentID)))
	kept := newExecution(t, otherID)
	require.NoError(t, repo.Save(ctx, kept))

	require.NoError(t, repo.DeleteByAgentID(ctx, agentID))

	gone, err := repo.GetByAgentID(ctx, agentID)
	require.NoError(t, err)
	assert.Empty(t, gone)
	remaining, err := repo.GetByAgentID(ctx, otherID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
