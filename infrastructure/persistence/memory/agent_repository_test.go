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
	"analyst-backend/tests/fixtures"
)

func TestAgentRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewAgentRepository()

	agent := fixtures.NewAgent().Build()
	require.NoError(t, repo.Save(ctx, agent))

	stored, err := repo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, agent.Name(), stored.Name())
	assert.Equal(t, agent.Type(), stored.Type())

	_, err = repo.GetByID(ctx, valueobjects.NewAgentID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAgentRepository_CloneIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewAgentRepository()

	agent := fixtures.NewAgent().Build()
	require.NoError(t, repo.Save(ctx, agent))

	// Mutating the caller's copy after Save must not leak into the store.
	require.NoError(t, agent.Pause())
	stored, err := repo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusIdle, stored.Status())

	// Mutating a read result must not either.
	require.NoError(t, stored.Pause())
	again, err := repo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusIdle, again.Status())
}

func TestAgentRepository_GetByOwnerFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewAgentRepository()

	mine := fixtures.NewAgent().Build()
	theirs := fixtures.NewAgent().WithOwner(fixtures.Owner("other")).Build()
	require.NoError(t, repo.Save(ctx, mine))
	require.NoError(t, repo.Save(ctx, theirs))

	out, err := repo.GetByOwner(ctx, mine.Owner())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].ID().Equals(mine.ID()))
}

func TestAgentRepository_FindNeedingExecution(t *testing.T) {
	ctx := context.Background()
	repo := NewAgentRepository()
	owner := fixtures.DefaultOwner()
	cutoff := time.Now().Add(-time.Hour)

	low := fixtures.NewAgent().WithOwner(owner).WithPriority(5).Build()
	high := fixtures.NewAgent().WithOwner(owner).WithPriority(1).Build()
	disabled := fixtures.NewAgent().WithOwner(owner).Disabled().Build()
	fresh := fixtures.NewAgent().WithOwner(owner).WithLastExecution(time.Now()).Build()
	for _, agent := range []*entities.Agent{low, high, disabled, fresh} {
		require.NoError(t, repo.Save(ctx, agent))
	}

	out, err := repo.FindNeedingExecution(ctx, owner, cutoff)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Ordered by priority ascending.
	assert.True(t, out[0].ID().Equals(high.ID()))
	assert.True(t, out[1].ID().Equals(low.ID()))
}

func TestAgentRepository_OwnersDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewAgentRepository()

	require.NoError(t, repo.Save(ctx, fixtures.NewAgent().WithOwner(fixtures.Owner("beta")).Build()))
	require.NoError(t, repo.Save(ctx, fixtures.NewAgent().WithOwner(fixtures.Owner("beta")).Build()))
	require.NoError(t, repo.Save(ctx, fixtures.NewAgent().WithOwner(fixtures.Owner("alpha")).Build()))

	owners, err := repo.Owners(ctx)
	require.NoError(t, err)
	require.Len(t, owners, 2)
	assert.Equal(t, "alpha", owners[0].String())
	assert.Equal(t, "beta", owners[1].String())
}

func TestAgentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewAgentRepository()

	agent := fixtures.NewAgent().Build()
	require.NoError(t, repo.Save(ctx, agent))
	require.NoError(t, repo.Delete(ctx, agent.ID()))

	_, err := repo.GetByID(ctx, agent.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(repo.Delete(ctx, agent.ID())))
}
