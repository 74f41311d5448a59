package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

func testOwner(t *testing.T) valueobjects.Owner {
	t.Helper()
	owner, err := valueobjects.NewOwner("user-1")
	require.NoError(t, err)
	return owner
}

func TestNewAgent_AppliesDefaults(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)

	assert.Equal(t, DefaultPriority, agent.Priority())
	assert.Equal(t, DefaultTimeoutSeconds, agent.TimeoutSeconds())
	assert.Equal(t, DefaultRetryAttempts, agent.RetryAttempts())
	assert.Equal(t, AgentStatusIdle, agent.Status())
	assert.True(t, agent.Enabled())
	assert.Nil(t, agent.LastExecution())
}

func TestNewAgent_Validation(t *testing.T) {
	owner := testOwner(t)

	tests := []struct {
		name      string
		owner     valueobjects.Owner
		agentName string
		agentType AgentType
	}{
		{"empty owner", valueobjects.Owner{}, "a", AgentTypeDeepResearch},
		{"empty name", owner, "", AgentTypeDeepResearch},
		{"unknown type", owner, "a", AgentType("SOMETHING_ELSE")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAgent(tt.owner, tt.agentName, tt.agentType)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestAgent_BeginRun_RejectsConcurrentRun(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)

	require.NoError(t, agent.BeginRun())
	assert.Equal(t, AgentStatusRunning, agent.Status())

	err = agent.BeginRun()
	assert.True(t, pkgerrors.IsAgentBusy(err))
}

func TestAgent_FinishRun_StampsLastExecution(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)
	require.NoError(t, agent.BeginRun())

	agent.FinishRun(true)

	assert.Equal(t, AgentStatusCompleted, agent.Status())
	require.NotNil(t, agent.LastExecution())
	assert.WithinDuration(t, time.Now(), *agent.LastExecution(), time.Second)
}

func TestAgent_FinishRun_Failure(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)
	require.NoError(t, agent.BeginRun())

	agent.FinishRun(false)

	assert.Equal(t, AgentStatusFailed, agent.Status())
	assert.NotNil(t, agent.LastExecution())
}

func TestAgent_AbortRun_DoesNotStampLastExecution(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)
	require.NoError(t, agent.BeginRun())

	require.NoError(t, agent.AbortRun())

	assert.Equal(t, AgentStatusIdle, agent.Status())
	assert.Nil(t, agent.LastExecution())
}

func TestAgent_AbortRun_RequiresRunning(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsValidation(agent.AbortRun()))
}

func TestAgent_PauseAndResetRules(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)

	require.NoError(t, agent.Pause())
	assert.Equal(t, AgentStatusPaused, agent.Status())
	require.NoError(t, agent.Reset())
	assert.Equal(t, AgentStatusIdle, agent.Status())

	require.NoError(t, agent.BeginRun())
	assert.True(t, pkgerrors.IsValidation(agent.Pause()))
	assert.True(t, pkgerrors.IsValidation(agent.Reset()))
}

func TestAgent_NeedsExecution(t *testing.T) {
	owner := testOwner(t)
	cutoff := time.Now().Add(-time.Hour)

	neverRan, err := NewAgent(owner, "fresh", AgentTypeDeepResearch)
	require.NoError(t, err)
	assert.True(t, neverRan.NeedsExecution(cutoff))

	neverRan.Disable()
	assert.False(t, neverRan.NeedsExecution(cutoff))

	stale := time.Now().Add(-2 * time.Hour)
	staleAgent, err := ReconstructAgent(
		valueobjects.NewAgentID(), owner, "stale", "",
		AgentTypeDeepResearch, true, 1, 300, 1,
		AgentStatusCompleted, &stale, nil, time.Now(), time.Now())
	require.NoError(t, err)
	assert.True(t, staleAgent.NeedsExecution(cutoff))

	recent := time.Now().Add(-time.Minute)
	recentAgent, err := ReconstructAgent(
		valueobjects.NewAgentID(), owner, "recent", "",
		AgentTypeDeepResearch, true, 1, 300, 1,
		AgentStatusCompleted, &recent, nil, time.Now(), time.Now())
	require.NoError(t, err)
	assert.False(t, recentAgent.NeedsExecution(cutoff))
}

func TestAgent_PolicySetters(t *testing.T) {
	agent, err := NewAgent(testOwner(t), "researcher", AgentTypeDeepResearch)
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsValidation(agent.SetPriority(-1)))
	assert.True(t, pkgerrors.IsValidation(agent.SetTimeoutSeconds(0)))
	assert.True(t, pkgerrors.IsValidation(agent.SetRetryAttempts(-1)))

	require.NoError(t, agent.SetRetryAttempts(0))
	assert.Equal(t, 0, agent.RetryAttempts())
}
