package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"analyst-backend/application/agents"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/domain/events"
	"analyst-backend/infrastructure/persistence/memory"
	pkgerrors "analyst-backend/pkg/errors"
	"analyst-backend/tests/fixtures"
	"analyst-backend/tests/mocks"
)

// stubCapability lets tests script agent behavior per dispatch.
type stubCapability struct {
	name string
	fn   func(ctx context.Context, input agents.Input) (agents.Output, error)
}

func (s *stubCapability) Name() string { return s.name }

func (s *stubCapability) Execute(ctx context.Context, input agents.Input) (agents.Output, error) {
	return s.fn(ctx, input)
}

// blockingCapability blocks until released, honoring nothing. Used to hold an
// agent in Running while the test acts.
func blockingCapability(t *testing.T) (*stubCapability, func()) {
	t.Helper()
	release := make(chan struct{})
	capability := &stubCapability{
		name: "blocking",
		fn: func(ctx context.Context, input agents.Input) (agents.Output, error) {
			<-release
			return agents.Output{Content: "late", Confidence: 0.5}, nil
		},
	}
	var once bool
	return capability, func() {
		if !once {
			once = true
			close(release)
		}
	}
}

type orchestratorFixture struct {
	orchestrator *services.Orchestrator
	agentRepo    *memory.AgentRepository
	execRepo     *memory.ExecutionRepository
	sourceRepo   *memory.DataSourceRepository
	publisher    *mocks.EventRecorder
}

func newOrchestratorFixture(t *testing.T, capability agents.CapabilityAgent, kind entities.AgentType) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		agentRepo:  memory.NewAgentRepository(),
		execRepo:   memory.NewExecutionRepository(),
		sourceRepo: memory.NewDataSourceRepository(),
		publisher:  &mocks.EventRecorder{},
	}
	f.orchestrator = services.NewOrchestrator(
		map[entities.AgentType]agents.CapabilityAgent{kind: capability},
		f.agentRepo, f.execRepo, f.sourceRepo, f.publisher,
		mocks.NopMetrics{}, zap.NewNop())
	return f
}

func researchInput(query string) agents.Input {
	return agents.Input{
		Kind:         entities.AgentTypeDeepResearch,
		DeepResearch: &agents.DeepResearchInput{Query: query},
	}
}

func saveAgent(t *testing.T, repo *memory.AgentRepository, agent *entities.Agent) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), agent))
}

func TestOrchestrator_TriggerAndComplete(t *testing.T) {
	ctx := context.Background()
	capability := &stubCapability{
		name: "research",
		fn: func(ctx context.Context, input agents.Input) (agents.Output, error) {
			return agents.Output{Content: "note", Confidence: 0.8,
				Details: map[string]string{"indexedMatches": "2"}}, nil
		},
	}
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("traction"))
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	out, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, "note", out.Content)

	execution, err := f.execRepo.GetByID(ctx, handle.ExecutionID())
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionStatusCompleted, execution.Status())
	assert.Equal(t, 0.8, execution.ConfidenceScore())
	assert.NotEmpty(t, execution.OutputSnapshot())

	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusCompleted, stored.Status())
	assert.NotNil(t, stored.LastExecution())

	// Deep research output becomes a completed data source.
	sources, err := f.sourceRepo.GetByOwner(ctx, agent.Owner())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, entities.DataSourceTypeDeepResearch, sources[0].Type())
	assert.Equal(t, entities.DataSourceStatusCompleted, sources[0].Status())
	assert.Equal(t, "note", sources[0].Content())
	assert.Equal(t, "2", sources[0].Metadata()["indexedMatches"])

	assert.Contains(t, f.publisher.TypesSeen(), events.EventTypeExecutionStarted)
	assert.Contains(t, f.publisher.TypesSeen(), events.EventTypeExecutionCompleted)
	assert.Contains(t, f.publisher.TypesSeen(), events.EventTypeDataSourceIngested)
}

func TestOrchestrator_BusyAgentCreatesNoExecutionRecord(t *testing.T) {
	ctx := context.Background()
	capability, release := blockingCapability(t)
	defer release()
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	first, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("one"))
	require.NoError(t, err)

	_, err = f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("two"))
	assert.True(t, pkgerrors.IsAgentBusy(err))

	// The rejected trigger left no trace in the execution history.
	executions, err := f.execRepo.GetByAgentID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Len(t, executions, 1)

	release()
	require.NoError(t, first.Wait(ctx))
	f.orchestrator.Drain()
}

func TestOrchestrator_TriggerValidation(t *testing.T) {
	ctx := context.Background()
	capability := &stubCapability{name: "research", fn: func(context.Context, agents.Input) (agents.Output, error) {
		return agents.Output{Confidence: 0.5}, nil
	}}
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	// Invalid input.
	_, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), agents.Input{
		Kind: entities.AgentTypeDeepResearch,
	})
	assert.True(t, pkgerrors.IsValidation(err))

	// Input kind mismatching the agent's type.
	_, err = f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), agents.Input{
		Kind:         entities.AgentTypeFounderVoice,
		FounderVoice: &agents.FounderVoiceInput{PhoneNumber: "+15555550100"},
	})
	assert.True(t, pkgerrors.IsValidation(err))

	// Foreign owner.
	_, err = f.orchestrator.TriggerAgent(ctx, fixtures.Owner("intruder"), agent.ID(), researchInput("q"))
	assert.True(t, pkgerrors.IsAccessDenied(err))

	// Unknown agent.
	_, err = f.orchestrator.TriggerAgent(ctx, agent.Owner(), valueobjects.NewAgentID(), researchInput("q"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestOrchestrator_TimeoutRecordsCanonicalMessage(t *testing.T) {
	ctx := context.Background()
	capability, release := blockingCapability(t)
	defer release()
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().
		WithType(entities.AgentTypeDeepResearch).
		WithTimeoutSeconds(1).
		WithRetryAttempts(0).
		Build()
	saveAgent(t, f.agentRepo, agent)

	handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("slow"))
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	_, err = handle.Result()
	assert.True(t, pkgerrors.IsTimeout(err))

	execution, err := f.execRepo.GetByID(ctx, handle.ExecutionID())
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionStatusFailed, execution.Status())
	assert.Equal(t, entities.TimeoutErrorMessage, execution.ErrorMessage())

	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusFailed, stored.Status())
}

func TestOrchestrator_RetriesThenExhausts(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	capability := &stubCapability{
		name: "flaky",
		fn: func(ctx context.Context, input agents.Input) (agents.Output, error) {
			attempts++
			return agents.Output{}, pkgerrors.NewExternal("provider down")
		},
	}
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().
		WithType(entities.AgentTypeDeepResearch).
		WithRetryAttempts(1).
		Build()
	saveAgent(t, f.agentRepo, agent)

	handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("q"))
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	_, err = handle.Result()
	assert.True(t, pkgerrors.IsExternal(err))
	assert.Equal(t, 2, attempts)

	// One fresh timestamped execution per attempt, all failed.
	executions, err := f.execRepo.GetByAgentID(ctx, agent.ID())
	require.NoError(t, err)
	require.Len(t, executions, 2)
	for _, execution := range executions {
		assert.Equal(t, entities.ExecutionStatusFailed, execution.Status())
	}

	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusFailed, stored.Status())
	assert.Contains(t, f.publisher.TypesSeen(), events.EventTypeAgentExhausted)
}

func TestOrchestrator_NonRetryableFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	capability := &stubCapability{
		name: "strict",
		fn: func(ctx context.Context, input agents.Input) (agents.Output, error) {
			attempts++
			return agents.Output{}, pkgerrors.NewValidation("source memo is not completed")
		},
	}
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().
		WithType(entities.AgentTypeDeepResearch).
		WithRetryAttempts(2).
		Build()
	saveAgent(t, f.agentRepo, agent)

	handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("q"))
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	_, err = handle.Result()
	assert.True(t, pkgerrors.IsValidation(err))

	// A validation failure consumes no retry budget: one attempt, one record.
	assert.Equal(t, 1, attempts)
	executions, err := f.execRepo.GetByAgentID(ctx, agent.ID())
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, entities.ExecutionStatusFailed, executions[0].Status())

	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusFailed, stored.Status())

	// The agent failed outright, it never exhausted a retry budget.
	assert.NotContains(t, f.publisher.TypesSeen(), events.EventTypeAgentExhausted)
}

func TestOrchestrator_ConcurrentTriggersAdmitOneExecution(t *testing.T) {
	ctx := context.Background()
	capability, release := blockingCapability(t)
	defer release()
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	const callers = 8
	var busy int32
	handles := make(chan *services.ExecutionHandle, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("q"))
			if err != nil {
				if pkgerrors.IsAgentBusy(err) {
					atomic.AddInt32(&busy, 1)
				}
				return
			}
			handles <- handle
		}()
	}
	wg.Wait()
	close(handles)

	// Exactly one caller claimed the agent; every other trigger was rejected
	// as busy and left no execution record behind.
	require.Len(t, handles, 1)
	assert.Equal(t, int32(callers-1), atomic.LoadInt32(&busy))
	executions, err := f.execRepo.GetByAgentID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Len(t, executions, 1)

	release()
	for handle := range handles {
		require.NoError(t, handle.Wait(ctx))
	}
	f.orchestrator.Drain()
}

func TestOrchestrator_CancelRunningDiscardsLateResult(t *testing.T) {
	ctx := context.Background()
	capability, release := blockingCapability(t)
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("q"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		execution, err := f.execRepo.GetByID(ctx, handle.ExecutionID())
		return err == nil && execution.Status() == entities.ExecutionStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.orchestrator.CancelExecution(ctx, agent.Owner(), handle.ExecutionID()))
	require.NoError(t, handle.Wait(ctx))

	// The capability finishes after cancellation; its result must not land.
	release()
	f.orchestrator.Drain()

	execution, err := f.execRepo.GetByID(ctx, handle.ExecutionID())
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionStatusCancelled, execution.Status())
	assert.Empty(t, execution.OutputSnapshot())

	// A cancelled dispatch does not count as a run.
	stored, err := f.agentRepo.GetByID(ctx, agent.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.AgentStatusIdle, stored.Status())
	assert.Nil(t, stored.LastExecution())
	assert.Contains(t, f.publisher.TypesSeen(), events.EventTypeExecutionCancelled)
}

func TestOrchestrator_CancelPendingIsImmediateAndPermanent(t *testing.T) {
	ctx := context.Background()
	capability := &stubCapability{name: "never", fn: func(context.Context, agents.Input) (agents.Output, error) {
		return agents.Output{}, nil
	}}
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	// A pending execution that was never picked up.
	execution, err := entities.NewExecution(agent.ID(), `{"query":"q"}`)
	require.NoError(t, err)
	require.NoError(t, f.execRepo.Save(ctx, execution))

	require.NoError(t, f.orchestrator.CancelExecution(ctx, agent.Owner(), execution.ID()))

	stored, err := f.execRepo.GetByID(ctx, execution.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.ExecutionStatusCancelled, stored.Status())

	// Cancelling again fails: the transition is permanent.
	err = f.orchestrator.CancelExecution(ctx, agent.Owner(), execution.ID())
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestOrchestrator_ExecutionAccessIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	capability := &stubCapability{name: "research", fn: func(context.Context, agents.Input) (agents.Output, error) {
		return agents.Output{Content: "x", Confidence: 0.5}, nil
	}}
	f := newOrchestratorFixture(t, capability, entities.AgentTypeDeepResearch)
	agent := fixtures.NewAgent().WithType(entities.AgentTypeDeepResearch).Build()
	saveAgent(t, f.agentRepo, agent)

	handle, err := f.orchestrator.TriggerAgent(ctx, agent.Owner(), agent.ID(), researchInput("q"))
	require.NoError(t, err)
	require.NoError(t, handle.Wait(ctx))

	_, err = f.orchestrator.GetExecution(ctx, fixtures.Owner("intruder"), handle.ExecutionID())
	assert.True(t, pkgerrors.IsAccessDenied(err))

	_, err = f.orchestrator.ListExecutions(ctx, fixtures.Owner("intruder"), agent.ID())
	assert.True(t, pkgerrors.IsAccessDenied(err))

	executions, err := f.orchestrator.ListExecutions(ctx, agent.Owner(), agent.ID())
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}
