// Package services contains the application services that coordinate domain
// objects, repositories and outbound channels.
package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/agents"
	"analyst-backend/application/appcontext"
	"analyst-backend/application/ports"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/domain/events"
	pkgerrors "analyst-backend/pkg/errors"
)

// ExecutionHandle is returned immediately from a trigger. The dispatch runs
// asynchronously; Done closes when it reaches a terminal state.
type ExecutionHandle struct {
	executionID valueobjects.ExecutionID
	agentID     valueobjects.AgentID

	done chan struct{}
	mu   sync.Mutex
	out  agents.Output
	err  error
}

func newExecutionHandle(executionID valueobjects.ExecutionID, agentID valueobjects.AgentID) *ExecutionHandle {
	return &ExecutionHandle{
		executionID: executionID,
		agentID:     agentID,
		done:        make(chan struct{}),
	}
}

// ExecutionID returns the id of the first execution created for the trigger
func (h *ExecutionHandle) ExecutionID() valueobjects.ExecutionID { return h.executionID }

// AgentID returns the dispatched agent's id
func (h *ExecutionHandle) AgentID() valueobjects.AgentID { return h.agentID }

// Done returns a channel closed when the dispatch reaches a terminal state
func (h *ExecutionHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the dispatch finishes or the context expires
func (h *ExecutionHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the final output and error. Valid only after Done closes.
func (h *ExecutionHandle) Result() (agents.Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

func (h *ExecutionHandle) settle(out agents.Output, err error) {
	h.mu.Lock()
	h.out = out
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// errDiscarded marks an attempt whose result was discarded because the
// execution was cancelled while it ran.
var errDiscarded = pkgerrors.NewValidation("execution was cancelled")

// Orchestrator dispatches capability agents on behalf of their descriptors.
// It enforces at most one running execution per agent, the per-agent
// wall-clock timeout, and the retry policy.
type Orchestrator struct {
	capabilities map[entities.AgentType]agents.CapabilityAgent
	agentRepo    ports.AgentRepository
	execRepo     ports.ExecutionRepository
	sourceRepo   ports.DataSourceRepository
	publisher    ports.EventPublisher
	metrics      ports.MetricsRecorder
	logger       *zap.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex        // per-agent dispatch locks
	cancels map[string]context.CancelFunc // per-execution cancel hooks
	wg      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator over the given capability agents
func NewOrchestrator(
	capabilities map[entities.AgentType]agents.CapabilityAgent,
	agentRepo ports.AgentRepository,
	execRepo ports.ExecutionRepository,
	sourceRepo ports.DataSourceRepository,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		capabilities: capabilities,
		agentRepo:    agentRepo,
		execRepo:     execRepo,
		sourceRepo:   sourceRepo,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// TriggerAgent validates the input, atomically claims the agent, persists a
// pending execution, and starts the dispatch in the background. When the
// agent already has a run in flight it fails with an agent busy error and no
// execution record is created.
func (o *Orchestrator) TriggerAgent(
	ctx context.Context,
	owner valueobjects.Owner,
	agentID valueobjects.AgentID,
	input agents.Input,
) (*ExecutionHandle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	lock := o.dispatchLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := o.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("agent belongs to another owner")
	}
	if input.Kind != agent.Type() {
		return nil, pkgerrors.NewValidation(fmt.Sprintf(
			"input is for %s but agent is %s", input.Kind, agent.Type()))
	}
	capability, ok := o.capabilities[agent.Type()]
	if !ok {
		return nil, pkgerrors.NewInternal(fmt.Sprintf("no capability registered for %s", agent.Type()))
	}

	// The busy check and the transition to Running happen under the
	// per-agent dispatch lock so concurrent triggers cannot both claim it.
	if err := agent.BeginRun(); err != nil {
		return nil, err
	}

	execution, err := entities.NewExecution(agentID, input.Snapshot())
	if err != nil {
		return nil, err
	}
	if err := o.execRepo.Save(ctx, execution); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting execution")
	}
	if err := o.agentRepo.Save(ctx, agent); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting agent state")
	}

	handle := newExecutionHandle(execution.ID(), agentID)
	o.wg.Add(1)
	go o.run(owner, agent, execution, capability, input, handle)
	return handle, nil
}

// CancelExecution cancels a pending or running execution. Cancellation of a
// pending execution is immediate; a running one is interrupted through its
// context and any result it still produces is discarded. The transition is
// permanent in both cases.
func (o *Orchestrator) CancelExecution(
	ctx context.Context,
	owner valueobjects.Owner,
	executionID valueobjects.ExecutionID,
) error {
	execution, err := o.execRepo.GetByID(ctx, executionID)
	if err != nil {
		return err
	}
	agent, err := o.agentRepo.GetByID(ctx, execution.AgentID())
	if err != nil {
		return err
	}
	if !agent.BelongsTo(owner) {
		return pkgerrors.NewAccessDenied("execution belongs to another owner")
	}

	if err := execution.Cancel(); err != nil {
		return err
	}
	if err := o.execRepo.Save(ctx, execution); err != nil {
		return pkgerrors.Wrap(err, "persisting cancelled execution")
	}

	if cancel := o.takeCancel(executionID); cancel != nil {
		cancel()
	}

	o.publish(events.NewExecutionCancelled(
		agent.ID().String(), owner.String(), executionID.String()))
	o.logger.Info("execution cancelled",
		zap.String("executionId", executionID.String()),
		zap.String("agentId", agent.ID().String()))
	return nil
}

// GetExecution retrieves an execution after checking the caller owns its agent
func (o *Orchestrator) GetExecution(
	ctx context.Context,
	owner valueobjects.Owner,
	executionID valueobjects.ExecutionID,
) (*entities.Execution, error) {
	execution, err := o.execRepo.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	agent, err := o.agentRepo.GetByID(ctx, execution.AgentID())
	if err != nil {
		return nil, err
	}
	if !agent.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("execution belongs to another owner")
	}
	return execution, nil
}

// ListExecutions retrieves an agent's dispatch history, newest first
func (o *Orchestrator) ListExecutions(
	ctx context.Context,
	owner valueobjects.Owner,
	agentID valueobjects.AgentID,
) ([]*entities.Execution, error) {
	agent, err := o.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.BelongsTo(owner) {
		return nil, pkgerrors.NewAccessDenied("agent belongs to another owner")
	}
	return o.execRepo.GetByAgentID(ctx, agentID)
}

// Drain blocks until all in-flight dispatches have finished. Used on shutdown.
func (o *Orchestrator) Drain() {
	o.wg.Wait()
}

// run executes the retry loop for one trigger. It owns the agent's Running
// state: whatever happens, the agent leaves Running exactly once.
func (o *Orchestrator) run(
	owner valueobjects.Owner,
	agent *entities.Agent,
	execution *entities.Execution,
	capability agents.CapabilityAgent,
	input agents.Input,
	handle *ExecutionHandle,
) {
	defer o.wg.Done()

	ctx := appcontext.WithOwner(context.Background(), owner)
	attempts := agent.RetryAttempts() + 1
	current := execution

	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := o.attempt(ctx, agent, current, capability, input, attempt)
		if err == nil {
			o.finishAgent(ctx, agent.ID(), true)
			o.captureOutput(ctx, owner, agent, out)
			o.publish(events.NewExecutionCompleted(
				agent.ID().String(), owner.String(), current.ID().String(),
				string(agent.Type()), current.DurationSeconds(), out.Confidence))
			handle.settle(out, nil)
			return
		}
		if err == errDiscarded {
			o.abortAgent(ctx, agent.ID())
			handle.settle(agents.Output{}, errDiscarded)
			return
		}

		// Only transient channel failures and timeouts are retried.
		// Validation, ownership and busy conflicts fail the run outright.
		retryable := pkgerrors.IsRetryable(err)
		willRetry := retryable && attempt < attempts
		o.publish(events.NewExecutionFailed(
			agent.ID().String(), owner.String(), current.ID().String(),
			string(agent.Type()), err.Error(), willRetry))
		o.logger.Warn("execution attempt failed",
			zap.String("agentId", agent.ID().String()),
			zap.String("executionId", current.ID().String()),
			zap.Int("attempt", attempt),
			zap.Bool("willRetry", willRetry),
			zap.Error(err))

		if !willRetry {
			o.finishAgent(ctx, agent.ID(), false)
			if retryable {
				o.publish(events.NewAgentExhausted(
					agent.ID().String(), owner.String(), string(agent.Type()), attempts))
			}
			handle.settle(agents.Output{}, err)
			return
		}

		// Every retry is a fresh timestamped execution record.
		next, newErr := entities.NewExecution(agent.ID(), input.Snapshot())
		if newErr != nil {
			o.finishAgent(ctx, agent.ID(), false)
			handle.settle(agents.Output{}, newErr)
			return
		}
		if saveErr := o.execRepo.Save(ctx, next); saveErr != nil {
			o.finishAgent(ctx, agent.ID(), false)
			handle.settle(agents.Output{}, pkgerrors.Wrap(saveErr, "persisting retry execution"))
			return
		}
		current = next
	}
}

// attempt runs a single execution under the agent's wall-clock deadline.
// Returns errDiscarded when the execution was cancelled before, during, or
// after the agent ran; late results of cancelled executions are never applied.
func (o *Orchestrator) attempt(
	ctx context.Context,
	agent *entities.Agent,
	execution *entities.Execution,
	capability agents.CapabilityAgent,
	input agents.Input,
	attempt int,
) (agents.Output, error) {
	fresh, err := o.execRepo.GetByID(ctx, execution.ID())
	if err != nil {
		return agents.Output{}, err
	}
	if fresh.Status() == entities.ExecutionStatusCancelled {
		return agents.Output{}, errDiscarded
	}
	if err := fresh.Start(); err != nil {
		return agents.Output{}, errDiscarded
	}
	if err := o.execRepo.Save(ctx, fresh); err != nil {
		return agents.Output{}, pkgerrors.Wrap(err, "persisting running execution")
	}

	o.metrics.ExecutionStarted(string(agent.Type()))
	defer o.metrics.ExecutionFinished(string(agent.Type()))
	o.publish(events.NewExecutionStarted(
		agent.ID().String(), agent.Owner().String(), execution.ID().String(),
		string(agent.Type()), attempt))

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, agent.Timeout())
	o.putCancel(execution.ID(), cancel)
	defer func() {
		o.takeCancel(execution.ID())
		cancel()
	}()

	type result struct {
		out agents.Output
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		out, runErr := capability.Execute(runCtx, input)
		resCh <- result{out: out, err: runErr}
	}()

	select {
	case res := <-resCh:
		elapsed := time.Since(started)
		if res.err != nil {
			o.metrics.RecordExecution(string(agent.Type()), "failed", elapsed.Seconds())
			return agents.Output{}, o.applyFailure(ctx, execution.ID(), elapsed, res.err.Error(), res.err)
		}
		o.metrics.RecordExecution(string(agent.Type()), "completed", elapsed.Seconds())
		return res.out, o.applySuccess(ctx, execution.ID(), elapsed, res.out)
	case <-runCtx.Done():
		elapsed := time.Since(started)
		if runCtx.Err() == context.DeadlineExceeded {
			o.metrics.RecordExecution(string(agent.Type()), "timeout", elapsed.Seconds())
			timeoutErr := pkgerrors.NewTimeout(fmt.Sprintf(
				"execution exceeded %s deadline", agent.Timeout()))
			return agents.Output{}, o.applyTimeout(ctx, execution.ID(), elapsed, timeoutErr)
		}
		return agents.Output{}, errDiscarded
	}
}

// applySuccess records a completed execution unless it was cancelled meanwhile
func (o *Orchestrator) applySuccess(ctx context.Context, id valueobjects.ExecutionID, elapsed time.Duration, out agents.Output) error {
	fresh, err := o.execRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	recordProcessingTime(fresh, elapsed)
	if err := fresh.Complete(out.Snapshot(), out.Confidence); err != nil {
		return errDiscarded
	}
	return o.execRepo.Save(ctx, fresh)
}

// applyFailure records a failed execution unless it was cancelled meanwhile
func (o *Orchestrator) applyFailure(ctx context.Context, id valueobjects.ExecutionID, elapsed time.Duration, message string, cause error) error {
	fresh, err := o.execRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	recordProcessingTime(fresh, elapsed)
	if err := fresh.Fail(message); err != nil {
		return errDiscarded
	}
	if err := o.execRepo.Save(ctx, fresh); err != nil {
		return err
	}
	return cause
}

// applyTimeout records the canonical timeout failure on the execution
func (o *Orchestrator) applyTimeout(ctx context.Context, id valueobjects.ExecutionID, elapsed time.Duration, cause error) error {
	fresh, err := o.execRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	recordProcessingTime(fresh, elapsed)
	if err := fresh.FailTimeout(); err != nil {
		return errDiscarded
	}
	if err := o.execRepo.Save(ctx, fresh); err != nil {
		return err
	}
	return cause
}

// recordProcessingTime stamps the attempt's wall-clock time on the execution.
// A cancelled execution is already terminal; the metric is simply skipped.
func recordProcessingTime(execution *entities.Execution, elapsed time.Duration) {
	_ = execution.SetMetric("processing_time_ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
}

// finishAgent moves the agent out of Running under its dispatch lock
func (o *Orchestrator) finishAgent(ctx context.Context, id valueobjects.AgentID, succeeded bool) {
	lock := o.dispatchLock(id)
	lock.Lock()
	defer lock.Unlock()

	agent, err := o.agentRepo.GetByID(ctx, id)
	if err != nil {
		o.logger.Error("finishing agent run", zap.String("agentId", id.String()), zap.Error(err))
		return
	}
	agent.FinishRun(succeeded)
	if err := o.agentRepo.Save(ctx, agent); err != nil {
		o.logger.Error("persisting agent outcome", zap.String("agentId", id.String()), zap.Error(err))
	}
}

// abortAgent returns a cancelled agent to Idle under its dispatch lock
func (o *Orchestrator) abortAgent(ctx context.Context, id valueobjects.AgentID) {
	lock := o.dispatchLock(id)
	lock.Lock()
	defer lock.Unlock()

	agent, err := o.agentRepo.GetByID(ctx, id)
	if err != nil {
		o.logger.Error("aborting agent run", zap.String("agentId", id.String()), zap.Error(err))
		return
	}
	if err := agent.AbortRun(); err != nil {
		return
	}
	if err := o.agentRepo.Save(ctx, agent); err != nil {
		o.logger.Error("persisting aborted agent", zap.String("agentId", id.String()), zap.Error(err))
	}
}

// captureOutput turns a data collection agent's result into a completed
// data source so it is available for memo synthesis.
func (o *Orchestrator) captureOutput(ctx context.Context, owner valueobjects.Owner, agent *entities.Agent, out agents.Output) {
	var sourceType entities.DataSourceType
	switch agent.Type() {
	case entities.AgentTypeFounderVoice:
		sourceType = entities.DataSourceTypeFounderVoice
	case entities.AgentTypeBehavioralAssessment:
		sourceType = entities.DataSourceTypeBehavioralAssessment
	case entities.AgentTypeDeepResearch:
		sourceType = entities.DataSourceTypeDeepResearch
	default:
		return
	}

	source, err := entities.NewDataSource(owner, sourceType,
		fmt.Sprintf("%s result", agent.Name()), "", "")
	if err != nil {
		o.logger.Error("creating result data source", zap.Error(err))
		return
	}
	if err := source.CompleteProcessing(out.Content, out.Confidence); err != nil {
		o.logger.Error("completing result data source", zap.Error(err))
		return
	}
	for k, v := range out.Details {
		source.SetMetadata(k, v)
	}
	if err := o.sourceRepo.Save(ctx, source); err != nil {
		o.logger.Error("persisting result data source", zap.Error(err))
		return
	}
	o.publish(events.NewDataSourceIngested(
		source.ID().String(), owner.String(), string(sourceType)))
}

func (o *Orchestrator) dispatchLock(id valueobjects.AgentID) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[id.String()]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id.String()] = lock
	}
	return lock
}

func (o *Orchestrator) putCancel(id valueobjects.ExecutionID, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[id.String()] = cancel
}

func (o *Orchestrator) takeCancel(id valueobjects.ExecutionID) context.CancelFunc {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel := o.cancels[id.String()]
	delete(o.cancels, id.String())
	return cancel
}

func (o *Orchestrator) publish(event events.DomainEvent) {
	if err := o.publisher.Publish(context.Background(), event); err != nil {
		o.logger.Warn("publishing domain event",
			zap.String("eventType", event.EventType()), zap.Error(err))
	}
}
