package entities

import (
	"fmt"
	"time"

	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// ExecutionStatus represents the state of a single dispatch attempt
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "PENDING"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// TimeoutErrorMessage is the error message recorded on executions killed by
// the orchestrator's wall-clock watch.
const TimeoutErrorMessage = "timeout"

// Execution is one timestamped dispatch attempt of an agent. It is created
// Pending and becomes immutable once it reaches a terminal state
// (Completed, Failed or Cancelled).
type Execution struct {
	id              valueobjects.ExecutionID
	agentID         valueobjects.AgentID
	status          ExecutionStatus
	startedAt       *time.Time
	completedAt     *time.Time
	durationSeconds int64
	inputSnapshot   string
	outputSnapshot  string
	errorMessage    string
	errorCount      int
	confidenceScore float64
	metrics         map[string]string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewExecution creates a pending execution for the given agent
func NewExecution(agentID valueobjects.AgentID, inputSnapshot string) (*Execution, error) {
	if agentID.IsEmpty() {
		return nil, pkgerrors.NewValidation("agent ID cannot be empty")
	}

	now := time.Now()
	return &Execution{
		id:            valueobjects.NewExecutionID(),
		agentID:       agentID,
		status:        ExecutionStatusPending,
		inputSnapshot: inputSnapshot,
		metrics:       make(map[string]string),
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructExecution rebuilds an execution from repository data
func ReconstructExecution(
	id valueobjects.ExecutionID,
	agentID valueobjects.AgentID,
	status ExecutionStatus,
	startedAt, completedAt *time.Time,
	durationSeconds int64,
	inputSnapshot, outputSnapshot, errorMessage string,
	errorCount int,
	confidenceScore float64,
	metrics map[string]string,
	createdAt, updatedAt time.Time,
) (*Execution, error) {
	if agentID.IsEmpty() {
		return nil, pkgerrors.NewValidation("agent ID cannot be empty")
	}
	if metrics == nil {
		metrics = make(map[string]string)
	}

	return &Execution{
		id:              id,
		agentID:         agentID,
		status:          status,
		startedAt:       startedAt,
		completedAt:     completedAt,
		durationSeconds: durationSeconds,
		inputSnapshot:   inputSnapshot,
		outputSnapshot:  outputSnapshot,
		errorMessage:    errorMessage,
		errorCount:      errorCount,
		confidenceScore: confidenceScore,
		metrics:         metrics,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}, nil
}

// ID returns the execution's unique identifier
func (e *Execution) ID() valueobjects.ExecutionID { return e.id }

// AgentID returns the owning agent's identifier
func (e *Execution) AgentID() valueobjects.AgentID { return e.agentID }

// Status returns the current state
func (e *Execution) Status() ExecutionStatus { return e.status }

// StartedAt returns when the dispatch began running, if it did
func (e *Execution) StartedAt() *time.Time { return e.startedAt }

// CompletedAt returns when the dispatch reached a terminal state, if it did
func (e *Execution) CompletedAt() *time.Time { return e.completedAt }

// DurationSeconds returns the wall-clock run time, derived on completion
func (e *Execution) DurationSeconds() int64 { return e.durationSeconds }

// InputSnapshot returns the serialized input the agent was dispatched with
func (e *Execution) InputSnapshot() string { return e.inputSnapshot }

// OutputSnapshot returns the serialized agent output
func (e *Execution) OutputSnapshot() string { return e.outputSnapshot }

// ErrorMessage returns the recorded failure reason, if any
func (e *Execution) ErrorMessage() string { return e.errorMessage }

// ErrorCount returns how many errors were recorded on this attempt
func (e *Execution) ErrorCount() int { return e.errorCount }

// ConfidenceScore returns the agent-reported confidence for the output
func (e *Execution) ConfidenceScore() float64 { return e.confidenceScore }

// Metrics returns a copy of the recorded execution metrics
func (e *Execution) Metrics() map[string]string {
	m := make(map[string]string, len(e.metrics))
	for k, v := range e.metrics {
		m[k] = v
	}
	return m
}

// CreatedAt returns the creation timestamp
func (e *Execution) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last modification timestamp
func (e *Execution) UpdatedAt() time.Time { return e.updatedAt }

// IsTerminal reports whether the execution has reached a final state
func (e *Execution) IsTerminal() bool {
	switch e.status {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// Start transitions Pending -> Running and stamps the start time
func (e *Execution) Start() error {
	if e.status != ExecutionStatusPending {
		return e.transitionError(ExecutionStatusRunning)
	}
	now := time.Now()
	e.status = ExecutionStatusRunning
	e.startedAt = &now
	e.touch()
	return nil
}

// Complete transitions Running -> Completed and records the output
func (e *Execution) Complete(outputSnapshot string, confidence float64) error {
	if e.status != ExecutionStatusRunning {
		return e.transitionError(ExecutionStatusCompleted)
	}
	if confidence < 0 || confidence > 1 {
		return pkgerrors.NewValidation("confidence must be between 0 and 1")
	}
	e.status = ExecutionStatusCompleted
	e.outputSnapshot = outputSnapshot
	e.confidenceScore = confidence
	e.finish()
	return nil
}

// Fail transitions Pending|Running -> Failed and records the error message
func (e *Execution) Fail(message string) error {
	if e.IsTerminal() {
		return e.transitionError(ExecutionStatusFailed)
	}
	e.status = ExecutionStatusFailed
	e.errorMessage = message
	e.errorCount++
	e.finish()
	return nil
}

// FailTimeout marks the execution killed by the orchestrator's deadline watch
func (e *Execution) FailTimeout() error {
	return e.Fail(TimeoutErrorMessage)
}

// Cancel transitions Pending|Running -> Cancelled. The transition is
// permanent: no later Running or Completed write can be applied.
func (e *Execution) Cancel() error {
	if e.IsTerminal() {
		return e.transitionError(ExecutionStatusCancelled)
	}
	e.status = ExecutionStatusCancelled
	e.finish()
	return nil
}

// SetMetric records a named metric on a non-terminal execution
func (e *Execution) SetMetric(key, value string) error {
	if e.IsTerminal() {
		return pkgerrors.NewValidation("execution is immutable in a terminal state")
	}
	if key == "" {
		return pkgerrors.NewValidation("metric key cannot be empty")
	}
	e.metrics[key] = value
	e.touch()
	return nil
}

func (e *Execution) finish() {
	now := time.Now()
	e.completedAt = &now
	if e.startedAt != nil {
		e.durationSeconds = int64(now.Sub(*e.startedAt).Seconds())
	}
	e.touch()
}

func (e *Execution) transitionError(target ExecutionStatus) error {
	return pkgerrors.NewValidation(
		fmt.Sprintf("invalid execution transition %s -> %s", e.status, target))
}

func (e *Execution) touch() {
	e.updatedAt = time.Now()
}
