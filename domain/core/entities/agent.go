package entities

import (
	"fmt"
	"time"

	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

// AgentType identifies the capability an agent orchestrates
type AgentType string

const (
	AgentTypeDataIngestion        AgentType = "DATA_INGESTION"
	AgentTypeFounderVoice         AgentType = "FOUNDER_VOICE"
	AgentTypeBehavioralAssessment AgentType = "BEHAVIORAL_ASSESSMENT"
	AgentTypeDeepResearch         AgentType = "DEEP_RESEARCH"
	AgentTypeCuratedMemo          AgentType = "CURATED_MEMO"
)

// AgentStatus represents the lifecycle state of an agent
type AgentStatus string

const (
	AgentStatusIdle      AgentStatus = "IDLE"
	AgentStatusRunning   AgentStatus = "RUNNING"
	AgentStatusCompleted AgentStatus = "COMPLETED"
	AgentStatusFailed    AgentStatus = "FAILED"
	AgentStatusPaused    AgentStatus = "PAUSED"
)

// Default policy values applied when an agent is registered without overrides.
const (
	DefaultPriority       = 1
	DefaultTimeoutSeconds = 300
	DefaultRetryAttempts  = 1
)

// Agent is the declarative descriptor of a schedulable capability plus its
// dispatch policy (priority, timeout, retry). It owns its execution history:
// executions are cascade-deleted with the agent and never addressed without it.
type Agent struct {
	id             valueobjects.AgentID
	name           string
	description    string
	agentType      AgentType
	enabled        bool
	priority       int
	timeoutSeconds int
	retryAttempts  int
	status         AgentStatus
	lastExecution  *time.Time
	owner          valueobjects.Owner
	parameters     map[string]string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewAgent creates a new agent with default policy values
func NewAgent(owner valueobjects.Owner, name string, agentType AgentType) (*Agent, error) {
	if owner.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner cannot be empty")
	}
	if name == "" {
		return nil, pkgerrors.NewValidation("agent name cannot be empty")
	}
	if !IsValidAgentType(agentType) {
		return nil, pkgerrors.NewValidation(fmt.Sprintf("unknown agent type: %s", agentType))
	}

	now := time.Now()
	return &Agent{
		id:             valueobjects.NewAgentID(),
		name:           name,
		agentType:      agentType,
		enabled:        true,
		priority:       DefaultPriority,
		timeoutSeconds: DefaultTimeoutSeconds,
		retryAttempts:  DefaultRetryAttempts,
		status:         AgentStatusIdle,
		owner:          owner,
		parameters:     make(map[string]string),
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructAgent rebuilds an agent from repository data with preserved timestamps
func ReconstructAgent(
	id valueobjects.AgentID,
	owner valueobjects.Owner,
	name, description string,
	agentType AgentType,
	enabled bool,
	priority, timeoutSeconds, retryAttempts int,
	status AgentStatus,
	lastExecution *time.Time,
	parameters map[string]string,
	createdAt, updatedAt time.Time,
) (*Agent, error) {
	if owner.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner cannot be empty")
	}
	if !IsValidAgentType(agentType) {
		return nil, pkgerrors.NewValidation(fmt.Sprintf("unknown agent type: %s", agentType))
	}
	if parameters == nil {
		parameters = make(map[string]string)
	}

	return &Agent{
		id:             id,
		name:           name,
		description:    description,
		agentType:      agentType,
		enabled:        enabled,
		priority:       priority,
		timeoutSeconds: timeoutSeconds,
		retryAttempts:  retryAttempts,
		status:         status,
		lastExecution:  lastExecution,
		owner:          owner,
		parameters:     parameters,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}, nil
}

// IsValidAgentType checks whether the given type is one of the five capabilities
func IsValidAgentType(t AgentType) bool {
	switch t {
	case AgentTypeDataIngestion, AgentTypeFounderVoice, AgentTypeBehavioralAssessment,
		AgentTypeDeepResearch, AgentTypeCuratedMemo:
		return true
	}
	return false
}

// ID returns the agent's unique identifier
func (a *Agent) ID() valueobjects.AgentID { return a.id }

// Name returns the agent's display name
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description
func (a *Agent) Description() string { return a.description }

// Type returns the capability type
func (a *Agent) Type() AgentType { return a.agentType }

// Enabled reports whether the periodic sweep may dispatch this agent
func (a *Agent) Enabled() bool { return a.enabled }

// Priority returns the dispatch priority (ascending = first)
func (a *Agent) Priority() int { return a.priority }

// TimeoutSeconds returns the per-dispatch deadline in seconds
func (a *Agent) TimeoutSeconds() int { return a.timeoutSeconds }

// Timeout returns the per-dispatch deadline as a duration
func (a *Agent) Timeout() time.Duration { return time.Duration(a.timeoutSeconds) * time.Second }

// RetryAttempts returns how many additional dispatches follow a failure
func (a *Agent) RetryAttempts() int { return a.retryAttempts }

// Status returns the agent's lifecycle state
func (a *Agent) Status() AgentStatus { return a.status }

// LastExecution returns the time of the most recent completed dispatch, if any
func (a *Agent) LastExecution() *time.Time { return a.lastExecution }

// Owner returns the owning user
func (a *Agent) Owner() valueobjects.Owner { return a.owner }

// Parameters returns a copy of the agent's configuration parameters
func (a *Agent) Parameters() map[string]string {
	params := make(map[string]string, len(a.parameters))
	for k, v := range a.parameters {
		params[k] = v
	}
	return params
}

// Parameter returns a single configuration parameter
func (a *Agent) Parameter(key string) (string, bool) {
	v, ok := a.parameters[key]
	return v, ok
}

// CreatedAt returns the creation timestamp
func (a *Agent) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the last modification timestamp
func (a *Agent) UpdatedAt() time.Time { return a.updatedAt }

// BelongsTo checks whether the agent is owned by the given user
func (a *Agent) BelongsTo(owner valueobjects.Owner) bool { return a.owner.Equals(owner) }

// BeginRun transitions the agent into Running. It fails with an agent busy
// error when a run is already in flight; the caller must hold the per-agent
// dispatch lock so the check-and-transition is atomic.
func (a *Agent) BeginRun() error {
	if a.status == AgentStatusRunning {
		return pkgerrors.NewAgentBusy(fmt.Sprintf("agent %s is already running", a.id.String()))
	}
	a.status = AgentStatusRunning
	a.touch()
	return nil
}

// FinishRun records the outcome of a dispatch and stamps the last execution time
func (a *Agent) FinishRun(succeeded bool) {
	if succeeded {
		a.status = AgentStatusCompleted
	} else {
		a.status = AgentStatusFailed
	}
	now := time.Now()
	a.lastExecution = &now
	a.touch()
}

// AbortRun returns a Running agent to Idle after its execution was cancelled.
// Unlike FinishRun it does not stamp lastExecution: a cancelled dispatch does
// not count as a run for staleness purposes.
func (a *Agent) AbortRun() error {
	if a.status != AgentStatusRunning {
		return pkgerrors.NewValidation("cannot abort an agent that is not running")
	}
	a.status = AgentStatusIdle
	a.touch()
	return nil
}

// Reset returns a Failed or Paused agent to Idle so it can be dispatched again
func (a *Agent) Reset() error {
	if a.status == AgentStatusRunning {
		return pkgerrors.NewValidation("cannot reset a running agent")
	}
	a.status = AgentStatusIdle
	a.touch()
	return nil
}

// Pause suspends the agent; a paused agent is skipped by the sweep but may
// still be triggered manually
func (a *Agent) Pause() error {
	if a.status == AgentStatusRunning {
		return pkgerrors.NewValidation("cannot pause a running agent")
	}
	a.status = AgentStatusPaused
	a.touch()
	return nil
}

// Enable marks the agent eligible for the periodic sweep
func (a *Agent) Enable() {
	a.enabled = true
	a.touch()
}

// Disable removes the agent from periodic sweep consideration
func (a *Agent) Disable() {
	a.enabled = false
	a.touch()
}

// NeedsExecution reports whether the sweep should redispatch this agent:
// it is enabled and has either never run or last ran before the cutoff.
func (a *Agent) NeedsExecution(cutoff time.Time) bool {
	if !a.enabled {
		return false
	}
	return a.lastExecution == nil || a.lastExecution.Before(cutoff)
}

// Rename updates the display name
func (a *Agent) Rename(name string) error {
	if name == "" {
		return pkgerrors.NewValidation("agent name cannot be empty")
	}
	a.name = name
	a.touch()
	return nil
}

// SetDescription updates the description
func (a *Agent) SetDescription(description string) {
	a.description = description
	a.touch()
}

// SetPriority updates the dispatch priority
func (a *Agent) SetPriority(priority int) error {
	if priority < 0 {
		return pkgerrors.NewValidation("priority cannot be negative")
	}
	a.priority = priority
	a.touch()
	return nil
}

// SetTimeoutSeconds updates the per-dispatch deadline
func (a *Agent) SetTimeoutSeconds(seconds int) error {
	if seconds <= 0 {
		return pkgerrors.NewValidation("timeout must be positive")
	}
	a.timeoutSeconds = seconds
	a.touch()
	return nil
}

// SetRetryAttempts updates the number of automatic redispatches after failure
func (a *Agent) SetRetryAttempts(attempts int) error {
	if attempts < 0 {
		return pkgerrors.NewValidation("retry attempts cannot be negative")
	}
	a.retryAttempts = attempts
	a.touch()
	return nil
}

// SetParameter stores a configuration parameter
func (a *Agent) SetParameter(key, value string) error {
	if key == "" {
		return pkgerrors.NewValidation("parameter key cannot be empty")
	}
	a.parameters[key] = value
	a.touch()
	return nil
}

func (a *Agent) touch() {
	a.updatedAt = time.Now()
}
