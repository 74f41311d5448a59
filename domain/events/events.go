package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an important business occurrence in the domain
type DomainEvent interface {
	// EventID returns a unique identifier for this event instance
	EventID() string

	// EventType returns the type of event (e.g., "ExecutionStarted")
	EventType() string

	// AggregateID returns the ID of the aggregate that generated this event
	AggregateID() string

	// UserID returns the ID of the user who triggered this event
	UserID() string

	// Timestamp returns when the event occurred
	Timestamp() time.Time

	// EventData returns the event-specific data
	EventData() map[string]interface{}
}

// BaseEvent provides common functionality for all domain events
type BaseEvent struct {
	eventID     string
	eventType   string
	aggregateID string
	userID      string
	timestamp   time.Time
}

func newBaseEvent(eventType, aggregateID, userID string) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New().String(),
		eventType:   eventType,
		aggregateID: aggregateID,
		userID:      userID,
		timestamp:   time.Now(),
	}
}

// EventID returns the unique event identifier
func (e BaseEvent) EventID() string { return e.eventID }

// EventType returns the type of event
func (e BaseEvent) EventType() string { return e.eventType }

// AggregateID returns the aggregate identifier
func (e BaseEvent) AggregateID() string { return e.aggregateID }

// UserID returns the user identifier
func (e BaseEvent) UserID() string { return e.userID }

// Timestamp returns when the event occurred
func (e BaseEvent) Timestamp() time.Time { return e.timestamp }

// Event type constants
const (
	EventTypeExecutionStarted   = "ExecutionStarted"
	EventTypeExecutionCompleted = "ExecutionCompleted"
	EventTypeExecutionFailed    = "ExecutionFailed"
	EventTypeExecutionCancelled = "ExecutionCancelled"
	EventTypeAgentExhausted     = "AgentExhausted"
	EventTypeDataSourceIngested = "DataSourceIngested"
	EventTypeMemoGenerated      = "MemoGenerated"
)

// ExecutionStarted is emitted when a dispatch attempt begins running
type ExecutionStarted struct {
	BaseEvent
	ExecID    string
	AgentType string
	Attempt   int
}

// NewExecutionStarted creates an ExecutionStarted event
func NewExecutionStarted(agentID, userID, execID, agentType string, attempt int) *ExecutionStarted {
	return &ExecutionStarted{
		BaseEvent: newBaseEvent(EventTypeExecutionStarted, agentID, userID),
		ExecID:    execID,
		AgentType: agentType,
		Attempt:   attempt,
	}
}

// EventData returns the event-specific data
func (e *ExecutionStarted) EventData() map[string]interface{} {
	return map[string]interface{}{
		"executionId": e.ExecID,
		"agentType":   e.AgentType,
		"attempt":     e.Attempt,
	}
}

// ExecutionCompleted is emitted when a dispatch attempt succeeds
type ExecutionCompleted struct {
	BaseEvent
	ExecID          string
	AgentType       string
	DurationSeconds int64
	Confidence      float64
}

// NewExecutionCompleted creates an ExecutionCompleted event
func NewExecutionCompleted(agentID, userID, execID, agentType string, durationSeconds int64, confidence float64) *ExecutionCompleted {
	return &ExecutionCompleted{
		BaseEvent:       newBaseEvent(EventTypeExecutionCompleted, agentID, userID),
		ExecID:          execID,
		AgentType:       agentType,
		DurationSeconds: durationSeconds,
		Confidence:      confidence,
	}
}

// EventData returns the event-specific data
func (e *ExecutionCompleted) EventData() map[string]interface{} {
	return map[string]interface{}{
		"executionId":     e.ExecID,
		"agentType":       e.AgentType,
		"durationSeconds": e.DurationSeconds,
		"confidence":      e.Confidence,
	}
}

// ExecutionFailed is emitted when a dispatch attempt fails or times out
type ExecutionFailed struct {
	BaseEvent
	ExecID    string
	AgentType string
	Reason    string
	WillRetry bool
}

// NewExecutionFailed creates an ExecutionFailed event
func NewExecutionFailed(agentID, userID, execID, agentType, reason string, willRetry bool) *ExecutionFailed {
	return &ExecutionFailed{
		BaseEvent: newBaseEvent(EventTypeExecutionFailed, agentID, userID),
		ExecID:    execID,
		AgentType: agentType,
		Reason:    reason,
		WillRetry: willRetry,
	}
}

// EventData returns the event-specific data
func (e *ExecutionFailed) EventData() map[string]interface{} {
	return map[string]interface{}{
		"executionId": e.ExecID,
		"agentType":   e.AgentType,
		"reason":      e.Reason,
		"willRetry":   e.WillRetry,
	}
}

// ExecutionCancelled is emitted when a caller cancels a dispatch attempt
type ExecutionCancelled struct {
	BaseEvent
	ExecID string
}

// NewExecutionCancelled creates an ExecutionCancelled event
func NewExecutionCancelled(agentID, userID, execID string) *ExecutionCancelled {
	return &ExecutionCancelled{
		BaseEvent: newBaseEvent(EventTypeExecutionCancelled, agentID, userID),
		ExecID:    execID,
	}
}

// EventData returns the event-specific data
func (e *ExecutionCancelled) EventData() map[string]interface{} {
	return map[string]interface{}{"executionId": e.ExecID}
}

// AgentExhausted is emitted when all retry attempts have been consumed and
// the agent is parked in Failed until an operator resets it
type AgentExhausted struct {
	BaseEvent
	AgentType string
	Attempts  int
}

// NewAgentExhausted creates an AgentExhausted event
func NewAgentExhausted(agentID, userID, agentType string, attempts int) *AgentExhausted {
	return &AgentExhausted{
		BaseEvent: newBaseEvent(EventTypeAgentExhausted, agentID, userID),
		AgentType: agentType,
		Attempts:  attempts,
	}
}

// EventData returns the event-specific data
func (e *AgentExhausted) EventData() map[string]interface{} {
	return map[string]interface{}{
		"agentType": e.AgentType,
		"attempts":  e.Attempts,
	}
}

// DataSourceIngested is emitted when an agent output becomes a data source
type DataSourceIngested struct {
	BaseEvent
	SourceType string
}

// NewDataSourceIngested creates a DataSourceIngested event
func NewDataSourceIngested(dataSourceID, userID, sourceType string) *DataSourceIngested {
	return &DataSourceIngested{
		BaseEvent:  newBaseEvent(EventTypeDataSourceIngested, dataSourceID, userID),
		SourceType: sourceType,
	}
}

// EventData returns the event-specific data
func (e *DataSourceIngested) EventData() map[string]interface{} {
	return map[string]interface{}{"sourceType": e.SourceType}
}

// MemoGenerated is emitted when a memo reaches Completed
type MemoGenerated struct {
	BaseEvent
	Stage        string
	SectionCount int
}

// NewMemoGenerated creates a MemoGenerated event
func NewMemoGenerated(memoID, userID, stage string, sectionCount int) *MemoGenerated {
	return &MemoGenerated{
		BaseEvent:    newBaseEvent(EventTypeMemoGenerated, memoID, userID),
		Stage:        stage,
		SectionCount: sectionCount,
	}
}

// EventData returns the event-specific data
func (e *MemoGenerated) EventData() map[string]interface{} {
	return map[string]interface{}{
		"stage":        e.Stage,
		"sectionCount": e.SectionCount,
	}
}
