// Package ports defines the interfaces the application layer depends on.
// Infrastructure adapters implement these; services never import adapters.
package ports

import (
	"context"
	"time"

	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/domain/events"
)

// AgentRepository persists agent descriptors. All reads are owner-scoped
// except GetByID, whose callers enforce ownership themselves.
type AgentRepository interface {
	// Save inserts or updates an agent
	Save(ctx context.Context, agent *entities.Agent) error

	// GetByID retrieves an agent, returning a NotFound error when absent
	GetByID(ctx context.Context, id valueobjects.AgentID) (*entities.Agent, error)

	// GetByOwner retrieves all agents registered by the owner
	GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*entities.Agent, error)

	// FindNeedingExecution retrieves the owner's enabled agents whose last
	// execution is absent or older than the cutoff, ordered by priority
	// ascending so higher-priority agents are dispatched first
	FindNeedingExecution(ctx context.Context, owner valueobjects.Owner, cutoff time.Time) ([]*entities.Agent, error)

	// Owners lists every owner with at least one registered agent
	Owners(ctx context.Context) ([]valueobjects.Owner, error)

	// Delete removes an agent descriptor
	Delete(ctx context.Context, id valueobjects.AgentID) error
}

// ExecutionRepository persists dispatch attempts. Executions belong to their
// agent and are cascade-deleted with it.
type ExecutionRepository interface {
	// Save inserts or updates an execution
	Save(ctx context.Context, execution *entities.Execution) error

	// GetByID retrieves an execution, returning a NotFound error when absent
	GetByID(ctx context.Context, id valueobjects.ExecutionID) (*entities.Execution, error)

	// GetByAgentID retrieves an agent's executions, newest first
	GetByAgentID(ctx context.Context, agentID valueobjects.AgentID) ([]*entities.Execution, error)

	// DeleteByAgentID removes every execution belonging to the agent
	DeleteByAgentID(ctx context.Context, agentID valueobjects.AgentID) error
}

// DataSourceRepository persists ingested artifacts.
type DataSourceRepository interface {
	// Save inserts or updates a data source
	Save(ctx context.Context, source *entities.DataSource) error

	// GetByID retrieves a data source, returning a NotFound error when absent
	GetByID(ctx context.Context, id valueobjects.DataSourceID) (*entities.DataSource, error)

	// GetByOwner retrieves all of the owner's data sources
	GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*entities.DataSource, error)

	// GetByIDs retrieves the given data sources, skipping IDs that do not exist
	GetByIDs(ctx context.Context, ids []valueobjects.DataSourceID) ([]*entities.DataSource, error)

	// Delete removes a data source
	Delete(ctx context.Context, id valueobjects.DataSourceID) error
}

// MemoRepository persists memo aggregates with their sections, subsections
// and visualizations.
type MemoRepository interface {
	// Save inserts or updates a memo and its full section tree
	Save(ctx context.Context, memo *aggregates.Memo) error

	// GetByID retrieves a memo, returning a NotFound error when absent
	GetByID(ctx context.Context, id valueobjects.MemoID) (*aggregates.Memo, error)

	// GetByOwner retrieves all of the owner's memos, newest first
	GetByOwner(ctx context.Context, owner valueobjects.Owner) ([]*aggregates.Memo, error)

	// Delete removes a memo and its section tree
	Delete(ctx context.Context, id valueobjects.MemoID) error
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	// Publish delivers the events; implementations decide delivery semantics
	Publish(ctx context.Context, events ...events.DomainEvent) error
}

// MetricsRecorder is the narrow observability surface the application layer
// emits into. The prometheus-backed implementation lives in infrastructure.
type MetricsRecorder interface {
	// RecordExecution observes one finished dispatch attempt
	RecordExecution(agentType string, outcome string, seconds float64)

	// ExecutionStarted increments the in-flight dispatch gauge
	ExecutionStarted(agentType string)

	// ExecutionFinished decrements the in-flight dispatch gauge
	ExecutionFinished(agentType string)

	// RecordMemoGenerated observes one completed memo synthesis
	RecordMemoGenerated(stage string, seconds float64)

	// RecordChannelCall observes one outbound channel call
	RecordChannelCall(channel string, outcome string, seconds float64)
}
