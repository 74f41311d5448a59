// Package fixtures provides fluent builders for domain objects used across
// the test suites.
package fixtures

import (
	"fmt"
	"time"

	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
)

// DefaultOwner is the owner used when a builder is not given one.
func DefaultOwner() valueobjects.Owner {
	owner, err := valueobjects.NewOwner("test-user")
	if err != nil {
		panic(err)
	}
	return owner
}

// Owner builds an owner from a raw id, panicking on invalid input. Test-only.
func Owner(id string) valueobjects.Owner {
	owner, err := valueobjects.NewOwner(id)
	if err != nil {
		panic(err)
	}
	return owner
}

// AgentBuilder builds agents for tests.
type AgentBuilder struct {
	owner         valueobjects.Owner
	name          string
	agentType     entities.AgentType
	priority      *int
	timeout       *int
	retries       *int
	parameters    map[string]string
	disabled      bool
	lastExecution *time.Time
}

// NewAgent starts an agent builder with sane defaults
func NewAgent() *AgentBuilder {
	return &AgentBuilder{
		owner:     DefaultOwner(),
		name:      "test agent",
		agentType: entities.AgentTypeDeepResearch,
	}
}

func (b *AgentBuilder) WithOwner(owner valueobjects.Owner) *AgentBuilder {
	b.owner = owner
	return b
}

func (b *AgentBuilder) WithName(name string) *AgentBuilder {
	b.name = name
	return b
}

func (b *AgentBuilder) WithType(t entities.AgentType) *AgentBuilder {
	b.agentType = t
	return b
}

func (b *AgentBuilder) WithPriority(p int) *AgentBuilder {
	b.priority = &p
	return b
}

func (b *AgentBuilder) WithTimeoutSeconds(s int) *AgentBuilder {
	b.timeout = &s
	return b
}

func (b *AgentBuilder) WithRetryAttempts(n int) *AgentBuilder {
	b.retries = &n
	return b
}

func (b *AgentBuilder) WithParameter(key, value string) *AgentBuilder {
	if b.parameters == nil {
		b.parameters = make(map[string]string)
	}
	b.parameters[key] = value
	return b
}

func (b *AgentBuilder) Disabled() *AgentBuilder {
	b.disabled = true
	return b
}

func (b *AgentBuilder) WithLastExecution(t time.Time) *AgentBuilder {
	b.lastExecution = &t
	return b
}

// Build constructs the agent, panicking on invalid builder state
func (b *AgentBuilder) Build() *entities.Agent {
	agent, err := entities.NewAgent(b.owner, b.name, b.agentType)
	if err != nil {
		panic(err)
	}
	if b.priority != nil {
		if err := agent.SetPriority(*b.priority); err != nil {
			panic(err)
		}
	}
	if b.timeout != nil {
		if err := agent.SetTimeoutSeconds(*b.timeout); err != nil {
			panic(err)
		}
	}
	if b.retries != nil {
		if err := agent.SetRetryAttempts(*b.retries); err != nil {
			panic(err)
		}
	}
	for k, v := range b.parameters {
		if err := agent.SetParameter(k, v); err != nil {
			panic(err)
		}
	}
	if b.disabled {
		agent.Disable()
	}
	if b.lastExecution != nil {
		rebuilt, err := entities.ReconstructAgent(
			agent.ID(), agent.Owner(), agent.Name(), agent.Description(),
			agent.Type(), agent.Enabled(),
			agent.Priority(), agent.TimeoutSeconds(), agent.RetryAttempts(),
			agent.Status(), b.lastExecution, agent.Parameters(),
			agent.CreatedAt(), agent.UpdatedAt(),
		)
		if err != nil {
			panic(err)
		}
		return rebuilt
	}
	return agent
}

// DataSourceBuilder builds data sources for tests.
type DataSourceBuilder struct {
	owner      valueobjects.Owner
	sourceType entities.DataSourceType
	name       string
	content    string
	url        string
	completed  bool
	confidence float64
	selected   bool
}

// NewDataSource starts a data source builder with sane defaults
func NewDataSource() *DataSourceBuilder {
	return &DataSourceBuilder{
		owner:      DefaultOwner(),
		sourceType: entities.DataSourceTypeTextInput,
		name:       "test source",
		content:    "some ingested text",
		confidence: 0.9,
	}
}

func (b *DataSourceBuilder) WithOwner(owner valueobjects.Owner) *DataSourceBuilder {
	b.owner = owner
	return b
}

func (b *DataSourceBuilder) WithType(t entities.DataSourceType) *DataSourceBuilder {
	b.sourceType = t
	return b
}

func (b *DataSourceBuilder) WithName(name string) *DataSourceBuilder {
	b.name = name
	return b
}

func (b *DataSourceBuilder) WithContent(content string) *DataSourceBuilder {
	b.content = content
	return b
}

func (b *DataSourceBuilder) WithURL(url string) *DataSourceBuilder {
	b.url = url
	return b
}

// Completed marks the source as fully processed
func (b *DataSourceBuilder) Completed() *DataSourceBuilder {
	b.completed = true
	return b
}

// Selected marks the source for memo synthesis
func (b *DataSourceBuilder) Selected() *DataSourceBuilder {
	b.selected = true
	return b
}

// Build constructs the data source, panicking on invalid builder state
func (b *DataSourceBuilder) Build() *entities.DataSource {
	source, err := entities.NewDataSource(b.owner, b.sourceType, b.name, b.content, b.url)
	if err != nil {
		panic(err)
	}
	if b.completed {
		if err := source.CompleteProcessing(b.content, b.confidence); err != nil {
			panic(err)
		}
	}
	if b.selected {
		source.Select()
	}
	return source
}

// CompletedStage1Memo builds a completed stage 1 memo with every taxonomy
// section written.
func CompletedStage1Memo(owner valueobjects.Owner, companyName string) *aggregates.Memo {
	memo, err := aggregates.NewStage1Memo(
		owner, "Investment Memo: "+companyName, companyName, valueobjects.NewAgentID())
	if err != nil {
		panic(err)
	}
	for i, sectionType := range aggregates.SectionTaxonomy() {
		err := memo.PutSection(sectionType,
			fmt.Sprintf("Section %d", i+1),
			fmt.Sprintf("Analysis for %s, part %d.", companyName, i+1),
			0.8, 0)
		if err != nil {
			panic(err)
		}
	}
	if err := memo.Complete(); err != nil {
		panic(err)
	}
	return memo
}
