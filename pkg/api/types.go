package api

import (
	"time"

	"analyst-backend/domain/core/aggregates"
	"analyst-backend/domain/core/entities"
)

// AgentResponse is the transport shape of an agent descriptor.
type AgentResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Type           string            `json:"type"`
	Enabled        bool              `json:"enabled"`
	Priority       int               `json:"priority"`
	TimeoutSeconds int               `json:"timeoutSeconds"`
	RetryAttempts  int               `json:"retryAttempts"`
	Status         string            `json:"status"`
	LastExecution  *time.Time        `json:"lastExecution,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// NewAgentResponse converts an agent entity
func NewAgentResponse(agent *entities.Agent) AgentResponse {
	return AgentResponse{
		ID:             agent.ID().String(),
		Name:           agent.Name(),
		Description:    agent.Description(),
		Type:           string(agent.Type()),
		Enabled:        agent.Enabled(),
		Priority:       agent.Priority(),
		TimeoutSeconds: agent.TimeoutSeconds(),
		RetryAttempts:  agent.RetryAttempts(),
		Status:         string(agent.Status()),
		LastExecution:  agent.LastExecution(),
		Parameters:     agent.Parameters(),
		CreatedAt:      agent.CreatedAt(),
		UpdatedAt:      agent.UpdatedAt(),
	}
}

// NewAgentResponses converts a slice of agent entities
func NewAgentResponses(agents []*entities.Agent) []AgentResponse {
	out := make([]AgentResponse, 0, len(agents))
	for _, agent := range agents {
		out = append(out, NewAgentResponse(agent))
	}
	return out
}

// ExecutionResponse is the transport shape of a dispatch attempt.
type ExecutionResponse struct {
	ID              string            `json:"id"`
	AgentID         string            `json:"agentId"`
	Status          string            `json:"status"`
	StartedAt       *time.Time        `json:"startedAt,omitempty"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	DurationSeconds int64             `json:"durationSeconds"`
	OutputSnapshot  string            `json:"outputSnapshot,omitempty"`
	ErrorMessage    string            `json:"errorMessage,omitempty"`
	ConfidenceScore float64           `json:"confidenceScore"`
	Metrics         map[string]string `json:"metrics,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// NewExecutionResponse converts an execution entity
func NewExecutionResponse(execution *entities.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:              execution.ID().String(),
		AgentID:         execution.AgentID().String(),
		Status:          string(execution.Status()),
		StartedAt:       execution.StartedAt(),
		CompletedAt:     execution.CompletedAt(),
		DurationSeconds: execution.DurationSeconds(),
		OutputSnapshot:  execution.OutputSnapshot(),
		ErrorMessage:    execution.ErrorMessage(),
		ConfidenceScore: execution.ConfidenceScore(),
		Metrics:         execution.Metrics(),
		CreatedAt:       execution.CreatedAt(),
	}
}

// NewExecutionResponses converts a slice of execution entities
func NewExecutionResponses(executions []*entities.Execution) []ExecutionResponse {
	out := make([]ExecutionResponse, 0, len(executions))
	for _, execution := range executions {
		out = append(out, NewExecutionResponse(execution))
	}
	return out
}

// DataSourceResponse is the transport shape of a data source.
type DataSourceResponse struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	URL             string            `json:"url,omitempty"`
	Status          string            `json:"status"`
	Content         string            `json:"content,omitempty"`
	ConfidenceScore float64           `json:"confidenceScore"`
	IsSelected      bool              `json:"isSelected"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// NewDataSourceResponse converts a data source entity
func NewDataSourceResponse(source *entities.DataSource) DataSourceResponse {
	return DataSourceResponse{
		ID:              source.ID().String(),
		Type:            string(source.Type()),
		Name:            source.Name(),
		Description:     source.Description(),
		URL:             source.URL(),
		Status:          string(source.Status()),
		Content:         source.Content(),
		ConfidenceScore: source.ConfidenceScore(),
		IsSelected:      source.IsSelected(),
		Metadata:        source.Metadata(),
		CreatedAt:       source.CreatedAt(),
		UpdatedAt:       source.UpdatedAt(),
	}
}

// NewDataSourceResponses converts a slice of data source entities
func NewDataSourceResponses(sources []*entities.DataSource) []DataSourceResponse {
	out := make([]DataSourceResponse, 0, len(sources))
	for _, source := range sources {
		out = append(out, NewDataSourceResponse(source))
	}
	return out
}

// SubsectionResponse is the transport shape of a memo subsection.
type SubsectionResponse struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	OrderIndex int    `json:"orderIndex"`
}

// VisualizationResponse is the transport shape of a memo visualization.
type VisualizationResponse struct {
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Payload    string `json:"payload"`
	OrderIndex int    `json:"orderIndex"`
}

// SectionResponse is the transport shape of a memo section.
type SectionResponse struct {
	Type           string                  `json:"type"`
	Title          string                  `json:"title"`
	Content        string                  `json:"content"`
	Weight         float64                 `json:"weight"`
	Confidence     float64                 `json:"confidence"`
	OrderIndex     int                     `json:"orderIndex"`
	Subsections    []SubsectionResponse    `json:"subsections,omitempty"`
	Visualizations []VisualizationResponse `json:"visualizations,omitempty"`
}

// MemoResponse is the transport shape of a memo aggregate.
type MemoResponse struct {
	ID           string            `json:"id"`
	Version      int               `json:"version"`
	Title        string            `json:"title"`
	CompanyName  string            `json:"companyName,omitempty"`
	Stage        string            `json:"stage"`
	Status       string            `json:"status"`
	GeneratedBy  string            `json:"generatedBy"`
	SourceMemoID string            `json:"sourceMemoId,omitempty"`
	Preferences  map[string]string `json:"preferences,omitempty"`
	Sections     []SectionResponse `json:"sections"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NewMemoResponse converts a memo aggregate with its section tree
func NewMemoResponse(memo *aggregates.Memo) MemoResponse {
	sections := make([]SectionResponse, 0, memo.SectionCount())
	for _, section := range memo.Sections() {
		subsections := make([]SubsectionResponse, 0, len(section.Subsections()))
		for _, sub := range section.Subsections() {
			subsections = append(subsections, SubsectionResponse{
				Title:      sub.Title,
				Content:    sub.Content,
				OrderIndex: sub.OrderIndex,
			})
		}
		visualizations := make([]VisualizationResponse, 0, len(section.Visualizations()))
		for _, vis := range section.Visualizations() {
			visualizations = append(visualizations, VisualizationResponse{
				Kind:       vis.Kind,
				Title:      vis.Title,
				Payload:    vis.Payload,
				OrderIndex: vis.OrderIndex,
			})
		}
		sections = append(sections, SectionResponse{
			Type:           string(section.Type()),
			Title:          section.Title(),
			Content:        section.Content(),
			Weight:         section.Weight(),
			Confidence:     section.Confidence(),
			OrderIndex:     section.OrderIndex(),
			Subsections:    subsections,
			Visualizations: visualizations,
		})
	}
	return MemoResponse{
		ID:           memo.ID().String(),
		Version:      memo.Version(),
		Title:        memo.Title(),
		CompanyName:  memo.CompanyName(),
		Stage:        string(memo.Stage()),
		Status:       string(memo.Status()),
		GeneratedBy:  memo.GeneratedBy().String(),
		SourceMemoID: memo.SourceMemoID().String(),
		Preferences:  memo.Preferences(),
		Sections:     sections,
		CreatedAt:    memo.CreatedAt(),
		UpdatedAt:    memo.UpdatedAt(),
	}
}

// NewMemoResponses converts a slice of memo aggregates
func NewMemoResponses(memos []*aggregates.Memo) []MemoResponse {
	out := make([]MemoResponse, 0, len(memos))
	for _, memo := range memos {
		out = append(out, NewMemoResponse(memo))
	}
	return out
}
