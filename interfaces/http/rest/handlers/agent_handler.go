// Package handlers maps the HTTP surface onto the application services.
// Untyped JSON maps exist only here: everything past the handler boundary
// works with typed inputs and entities.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"analyst-backend/application/agents"
	"analyst-backend/application/appcontext"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/pkg/api"
)

// AgentHandler serves the agent registry and trigger endpoints.
type AgentHandler struct {
	registry     *services.Registry
	orchestrator *services.Orchestrator
}

// NewAgentHandler creates an agent handler
func NewAgentHandler(registry *services.Registry, orchestrator *services.Orchestrator) *AgentHandler {
	return &AgentHandler{registry: registry, orchestrator: orchestrator}
}

type registerAgentRequest struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Type           string            `json:"type"`
	Priority       int               `json:"priority"`
	TimeoutSeconds int               `json:"timeoutSeconds"`
	RetryAttempts  *int              `json:"retryAttempts"`
	Parameters     map[string]string `json:"parameters"`
}

type updateAgentRequest struct {
	Name           *string           `json:"name"`
	Description    *string           `json:"description"`
	Priority       *int              `json:"priority"`
	TimeoutSeconds *int              `json:"timeoutSeconds"`
	RetryAttempts  *int              `json:"retryAttempts"`
	Parameters     map[string]string `json:"parameters"`
}

type triggerAgentRequest struct {
	Input map[string]interface{} `json:"input"`
}

type triggerAgentResponse struct {
	ExecutionID string `json:"executionId"`
	AgentID     string `json:"agentId"`
	Status      string `json:"status"`
}

// Register handles POST /api/agents
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	var req registerAgentRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}

	agent, err := h.registry.RegisterAgent(r.Context(), owner, services.RegisterAgentCommand{
		Name:           req.Name,
		Description:    req.Description,
		Type:           entities.AgentType(req.Type),
		Priority:       req.Priority,
		TimeoutSeconds: req.TimeoutSeconds,
		RetryAttempts:  req.RetryAttempts,
		Parameters:     req.Parameters,
	})
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, api.NewAgentResponse(agent))
}

// List handles GET /api/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	list, err := h.registry.ListAgents(r.Context(), owner)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewAgentResponses(list))
}

// Get handles GET /api/agents/{agentId}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, agentID, err := agentRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	agent, err := h.registry.GetAgent(r.Context(), owner, agentID)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewAgentResponse(agent))
}

// Update handles PUT /api/agents/{agentId}
func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, agentID, err := agentRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	var req updateAgentRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}

	agent, err := h.registry.UpdateAgent(r.Context(), owner, agentID, services.UpdateAgentCommand{
		Name:           req.Name,
		Description:    req.Description,
		Priority:       req.Priority,
		TimeoutSeconds: req.TimeoutSeconds,
		RetryAttempts:  req.RetryAttempts,
		Parameters:     req.Parameters,
	})
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewAgentResponse(agent))
}

// Enable handles POST /api/agents/{agentId}/enable
func (h *AgentHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.registry.EnableAgent)
}

// Disable handles POST /api/agents/{agentId}/disable
func (h *AgentHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.registry.DisableAgent)
}

// Pause handles POST /api/agents/{agentId}/pause
func (h *AgentHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.registry.PauseAgent)
}

// Reset handles POST /api/agents/{agentId}/reset
func (h *AgentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.registry.ResetAgent)
}

// Delete handles DELETE /api/agents/{agentId}
func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, agentID, err := agentRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	if err := h.registry.DeleteAgent(r.Context(), owner, agentID); err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// Trigger handles POST /api/agents/{agentId}/trigger. The request input is
// decoded against the agent's declared type before dispatch so unknown or
// malformed payloads never reach the orchestrator.
func (h *AgentHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	owner, agentID, err := agentRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	var req triggerAgentRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}

	agent, err := h.registry.GetAgent(r.Context(), owner, agentID)
	if err != nil {
		api.Error(w, err)
		return
	}

	input, err := agents.DecodeInput(agent.Type(), req.Input)
	if err != nil {
		api.Error(w, err)
		return
	}

	handle, err := h.orchestrator.TriggerAgent(r.Context(), owner, agentID, input)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusAccepted, triggerAgentResponse{
		ExecutionID: handle.ExecutionID().String(),
		AgentID:     handle.AgentID().String(),
		Status:      string(entities.ExecutionStatusPending),
	})
}

// ListExecutions handles GET /api/agents/{agentId}/executions
func (h *AgentHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	owner, agentID, err := agentRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	list, err := h.orchestrator.ListExecutions(r.Context(), owner, agentID)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewExecutionResponses(list))
}

func (h *AgentHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, owner valueobjects.Owner, id valueobjects.AgentID) error,
) {
	owner, agentID, err := agentRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	if err := op(r.Context(), owner, agentID); err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func agentRequestScope(r *http.Request) (valueobjects.Owner, valueobjects.AgentID, error) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		return valueobjects.Owner{}, valueobjects.AgentID{}, err
	}
	agentID, err := valueobjects.ParseAgentID(chi.URLParam(r, "agentId"))
	if err != nil {
		return valueobjects.Owner{}, valueobjects.AgentID{}, err
	}
	return owner, agentID, nil
}
