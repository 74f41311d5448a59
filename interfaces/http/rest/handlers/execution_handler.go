package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"analyst-backend/application/appcontext"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/pkg/api"
)

// ExecutionHandler serves the execution lookup and cancel endpoints.
type ExecutionHandler struct {
	orchestrator *services.Orchestrator
}

// NewExecutionHandler creates an execution handler
func NewExecutionHandler(orchestrator *services.Orchestrator) *ExecutionHandler {
	return &ExecutionHandler{orchestrator: orchestrator}
}

// Get handles GET /api/executions/{executionId}
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, executionID, err := executionRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	execution, err := h.orchestrator.GetExecution(r.Context(), owner, executionID)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewExecutionResponse(execution))
}

// Cancel handles POST /api/executions/{executionId}/cancel
func (h *ExecutionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner, executionID, err := executionRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	if err := h.orchestrator.CancelExecution(r.Context(), owner, executionID); err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func executionRequestScope(r *http.Request) (valueobjects.Owner, valueobjects.ExecutionID, error) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		return valueobjects.Owner{}, valueobjects.ExecutionID{}, err
	}
	executionID, err := valueobjects.ParseExecutionID(chi.URLParam(r, "executionId"))
	if err != nil {
		return valueobjects.Owner{}, valueobjects.ExecutionID{}, err
	}
	return owner, executionID, nil
}
