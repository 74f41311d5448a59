package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"analyst-backend/application/appcontext"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/entities"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/pkg/api"
)

// DataSourceHandler serves the data source catalogue endpoints.
type DataSourceHandler struct {
	sources *services.DataSourceService
}

// NewDataSourceHandler creates a data source handler
func NewDataSourceHandler(sources *services.DataSourceService) *DataSourceHandler {
	return &DataSourceHandler{sources: sources}
}

type ingestSourceRequest struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Select      bool   `json:"select"`
}

// Ingest handles POST /api/datasources
func (h *DataSourceHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	var req ingestSourceRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}

	source, err := h.sources.IngestSource(r.Context(), owner, services.IngestSourceCommand{
		Type:        entities.DataSourceType(req.Type),
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		URL:         req.URL,
		Select:      req.Select,
	})
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, api.NewDataSourceResponse(source))
}

// List handles GET /api/datasources
func (h *DataSourceHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	list, err := h.sources.ListSources(r.Context(), owner)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewDataSourceResponses(list))
}

// Get handles GET /api/datasources/{sourceId}
func (h *DataSourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, sourceID, err := sourceRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	source, err := h.sources.GetSource(r.Context(), owner, sourceID)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewDataSourceResponse(source))
}

// Select handles POST /api/datasources/{sourceId}/select
func (h *DataSourceHandler) Select(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sources.SelectSource)
}

// Deselect handles POST /api/datasources/{sourceId}/deselect
func (h *DataSourceHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sources.DeselectSource)
}

// Archive handles POST /api/datasources/{sourceId}/archive
func (h *DataSourceHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sources.ArchiveSource)
}

// Delete handles DELETE /api/datasources/{sourceId}
func (h *DataSourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sources.DeleteSource)
}

func (h *DataSourceHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, owner valueobjects.Owner, id valueobjects.DataSourceID) error,
) {
	owner, sourceID, err := sourceRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	if err := op(r.Context(), owner, sourceID); err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func sourceRequestScope(r *http.Request) (valueobjects.Owner, valueobjects.DataSourceID, error) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		return valueobjects.Owner{}, valueobjects.DataSourceID{}, err
	}
	sourceID, err := valueobjects.ParseDataSourceID(chi.URLParam(r, "sourceId"))
	if err != nil {
		return valueobjects.Owner{}, valueobjects.DataSourceID{}, err
	}
	return owner, sourceID, nil
}
