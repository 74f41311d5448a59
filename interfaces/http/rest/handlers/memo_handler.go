package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"analyst-backend/application/appcontext"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/pkg/api"
)

// MemoHandler serves memo synthesis, lookup and review endpoints.
type MemoHandler struct {
	synthesizer *services.MemoSynthesizer
}

// NewMemoHandler creates a memo handler
func NewMemoHandler(synthesizer *services.MemoSynthesizer) *MemoHandler {
	return &MemoHandler{synthesizer: synthesizer}
}

type generateMemoRequest struct {
	CompanyName   string   `json:"companyName"`
	DataSourceIDs []string `json:"dataSourceIds"`
}

type curateMemoRequest struct {
	SourceMemoID string            `json:"sourceMemoId"`
	Preferences  map[string]string `json:"preferences"`
}

// Generate handles POST /api/memos/generate: stage 1 synthesis from the
// selected data sources.
func (h *MemoHandler) Generate(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	var req generateMemoRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}

	sourceIDs := make([]valueobjects.DataSourceID, 0, len(req.DataSourceIDs))
	for _, raw := range req.DataSourceIDs {
		id, err := valueobjects.ParseDataSourceID(raw)
		if err != nil {
			api.Error(w, err)
			return
		}
		sourceIDs = append(sourceIDs, id)
	}

	memo, err := h.synthesizer.SynthesizeStage1(r.Context(), owner, req.CompanyName, sourceIDs)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, api.NewMemoResponse(memo))
}

// Curate handles POST /api/memos/curate: stage 2 curation of a completed
// stage 1 memo.
func (h *MemoHandler) Curate(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	var req curateMemoRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}

	sourceMemoID, err := valueobjects.ParseMemoID(req.SourceMemoID)
	if err != nil {
		api.Error(w, err)
		return
	}

	memo, err := h.synthesizer.SynthesizeStage2(r.Context(), owner, sourceMemoID, req.Preferences)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, api.NewMemoResponse(memo))
}

// List handles GET /api/memos; an optional q parameter filters by title or
// company name.
func (h *MemoHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}

	query := r.URL.Query().Get("q")
	if query != "" {
		memos, err := h.synthesizer.SearchMemos(r.Context(), owner, query)
		if err != nil {
			api.Error(w, err)
			return
		}
		api.JSON(w, http.StatusOK, api.NewMemoResponses(memos))
		return
	}

	memos, err := h.synthesizer.ListMemos(r.Context(), owner)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.JSON(w, http.StatusOK, api.NewMemoResponses(memos))
}

// Get handles GET /api/memos/{memoId}
func (h *MemoHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, memoID, err := memoRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	memo, err := h.synthesizer.GetMemo(r.Context(), owner, memoID)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.NewMemoResponse(memo))
}

// StartReview handles POST /api/memos/{memoId}/review
func (h *MemoHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.synthesizer.StartReview)
}

// Approve handles POST /api/memos/{memoId}/approve
func (h *MemoHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.synthesizer.ApproveMemo)
}

// Reject handles POST /api/memos/{memoId}/reject
func (h *MemoHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.synthesizer.RejectMemo)
}

// Delete handles DELETE /api/memos/{memoId}
func (h *MemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.synthesizer.DeleteMemo)
}

func (h *MemoHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, owner valueobjects.Owner, id valueobjects.MemoID) error,
) {
	owner, memoID, err := memoRequestScope(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	if err := op(r.Context(), owner, memoID); err != nil {
		api.Error(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func memoRequestScope(r *http.Request) (valueobjects.Owner, valueobjects.MemoID, error) {
	owner, err := appcontext.OwnerFrom(r.Context())
	if err != nil {
		return valueobjects.Owner{}, valueobjects.MemoID{}, err
	}
	memoID, err := valueobjects.ParseMemoID(chi.URLParam(r, "memoId"))
	if err != nil {
		return valueobjects.Owner{}, valueobjects.MemoID{}, err
	}
	return owner, memoID, nil
}
