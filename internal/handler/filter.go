package handler

import (
	"log/slog"
	"net/http"

	"quarry/internal/domain/services"
	"quarry/internal/httputil"
)

// FilterHandler handles issue filter HTTP requests
type FilterHandler struct {
	filterService services.FilterService
	logger        *slog.Logger
}

// NewFilterHandler creates a new filter handler
func NewFilterHandler(filterService services.FilterService, logger *slog.Logger) *FilterHandler {
	return &FilterHandler{
		filterService: filterService,
		logger:        logger,
	}
}

// ListFilters returns the filters owned by the acting user
// GET /api/filters
func (h *FilterHandler) ListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filterService.FindByUser(r.Context(), httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, filters)
}

// ListSharedFilters returns shared filters owned by other users
// GET /api/filters/shared
func (h *FilterHandler) ListSharedFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filterService.FindSharedWithoutUserFilters(r.Context(), httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, filters)
}

// ListFavoriteFilters returns the filters starred by the acting user
// GET /api/filters/favorites
func (h *FilterHandler) ListFavoriteFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filterService.FindFavoriteFilters(r.Context(), httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, filters)
}

// CanShare reports whether the acting user may own shared filters
// GET /api/filters/can-share
func (h *FilterHandler) CanShare(w http.ResponseWriter, r *http.Request) {
	canShare, err := h.filterService.CanShareFilter(r.Context(), httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"can_share": canShare})
}

// GetFilter retrieves a readable filter by ID
// GET /api/filters/{id}
func (h *FilterHandler) GetFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	filter, err := h.filterService.Find(r.Context(), id, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, filter)
}

// CreateFilter creates a new filter owned by the acting user
// POST /api/filters
func (h *FilterHandler) CreateFilter(w http.ResponseWriter, r *http.Request) {
	var req services.SaveFilterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filter, err := h.filterService.Save(r.Context(), &req, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, filter)
}

// UpdateFilter replaces the mutable fields of a filter
// PATCH /api/filters/{id}
func (h *FilterHandler) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	var req services.UpdateFilterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filter, err := h.filterService.Update(r.Context(), id, &req, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, filter)
}

// UpdateFilterQuery replaces the filter's stored query criteria
// PUT /api/filters/{id}/query
func (h *FilterHandler) UpdateFilterQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	var query map[string]interface{}
	if err := httputil.ParseJSON(w, r, &query); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filter, err := h.filterService.UpdateFilterQuery(r.Context(), id, query, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, filter)
}

// DeleteFilter deletes a filter and its favorite links
// DELETE /api/filters/{id}
func (h *FilterHandler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	if err := h.filterService.Delete(r.Context(), id, httputil.GetSession(r)); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CopyFilter creates a private copy of a readable filter
// POST /api/filters/{id}/copy
func (h *FilterHandler) CopyFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	var req services.CopyFilterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filter, err := h.filterService.Copy(r.Context(), id, &req, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, filter)
}

// ToggleFavorite flips the favorite link between the acting user and a filter
// POST /api/filters/{id}/favorite
func (h *FilterHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	favorite, err := h.filterService.ToggleFavorite(r.Context(), id, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

// HealthCheck reports service liveness
// GET /health
func (h *FilterHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
