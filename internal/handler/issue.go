package handler

import (
	"log/slog"
	"net/http"

	"quarry/internal/domain/models"
	"quarry/internal/domain/services"
	"quarry/internal/filterquery"
	"quarry/internal/httputil"
)

// IssueHandler handles issue search HTTP requests
type IssueHandler struct {
	filterService services.FilterService
	logger        *slog.Logger
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(filterService services.FilterService, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{
		filterService: filterService,
		logger:        logger,
	}
}

// SearchIssues runs an ad-hoc issue query
// POST /api/issues/search
func (h *IssueHandler) SearchIssues(w http.ResponseWriter, r *http.Request) {
	var query models.IssueQuery
	if err := httputil.ParseJSON(w, r, &query); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.filterService.Execute(r.Context(), &query)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// ExecuteFilter runs the query stored in a readable filter
// GET /api/filters/{id}/issues
func (h *IssueHandler) ExecuteFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := filterID(w, r)
	if !ok {
		return
	}

	filter, err := h.filterService.Find(r.Context(), id, httputil.GetSession(r))
	if err != nil {
		handleError(w, err)
		return
	}

	mapping, err := h.filterService.DeserializeFilterQuery(filter)
	if err != nil {
		handleError(w, err)
		return
	}

	query, err := filterquery.ToIssueQuery(mapping)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.filterService.Execute(r.Context(), query)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
