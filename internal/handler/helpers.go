package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"quarry/internal/domain"
	"quarry/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), err.Error())
		return
	}

	slog.Error("unexpected error", "error", err)
	httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
}

// filterID parses the {id} path segment. A non-numeric value is a 400.
func filterID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid filter ID")
		return 0, false
	}
	return id, true
}
