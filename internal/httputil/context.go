package httputil

import (
	"context"
	"net/http"

	"quarry/internal/domain/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	sessionKey contextKey = "session"
)

// WithSession adds the user session to the request context
func WithSession(r *http.Request, session models.UserSession) *http.Request {
	ctx := context.WithValue(r.Context(), sessionKey, session)
	return r.WithContext(ctx)
}

// GetSession retrieves the session from context. Requests that carried no
// valid token get the anonymous session.
func GetSession(r *http.Request) models.UserSession {
	session, ok := r.Context().Value(sessionKey).(models.UserSession)
	if !ok {
		return models.AnonymousSession()
	}
	return session
}
