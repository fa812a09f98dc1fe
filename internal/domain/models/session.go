package models

import "github.com/google/uuid"

// UserSession identifies the acting user for a request. The zero value is
// an anonymous session; every user-scoped service operation dispatches on
// LoggedIn exactly once before touching persistence.
type UserSession struct {
	Login  string
	UserID uuid.UUID
}

// AnonymousSession returns a session with no authenticated user.
func AnonymousSession() UserSession {
	return UserSession{}
}

// NewUserSession returns an authenticated session for the given login.
func NewUserSession(login string, userID uuid.UUID) UserSession {
	return UserSession{Login: login, UserID: userID}
}

// LoggedIn reports whether the session carries an authenticated login.
func (s UserSession) LoggedIn() bool {
	return s.Login != ""
}
