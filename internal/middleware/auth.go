package middleware

import (
	"net/http"
	"strings"

	"quarry/internal/auth"
	"quarry/internal/domain/models"
	"quarry/internal/httputil"

	"github.com/google/uuid"
)

// Auth resolves the bearer token into a user session on the request context.
// Requests without a token (or with an invalid one) continue as anonymous;
// the service layer decides which operations require a login.
func Auth(verifier auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				// A present but invalid token is rejected outright instead
				// of downgrading the caller to anonymous.
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			userID, err := uuid.Parse(claims.GetUserID())
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			r = httputil.WithSession(r, models.NewUserSession(claims.Login, userID))
			next.ServeHTTP(w, r)
		})
	}
}
