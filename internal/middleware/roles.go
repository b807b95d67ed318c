package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"cashledger/internal/models"
)

type UserLookup interface {
	Lookup(ctx context.Context, userID string) (models.User, error)
}

// RequireRole re-reads the caller from the database so that a deactivated user
// or a changed role takes effect before the token expires.
func RequireRole(users UserLookup, roles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			user, err := users.Lookup(r.Context(), userID)
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "user no longer exists")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", "unable to verify role")
				return
			}
			if user.Status != models.StatusActive {
				writeError(w, http.StatusForbidden, "user_inactive", "user is not active")
				return
			}
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "missing required role")
		})
	}
}
