package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/user"
)

const callerKey contextKey = "caller"

// AuthMiddleware resolves the Bearer token to a user record and stores it in
// the request context. Requests without a valid token never reach the core.
func AuthMiddleware(users *user.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			caller, err := users.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability gates a route on a role capability, e.g.
// user.Role.CanBook. The gate runs after AuthMiddleware.
func RequireCapability(allowed func(user.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFrom(r.Context())
			if caller == nil || !allowed(caller.Role) {
				writeError(w, http.StatusForbidden, "forbidden", "role not allowed for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFrom retrieves the authenticated user from context, or nil.
func CallerFrom(ctx context.Context) *user.User {
	if u, ok := ctx.Value(callerKey).(*user.User); ok {
		return u
	}
	return nil
}
