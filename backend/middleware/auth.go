package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dbehnke/nexus-core/backend/auth"
	"github.com/dbehnke/nexus-core/backend/repository"
)

type ctxKey int

const userCtxKey ctxKey = iota

// UserFromContext returns the authenticated user a handler sits behind
// Auth middleware for, if any.
func UserFromContext(ctx context.Context) (*repository.SafeUser, bool) {
	u, ok := ctx.Value(userCtxKey).(*repository.SafeUser)
	return u, ok
}

// Auth validates the bearer JWT on each request and loads the
// corresponding user via loader, rejecting the request with 401 on any
// failure (missing header, expired/invalid token, unknown user, or a
// role mismatch between the token and the current database record).
func Auth(secret string, loader func(email string) (*repository.SafeUser, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			tok := strings.TrimPrefix(authz, "Bearer ")
			email, role, exp, err := auth.ParseJWT(tok, secret)
			if err != nil || time.Now().After(exp) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			u, err := loader(email)
			if err != nil || u == nil || u.Role != role {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userCtxKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects the request with 403 unless the authenticated
// user (set by Auth) holds one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range allowed {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
