package middleware

import (
	"context"
	"net/http"
	"strings"

	"drawsync/internal/auth"
)

const identityKey contextKey = "identity"

// TokenVerifier is what this middleware needs from the authenticator
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// RequireAuth guards REST endpoints with the same bearer tokens the
// socket gateway verifies. The token arrives as "Authorization: Bearer
// <token>"; a missing or invalid token is a hard 401.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				token = ""
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity RequireAuth stored, if any
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*auth.Identity)
	return identity, ok
}
