package httpx

import (
	"context"
	"net/http"
	"strings"

	"barberbook/libs/auth"
)

// Identity is the authenticated caller extracted from the bearer token.
// The core never verifies credentials; it only consumes {id, role}.
type Identity struct {
	ID   string
	Role string
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return v, ok
}

func ContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, ident)
}

// WithBearerAuth verifies the Authorization header and stores the caller
// identity in the request context. Paths in skip are served unauthenticated.
func WithBearerAuth(secret string, skip ...string) Middleware {
	skipSet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipSet[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAndVerifyHS256(strings.TrimPrefix(raw, "Bearer "), secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := ContextWithIdentity(r.Context(), Identity{
				ID:   claims.Sub,
				Role: claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
