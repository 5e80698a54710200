package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"
	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
)

// Verifier checks access tokens. *session.Service implements it.
type Verifier interface {
	Verify(accessToken string) (session.Claims, error)
}

type contextKey string

const claimsKey contextKey = "auth.claims"

// RequireAuth rejects requests without a valid access token and stores the
// verified claims in the request context.
func RequireAuth(v Verifier, log *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(v, log, true)
}

// OptionalAuth admits anonymous requests. A token that is present must still be valid.
func OptionalAuth(v Verifier, log *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(v, log, false)
}

func authenticate(v Verifier, log *slog.Logger, required bool) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := httpx.BearerToken(r)
			if raw == "" {
				if required {
					httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("auth.verify.fail", "err", err, "path", r.URL.Path)
				if errors.Is(err, session.ErrTokenExpired) {
					httpx.WriteError(w, http.StatusUnauthorized, "token_expired", "access token expired")
					return
				}
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims session.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFrom returns the claims stored by RequireAuth or OptionalAuth.
func ClaimsFrom(ctx context.Context) (session.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(session.Claims)
	return c, ok
}

// CallerID returns the authenticated user id, or "" for anonymous requests.
func CallerID(ctx context.Context) string {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return ""
	}
	return c.UserID()
}
