package accessapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
)

// RequireAdmin guards administrative routes with a static bearer token.
// With no token configured the routes answer 404.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "not found")
				return
			}
			got := []byte(httpx.BearerToken(r))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
