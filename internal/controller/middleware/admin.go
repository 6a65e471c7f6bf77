package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminSecretHeader carries the operator secret as an alternative to a
// bearer token, for dashboards that already send a user key.
const AdminSecretHeader = "X-Admin-Secret"

// RequireAdmin guards operator routes with a shared secret. The secret is
// read from X-Admin-Secret, falling back to the bearer token. An empty
// secret rejects every request.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(AdminSecretHeader)
			if given == "" {
				token, problem := bearerToken(r)
				if problem != "" {
					unauthorized(w, problem)
					return
				}
				given = token
			}

			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(given), want) != 1 {
				writeError(w, "Invalid admin secret", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
