package middleware

import (
	"crypto/subtle"
	"net/http"
)

// CronSecret authenticates the external scheduler via an out-of-band
// shared secret. An empty server-side secret is a configuration bug,
// not an unauthenticated caller: refuse to wire the route at all.
func CronSecret(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		panic("cron secret not configured")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Cron-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
