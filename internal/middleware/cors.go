// Package middleware provides HTTP middleware for the attent server.
package middleware

import "net/http"

// The server's browser-facing surface is read-only: GET endpoints plus the
// websocket upgrade, which is itself a GET.
const allowedMethods = "GET, OPTIONS"

// CORS returns middleware that handles CORS headers for the status surface.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if matchOrigin(allowedOrigins, origin, true) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				// Credentials only for explicitly listed origins: combining
				// Allow-Credentials with a wildcard-echoed origin enables CSRF.
				if matchOrigin(allowedOrigins, origin, false) {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowed []string, origin string, wildcardOK bool) bool {
	for _, o := range allowed {
		if o == origin || (wildcardOK && o == "*") {
			return true
		}
	}
	return false
}
