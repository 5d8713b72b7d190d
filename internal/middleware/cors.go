package middleware

import (
	"net/http"
	"strings"
)

// CORS allows browser clients from origins. A "*" entry allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || allowAll {
					header := w.Header()
					if allowAll {
						header.Set("Access-Control-Allow-Origin", "*")
					} else {
						header.Set("Access-Control-Allow-Origin", origin)
						header.Add("Vary", "Origin")
					}
					header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Session-ID")
					header.Set("Access-Control-Max-Age", "600")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
