package middleware

import (
	"net/http"
	"strings"
)

// AuthCookie is set by the login handler once the password was accepted.
const AuthCookie = "authenticated"

// publicPaths are reachable without logging in: model clients, health checks and the login page.
var publicPaths = map[string]bool{
	"/infer":         true,
	"/process-frame": true,
	"/api/stream":    true,
	"/healthz":       true,
	"/metrics":       true,
	"/login":         true,
	"/Login.html":    true,
	"/auth/login":    true,
}

// AuthMiddleware checks that the user is logged in (cookie 'authenticated=true').
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] ||
			strings.HasPrefix(r.URL.Path, "/css/") ||
			strings.HasPrefix(r.URL.Path, "/js/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || cookie.Value != "true" {
			// API calls get 401, browsers get the login page
			if r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" ||
				strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
