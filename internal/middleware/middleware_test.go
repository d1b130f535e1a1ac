package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware_PublicPaths(t *testing.T) {
	handler := AuthMiddleware(okHandler)

	for _, path := range []string{"/infer", "/api/stream", "/healthz", "/metrics", "/process-frame", "/login", "/css/site.css"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAuthMiddleware_ProtectedPaths(t *testing.T) {
	handler := AuthMiddleware(okHandler)

	tests := []struct {
		path    string
		headers map[string]string
		want    int
	}{
		{"/api/alerts", nil, http.StatusUnauthorized},
		{"/logs/info", map[string]string{"X-Requested-With": "XMLHttpRequest"}, http.StatusUnauthorized},
		{"/logs/info", nil, http.StatusSeeOther},
		{"/", nil, http.StatusSeeOther},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestAuthMiddleware_WithCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: "true"})
	rec := httptest.NewRecorder()

	AuthMiddleware(okHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with auth cookie, got %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/infer", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/infer", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}
