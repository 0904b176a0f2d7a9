package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	s := setupServer(t)
	r := chi.NewRouter()
	RegisterRoutes(r, s.sessions, s.handlers, Options{AllowedOrigin: "https://app.example.com"})

	send := func(method, origin string, preflight bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/workshops", nil)
		req.Header.Set("Origin", origin)
		if preflight {
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	t.Run("Preflight", func(t *testing.T) {
		rr := send(http.MethodOptions, "https://app.example.com", true)
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, http.MethodPost, rr.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "300", rr.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("AllowedOrigin", func(t *testing.T) {
		rr := send(http.MethodGet, "https://app.example.com", false)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("OtherOrigin", func(t *testing.T) {
		assert.Empty(t, send(http.MethodGet, "https://evil.example.com", false).Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, send(http.MethodOptions, "https://evil.example.com", true).Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Disabled", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workshops", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, req)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
