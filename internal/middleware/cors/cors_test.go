package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPolicy_Allows(t *testing.T) {
	p := NewPolicy([]string{" http://localhost:5173/ ", "https://Charts.example.com"})

	assert.True(t, p.Allows("http://localhost:5173"))
	assert.True(t, p.Allows("https://charts.example.com"))
	assert.False(t, p.Allows("https://evil.example.com"))
	assert.False(t, p.Allows(""))

	assert.True(t, NewPolicy([]string{"*"}).Allows("https://anything.test"))
	assert.False(t, NewPolicy(nil).Allows("https://anything.test"))
}

func TestMiddleware_Preflight(t *testing.T) {
	h := NewPolicy([]string{"http://localhost:5173"}).Middleware(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestMiddleware_ActualRequest(t *testing.T) {
	h := NewPolicy([]string{"*"}).Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Location")
}

func TestMiddleware_DisallowedOriginPassesThroughUndecorated(t *testing.T) {
	h := NewPolicy([]string{"http://localhost:5173"}).Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
