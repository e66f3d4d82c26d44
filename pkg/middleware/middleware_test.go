package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/lister/pkg/auth"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(DefaultCORSOptions())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/llm", nil)
	req.Header.Set("Origin", "https://anywhere.test")
	rec := serve(h, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSListedOrigin(t *testing.T) {
	opts := DefaultCORSOptions()
	opts.AllowedOrigins = []string{"https://app.test"}
	h := CORS(opts)(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.test")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://app.test")
	assert.Equal(t, "https://app.test", serve(h, req).Header().Get("Access-Control-Allow-Origin"))
}

func TestIdentity(t *testing.T) {
	var seen string
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	tok, err := auth.GenerateToken("alice", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, "alice", seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	store, err := LimiterStore(nil)
	require.NoError(t, err)
	mw, err := NewIPRateLimiter("2-M", store)
	require.NoError(t, err)
	h := mw(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(h, other).Code)
}

func TestUserRateLimiter(t *testing.T) {
	store, err := LimiterStore(nil)
	require.NoError(t, err)
	mw, err := NewUserRateLimiter("1-M", store)
	require.NoError(t, err)
	h := mw(http.HandlerFunc(ok))

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, serve(h, anon).Code)
	assert.Equal(t, http.StatusOK, serve(h, anon).Code, "no user, no limit")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "alice"))
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)
}

func TestBadRate(t *testing.T) {
	store, _ := LimiterStore(nil)
	_, err := NewIPRateLimiter("lots", store)
	assert.Error(t, err)
}

func TestSecureHeaders(t *testing.T) {
	h := Secure(SecureOptions(true))(http.HandlerFunc(ok))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/wizard/preview", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "style-src 'self' 'unsafe-inline'")
}
