package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := Subject(r.Context())
		assert.True(t, ok)
		w.Write([]byte(sub))
	})
}

func TestTokenAuth(t *testing.T) {
	a := &TokenAuth{Key: []byte("secret")}
	good, err := a.Issue("ci-runner", time.Hour)
	require.NoError(t, err)
	expired, err := a.Issue("ci-runner", -time.Minute)
	require.NoError(t, err)
	other, err := (&TokenAuth{Key: []byte("other")}).Issue("ci-runner", time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + other, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExp, http.StatusUnauthorized},
	}
	h := a.Middleware(okHandler(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/tools/facestab/calc", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "ci-runner", w.Body.String())
			}
		})
	}
}

func TestLimitMiddleware(t *testing.T) {
	l := NewIPRateLimiter(0.001, 2)
	h := l.LimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
		req.RemoteAddr = "10.0.0.1:5000" + string(rune('0'+i))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	req.RemoteAddr = "10.0.0.2:6000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
