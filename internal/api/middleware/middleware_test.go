package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func echoUserID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := GetUserIDFromContext(r.Context())
		w.Write([]byte(userID))
	})
}

func TestParseUserID(t *testing.T) {
	auth := NewAuthenticator(testSecret, false)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})

	userID, err := auth.ParseUserID(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	userID, err = auth.ParseUserID("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestParseUserID_Rejects(t *testing.T) {
	auth := NewAuthenticator(testSecret, false)

	cases := map[string]string{
		"wrong secret": signToken(t, "other", jwt.MapClaims{"sub": "user-1"}),
		"expired":      signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}),
		"missing sub":  signToken(t, testSecret, jwt.MapClaims{"role": "authenticated"}),
		"garbage":      "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseUserID(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := auth.ParseUserID("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = NewAuthenticator("", false).ParseUserID("abc")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestParseUserID_Bypass(t *testing.T) {
	auth := NewAuthenticator("", true)

	userID, err := auth.ParseUserID("")
	require.NoError(t, err)
	assert.Equal(t, BypassUserID, userID)

	userID, err = auth.ParseUserID("BYPASS_AUTH")
	require.NoError(t, err)
	assert.Equal(t, BypassUserID, userID)

	userID, err = auth.ParseUserID("Bearer player-7")
	require.NoError(t, err)
	assert.Equal(t, "player-7", userID)
}

func TestMiddleware(t *testing.T) {
	handler := NewAuthenticator(testSecret, false).Middleware(echoUserID())
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "user-9"})

	req := httptest.NewRequest(http.MethodGet, "/api/protected/games", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", rec.Body.String())
}

func TestMiddleware_Unauthorized(t *testing.T) {
	handler := NewAuthenticator(testSecret, false).Middleware(echoUserID())

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"no bearer prefix", "Token abc"},
		{"bad token", "Bearer abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/protected/games", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestMiddleware_MissingSecret(t *testing.T) {
	handler := NewAuthenticator("", false).Middleware(echoUserID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSHandler(t *testing.T) {
	handler := CORSHandler([]string{"https://kiitris.example"})(echoUserID())

	req := httptest.NewRequest(http.MethodOptions, "/api/results", nil)
	req.Header.Set("Origin", "https://kiitris.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://kiitris.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/results", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
