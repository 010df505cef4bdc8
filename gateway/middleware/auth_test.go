package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "gateway-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/settlement/rooms/1/resolve", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newTestAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.HMACSecret == "" {
		cfg.HMACSecret = testSecret
	}
	cfg.Enabled = true
	return NewAuthenticator(cfg, nil)
}

func TestAuthenticatorRejectsMissingToken(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{})
	handler := auth.Middleware()(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(""))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
}

func TestAuthenticatorAcceptsValidToken(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{Issuer: "game-backend", Audience: "slither-gateway"})
	handler := auth.Middleware(ScopeSettle)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopes, _ := r.Context().Value(ContextKeyScopes).([]string)
		if len(scopes) == 0 {
			t.Fatalf("expected scopes in request context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	token := signToken(t, jwt.MapClaims{
		"iss":   "game-backend",
		"aud":   "slither-gateway",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": ScopeSettle + " " + ScopeRead,
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(token))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsMissingScope(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{})
	handler := auth.Middleware(ScopeAdmin)(okHandler())

	token := signToken(t, jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": ScopeRead,
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(token))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing scope, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsWrongIssuer(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{Issuer: "game-backend"})
	handler := auth.Middleware()(okHandler())

	token := signToken(t, jwt.MapClaims{
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(token))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong issuer, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		ClockSkew:  time.Second,
	}, nil)
	handler := auth.Middleware()(okHandler())

	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(token))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", res.Code)
	}
}

func TestAuthenticatorAllowsAnonymousOptionalPaths(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{
		OptionalPaths:  []string{"/healthz"},
		AllowAnonymous: true,
	})
	handler := auth.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected optional path to pass without token, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(""))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected non-optional path to require token, got %d", res.Code)
	}
}

func TestAuthenticatorDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: false}, nil)
	handler := auth.Middleware(ScopeAdmin)(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(""))
	if res.Code != http.StatusOK {
		t.Fatalf("expected disabled auth to pass through, got %d", res.Code)
	}
}
