package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chargepilot/internal/auth"
)

func TestAuthMiddlewarePassesAdminThroughContext(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)
	token, err := tokens.GenerateToken("operator", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotLogin string
	var gotOK bool
	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLogin, gotOK = AdminFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !gotOK || gotLogin != "operator" {
		t.Fatalf("expected admin login in context, got %q (ok=%v)", gotLogin, gotOK)
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)

	called := false
	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if called {
		t.Fatalf("handler must not run without a token")
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)

	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminFromContextWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if login, ok := AdminFromContext(req.Context()); ok || login != "" {
		t.Fatalf("expected no admin in bare context, got %q", login)
	}
}
