package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Web3Agent-Chain/internal/config"
)

func newTestService(enabled bool) *Service {
	cfg := config.AuthConfig{
		Enabled: enabled,
		APIKeys: []config.APIKeyConfig{
			{Key: "wk-analytics-key", Workspace: "analytics"},
			{Key: "wk-default-key"},
		},
	}
	return NewService(cfg, nil)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	service := newTestService(true)
	subject, err := service.Authenticate(context.Background(), "wk-analytics-key")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject.Workspace != "analytics" {
		t.Fatalf("unexpected workspace %q", subject.Workspace)
	}
	if subject.KeyID == "" || len(subject.KeyID) != 8 {
		t.Fatalf("unexpected key id %q", subject.KeyID)
	}

	if _, err := service.Authenticate(context.Background(), "wk-unknown"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "   "); err != ErrMissingCredentials {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestAuthenticateEmptyWorkspaceFallsBack(t *testing.T) {
	t.Parallel()

	service := newTestService(true)
	subject, err := service.Authenticate(context.Background(), "wk-default-key")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject.Workspace != "default" {
		t.Fatalf("expected default workspace, got %q", subject.Workspace)
	}
}

func TestMiddlewareRejectsWithoutKey(t *testing.T) {
	t.Parallel()

	handler := Middleware(newTestService(true))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "failed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMiddlewarePassesSubject(t *testing.T) {
	t.Parallel()

	var seen Subject
	handler := Middleware(newTestService(true))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SubjectFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	req.Header.Set("Authorization", "Bearer wk-analytics-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.Workspace != "analytics" {
		t.Fatalf("subject not propagated: %+v", seen)
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	handler := Middleware(newTestService(false))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
