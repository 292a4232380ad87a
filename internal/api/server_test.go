package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Web3Agent-Chain/internal/auth"
	"Web3Agent-Chain/internal/config"
	"Web3Agent-Chain/internal/task"
	"Web3Agent-Chain/internal/tools"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "returns the given payload" }

func (echoTool) Execute(_ context.Context, params map[string]any) map[string]any {
	if params["fail"] == true {
		return map[string]any{"status": tools.StatusFailed, "error": "echo failed"}
	}
	return tools.OK(map[string]any{"echo": params["message"]})
}

func newTestServer(t *testing.T, authCfg config.AuthConfig) (*Server, *task.Service) {
	t.Helper()

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	store := task.NewMemoryStore()
	queue := task.NewMemoryQueue(16)
	service := task.NewService(store, queue, 3)
	t.Cleanup(func() { _ = service.Close() })

	return NewServer("127.0.0.1:0", registry, service, auth.NewService(authCfg, nil)), service
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	rec := doRequest(t, server.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExecuteTool(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	handler := server.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/tools/echo", `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["echo"] != "hello" {
		t.Fatalf("unexpected payload: %v", body)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/tools/echo", `{"fail":true}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for failed tool, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/tools/missing", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tool, got %d", rec.Code)
	}
}

func TestListTools(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	rec := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	names, ok := body["tools"].([]any)
	if !ok || len(names) != 1 || names[0] != "echo" {
		t.Fatalf("unexpected tool list: %v", body["tools"])
	}
}

func TestSubmitAndFetchAnalysis(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	handler := server.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/analyses",
		`{"operation":"analyze_wallet","target":"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("missing task id in response: %v", body)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/analyses/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	detail := decodeBody(t, rec)
	if detail["operation"] != "analyze_wallet" {
		t.Fatalf("unexpected detail: %v", detail)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/analyses?operation=analyze_wallet&status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	list := decodeBody(t, rec)
	items, ok := list["tasks"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected list: %v", list["tasks"])
	}
}

func TestSubmitAnalysisRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	rec := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/analyses", `{"operation":"mine_bitcoin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalysisDetailNotFound(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	rec := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/analyses/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAnalysisListRejectsBadLimit(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, config.AuthConfig{})
	rec := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/analyses?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthGuardsAPIRoutes(t *testing.T) {
	t.Parallel()

	authCfg := config.AuthConfig{
		Enabled: true,
		APIKeys: []config.APIKeyConfig{{Key: "wk-test-key", Workspace: "test"}},
	}
	server, _ := newTestServer(t, authCfg)
	handler := server.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/tools", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	req.Header.Set("X-API-Key", "wk-test-key")
	authed := httptest.NewRecorder()
	handler.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", authed.Code)
	}

	// 健康检查不受认证约束.
	rec = doRequest(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz to bypass auth, got %d", rec.Code)
	}
}
