package web3agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "wk-test-key", server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSubmitAnalysis(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/analyses" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "wk-test-key" {
			t.Errorf("missing api key header")
		}
		var submission AnalysisSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		if submission.Operation != "analyze_wallet" {
			t.Errorf("unexpected operation %q", submission.Operation)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Analysis{ID: "task-1", Operation: submission.Operation, Status: "pending"})
	})

	created, err := client.SubmitAnalysis(context.Background(), AnalysisSubmission{
		Operation: "analyze_wallet",
		Target:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.ID != "task-1" || created.Status != "pending" {
		t.Fatalf("unexpected analysis: %+v", created)
	}
}

func TestGetAnalysisError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": "任务不存在"})
	})

	_, err := client.GetAnalysis(context.Background(), "missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "任务不存在" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestListAnalysesEncodesFilters(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("limit") != "5" || query.Get("status") != "pending,running" || query.Get("operation") != "analyze_wallet" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"tasks":  []Analysis{{ID: "task-1"}, {ID: "task-2"}},
		})
	})

	tasks, err := client.ListAnalyses(context.Background(), ListOptions{
		Limit:      5,
		Statuses:   []string{"pending", "running"},
		Operations: []string{"analyze_wallet"},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "task-1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestExecuteTool(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tools/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "balance_eth": "1.5"})
	})

	result, err := client.ExecuteTool(context.Background(), "token", map[string]any{
		"action":  "balance",
		"address": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	if err != nil {
		t.Fatalf("execute tool: %v", err)
	}
	if result["balance_eth"] != "1.5" {
		t.Fatalf("unexpected result: %v", result)
	}
}
