package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Web3Agent-Chain/internal/llm"
)

func TestGenerateParsesStructuredReply(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Model != "gpt-4o-mini" {
			t.Errorf("unexpected model %s", payload.Model)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"thought\":\"checked balances\",\"reply\":\"钱包状态正常\"}"}}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{
		Goal: "分析钱包",
		Sections: []llm.Section{
			{Heading: "余额", Body: "1.5 ETH"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Thought != "checked balances" || resp.Reply != "钱包状态正常" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGeneratePlainTextFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"plain summary"}}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{Goal: "goal"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Reply != "plain summary" {
		t.Fatalf("unexpected reply %q", resp.Reply)
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Generate(context.Background(), llm.Request{Goal: "goal"}); err == nil {
		t.Fatal("expected error on http failure")
	}
}
