package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Web3Agent-Chain/internal/agent"
	"Web3Agent-Chain/internal/config"
	"Web3Agent-Chain/internal/ipfs"
	"Web3Agent-Chain/internal/tools"
	"Web3Agent-Chain/internal/web3/provider"
)

func newDispatchAgent(t *testing.T, results map[string]string) *agent.Web3Agent {
	t.Helper()
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			result = `"0x0"`
		}
		id, _ := json.Marshal(req.ID)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(id) + `,"result":` + result + `}`))
	}))
	t.Cleanup(node.Close)

	providers, err := provider.NewRegistry(config.Web3Config{
		Providers: map[string]map[string]string{
			"ethereum": {"mainnet": node.URL},
		},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(providers.Close)
	ipfsClient := ipfs.NewClient(config.IPFSConfig{PrimaryGateway: "https://ipfs.io/ipfs/"})
	registry := tools.NewDefaultRegistry(providers, ipfsClient)
	return agent.New(registry, providers)
}

func TestDispatchBalance(t *testing.T) {
	t.Parallel()

	// 1.5 ETH
	ag := newDispatchAgent(t, map[string]string{
		"eth_getBalance": `"0x14d1120d7b160000"`,
	})

	result, err := dispatch(context.Background(), ag, "balance", []string{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"})
	if err != nil {
		t.Fatalf("dispatch balance: %v", err)
	}
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if result["balance_eth"] != "1.5" {
		t.Fatalf("expected balance 1.5, got %v", result["balance_eth"])
	}
}

func TestDispatchRejectsBadArgs(t *testing.T) {
	t.Parallel()

	ag := newDispatchAgent(t, nil)
	cases := []struct {
		command string
		args    []string
	}{
		{"balance", nil},
		{"token-info", nil},
		{"ens", []string{"a", "b"}},
		{"unknown-command", []string{"x"}},
	}
	for _, tc := range cases {
		if _, err := dispatch(context.Background(), ag, tc.command, tc.args); err == nil {
			t.Fatalf("expected error for %s %v", tc.command, tc.args)
		}
	}
}
