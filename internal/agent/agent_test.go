package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"Web3Agent-Chain/internal/config"
	"Web3Agent-Chain/internal/ipfs"
	"Web3Agent-Chain/internal/tools"
	"Web3Agent-Chain/internal/web3/provider"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func fakeEthNode(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			switch req.Method {
			case "eth_chainId":
				result = `"0x1"`
			case "eth_blockNumber":
				result = `"0x10"`
			default:
				result = `"0x0"`
			}
		}
		id, _ := json.Marshal(req.ID)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(id) + `,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAgent(t *testing.T, results map[string]string, opts ...Option) *Web3Agent {
	t.Helper()
	node := fakeEthNode(t, results)
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
	return New(registry, providers, opts...)
}

func TestMemoryBounded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "memory.json")
	memory, err := OpenMemory(path, 0)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	for i := 0; i < defaultMemoryLimit+50; i++ {
		entry := MemoryEntry{Operation: fmt.Sprintf("op-%d", i), Status: "ok"}
		if err := memory.Record(entry); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if got := memory.Len(); got != defaultMemoryLimit {
		t.Fatalf("expected %d entries, got %d", defaultMemoryLimit, got)
	}
	recent := memory.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent entries, got %d", len(recent))
	}
	if recent[0].Operation != fmt.Sprintf("op-%d", defaultMemoryLimit+49) {
		t.Fatalf("expected newest entry first, got %s", recent[0].Operation)
	}
}

func TestMemoryReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "memory.json")
	memory, err := OpenMemory(path, 10)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if err := memory.Record(MemoryEntry{Operation: "token", Network: "ethereum", Status: "ok"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	reloaded, err := OpenMemory(path, 10)
	if err != nil {
		t.Fatalf("reopen memory: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("expected 1 entry after reload, got %d", reloaded.Len())
	}
	if got := reloaded.Recent(1)[0].Operation; got != "token" {
		t.Fatalf("expected token operation, got %s", got)
	}
}

func TestAgentTokenBalanceRecordsMemory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "memory.json")
	memory, err := OpenMemory(path, 0)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	// 1.5 ETH
	ag := newTestAgent(t, map[string]string{
		"eth_getBalance": `"0x14d1120d7b160000"`,
	}, WithMemory(memory), WithName("tester"))

	result := ag.execute(context.Background(), "token", map[string]any{
		"action":  "native_balance",
		"address": testAddress,
	})
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if result["balance_eth"] != "1.5" {
		t.Fatalf("expected balance 1.5, got %v", result["balance_eth"])
	}

	if memory.Len() != 1 {
		t.Fatalf("expected 1 memory entry, got %d", memory.Len())
	}
	entry := memory.Recent(1)[0]
	if entry.Operation != "token" || entry.Status != tools.StatusOK {
		t.Fatalf("unexpected memory entry %+v", entry)
	}
	if entry.Summary["address"] != testAddress {
		t.Fatalf("expected address in summary, got %+v", entry.Summary)
	}
}

func TestAgentNativeBalance(t *testing.T) {
	t.Parallel()

	// 1.5 ETH
	ag := newTestAgent(t, map[string]string{
		"eth_getBalance": `"0x14d1120d7b160000"`,
	})

	result := ag.NativeBalance(context.Background(), testAddress)
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if result["balance_eth"] != "1.5" {
		t.Fatalf("expected balance 1.5, got %v", result["balance_eth"])
	}
	if result["address"] != testAddress {
		t.Fatalf("expected checksum address, got %v", result["address"])
	}
}

func TestAgentWalletStatus(t *testing.T) {
	t.Parallel()

	ag := newTestAgent(t, map[string]string{
		"eth_getBalance": `"0xde0b6b3a7640000"`,
	})

	result := ag.WalletStatus(context.Background(), testAddress)
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	networks, ok := result["networks"].(map[string]any)
	if !ok {
		t.Fatalf("expected networks map, got %T", result["networks"])
	}
	mainnet, ok := networks["ethereum:mainnet"].(map[string]any)
	if !ok {
		t.Fatalf("expected ethereum:mainnet result, got %+v", networks)
	}
	if mainnet["balance_eth"] != "1" {
		t.Fatalf("expected balance 1, got %v", mainnet["balance_eth"])
	}
}

func TestAgentAnalyzeWalletWithDisabledLLM(t *testing.T) {
	t.Parallel()

	ag := newTestAgent(t, map[string]string{
		"eth_getBalance": `"0xde0b6b3a7640000"`,
	})

	result := ag.AnalyzeWallet(context.Background(), testAddress, nil)
	if result["status"] != tools.StatusOK {
		t.Fatalf("expected ok, got %+v", result)
	}
	summary, ok := result["summary"].(string)
	if !ok || summary == "" {
		t.Fatalf("expected non-empty summary, got %+v", result["summary"])
	}
}

func TestAgentValidate(t *testing.T) {
	t.Parallel()

	ag := New(nil, nil)
	if err := ag.Validate(); err == nil {
		t.Fatal("expected validation error for missing collaborators")
	}

	ag = newTestAgent(t, nil)
	if err := ag.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
