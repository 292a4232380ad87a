package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"Web3Agent-Chain/internal/config"
	apperrors "Web3Agent-Chain/internal/errors"
)

// fakeEthNode answers the minimal JSON-RPC surface the EVM client touches
// during dialing and status checks.
func fakeEthNode(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result := `"0x0"`
		switch req.Method {
		case "eth_chainId":
			result = `"0x1"`
		case "eth_blockNumber":
			result = `"0x64"`
		}
		id, _ := json.Marshal(req.ID)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(id) + `,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestRegistry(t *testing.T, url string) *Registry {
	t.Helper()
	registry, err := NewRegistry(config.Web3Config{
		Providers: map[string]map[string]string{
			"ethereum": {"mainnet": url},
		},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(registry.Close)
	return registry
}

func TestRegistryRejectsUnknownNetwork(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(config.Web3Config{
		Providers: map[string]map[string]string{
			"bitcoin": {"mainnet": "http://localhost:8332"},
		},
	})
	if apperrors.CodeOf(err) != apperrors.CodeUnsupportedNetwork {
		t.Fatalf("expected unsupported network code, got %v", err)
	}
}

func TestRegistryLazyDial(t *testing.T) {
	t.Parallel()

	server, requests := fakeEthNode(t)
	registry := newTestRegistry(t, server.URL)

	if requests.Load() != 0 {
		t.Fatalf("expected no requests before first use, saw %d", requests.Load())
	}
	client, err := registry.Ethereum(context.Background(), "mainnet")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if client.ChainID().Int64() != 1 {
		t.Fatalf("unexpected chain id %s", client.ChainID().String())
	}
	if requests.Load() == 0 {
		t.Fatal("expected dial to touch the node")
	}

	// Second lookup reuses the dialed client.
	before := requests.Load()
	if _, err := registry.Ethereum(context.Background(), "mainnet"); err != nil {
		t.Fatalf("cached dial: %v", err)
	}
	if requests.Load() != before {
		t.Fatalf("expected cached client, saw %d extra requests", requests.Load()-before)
	}
}

func TestRegistryUnconfiguredNetwork(t *testing.T) {
	t.Parallel()

	server, _ := fakeEthNode(t)
	registry := newTestRegistry(t, server.URL)

	_, err := registry.Client(context.Background(), "ethereum", "sepolia")
	if apperrors.CodeOf(err) != apperrors.CodeUnsupportedNetwork {
		t.Fatalf("expected unsupported network code, got %v", err)
	}
}

func TestRegistryStatusCaching(t *testing.T) {
	t.Parallel()

	server, requests := fakeEthNode(t)
	registry := newTestRegistry(t, server.URL)

	status := registry.CheckStatus(context.Background(), "ethereum", "mainnet", false)
	if !status.Connected {
		t.Fatalf("expected connected status, got %+v", status)
	}
	if status.Snapshot.BlockNumber != 100 {
		t.Fatalf("unexpected block %d", status.Snapshot.BlockNumber)
	}

	before := requests.Load()
	cached := registry.CheckStatus(context.Background(), "ethereum", "mainnet", false)
	if requests.Load() != before {
		t.Fatal("expected cached status to skip the node")
	}
	if cached.CheckedAt != status.CheckedAt {
		t.Fatal("expected the cached probe result")
	}

	// Forcing a reconnect drops the cache and redials.
	registry.CheckStatus(context.Background(), "ethereum", "mainnet", true)
	if requests.Load() == before {
		t.Fatal("expected forced reconnect to touch the node")
	}
}

func TestRegistryCheckAll(t *testing.T) {
	t.Parallel()

	server, _ := fakeEthNode(t)
	registry := newTestRegistry(t, server.URL)

	statuses := registry.CheckAll(context.Background(), false)
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses[0].Network != "ethereum" || statuses[0].NetworkType != "mainnet" {
		t.Fatalf("unexpected status identity %+v", statuses[0])
	}
}
