package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
)

const testAddress = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"

// newRPCServer returns a test node that answers each method from the fixture
// map and records the methods it saw.
func newRPCServer(t *testing.T, fixtures map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     uint64 `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seen = append(seen, req.Method)
		result, ok := fixtures[req.Method]
		if !ok {
			result = `null`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func newTestClient(t *testing.T, fixtures map[string]string) *Client {
	t.Helper()
	if _, ok := fixtures["getHealth"]; !ok {
		fixtures["getHealth"] = `"ok"`
	}
	server, _ := newRPCServer(t, fixtures)
	client, err := NewClient(context.Background(), Config{
		NetworkType: "devnet",
		RPCURL:      server.URL,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestIsAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  bool
	}{
		{testAddress, true},
		{"11111111111111111111111111111111", true}, // system program
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"short", false},
		{"O0Il" + testAddress[4:], false}, // non-base58 alphabet
		{"", false},
	}
	for _, tc := range cases {
		if got := IsAddress(tc.input); got != tc.want {
			t.Fatalf("IsAddress(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestLamportConversion(t *testing.T) {
	t.Parallel()

	if got := LamportsToSOL(1_500_000_000); got != "1.5" {
		t.Fatalf("LamportsToSOL = %q", got)
	}
	if got := LamportsToSOL(1); got != "0.000000001" {
		t.Fatalf("LamportsToSOL = %q", got)
	}
	if got := LamportsToSOL(2_000_000_000); got != "2" {
		t.Fatalf("LamportsToSOL = %q", got)
	}

	lamports, err := SOLToLamports("1.5")
	if err != nil || lamports != 1_500_000_000 {
		t.Fatalf("SOLToLamports = %d, %v", lamports, err)
	}
	if _, err := SOLToLamports("0.0000000001"); err == nil {
		t.Fatal("expected error for sub-lamport amount")
	}
	if _, err := SOLToLamports("-1"); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestBalance(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, map[string]string{
		"getBalance": `{"context":{"slot":100},"value":2500000000}`,
	})
	lamports, err := client.Balance(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if lamports != 2_500_000_000 {
		t.Fatalf("unexpected balance %d", lamports)
	}

	_, err = client.Balance(context.Background(), "bogus")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidAddress {
		t.Fatalf("expected invalid address code, got %v", err)
	}
}

func TestFetchSnapshot(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, map[string]string{
		"getBlockHeight": `321654987`,
		"getGenesisHash": `"5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d"`,
	})
	snapshot, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if snapshot.Network != web3.NetworkSolana || snapshot.NetworkType != "devnet" {
		t.Fatalf("unexpected identity %+v", snapshot)
	}
	if snapshot.BlockNumber != 321_654_987 {
		t.Fatalf("unexpected height %d", snapshot.BlockNumber)
	}
}

func TestFetchAccountInfo(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":{"lamports":12345,"owner":"11111111111111111111111111111111","executable":false,"rentEpoch":361,"data":["aGVsbG8=","base64"]}}`,
	})
	info, err := client.FetchAccountInfo(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("account info: %v", err)
	}
	if !info.Exists || info.Lamports != 12345 || info.Owner != "11111111111111111111111111111111" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestFetchAccountInfoMissing(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":null}`,
	})
	info, err := client.FetchAccountInfo(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("account info: %v", err)
	}
	if info.Exists {
		t.Fatal("expected missing account")
	}
}

func TestEstimateTransferFeeFallback(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, map[string]string{
		"getFeeForMessage": `{"context":{"slot":1},"value":null}`,
	})
	if fee := client.EstimateTransferFee(context.Background()); fee != FallbackFeeLamports {
		t.Fatalf("expected fallback fee, got %d", fee)
	}

	client = newTestClient(t, map[string]string{
		"getFeeForMessage": `{"context":{"slot":1},"value":7500}`,
	})
	if fee := client.EstimateTransferFee(context.Background()); fee != 7500 {
		t.Fatalf("expected node fee, got %d", fee)
	}
}

func TestRPCErrorSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io := `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`
		var req struct {
			Method string `json:"method"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method == "getHealth" {
			io = `{"jsonrpc":"2.0","id":1,"result":"ok"}`
		}
		w.Write([]byte(io))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), Config{NetworkType: "devnet", RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.BlockHeight(context.Background()); err == nil {
		t.Fatal("expected rpc error to surface")
	}
}

var _ web3.Client = (*Client)(nil)
