package ethereum

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gocache "github.com/patrickmn/go-cache"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/pkg/logger"
)

// stubBackend serves contract reads from canned per-selector return data and
// records submitted transactions.
type stubBackend struct {
	balance   *big.Int
	block     uint64
	baseFee   *big.Int
	returns   map[string][]byte
	callCount map[string]int
	sent      []*types.Transaction
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		balance:   big.NewInt(0),
		block:     100,
		returns:   make(map[string][]byte),
		callCount: make(map[string]int),
	}
}

// stubReturn registers the packed outputs for one method of an ABI.
func (s *stubBackend) stubReturn(t *testing.T, parsed abi.ABI, method string, values ...any) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("fixture method %s not in abi", method)
	}
	packed, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack outputs for %s: %v", method, err)
	}
	s.returns[hex.EncodeToString(m.ID)] = packed
}

func (s *stubBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (s *stubBackend) BlockNumber(context.Context) (uint64, error) {
	return s.block, nil
}
func (s *stubBackend) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return s.balance, nil
}
func (s *stubBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, ethereum.NotFound
	}
	selector := hex.EncodeToString(msg.Data[:4])
	s.callCount[selector]++
	out, ok := s.returns[selector]
	if !ok {
		return nil, ethereum.NotFound
	}
	return out, nil
}
func (s *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}
func (s *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}
func (s *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}
func (s *stubBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (s *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	s.sent = append(s.sent, tx)
	return nil
}
func (s *stubBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if len(s.sent) == 0 {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
}
func (s *stubBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: s.baseFee}, nil
}

func newTestClient(stub *stubBackend) *Client {
	return &Client{
		networkType: "mainnet",
		provider:    "https://example.invalid/rpc",
		chainID:     big.NewInt(1),
		eth:         stub,
		tokens:      gocache.New(time.Minute, time.Minute),
		log:         logger.Named("web3.ethereum.test"),
	}
}

// Generated once per test run; never holds funds.
const testKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func TestNativeBalance(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	stub.balance = big.NewInt(1_500_000_000_000_000_000)
	client := newTestClient(stub)

	balance, err := client.NativeBalance(context.Background(), checksummed)
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if WeiToEther(balance) != "1.5" {
		t.Fatalf("unexpected balance %s", balance.String())
	}

	_, err = client.NativeBalance(context.Background(), "0xnot-an-address")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidAddress {
		t.Fatalf("expected invalid address code, got %v", err)
	}
}

func TestFetchSnapshot(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	stub.block = 21_000_000
	client := newTestClient(stub)

	snapshot, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if snapshot.Network != web3.NetworkEthereum || snapshot.NetworkType != "mainnet" {
		t.Fatalf("unexpected identity %+v", snapshot)
	}
	if snapshot.BlockNumber != 21_000_000 {
		t.Fatalf("unexpected block %d", snapshot.BlockNumber)
	}
	if snapshot.ChainID != "1" {
		t.Fatalf("unexpected chain id %s", snapshot.ChainID)
	}
}

func TestFetchTokenInfoCaching(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	stub.stubReturn(t, erc20ABI, "name", "Mock Token")
	stub.stubReturn(t, erc20ABI, "symbol", "MOCK")
	stub.stubReturn(t, erc20ABI, "decimals", uint8(18))
	stub.stubReturn(t, erc20ABI, "totalSupply", big.NewInt(1_000_000))
	client := newTestClient(stub)

	nameSelector := hex.EncodeToString(erc20ABI.Methods["name"].ID)

	info, err := client.FetchTokenInfo(context.Background(), checksummed, false)
	if err != nil {
		t.Fatalf("fetch token info: %v", err)
	}
	if info.Name != "Mock Token" || info.Symbol != "MOCK" || info.Decimals != 18 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.TotalSupply.Int64() != 1_000_000 {
		t.Fatalf("unexpected supply %s", info.TotalSupply.String())
	}

	if _, err := client.FetchTokenInfo(context.Background(), lowercased, false); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if stub.callCount[nameSelector] != 1 {
		t.Fatalf("expected cache hit, name read %d times", stub.callCount[nameSelector])
	}

	if _, err := client.FetchTokenInfo(context.Background(), checksummed, true); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if stub.callCount[nameSelector] != 2 {
		t.Fatalf("expected forced refresh to bypass cache, name read %d times", stub.callCount[nameSelector])
	}
}

func TestTokenBalance(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	stub.stubReturn(t, erc20ABI, "balanceOf", big.NewInt(123_456))
	client := newTestClient(stub)

	balance, err := client.TokenBalance(context.Background(), checksummed, lowercased)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Int64() != 123_456 {
		t.Fatalf("unexpected balance %s", balance.String())
	}
}

func TestTransactLegacyPinnedGas(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	client := newTestClient(stub)

	to := common.HexToAddress(checksummed)
	result, err := client.Transact(context.Background(), TxRequest{
		PrivateKeyHex: testKeyHex,
		To:            to,
		Value:         big.NewInt(1000),
		GasLimit:      21_000,
		GasPrice:      big.NewInt(20_000_000_000),
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}
	if len(stub.sent) != 1 {
		t.Fatalf("expected 1 broadcast tx, got %d", len(stub.sent))
	}
	tx := stub.sent[0]
	if tx.Type() != types.LegacyTxType {
		t.Fatalf("expected legacy tx, got type %d", tx.Type())
	}
	if tx.Nonce() != 7 || tx.Gas() != 21_000 {
		t.Fatalf("unexpected tx fields nonce=%d gas=%d", tx.Nonce(), tx.Gas())
	}
	if result.To != to.Hex() {
		t.Fatalf("unexpected recipient %s", result.To)
	}
}

func TestTransactDynamicFeeAndEstimate(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	stub.baseFee = big.NewInt(10_000_000_000)
	client := newTestClient(stub)

	_, err := client.Transact(context.Background(), TxRequest{
		PrivateKeyHex: testKeyHex,
		To:            common.HexToAddress(checksummed),
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}
	tx := stub.sent[0]
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("expected dynamic fee tx, got type %d", tx.Type())
	}
	// Estimated 50k plus 10% headroom.
	if tx.Gas() != 55_000 {
		t.Fatalf("unexpected gas limit %d", tx.Gas())
	}
	// maxFee = 2*baseFee + tip
	wantFeeCap := big.NewInt(21_000_000_000)
	if tx.GasFeeCap().Cmp(wantFeeCap) != 0 {
		t.Fatalf("unexpected fee cap %s", tx.GasFeeCap().String())
	}
}

func TestQuoteSwap(t *testing.T) {
	t.Parallel()

	stub := newStubBackend()
	amountIn := big.NewInt(1_000_000)
	amountOut := big.NewInt(2_000_000)
	stub.stubReturn(t, routerABI, "getAmountsOut", []*big.Int{amountIn, amountOut})
	client := newTestClient(stub)

	quote, err := client.QuoteSwap(context.Background(), "ETH", checksummed, amountIn, 0)
	if err != nil {
		t.Fatalf("quote swap: %v", err)
	}
	if quote.AmountOut.Cmp(amountOut) != 0 {
		t.Fatalf("unexpected amount out %s", quote.AmountOut.String())
	}
	// Default 0.5% slippage tolerance.
	if quote.AmountOutMin.Int64() != 1_990_000 {
		t.Fatalf("unexpected min out %s", quote.AmountOutMin.String())
	}
	if quote.Path[0] != WETHAddress {
		t.Fatalf("expected native input to route through WETH, got %s", quote.Path[0])
	}

	if _, err := client.QuoteSwap(context.Background(), "ETH", "ETH", amountIn, 0); err == nil {
		t.Fatal("expected error for identical pair")
	}
	if _, err := client.QuoteSwap(context.Background(), "ETH", checksummed, big.NewInt(0), 0); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestCoerceContractArgs(t *testing.T) {
	t.Parallel()

	m := erc20ABI.Methods["transfer"]
	coerced, err := coerceArgs(m.Inputs, []any{lowercased, "1000000000000000000"})
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if addr, ok := coerced[0].(common.Address); !ok || addr.Hex() != checksummed {
		t.Fatalf("unexpected address arg %v", coerced[0])
	}
	if n, ok := coerced[1].(*big.Int); !ok || n.String() != "1000000000000000000" {
		t.Fatalf("unexpected amount arg %v", coerced[1])
	}

	if _, err := coerceArgs(m.Inputs, []any{lowercased}); err == nil {
		t.Fatal("expected arity error")
	}
	if _, err := coerceArgs(m.Inputs, []any{"bogus", "1"}); err == nil {
		t.Fatal("expected address error")
	}
	// JSON numbers arrive as float64.
	coerced, err = coerceArgs(m.Inputs, []any{lowercased, float64(42)})
	if err != nil {
		t.Fatalf("coerce float: %v", err)
	}
	if coerced[1].(*big.Int).Int64() != 42 {
		t.Fatalf("unexpected float coercion %v", coerced[1])
	}
}

var _ web3.Client = (*Client)(nil)
