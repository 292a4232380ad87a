// Package solana implements a minimal Solana JSON-RPC client covering the
// read operations the tool layer exposes. Solana has no official Go SDK in
// this codebase's dependency set, so the client speaks the RPC protocol
// directly over HTTP.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/pkg/logger"
)

const (
	defaultTimeout = 15 * time.Second
	// FallbackFeeLamports is reported when the node cannot return a fee
	// estimate for a simple transfer.
	FallbackFeeLamports = 5000
)

// Config 描述一个 Solana 客户端的连接参数。
type Config struct {
	NetworkType string // mainnet / devnet / ...
	RPCURL      string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client talks to a Solana node over JSON-RPC.
type Client struct {
	networkType string
	provider    string
	httpClient  *http.Client
	nextID      atomic.Uint64
	log         *slog.Logger
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// NewClient validates the endpoint and probes it with a health check.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "RPC 地址不能为空")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		networkType: cfg.NetworkType,
		provider:    cfg.RPCURL,
		httpClient:  httpClient,
		log:         logger.Named("web3.solana"),
	}
	if _, err := c.Health(ctx); err != nil {
		return nil, err
	}
	c.log.Info("已连接 Solana 节点",
		"network_type", cfg.NetworkType,
		"provider", web3.MaskProviderURL(cfg.RPCURL))
	return c, nil
}

// Network implements web3.Client.
func (c *Client) Network() string { return web3.NetworkSolana }

// NetworkType implements web3.Client.
func (c *Client) NetworkType() string { return c.networkType }

// Provider returns the raw (unmasked) RPC endpoint.
func (c *Client) Provider() string { return c.provider }

// Close implements web3.Client. The underlying HTTP client needs no teardown.
func (c *Client) Close() {}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err, "编码 RPC 请求失败")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider, bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConnectionFailure, err, "构造 RPC 请求失败")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConnectionFailure, err,
			fmt.Sprintf("调用 Solana RPC 失败: %s", method))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConnectionFailure, err, "读取 RPC 响应失败")
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.CodeConnectionFailure,
			fmt.Sprintf("Solana RPC 返回状态码 %d", resp.StatusCode))
	}
	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return apperrors.Wrap(apperrors.CodeConnectionFailure, err, "解析 RPC 响应失败")
	}
	if decoded.Error != nil {
		return apperrors.New(apperrors.CodeContractCallFailure,
			fmt.Sprintf("Solana RPC 错误 %d: %s", decoded.Error.Code, decoded.Error.Message))
	}
	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return apperrors.Wrap(apperrors.CodeConnectionFailure, err,
				fmt.Sprintf("解析 %s 结果失败", method))
		}
	}
	return nil
}

// Health returns the node health string, "ok" when healthy.
func (c *Client) Health(ctx context.Context) (string, error) {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return "", err
	}
	return status, nil
}

// Healthy implements web3.Client.
func (c *Client) Healthy(ctx context.Context) bool {
	status, err := c.Health(ctx)
	return err == nil && status == "ok"
}

// BlockHeight returns the node's current block height.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "getBlockHeight", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// FetchSnapshot implements web3.Client. Solana has no EVM chain id; the
// genesis hash stands in for it.
func (c *Client) FetchSnapshot(ctx context.Context) (web3.Snapshot, error) {
	height, err := c.BlockHeight(ctx)
	if err != nil {
		return web3.Snapshot{}, err
	}
	var genesis string
	if err := c.call(ctx, "getGenesisHash", nil, &genesis); err != nil {
		return web3.Snapshot{}, err
	}
	return web3.Snapshot{
		Network:     web3.NetworkSolana,
		NetworkType: c.networkType,
		ChainID:     genesis,
		BlockNumber: height,
		Provider:    web3.MaskProviderURL(c.provider),
	}, nil
}

type valueEnvelope struct {
	Value json.RawMessage `json:"value"`
}

// Balance returns the lamport balance of an account.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	if err := ValidateAddress(address); err != nil {
		return 0, err
	}
	var envelope valueEnvelope
	if err := c.call(ctx, "getBalance", []any{address}, &envelope); err != nil {
		return 0, err
	}
	var lamports uint64
	if err := json.Unmarshal(envelope.Value, &lamports); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeConnectionFailure, err, "解析余额失败")
	}
	return lamports, nil
}

// AccountInfo 描述一个账户的链上元数据。
type AccountInfo struct {
	Address    string `json:"address"`
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rent_epoch"`
	DataLen    int    `json:"data_len"`
	Exists     bool   `json:"exists"`
}

// FetchAccountInfo reads account metadata. A missing account is reported with
// Exists=false rather than an error.
func (c *Client) FetchAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	var envelope valueEnvelope
	params := []any{address, map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "getAccountInfo", params, &envelope); err != nil {
		return nil, err
	}
	info := &AccountInfo{Address: address}
	if string(envelope.Value) == "null" || len(envelope.Value) == 0 {
		return info, nil
	}
	var raw struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Executable bool     `json:"executable"`
		RentEpoch  uint64   `json:"rentEpoch"`
		Data       []string `json:"data"`
	}
	if err := json.Unmarshal(envelope.Value, &raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectionFailure, err, "解析账户信息失败")
	}
	info.Exists = true
	info.Lamports = raw.Lamports
	info.Owner = raw.Owner
	info.Executable = raw.Executable
	info.RentEpoch = raw.RentEpoch
	if len(raw.Data) > 0 {
		info.DataLen = len(raw.Data[0])
	}
	return info, nil
}

// EstimateTransferFee returns the lamport fee for a simple transfer. Nodes
// that cannot price an empty message fall back to the historical flat fee.
func (c *Client) EstimateTransferFee(ctx context.Context) uint64 {
	var envelope valueEnvelope
	// An empty legacy message prices a no-op single-signature transaction.
	if err := c.call(ctx, "getFeeForMessage", []any{"AQABAA==", map[string]any{"commitment": "processed"}}, &envelope); err == nil {
		var fee uint64
		if json.Unmarshal(envelope.Value, &fee) == nil && fee > 0 {
			return fee
		}
	}
	return FallbackFeeLamports
}

// SignatureStatus 描述一笔交易的确认进度。
type SignatureStatus struct {
	Signature     string `json:"signature"`
	Slot          uint64 `json:"slot"`
	Confirmations string `json:"confirmations"`
	Status        string `json:"status"`
	Found         bool   `json:"found"`
}

// FetchSignatureStatus looks a transaction signature up in the node's recent
// status cache.
func (c *Client) FetchSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var envelope valueEnvelope
	params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &envelope); err != nil {
		return nil, err
	}
	var entries []*struct {
		Slot               uint64 `json:"slot"`
		Confirmations      *int   `json:"confirmations"`
		ConfirmationStatus string `json:"confirmationStatus"`
		Err                any    `json:"err"`
	}
	if err := json.Unmarshal(envelope.Value, &entries); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectionFailure, err, "解析签名状态失败")
	}
	status := &SignatureStatus{Signature: signature}
	if len(entries) == 0 || entries[0] == nil {
		return status, nil
	}
	entry := entries[0]
	status.Found = true
	status.Slot = entry.Slot
	status.Status = entry.ConfirmationStatus
	if entry.Err != nil {
		status.Status = "failed"
	}
	if entry.Confirmations != nil {
		status.Confirmations = strconv.Itoa(*entry.Confirmations)
	} else {
		status.Confirmations = "max"
	}
	return status, nil
}
