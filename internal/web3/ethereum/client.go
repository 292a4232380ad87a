package ethereum

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/pkg/logger"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultReceiptTimeout = 2 * time.Minute
	receiptPollInterval   = 2 * time.Second
	tokenInfoTTL          = 5 * time.Minute
	gasLimitHeadroom      = 110 // percent of the estimate
	defaultTransferGas    = 21000
)

// backend is the slice of the ethclient surface the client depends on. Tests
// substitute a stub here instead of dialing a node.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Config 描述一个 EVM 链客户端的连接参数。
type Config struct {
	NetworkType string  // mainnet / sepolia / ...
	RPCURL      string  // HTTP(S) 或 WebSocket 端点
	RateLimit   float64 // 每秒允许的 RPC 调用数, <=0 表示不限流
	DialTimeout time.Duration
}

// Client talks to a single EVM chain over JSON-RPC. It caches immutable token
// metadata and rate-limits outbound calls when configured to.
type Client struct {
	networkType string
	provider    string
	chainID     *big.Int

	rpc     *gethrpc.Client
	eth     backend
	limiter *rate.Limiter
	tokens  *gocache.Cache
	log     *slog.Logger
}

// NewClient dials the configured endpoint and verifies it by fetching the
// chain id.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "RPC 地址不能为空")
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rpcClient, err := gethrpc.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectionFailure, err,
			fmt.Sprintf("连接以太坊节点失败: %s", web3.MaskProviderURL(cfg.RPCURL)))
	}
	c := &Client{
		networkType: cfg.NetworkType,
		provider:    cfg.RPCURL,
		rpc:         rpcClient,
		eth:         ethclient.NewClient(rpcClient),
		tokens:      gocache.New(tokenInfoTTL, 10*time.Minute),
		log:         logger.Named("web3.ethereum"),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}
	chainID, err := c.eth.ChainID(dialCtx)
	if err != nil {
		rpcClient.Close()
		return nil, apperrors.Wrap(apperrors.CodeConnectionFailure, err, "获取链 ID 失败")
	}
	c.chainID = chainID
	c.log.Info("已连接以太坊节点",
		"network_type", cfg.NetworkType,
		"chain_id", chainID.String(),
		"provider", web3.MaskProviderURL(cfg.RPCURL))
	return c, nil
}

// Network implements web3.Client.
func (c *Client) Network() string { return web3.NetworkEthereum }

// NetworkType implements web3.Client.
func (c *Client) NetworkType() string { return c.networkType }

// ChainID returns the cached chain id of the connected network.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Provider returns the raw (unmasked) RPC endpoint.
func (c *Client) Provider() string { return c.provider }

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// FetchSnapshot implements web3.Client.
func (c *Client) FetchSnapshot(ctx context.Context) (web3.Snapshot, error) {
	if err := c.wait(ctx); err != nil {
		return web3.Snapshot{}, err
	}
	block, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return web3.Snapshot{}, apperrors.Wrap(apperrors.CodeConnectionFailure, err, "获取最新区块高度失败")
	}
	return web3.Snapshot{
		Network:     web3.NetworkEthereum,
		NetworkType: c.networkType,
		ChainID:     c.chainID.String(),
		BlockNumber: block,
		Provider:    web3.MaskProviderURL(c.provider),
	}, nil
}

// Healthy implements web3.Client.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.eth.BlockNumber(ctx)
	return err == nil
}

// GasPrice returns the node's suggested legacy gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectionFailure, err, "获取建议 gas 价格失败")
	}
	return price, nil
}

// NativeBalance returns the wei balance of an address at the latest block.
func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectionFailure, err,
			fmt.Sprintf("查询余额失败: %s", address))
	}
	return balance, nil
}

// TokenInfo 描述一个 ERC20 代币的元数据。
type TokenInfo struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply *big.Int `json:"total_supply"`
}

// FetchTokenInfo reads ERC20 metadata, serving repeated lookups from a short
// lived cache unless forceRefresh is set.
func (c *Client) FetchTokenInfo(ctx context.Context, token string, forceRefresh bool) (*TokenInfo, error) {
	addr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(addr.Hex())
	if !forceRefresh {
		if cached, ok := c.tokens.Get(key); ok {
			return cached.(*TokenInfo), nil
		}
	}
	info := &TokenInfo{Address: addr.Hex()}
	if err := c.readInto(ctx, addr, erc20ABI, "name", nil, &info.Name); err != nil {
		return nil, err
	}
	if err := c.readInto(ctx, addr, erc20ABI, "symbol", nil, &info.Symbol); err != nil {
		return nil, err
	}
	if err := c.readInto(ctx, addr, erc20ABI, "decimals", nil, &info.Decimals); err != nil {
		return nil, err
	}
	if err := c.readInto(ctx, addr, erc20ABI, "totalSupply", nil, &info.TotalSupply); err != nil {
		return nil, err
	}
	c.tokens.Set(key, info, gocache.DefaultExpiration)
	return info, nil
}

// TokenBalance returns the raw ERC20 balance of owner.
func (c *Client) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	tokenAddr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := ParseAddress(owner)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if err := c.readInto(ctx, tokenAddr, erc20ABI, "balanceOf", []any{ownerAddr}, &balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// TokenAllowance returns the amount spender may draw from owner.
func (c *Client) TokenAllowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	tokenAddr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := ParseAddress(owner)
	if err != nil {
		return nil, err
	}
	spenderAddr, err := ParseAddress(spender)
	if err != nil {
		return nil, err
	}
	var allowance *big.Int
	if err := c.readInto(ctx, tokenAddr, erc20ABI, "allowance", []any{ownerAddr, spenderAddr}, &allowance); err != nil {
		return nil, err
	}
	return allowance, nil
}

// CallContract executes a read-only method on a contract described by an ABI
// JSON document and returns the unpacked outputs.
func (c *Client) CallContract(ctx context.Context, contract, abiJSON, method string, args []any) ([]any, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析合约 ABI 失败")
	}
	return c.call(ctx, addr, parsed, method, args)
}

// call packs, executes, and unpacks a read-only contract method.
func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args []any) ([]any, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("ABI 中不存在方法: %s", method))
	}
	coerced, err := coerceArgs(m.Inputs, args)
	if err != nil {
		return nil, err
	}
	input, err := parsed.Pack(method, coerced...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err,
			fmt.Sprintf("编码调用参数失败: %s", method))
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeContractCallFailure, err,
			fmt.Sprintf("合约调用失败: %s.%s", contract.Hex(), method))
	}
	results, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeContractCallFailure, err,
			fmt.Sprintf("解码返回值失败: %s", method))
	}
	return results, nil
}

// readInto runs a single-output contract read and stores the result in out,
// which must be a pointer to the matching Go type.
func (c *Client) readInto(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args []any, out any) error {
	results, err := c.call(ctx, contract, parsed, method, args)
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return apperrors.New(apperrors.CodeContractCallFailure,
			fmt.Sprintf("方法 %s 返回了 %d 个值, 期望 1 个", method, len(results)))
	}
	return assign(out, results[0])
}

// TxRequest 描述一笔待签名的交易。
type TxRequest struct {
	PrivateKeyHex string
	To            common.Address
	Value         *big.Int
	Data          []byte
	GasLimit      uint64   // 0 means estimate
	GasPrice      *big.Int // forces a legacy transaction when set
}

// TxResult carries the identifiers of a submitted transaction.
type TxResult struct {
	Hash     string `json:"tx_hash"`
	From     string `json:"from"`
	To       string `json:"to"`
	Nonce    uint64 `json:"nonce"`
	GasLimit uint64 `json:"gas_limit"`
}

// Transact signs and broadcasts a transaction. EIP-1559 fees are used unless
// the node cannot suggest a tip or the request pins a legacy gas price.
func (c *Client) Transact(ctx context.Context, req TxRequest) (*TxResult, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(req.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析私钥失败")
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransactionFailure, err, "获取 nonce 失败")
	}
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		msg := ethereum.CallMsg{From: from, To: &req.To, Value: value, Data: req.Data}
		estimated, err := c.eth.EstimateGas(ctx, msg)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeTransactionFailure, err, "估算 gas 失败")
		}
		gasLimit = estimated * gasLimitHeadroom / 100
	}

	var txData types.TxData
	if req.GasPrice != nil {
		txData = &types.LegacyTx{
			Nonce:    nonce,
			To:       &req.To,
			Value:    value,
			Gas:      gasLimit,
			GasPrice: req.GasPrice,
			Data:     req.Data,
		}
	} else if tip, tipErr := c.eth.SuggestGasTipCap(ctx); tipErr == nil {
		head, headErr := c.eth.HeaderByNumber(ctx, nil)
		if headErr != nil || head.BaseFee == nil {
			price, priceErr := c.eth.SuggestGasPrice(ctx)
			if priceErr != nil {
				return nil, apperrors.Wrap(apperrors.CodeTransactionFailure, priceErr, "获取 gas 价格失败")
			}
			txData = &types.LegacyTx{
				Nonce: nonce, To: &req.To, Value: value, Gas: gasLimit, GasPrice: price, Data: req.Data,
			}
		} else {
			// maxFee = 2*baseFee + tip, the conventional headroom for
			// one full upward base-fee adjustment.
			maxFee := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
			txData = &types.DynamicFeeTx{
				ChainID:   c.chainID,
				Nonce:     nonce,
				To:        &req.To,
				Value:     value,
				Gas:       gasLimit,
				GasTipCap: tip,
				GasFeeCap: maxFee,
				Data:      req.Data,
			}
		}
	} else {
		price, priceErr := c.eth.SuggestGasPrice(ctx)
		if priceErr != nil {
			return nil, apperrors.Wrap(apperrors.CodeTransactionFailure, priceErr, "获取 gas 价格失败")
		}
		txData = &types.LegacyTx{
			Nonce: nonce, To: &req.To, Value: value, Gas: gasLimit, GasPrice: price, Data: req.Data,
		}
	}

	signed, err := types.SignNewTx(key, types.LatestSignerForChainID(c.chainID), txData)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransactionFailure, err, "签名交易失败")
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransactionFailure, err, "广播交易失败")
	}
	c.log.Info("交易已广播",
		"tx_hash", signed.Hash().Hex(),
		"from", from.Hex(),
		"to", req.To.Hex(),
		"nonce", nonce)
	return &TxResult{
		Hash:     signed.Hash().Hex(),
		From:     from.Hex(),
		To:       req.To.Hex(),
		Nonce:    nonce,
		GasLimit: gasLimit,
	}, nil
}

// TransactMethod packs a state-changing contract method call and submits it.
func (c *Client) TransactMethod(ctx context.Context, req TxRequest, abiJSON, method string, args []any) (*TxResult, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析合约 ABI 失败")
	}
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("ABI 中不存在方法: %s", method))
	}
	coerced, err := coerceArgs(m.Inputs, args)
	if err != nil {
		return nil, err
	}
	input, err := parsed.Pack(method, coerced...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err,
			fmt.Sprintf("编码调用参数失败: %s", method))
	}
	req.Data = input
	return c.Transact(ctx, req)
}

// TransferNative sends wei from the key's address to a recipient.
func (c *Client) TransferNative(ctx context.Context, privateKeyHex, to string, wei *big.Int) (*TxResult, error) {
	toAddr, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}
	return c.Transact(ctx, TxRequest{
		PrivateKeyHex: privateKeyHex,
		To:            toAddr,
		Value:         wei,
		GasLimit:      defaultTransferGas,
	})
}

// TransferToken submits an ERC20 transfer of a raw amount.
func (c *Client) TransferToken(ctx context.Context, privateKeyHex, token, to string, amount *big.Int) (*TxResult, error) {
	tokenAddr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	toAddr, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}
	return c.TransactMethod(ctx, TxRequest{PrivateKeyHex: privateKeyHex, To: tokenAddr},
		ERC20ABI, "transfer", []any{toAddr, amount})
}

// ApproveToken grants spender an ERC20 allowance. A nil amount approves the
// maximum uint256 value.
func (c *Client) ApproveToken(ctx context.Context, privateKeyHex, token, spender string, amount *big.Int) (*TxResult, error) {
	tokenAddr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	spenderAddr, err := ParseAddress(spender)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = MaxUint256()
	}
	return c.TransactMethod(ctx, TxRequest{PrivateKeyHex: privateKeyHex, To: tokenAddr},
		ERC20ABI, "approve", []any{spenderAddr, amount})
}

// WaitForReceipt polls for the receipt of a broadcast transaction until the
// context expires or the fallback timeout elapses.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultReceiptTimeout)
		defer cancel()
	}
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.CodeTimeout, ctx.Err(),
				fmt.Sprintf("等待交易回执超时: %s", txHash))
		case <-ticker.C:
		}
	}
}

// MaxUint256 returns 2^256-1, the conventional unlimited allowance.
func MaxUint256() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeTimeout, err, "等待限流配额失败")
	}
	return nil
}
