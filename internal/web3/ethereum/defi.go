package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "Web3Agent-Chain/internal/errors"
)

const (
	// DefaultSlippageBps is applied when a swap request omits slippage.
	DefaultSlippageBps = 50
	// DefaultSwapDeadline bounds how long a submitted swap stays valid.
	DefaultSwapDeadline = 20 * time.Minute
)

// SwapQuote 描述一次 Uniswap V2 询价的结果。
type SwapQuote struct {
	AmountIn     *big.Int `json:"amount_in"`
	AmountOut    *big.Int `json:"amount_out"`
	AmountOutMin *big.Int `json:"amount_out_min"`
	Path         []string `json:"path"`
	SlippageBps  int64    `json:"slippage_bps"`
}

// swapPath normalizes a token pair into a router path, substituting WETH for
// the native-asset sentinel "ETH".
func swapPath(tokenIn, tokenOut string) ([]common.Address, error) {
	resolve := func(token string) (common.Address, error) {
		if strings.EqualFold(strings.TrimSpace(token), "ETH") {
			return common.HexToAddress(WETHAddress), nil
		}
		return ParseAddress(token)
	}
	in, err := resolve(tokenIn)
	if err != nil {
		return nil, err
	}
	out, err := resolve(tokenOut)
	if err != nil {
		return nil, err
	}
	if in == out {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "交易对的两个代币不能相同")
	}
	return []common.Address{in, out}, nil
}

// QuoteSwap asks the router for the output of an exact-input swap and derives
// the minimum acceptable output from the slippage tolerance in basis points.
func (c *Client) QuoteSwap(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, slippageBps int64) (*SwapQuote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "输入金额必须大于零")
	}
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	path, err := swapPath(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	router := common.HexToAddress(UniswapV2RouterAddress)
	var amounts []*big.Int
	if err := c.readInto(ctx, router, routerABI, "getAmountsOut", []any{amountIn, path}, &amounts); err != nil {
		return nil, err
	}
	if len(amounts) < 2 {
		return nil, apperrors.New(apperrors.CodeContractCallFailure, "询价返回的金额数组不完整")
	}
	amountOut := amounts[len(amounts)-1]
	// amountOutMin = amountOut * (10000 - slippageBps) / 10000
	minOut := new(big.Int).Mul(amountOut, big.NewInt(10000-slippageBps))
	minOut.Div(minOut, big.NewInt(10000))
	hexPath := make([]string, len(path))
	for i, p := range path {
		hexPath[i] = p.Hex()
	}
	return &SwapQuote{
		AmountIn:     amountIn,
		AmountOut:    amountOut,
		AmountOutMin: minOut,
		Path:         hexPath,
		SlippageBps:  slippageBps,
	}, nil
}

// SwapRequest 描述一次待执行的兑换。
type SwapRequest struct {
	PrivateKeyHex string
	TokenIn       string // 代币地址或 "ETH"
	TokenOut      string
	AmountIn      *big.Int
	SlippageBps   int64
	Deadline      time.Duration
}

// SwapResult reports the submitted swap transaction and its quote.
type SwapResult struct {
	Tx    *TxResult  `json:"tx"`
	Quote *SwapQuote `json:"quote"`
}

// ExecuteSwap quotes and submits an exact-input Uniswap V2 swap. Token inputs
// are approved to the router first when the existing allowance is too small.
func (c *Client) ExecuteSwap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	quote, err := c.QuoteSwap(ctx, req.TokenIn, req.TokenOut, req.AmountIn, req.SlippageBps)
	if err != nil {
		return nil, err
	}
	sender, err := PublicAddressFromKey(req.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	deadline := req.Deadline
	if deadline <= 0 {
		deadline = DefaultSwapDeadline
	}
	deadlineTS := big.NewInt(time.Now().Add(deadline).Unix())
	router := common.HexToAddress(UniswapV2RouterAddress)
	recipient := common.HexToAddress(sender)
	path := make([]common.Address, len(quote.Path))
	for i, p := range quote.Path {
		path[i] = common.HexToAddress(p)
	}

	inIsNative := strings.EqualFold(strings.TrimSpace(req.TokenIn), "ETH")
	outIsNative := strings.EqualFold(strings.TrimSpace(req.TokenOut), "ETH")

	if !inIsNative {
		if err := c.ensureAllowance(ctx, req.PrivateKeyHex, sender, quote.Path[0], req.AmountIn); err != nil {
			return nil, err
		}
	}

	var tx *TxResult
	switch {
	case inIsNative:
		tx, err = c.TransactMethod(ctx,
			TxRequest{PrivateKeyHex: req.PrivateKeyHex, To: router, Value: req.AmountIn},
			UniswapV2RouterABI, "swapExactETHForTokens",
			[]any{quote.AmountOutMin, path, recipient, deadlineTS})
	case outIsNative:
		tx, err = c.TransactMethod(ctx,
			TxRequest{PrivateKeyHex: req.PrivateKeyHex, To: router},
			UniswapV2RouterABI, "swapExactTokensForETH",
			[]any{req.AmountIn, quote.AmountOutMin, path, recipient, deadlineTS})
	default:
		tx, err = c.TransactMethod(ctx,
			TxRequest{PrivateKeyHex: req.PrivateKeyHex, To: router},
			UniswapV2RouterABI, "swapExactTokensForTokens",
			[]any{req.AmountIn, quote.AmountOutMin, path, recipient, deadlineTS})
	}
	if err != nil {
		return nil, err
	}
	return &SwapResult{Tx: tx, Quote: quote}, nil
}

// ensureAllowance tops the router allowance up to unlimited when it cannot
// cover amountIn.
func (c *Client) ensureAllowance(ctx context.Context, privateKeyHex, owner, token string, amountIn *big.Int) error {
	allowance, err := c.TokenAllowance(ctx, token, owner, UniswapV2RouterAddress)
	if err != nil {
		return err
	}
	if allowance.Cmp(amountIn) >= 0 {
		return nil
	}
	c.log.Info("授权额度不足, 先提交 approve 交易", "token", token, "owner", owner)
	approveTx, err := c.ApproveToken(ctx, privateKeyHex, token, UniswapV2RouterAddress, nil)
	if err != nil {
		return err
	}
	receipt, err := c.WaitForReceipt(ctx, approveTx.Hash)
	if err != nil {
		return err
	}
	if receipt.Status != 1 {
		return apperrors.New(apperrors.CodeTransactionFailure,
			fmt.Sprintf("approve 交易执行失败: %s", approveTx.Hash))
	}
	return nil
}

// PairReserves 描述一个交易对的储备。
type PairReserves struct {
	Pair     string   `json:"pair"`
	Token0   string   `json:"token0"`
	Token1   string   `json:"token1"`
	Reserve0 *big.Int `json:"reserve0"`
	Reserve1 *big.Int `json:"reserve1"`
}

// FetchPairReserves resolves a Uniswap V2 pair via the factory and reads its
// reserves.
func (c *Client) FetchPairReserves(ctx context.Context, tokenA, tokenB string) (*PairReserves, error) {
	path, err := swapPath(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	factory := common.HexToAddress(UniswapV2Factory)
	var pair common.Address
	if err := c.readInto(ctx, factory, factoryABI, "getPair", []any{path[0], path[1]}, &pair); err != nil {
		return nil, err
	}
	if pair == zeroAddress {
		return nil, apperrors.New(apperrors.CodeNotFound,
			fmt.Sprintf("交易对不存在: %s/%s", path[0].Hex(), path[1].Hex()))
	}
	results, err := c.call(ctx, pair, pairABI, "getReserves", nil)
	if err != nil {
		return nil, err
	}
	if len(results) < 2 {
		return nil, apperrors.New(apperrors.CodeContractCallFailure, "getReserves 返回值不完整")
	}
	reserve0, ok0 := results[0].(*big.Int)
	reserve1, ok1 := results[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, apperrors.New(apperrors.CodeContractCallFailure, "getReserves 返回值类型异常")
	}
	var token0, token1 common.Address
	if err := c.readInto(ctx, pair, pairABI, "token0", nil, &token0); err != nil {
		return nil, err
	}
	if err := c.readInto(ctx, pair, pairABI, "token1", nil, &token1); err != nil {
		return nil, err
	}
	return &PairReserves{
		Pair:     pair.Hex(),
		Token0:   token0.Hex(),
		Token1:   token1.Hex(),
		Reserve0: reserve0,
		Reserve1: reserve1,
	}, nil
}
