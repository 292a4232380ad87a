package tools

import (
	"context"
	"math/big"
	"strings"
	"time"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/ethereum"
	"Web3Agent-Chain/internal/web3/provider"
)

// DeFiTool 封装 DEX 询价、兑换与借贷协议查询。
type DeFiTool struct {
	registry *provider.Registry
}

// NewDeFiTool wires the DeFi tool to the provider registry.
func NewDeFiTool(registry *provider.Registry) *DeFiTool {
	return &DeFiTool{registry: registry}
}

func (t *DeFiTool) Name() string { return "defi" }

func (t *DeFiTool) Description() string {
	return "DeFi 操作: Uniswap V2 询价/兑换/储备查询, Aave 用户数据"
}

func (t *DeFiTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	network, networkType := networkParams(params)
	if network != web3.NetworkEthereum {
		return Failf(apperrors.CodeUnsupportedNetwork, "DeFi 工具只支持以太坊网络, 实际为 %s", network)
	}
	client, err := t.registry.Ethereum(ctx, networkType)
	if err != nil {
		return Fail(err)
	}
	switch action := actionOf(params); action {
	case "get_swap_quote", "quote":
		return t.quote(ctx, client, params)
	case "swap":
		return t.swap(ctx, client, params)
	case "get_reserves", "reserves":
		return t.reserves(ctx, client, params)
	case "aave_supply", "aave_borrow":
		// Lending transactions need pool-specific wiring that is not
		// implemented; refuse with a structured result.
		return Failf(apperrors.CodeUnsupportedAction,
			"Aave 借贷交易暂不支持, 仅支持 aave_get_user_data 查询")
	case "aave_get_user_data":
		return t.aaveUserData(params)
	default:
		return failUnknownAction(t.Name(), action)
	}
}

func (t *DeFiTool) quote(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	tokenIn, err := requireString(params, "token_in")
	if err != nil {
		return Fail(err)
	}
	tokenOut, err := requireString(params, "token_out")
	if err != nil {
		return Fail(err)
	}
	amount, err := requireString(params, "amount_in")
	if err != nil {
		return Fail(err)
	}
	// Native amounts are denominated in ether; token amounts are raw when
	// amount_raw is set, otherwise scaled by the token's decimals.
	amountIn, failResult := t.resolveAmount(ctx, client, tokenIn, amount, boolParam(params, "amount_raw"))
	if failResult != nil {
		return failResult
	}
	slippage := int64(0)
	if raw, ok := params["slippage_bps"].(float64); ok {
		slippage = int64(raw)
	}
	quote, err := client.QuoteSwap(ctx, tokenIn, tokenOut, amountIn, slippage)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"token_in":       tokenIn,
		"token_out":      tokenOut,
		"amount_in":      quote.AmountIn.String(),
		"amount_out":     quote.AmountOut.String(),
		"amount_out_min": quote.AmountOutMin.String(),
		"path":           quote.Path,
		"slippage_bps":   quote.SlippageBps,
	})
}

func (t *DeFiTool) resolveAmount(ctx context.Context, client *ethereum.Client, token, amount string, raw bool) (amountIn *big.Int, fail map[string]any) {
	if raw {
		parsed, err := ethereum.ParseUnits(amount, 0)
		if err != nil {
			return nil, Fail(err)
		}
		return parsed, nil
	}
	decimals := 18
	if !strings.EqualFold(token, "ETH") {
		info, err := client.FetchTokenInfo(ctx, token, false)
		if err != nil {
			return nil, Fail(err)
		}
		decimals = int(info.Decimals)
	}
	parsed, err := ethereum.ParseUnits(amount, decimals)
	if err != nil {
		return nil, Fail(err)
	}
	return parsed, nil
}

func (t *DeFiTool) swap(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	privateKey, err := requireString(params, "private_key")
	if err != nil {
		return Fail(err)
	}
	tokenIn, err := requireString(params, "token_in")
	if err != nil {
		return Fail(err)
	}
	tokenOut, err := requireString(params, "token_out")
	if err != nil {
		return Fail(err)
	}
	amount, err := requireString(params, "amount_in")
	if err != nil {
		return Fail(err)
	}
	amountIn, failResult := t.resolveAmount(ctx, client, tokenIn, amount, boolParam(params, "amount_raw"))
	if failResult != nil {
		return failResult
	}
	req := ethereum.SwapRequest{
		PrivateKeyHex: privateKey,
		TokenIn:       tokenIn,
		TokenOut:      tokenOut,
		AmountIn:      amountIn,
	}
	if raw, ok := params["slippage_bps"].(float64); ok {
		req.SlippageBps = int64(raw)
	}
	if raw, ok := params["deadline_minutes"].(float64); ok && raw > 0 {
		req.Deadline = time.Duration(raw) * time.Minute
	}
	result, err := client.ExecuteSwap(ctx, req)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"tx_hash":        result.Tx.Hash,
		"from":           result.Tx.From,
		"token_in":       tokenIn,
		"token_out":      tokenOut,
		"amount_in":      result.Quote.AmountIn.String(),
		"amount_out_min": result.Quote.AmountOutMin.String(),
		"path":           result.Quote.Path,
	})
}

func (t *DeFiTool) reserves(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	tokenA, err := requireString(params, "token_a")
	if err != nil {
		return Fail(err)
	}
	tokenB, err := requireString(params, "token_b")
	if err != nil {
		return Fail(err)
	}
	reserves, err := client.FetchPairReserves(ctx, tokenA, tokenB)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"pair":     reserves.Pair,
		"token0":   reserves.Token0,
		"token1":   reserves.Token1,
		"reserve0": reserves.Reserve0.String(),
		"reserve1": reserves.Reserve1.String(),
	})
}

// aaveUserData shapes the documented user-data response. Without a wired pool
// contract the shaped values are empty; address validation still applies.
func (t *DeFiTool) aaveUserData(params map[string]any) map[string]any {
	address, err := requireString(params, "address")
	if err != nil {
		return Fail(err)
	}
	if _, err := ethereum.ParseAddress(address); err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"address":                       ethereum.ChecksumAddress(address),
		"total_collateral_eth":          "0",
		"total_debt_eth":                "0",
		"available_borrows_eth":         "0",
		"current_liquidation_threshold": "0",
		"health_factor":                 "0",
		"note":                          "Aave 池合约未接入, 返回占位数据",
	})
}
