package tools

import (
	"context"
	"strings"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/ethereum"
	"Web3Agent-Chain/internal/web3/provider"
	"Web3Agent-Chain/internal/web3/solana"
)

// TokenTool 查询与转移原生资产和同质化代币。
type TokenTool struct {
	registry *provider.Registry
}

// NewTokenTool wires the token tool to the provider registry.
func NewTokenTool(registry *provider.Registry) *TokenTool {
	return &TokenTool{registry: registry}
}

func (t *TokenTool) Name() string { return "token" }

func (t *TokenTool) Description() string {
	return "代币操作: 余额查询、元数据、转账、授权、额度与单位换算"
}

func (t *TokenTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	switch action := actionOf(params); action {
	case "native_balance", "balance", "":
		return t.nativeBalance(ctx, params)
	case "token_balance":
		return t.tokenBalance(ctx, params)
	case "token_info", "info":
		return t.tokenInfo(ctx, params)
	case "transfer":
		return t.transfer(ctx, params)
	case "approve":
		return t.approve(ctx, params)
	case "allowance":
		return t.allowance(ctx, params)
	case "convert_units", "convert":
		return t.convertUnits(params)
	default:
		return failUnknownAction(t.Name(), action)
	}
}

func (t *TokenTool) nativeBalance(ctx context.Context, params map[string]any) map[string]any {
	network, networkType := networkParams(params)
	address, err := requireString(params, "address")
	if err != nil {
		return Fail(err)
	}
	switch network {
	case web3.NetworkEthereum:
		client, err := t.registry.Ethereum(ctx, networkType)
		if err != nil {
			return Fail(err)
		}
		wei, err := client.NativeBalance(ctx, address)
		if err != nil {
			return Fail(err)
		}
		return OK(map[string]any{
			"network":      network,
			"network_type": networkType,
			"address":      ethereum.ChecksumAddress(address),
			"balance_wei":  wei.String(),
			"balance_eth":  ethereum.WeiToEther(wei),
		})
	case web3.NetworkSolana:
		client, err := t.registry.Solana(ctx, networkType)
		if err != nil {
			return Fail(err)
		}
		lamports, err := client.Balance(ctx, address)
		if err != nil {
			return Fail(err)
		}
		return OK(map[string]any{
			"network":          network,
			"network_type":     networkType,
			"address":          address,
			"balance_lamports": lamports,
			"balance_sol":      solana.LamportsToSOL(lamports),
		})
	default:
		return Failf(apperrors.CodeUnsupportedNetwork, "不支持的网络: %s", network)
	}
}

func (t *TokenTool) ethereumClient(ctx context.Context, params map[string]any) (*ethereum.Client, string, map[string]any) {
	network, networkType := networkParams(params)
	if network != web3.NetworkEthereum {
		return nil, "", Failf(apperrors.CodeUnsupportedNetwork,
			"该动作只支持以太坊网络, 实际为 %s", network)
	}
	client, err := t.registry.Ethereum(ctx, networkType)
	if err != nil {
		return nil, "", Fail(err)
	}
	return client, networkType, nil
}

func (t *TokenTool) tokenBalance(ctx context.Context, params map[string]any) map[string]any {
	client, networkType, fail := t.ethereumClient(ctx, params)
	if fail != nil {
		return fail
	}
	token, err := requireString(params, "token_address")
	if err != nil {
		return Fail(err)
	}
	owner, err := requireString(params, "address")
	if err != nil {
		return Fail(err)
	}
	balance, err := client.TokenBalance(ctx, token, owner)
	if err != nil {
		return Fail(err)
	}
	info, err := client.FetchTokenInfo(ctx, token, false)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"network_type": networkType,
		"token":        info.Address,
		"symbol":       info.Symbol,
		"address":      ethereum.ChecksumAddress(owner),
		"balance_raw":  balance.String(),
		"balance":      ethereum.FormatUnits(balance, int(info.Decimals)),
	})
}

func (t *TokenTool) tokenInfo(ctx context.Context, params map[string]any) map[string]any {
	client, networkType, fail := t.ethereumClient(ctx, params)
	if fail != nil {
		return fail
	}
	token, err := requireString(params, "token_address")
	if err != nil {
		return Fail(err)
	}
	info, err := client.FetchTokenInfo(ctx, token, boolParam(params, "force_refresh"))
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"network_type": networkType,
		"address":      info.Address,
		"name":         info.Name,
		"symbol":       info.Symbol,
		"decimals":     info.Decimals,
		"total_supply": ethereum.FormatUnits(info.TotalSupply, int(info.Decimals)),
	})
}

func (t *TokenTool) transfer(ctx context.Context, params map[string]any) map[string]any {
	client, _, fail := t.ethereumClient(ctx, params)
	if fail != nil {
		return fail
	}
	privateKey, err := requireString(params, "private_key")
	if err != nil {
		return Fail(err)
	}
	to, err := requireString(params, "to_address")
	if err != nil {
		return Fail(err)
	}
	amount, err := requireString(params, "amount")
	if err != nil {
		return Fail(err)
	}

	token := stringParam(params, "token_address")
	if token == "" {
		// Native transfer; the amount is denominated in ether.
		wei, err := ethereum.EtherToWei(amount)
		if err != nil {
			return Fail(err)
		}
		tx, err := client.TransferNative(ctx, privateKey, to, wei)
		if err != nil {
			return Fail(err)
		}
		return OK(map[string]any{
			"tx_hash":    tx.Hash,
			"from":       tx.From,
			"to":         tx.To,
			"amount_wei": wei.String(),
		})
	}

	info, err := client.FetchTokenInfo(ctx, token, false)
	if err != nil {
		return Fail(err)
	}
	raw, err := ethereum.ParseUnits(amount, int(info.Decimals))
	if err != nil {
		return Fail(err)
	}
	tx, err := client.TransferToken(ctx, privateKey, token, to, raw)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"tx_hash":    tx.Hash,
		"from":       tx.From,
		"token":      info.Address,
		"symbol":     info.Symbol,
		"amount_raw": raw.String(),
	})
}

func (t *TokenTool) approve(ctx context.Context, params map[string]any) map[string]any {
	client, _, fail := t.ethereumClient(ctx, params)
	if fail != nil {
		return fail
	}
	privateKey, err := requireString(params, "private_key")
	if err != nil {
		return Fail(err)
	}
	token, err := requireString(params, "token_address")
	if err != nil {
		return Fail(err)
	}
	spender, err := requireString(params, "spender")
	if err != nil {
		return Fail(err)
	}
	amount, err := requireString(params, "amount")
	if err != nil {
		return Fail(err)
	}

	var raw = ethereum.MaxUint256()
	unlimited := strings.EqualFold(amount, "unlimited")
	if !unlimited {
		info, err := client.FetchTokenInfo(ctx, token, false)
		if err != nil {
			return Fail(err)
		}
		raw, err = ethereum.ParseUnits(amount, int(info.Decimals))
		if err != nil {
			return Fail(err)
		}
	}
	tx, err := client.ApproveToken(ctx, privateKey, token, spender, raw)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"tx_hash":   tx.Hash,
		"token":     ethereum.ChecksumAddress(token),
		"spender":   ethereum.ChecksumAddress(spender),
		"amount":    raw.String(),
		"unlimited": unlimited,
	})
}

func (t *TokenTool) allowance(ctx context.Context, params map[string]any) map[string]any {
	client, _, fail := t.ethereumClient(ctx, params)
	if fail != nil {
		return fail
	}
	token, err := requireString(params, "token_address")
	if err != nil {
		return Fail(err)
	}
	owner, err := requireString(params, "owner")
	if err != nil {
		return Fail(err)
	}
	spender, err := requireString(params, "spender")
	if err != nil {
		return Fail(err)
	}
	allowance, err := client.TokenAllowance(ctx, token, owner, spender)
	if err != nil {
		return Fail(err)
	}
	info, err := client.FetchTokenInfo(ctx, token, false)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"token":         info.Address,
		"symbol":        info.Symbol,
		"owner":         ethereum.ChecksumAddress(owner),
		"spender":       ethereum.ChecksumAddress(spender),
		"allowance_raw": allowance.String(),
		"allowance":     ethereum.FormatUnits(allowance, int(info.Decimals)),
		"unlimited":     allowance.Cmp(ethereum.MaxUint256()) == 0,
	})
}

// convertUnits is a pure helper action needing no chain connection.
func (t *TokenTool) convertUnits(params map[string]any) map[string]any {
	amount, err := requireString(params, "amount")
	if err != nil {
		return Fail(err)
	}
	from, err := requireString(params, "from_unit")
	if err != nil {
		return Fail(err)
	}
	to, err := requireString(params, "to_unit")
	if err != nil {
		return Fail(err)
	}
	converted, err := ethereum.ConvertUnits(amount, from, to)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"amount":    amount,
		"from_unit": strings.ToLower(from),
		"to_unit":   strings.ToLower(to),
		"converted": converted,
	})
}
