package tools

import (
	"context"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/ethereum"
	"Web3Agent-Chain/internal/web3/provider"
)

// SmartContractTool 执行任意合约的只读调用与交易。
type SmartContractTool struct {
	registry *provider.Registry
}

// NewSmartContractTool wires the contract tool to the provider registry.
func NewSmartContractTool(registry *provider.Registry) *SmartContractTool {
	return &SmartContractTool{registry: registry}
}

func (t *SmartContractTool) Name() string { return "smart_contract" }

func (t *SmartContractTool) Description() string {
	return "通过 ABI 调用智能合约: read 只读查询, write 发送交易"
}

func (t *SmartContractTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	network, networkType := networkParams(params)
	if network != web3.NetworkEthereum {
		return Failf(apperrors.CodeUnsupportedNetwork, "合约工具只支持以太坊网络, 实际为 %s", network)
	}
	client, err := t.registry.Ethereum(ctx, networkType)
	if err != nil {
		return Fail(err)
	}
	switch action := actionOf(params); action {
	case "read", "call", "":
		return t.read(ctx, client, params)
	case "write", "transact":
		return t.write(ctx, client, params)
	default:
		return failUnknownAction(t.Name(), action)
	}
}

func contractCallParams(params map[string]any) (contract, abiJSON, method string, args []any, err error) {
	if contract, err = requireString(params, "contract_address"); err != nil {
		return
	}
	if abiJSON, err = requireString(params, "abi"); err != nil {
		return
	}
	if method, err = requireString(params, "method"); err != nil {
		return
	}
	if raw, ok := params["args"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			err = apperrors.New(apperrors.CodeInvalidArgument, "args 参数必须是数组")
			return
		}
		args = list
	}
	return
}

func (t *SmartContractTool) read(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	contract, abiJSON, method, args, err := contractCallParams(params)
	if err != nil {
		return Fail(err)
	}
	results, err := client.CallContract(ctx, contract, abiJSON, method, args)
	if err != nil {
		return Fail(err)
	}
	shaped := make([]any, len(results))
	for i, result := range results {
		shaped[i] = ethereum.FormatABIValue(result)
	}
	return OK(map[string]any{
		"contract": ethereum.ChecksumAddress(contract),
		"method":   method,
		"results":  shaped,
	})
}

func (t *SmartContractTool) write(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	privateKey := stringParam(params, "private_key")
	if privateKey == "" {
		// Wallet-style signing is not wired; refuse explicitly instead
		// of silently doing nothing.
		return Failf(apperrors.CodeInvalidArgument,
			"写操作需要 private_key 参数, 当前不支持外部钱包签名")
	}
	contract, abiJSON, method, args, err := contractCallParams(params)
	if err != nil {
		return Fail(err)
	}
	contractAddr, err := ethereum.ParseAddress(contract)
	if err != nil {
		return Fail(err)
	}
	req := ethereum.TxRequest{PrivateKeyHex: privateKey, To: contractAddr}
	if value := stringParam(params, "value_wei"); value != "" {
		wei, err := ethereum.ParseUnits(value, 0)
		if err != nil {
			return Fail(err)
		}
		req.Value = wei
	}
	tx, err := client.TransactMethod(ctx, req, abiJSON, method, args)
	if err != nil {
		return Fail(err)
	}
	result := map[string]any{
		"contract": contractAddr.Hex(),
		"method":   method,
		"tx_hash":  tx.Hash,
		"from":     tx.From,
		"nonce":    tx.Nonce,
	}
	if boolParam(params, "wait") {
		receipt, err := client.WaitForReceipt(ctx, tx.Hash)
		if err != nil {
			return Fail(err)
		}
		result["block_number"] = receipt.BlockNumber.Uint64()
		result["gas_used"] = receipt.GasUsed
		result["succeeded"] = receipt.Status == 1
	}
	return OK(result)
}
