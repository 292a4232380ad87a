package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/knowledge"
	"Web3Agent-Chain/internal/llm"
	"Web3Agent-Chain/internal/tools"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/provider"
	"Web3Agent-Chain/pkg/logger"
)

// Web3Agent 是面向调用方的单智能体门面, 把类型化方法翻译为工具调用,
// 并把每次操作写入有界记忆。
type Web3Agent struct {
	name      string
	registry  *tools.Registry
	providers *provider.Registry
	llmClient llm.Client
	knowledge knowledge.Provider
	memory    *Memory
	log       *slog.Logger

	defaultNetwork     string
	defaultNetworkType string
}

// Option 定义可选的 Agent 配置。
type Option func(*Web3Agent)

// WithName 设置智能体名称, 用于日志与记忆标识。
func WithName(name string) Option {
	return func(a *Web3Agent) { a.name = name }
}

// WithLLM 配置生成摘要所用的大模型客户端。
func WithLLM(client llm.Client) Option {
	return func(a *Web3Agent) { a.llmClient = client }
}

// WithKnowledgeProvider 配置知识库, 用于在摘要前补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Web3Agent) { a.knowledge = provider }
}

// WithMemory 配置操作记忆。
func WithMemory(memory *Memory) Option {
	return func(a *Web3Agent) { a.memory = memory }
}

// WithDefaultNetwork 设置未显式指定时使用的网络。
func WithDefaultNetwork(network, networkType string) Option {
	return func(a *Web3Agent) {
		a.defaultNetwork = network
		a.defaultNetworkType = networkType
	}
}

// New 创建一个 Web3Agent。
func New(registry *tools.Registry, providers *provider.Registry, opts ...Option) *Web3Agent {
	ag := &Web3Agent{
		name:               "web3_agent",
		registry:           registry,
		providers:          providers,
		llmClient:          llm.NewDisabled(),
		defaultNetwork:     web3.NetworkEthereum,
		defaultNetworkType: web3.TypeMainnet,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.knowledge == nil {
		ag.knowledge = knowledge.NewDefaultProvider()
	}
	ag.log = logger.Named("agent").With("agent", ag.name)
	return ag
}

// Name returns the agent's identifier.
func (a *Web3Agent) Name() string { return a.name }

// Memory exposes the agent's operation history.
func (a *Web3Agent) Memory() *Memory { return a.memory }

// execute runs a tool, applying the agent's default network and recording
// the outcome.
func (a *Web3Agent) execute(ctx context.Context, tool string, params map[string]any) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	if _, ok := params["network"]; !ok {
		params["network"] = a.defaultNetwork
	}
	if _, ok := params["network_type"]; !ok {
		params["network_type"] = a.defaultNetworkType
	}
	result := a.registry.Execute(ctx, tool, params)
	a.remember(tool, params, result)
	return result
}

// remember persists a redacted record of the operation.
func (a *Web3Agent) remember(tool string, params, result map[string]any) {
	if a.memory == nil {
		return
	}
	summary := map[string]any{}
	for _, key := range []string{"action", "address", "token_address", "contract_address", "name", "cid", "tx_hash"} {
		if v, ok := params[key]; ok {
			summary[key] = v
		}
	}
	if v, ok := result["tx_hash"]; ok {
		summary["tx_hash"] = v
	}
	status, _ := result["status"].(string)
	network, _ := params["network"].(string)
	entry := MemoryEntry{
		Operation: tool,
		Network:   network,
		Summary:   summary,
		Status:    status,
	}
	if err := a.memory.Record(entry); err != nil {
		a.log.Warn("写入操作记忆失败", "error", err)
	}
}

// WalletStatus probes every configured network concurrently and reports the
// wallet's standing on each.
func (a *Web3Agent) WalletStatus(ctx context.Context, address string) map[string]any {
	keys := a.providers.Networks()
	results := make([]map[string]any, len(keys))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, key := range keys {
		group.Go(func() error {
			parts := strings.SplitN(key, ":", 2)
			params := map[string]any{
				"action":       "native_balance",
				"network":      parts[0],
				"network_type": parts[1],
				"address":      address,
			}
			results[i] = a.registry.Execute(groupCtx, "token", params)
			return nil
		})
	}
	_ = group.Wait()

	networks := map[string]any{}
	for i, key := range keys {
		networks[key] = results[i]
	}
	out := map[string]any{
		"status":   tools.StatusOK,
		"address":  address,
		"networks": networks,
	}
	a.remember("wallet_status", map[string]any{"address": address}, out)
	return out
}

// ConnectWallet verifies connectivity for the agent's default network.
func (a *Web3Agent) ConnectWallet(ctx context.Context, forceReconnect bool) map[string]any {
	return a.execute(ctx, "web3_connection", map[string]any{
		"action":          "connect",
		"force_reconnect": forceReconnect,
	})
}

// NativeBalance reports the chain-native balance of an address.
func (a *Web3Agent) NativeBalance(ctx context.Context, address string) map[string]any {
	return a.execute(ctx, "token", map[string]any{
		"action":  "native_balance",
		"address": address,
	})
}

// TokenBalance reports a fungible token balance.
func (a *Web3Agent) TokenBalance(ctx context.Context, token, address string) map[string]any {
	return a.execute(ctx, "token", map[string]any{
		"action":        "token_balance",
		"token_address": token,
		"address":       address,
	})
}

// TokenInfo reports token metadata.
func (a *Web3Agent) TokenInfo(ctx context.Context, token string, forceRefresh bool) map[string]any {
	return a.execute(ctx, "token", map[string]any{
		"action":        "token_info",
		"token_address": token,
		"force_refresh": forceRefresh,
	})
}

// TransferTokens moves native or ERC-20 funds. token may be empty for native.
func (a *Web3Agent) TransferTokens(ctx context.Context, privateKey, token, to, amount string) map[string]any {
	params := map[string]any{
		"action":      "transfer",
		"private_key": privateKey,
		"to_address":  to,
		"amount":      amount,
	}
	if token != "" {
		params["token_address"] = token
	}
	return a.execute(ctx, "token", params)
}

// ApproveTokens grants an allowance; amount "unlimited" approves max uint256.
func (a *Web3Agent) ApproveTokens(ctx context.Context, privateKey, token, spender, amount string) map[string]any {
	return a.execute(ctx, "token", map[string]any{
		"action":        "approve",
		"private_key":   privateKey,
		"token_address": token,
		"spender":       spender,
		"amount":        amount,
	})
}

// CheckAllowance reports the allowance owner has granted spender.
func (a *Web3Agent) CheckAllowance(ctx context.Context, token, owner, spender string) map[string]any {
	return a.execute(ctx, "token", map[string]any{
		"action":        "allowance",
		"token_address": token,
		"owner":         owner,
		"spender":       spender,
	})
}

// NFTInfo fetches metadata for an NFT.
func (a *Web3Agent) NFTInfo(ctx context.Context, contract, tokenID string, forceRefresh bool) map[string]any {
	return a.execute(ctx, "nft", map[string]any{
		"action":           "get_metadata",
		"contract_address": contract,
		"token_id":         tokenID,
		"force_refresh":    forceRefresh,
	})
}

// NFTOwner reports the owner of an NFT.
func (a *Web3Agent) NFTOwner(ctx context.Context, contract, tokenID string) map[string]any {
	return a.execute(ctx, "nft", map[string]any{
		"action":           "get_owner",
		"contract_address": contract,
		"token_id":         tokenID,
	})
}

// NFTCollectionInfo reports a collection's name and symbol.
func (a *Web3Agent) NFTCollectionInfo(ctx context.Context, contract string) map[string]any {
	return a.execute(ctx, "nft", map[string]any{
		"action":           "collection_info",
		"contract_address": contract,
	})
}

// TransferNFT moves an ERC-721 token.
func (a *Web3Agent) TransferNFT(ctx context.Context, privateKey, contract, to, tokenID string) map[string]any {
	return a.execute(ctx, "nft", map[string]any{
		"action":           "transfer",
		"private_key":      privateKey,
		"contract_address": contract,
		"to_address":       to,
		"token_id":         tokenID,
	})
}

// ResolveENS resolves an ENS name to an address.
func (a *Web3Agent) ResolveENS(ctx context.Context, name string) map[string]any {
	return a.execute(ctx, "ens", map[string]any{
		"action": "resolve",
		"name":   name,
	})
}

// LookupENS reverse-resolves an address to its primary ENS name.
func (a *Web3Agent) LookupENS(ctx context.Context, address string) map[string]any {
	return a.execute(ctx, "ens", map[string]any{
		"action":  "lookup",
		"address": address,
	})
}

// IPFSContent fetches IPFS content by CID or URI.
func (a *Web3Agent) IPFSContent(ctx context.Context, reference string, forceRefresh bool) map[string]any {
	return a.execute(ctx, "ipfs", map[string]any{
		"action":        "get",
		"cid":           reference,
		"force_refresh": forceRefresh,
	})
}

// AddToIPFS publishes content to IPFS.
func (a *Web3Agent) AddToIPFS(ctx context.Context, name string, content any) map[string]any {
	return a.execute(ctx, "ipfs", map[string]any{
		"action":  "add",
		"name":    name,
		"content": content,
	})
}

// GetSwapQuote quotes an exact-input swap.
func (a *Web3Agent) GetSwapQuote(ctx context.Context, tokenIn, tokenOut, amountIn string) map[string]any {
	return a.execute(ctx, "defi", map[string]any{
		"action":    "get_swap_quote",
		"token_in":  tokenIn,
		"token_out": tokenOut,
		"amount_in": amountIn,
	})
}

// SwapTokens quotes and executes a swap.
func (a *Web3Agent) SwapTokens(ctx context.Context, privateKey, tokenIn, tokenOut, amountIn string) map[string]any {
	return a.execute(ctx, "defi", map[string]any{
		"action":      "swap",
		"private_key": privateKey,
		"token_in":    tokenIn,
		"token_out":   tokenOut,
		"amount_in":   amountIn,
	})
}

// CallContract performs a read-only contract call.
func (a *Web3Agent) CallContract(ctx context.Context, contract, abiJSON, method string, args []any) map[string]any {
	return a.execute(ctx, "smart_contract", map[string]any{
		"action":           "read",
		"contract_address": contract,
		"abi":              abiJSON,
		"method":           method,
		"args":             args,
	})
}

// SendContractTransaction submits a state-changing contract call.
func (a *Web3Agent) SendContractTransaction(ctx context.Context, privateKey, contract, abiJSON, method string, args []any) map[string]any {
	return a.execute(ctx, "smart_contract", map[string]any{
		"action":           "write",
		"private_key":      privateKey,
		"contract_address": contract,
		"abi":              abiJSON,
		"method":           method,
		"args":             args,
	})
}

// AnalyzeWallet gathers balances across networks plus optional token
// positions and asks the LLM for a summary.
func (a *Web3Agent) AnalyzeWallet(ctx context.Context, address string, tokenAddresses []string) map[string]any {
	status := a.WalletStatus(ctx, address)

	sections := []llm.Section{
		{Heading: "地址", Body: address},
	}
	if networks, ok := status["networks"].(map[string]any); ok {
		for key, raw := range networks {
			result, ok := raw.(map[string]any)
			if !ok || result["status"] != tools.StatusOK {
				continue
			}
			body := ""
			if eth, ok := result["balance_eth"].(string); ok {
				body = eth + " ETH"
			} else if sol, ok := result["balance_sol"].(string); ok {
				body = sol + " SOL"
			}
			sections = append(sections, llm.Section{Heading: "余额 " + key, Body: body})
		}
	}

	tokenResults := make([]map[string]any, 0, len(tokenAddresses))
	for _, token := range tokenAddresses {
		result := a.TokenBalance(ctx, token, address)
		tokenResults = append(tokenResults, result)
		if result["status"] == tools.StatusOK {
			sections = append(sections, llm.Section{
				Heading: fmt.Sprintf("代币 %v", result["symbol"]),
				Body:    fmt.Sprintf("%v", result["balance"]),
			})
		}
	}

	// The primary name is informative but optional.
	ensName := ""
	if a.defaultNetworkType == web3.TypeMainnet {
		if lookup := a.LookupENS(ctx, address); lookup["status"] == tools.StatusOK {
			ensName, _ = lookup["name"].(string)
			sections = append(sections, llm.Section{Heading: "ENS", Body: ensName})
		}
	}

	goal := fmt.Sprintf("分析钱包 %s 的链上状况", address)
	var cards []llm.KnowledgeCard
	if a.knowledge != nil {
		for _, snippet := range a.knowledge.Query(goal, "token") {
			cards = append(cards, llm.KnowledgeCard{Title: snippet.Title, Content: snippet.Content})
		}
	}
	summary := ""
	response, err := a.llmClient.Generate(ctx, llm.Request{
		Goal:      goal,
		Sections:  sections,
		Knowledge: cards,
	})
	if err != nil {
		a.log.Warn("生成钱包摘要失败", "error", err)
	} else {
		summary = response.Reply
	}

	out := map[string]any{
		"status":      tools.StatusOK,
		"address":     address,
		"networks":    status["networks"],
		"tokens":      tokenResults,
		"summary":     summary,
		"analyzed_at": time.Now().UTC(),
	}
	if ensName != "" {
		out["ens_name"] = ensName
	}
	a.remember("analyze_wallet", map[string]any{"address": address}, out)
	return out
}

// Ensure configuration errors surface early for required collaborators.
func (a *Web3Agent) validate() error {
	if a.registry == nil {
		return apperrors.New(apperrors.CodeInitializationFailure, "未配置工具注册表")
	}
	if a.providers == nil {
		return apperrors.New(apperrors.CodeInitializationFailure, "未配置链客户端注册表")
	}
	return nil
}

// Validate reports whether the agent has its required collaborators.
func (a *Web3Agent) Validate() error { return a.validate() }
