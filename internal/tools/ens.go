package tools

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/ethereum"
	"Web3Agent-Chain/internal/web3/provider"
)

const ensCacheTTL = 10 * time.Minute

// ENSTool 解析 ENS 名称与地址。
type ENSTool struct {
	registry *provider.Registry
	cache    *gocache.Cache
}

// NewENSTool wires the ENS tool to the provider registry.
func NewENSTool(registry *provider.Registry) *ENSTool {
	return &ENSTool{
		registry: registry,
		cache:    gocache.New(ensCacheTTL, 2*ensCacheTTL),
	}
}

func (t *ENSTool) Name() string { return "ens" }

func (t *ENSTool) Description() string {
	return "ENS 操作: 正向解析、反向解析、文本记录、contenthash"
}

// Execute dispatches ENS lookups. The registry contract only lives on
// mainnet, so other network types are rejected up front.
func (t *ENSTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	network, networkType := networkParams(params)
	if network != web3.NetworkEthereum || networkType != web3.TypeMainnet {
		return Failf(apperrors.CodeUnsupportedNetwork,
			"ENS 只在以太坊主网可用, 实际为 %s:%s", network, networkType)
	}
	client, err := t.registry.Ethereum(ctx, networkType)
	if err != nil {
		return Fail(err)
	}
	action := actionOf(params)
	switch action {
	case "resolve", "":
		return t.cached(params, "resolve:"+strings.ToLower(stringParam(params, "name")), func() map[string]any {
			return t.resolve(ctx, client, params)
		})
	case "lookup", "reverse":
		return t.cached(params, "lookup:"+strings.ToLower(stringParam(params, "address")), func() map[string]any {
			return t.lookup(ctx, client, params)
		})
	case "get_text_record", "text":
		key := strings.ToLower(stringParam(params, "name")) + "|" + stringParam(params, "key")
		return t.cached(params, "text:"+key, func() map[string]any {
			return t.textRecord(ctx, client, params)
		})
	case "get_content_hash", "contenthash":
		return t.cached(params, "contenthash:"+strings.ToLower(stringParam(params, "name")), func() map[string]any {
			return t.contentHash(ctx, client, params)
		})
	default:
		return failUnknownAction(t.Name(), action)
	}
}

// cached memoizes successful lookups unless force_refresh is set.
func (t *ENSTool) cached(params map[string]any, key string, lookup func() map[string]any) map[string]any {
	if !boolParam(params, "force_refresh") {
		if hit, ok := t.cache.Get(key); ok {
			out := hit.(map[string]any)
			copied := make(map[string]any, len(out)+1)
			for k, v := range out {
				copied[k] = v
			}
			copied["from_cache"] = true
			return copied
		}
	}
	result := lookup()
	if result["status"] == StatusOK {
		t.cache.Set(key, result, gocache.DefaultExpiration)
	}
	return result
}

func (t *ENSTool) resolve(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	name, err := requireString(params, "name")
	if err != nil {
		return Fail(err)
	}
	address, err := client.ResolveENS(ctx, name)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"name":    strings.ToLower(name),
		"address": address,
	})
}

func (t *ENSTool) lookup(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	address, err := requireString(params, "address")
	if err != nil {
		return Fail(err)
	}
	name, err := client.ReverseResolveENS(ctx, address)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"address": ethereum.ChecksumAddress(address),
		"name":    name,
	})
}

func (t *ENSTool) textRecord(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	name, err := requireString(params, "name")
	if err != nil {
		return Fail(err)
	}
	key, err := requireString(params, "key")
	if err != nil {
		return Fail(err)
	}
	value, err := client.ENSText(ctx, name, key)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"name":  strings.ToLower(name),
		"key":   key,
		"value": value,
	})
}

func (t *ENSTool) contentHash(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	name, err := requireString(params, "name")
	if err != nil {
		return Fail(err)
	}
	hash, err := client.ENSContentHash(ctx, name)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"name":         strings.ToLower(name),
		"content_hash": hash,
	})
}
