// Package provider manages the set of chain clients the runtime can reach.
// Clients are dialed lazily on first use and cached; connection status
// queries are memoized briefly so agent loops do not hammer the nodes.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"Web3Agent-Chain/internal/config"
	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/ethereum"
	"Web3Agent-Chain/internal/web3/solana"
	"Web3Agent-Chain/pkg/logger"
)

const statusTTL = 60 * time.Second

// Status 描述一个网络连接的探测结果。
type Status struct {
	Network     string        `json:"network"`
	NetworkType string        `json:"network_type"`
	Connected   bool          `json:"connected"`
	Snapshot    web3.Snapshot `json:"snapshot"`
	Error       string        `json:"error,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
}

// Registry owns the configured chain clients.
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]string // registry key -> rpc url
	clients   map[string]web3.Client
	status    *gocache.Cache
	rateLimit float64
	log       *slog.Logger
}

// NewRegistry builds a registry from the configured provider map, merged with
// the optional chains.yaml definitions. Unknown network families are rejected
// up front so misconfiguration fails at boot.
func NewRegistry(cfg config.Web3Config) (*Registry, error) {
	endpoints := make(map[string]string)
	for network, byType := range cfg.Providers {
		family := strings.ToLower(strings.TrimSpace(network))
		if family != web3.NetworkEthereum && family != web3.NetworkSolana {
			return nil, apperrors.New(apperrors.CodeUnsupportedNetwork,
				fmt.Sprintf("不支持的网络: %s", network))
		}
		for networkType, url := range byType {
			if strings.TrimSpace(url) == "" {
				continue
			}
			endpoints[web3.Key(family, networkType)] = url
		}
	}

	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, "加载链配置失败")
	}
	for name, def := range defs.Chains {
		family := strings.ToLower(strings.TrimSpace(def.Network))
		if family != web3.NetworkEthereum && family != web3.NetworkSolana {
			return nil, apperrors.New(apperrors.CodeUnsupportedNetwork,
				fmt.Sprintf("链 %s 指向不支持的网络: %s", name, def.Network))
		}
		if strings.TrimSpace(def.RPCURL) == "" {
			continue
		}
		// chains.yaml 优先级高于主配置的 provider 映射.
		endpoints[web3.Key(family, def.NetworkType)] = def.RPCURL
	}

	return &Registry{
		endpoints: endpoints,
		clients:   make(map[string]web3.Client),
		status:    gocache.New(statusTTL, 2*statusTTL),
		rateLimit: cfg.RateLimit,
		log:       logger.Named("web3.provider"),
	}, nil
}

// Networks lists the configured registry keys in no particular order.
func (r *Registry) Networks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.endpoints))
	for key := range r.endpoints {
		keys = append(keys, key)
	}
	return keys
}

// Client returns the client for a network pair, dialing it on first use.
func (r *Registry) Client(ctx context.Context, network, networkType string) (web3.Client, error) {
	key := web3.Key(network, networkType)
	r.mu.Lock()
	if client, ok := r.clients[key]; ok {
		r.mu.Unlock()
		return client, nil
	}
	endpoint, ok := r.endpoints[key]
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnsupportedNetwork,
			fmt.Sprintf("未配置网络: %s", key))
	}

	client, err := r.dial(ctx, network, networkType, endpoint)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have raced the dial; keep the first one.
	if existing, ok := r.clients[key]; ok {
		client.Close()
		return existing, nil
	}
	r.clients[key] = client
	return client, nil
}

func (r *Registry) dial(ctx context.Context, network, networkType, endpoint string) (web3.Client, error) {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case web3.NetworkEthereum:
		return ethereum.NewClient(ctx, ethereum.Config{
			NetworkType: strings.ToLower(strings.TrimSpace(networkType)),
			RPCURL:      endpoint,
			RateLimit:   r.rateLimit,
		})
	case web3.NetworkSolana:
		return solana.NewClient(ctx, solana.Config{
			NetworkType: strings.ToLower(strings.TrimSpace(networkType)),
			RPCURL:      endpoint,
		})
	default:
		return nil, apperrors.New(apperrors.CodeUnsupportedNetwork,
			fmt.Sprintf("不支持的网络: %s", network))
	}
}

// Ethereum returns the typed EVM client for a network type.
func (r *Registry) Ethereum(ctx context.Context, networkType string) (*ethereum.Client, error) {
	client, err := r.Client(ctx, web3.NetworkEthereum, networkType)
	if err != nil {
		return nil, err
	}
	typed, ok := client.(*ethereum.Client)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnsupportedNetwork, "注册的客户端不是以太坊实现")
	}
	return typed, nil
}

// Solana returns the typed Solana client for a network type.
func (r *Registry) Solana(ctx context.Context, networkType string) (*solana.Client, error) {
	client, err := r.Client(ctx, web3.NetworkSolana, networkType)
	if err != nil {
		return nil, err
	}
	typed, ok := client.(*solana.Client)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnsupportedNetwork, "注册的客户端不是 Solana 实现")
	}
	return typed, nil
}

// CheckStatus probes a network connection. Results are served from a short
// lived cache unless forceReconnect is set, which also drops the client so
// the next use redials.
func (r *Registry) CheckStatus(ctx context.Context, network, networkType string, forceReconnect bool) Status {
	key := web3.Key(network, networkType)
	if forceReconnect {
		r.dropClient(key)
		r.status.Delete(key)
	} else if cached, ok := r.status.Get(key); ok {
		return cached.(Status)
	}

	status := Status{
		Network:     strings.ToLower(strings.TrimSpace(network)),
		NetworkType: strings.ToLower(strings.TrimSpace(networkType)),
		CheckedAt:   time.Now().UTC(),
	}
	client, err := r.Client(ctx, network, networkType)
	if err != nil {
		status.Error = err.Error()
		r.status.Set(key, status, gocache.DefaultExpiration)
		return status
	}
	snapshot, err := client.FetchSnapshot(ctx)
	if err != nil {
		status.Error = err.Error()
		// A dead connection should not linger; the next check redials.
		r.dropClient(key)
	} else {
		status.Connected = true
		status.Snapshot = snapshot
	}
	r.status.Set(key, status, gocache.DefaultExpiration)
	return status
}

// CheckAll probes every configured network sequentially.
func (r *Registry) CheckAll(ctx context.Context, forceReconnect bool) []Status {
	keys := r.Networks()
	statuses := make([]Status, 0, len(keys))
	for _, key := range keys {
		parts := strings.SplitN(key, ":", 2)
		statuses = append(statuses, r.CheckStatus(ctx, parts[0], parts[1], forceReconnect))
	}
	return statuses
}

func (r *Registry) dropClient(key string) {
	r.mu.Lock()
	client, ok := r.clients[key]
	if ok {
		delete(r.clients, key)
	}
	r.mu.Unlock()
	if ok {
		client.Close()
	}
}

// Close releases every dialed client.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, client := range r.clients {
		client.Close()
		delete(r.clients, key)
	}
}
