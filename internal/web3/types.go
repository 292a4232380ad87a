package web3

import (
	"context"
	"net/url"
	"strings"
)

// Supported network families.
const (
	NetworkEthereum = "ethereum"
	NetworkSolana   = "solana"
)

// Common network types.
const (
	TypeMainnet = "mainnet"
	TypeSepolia = "sepolia"
	TypeDevnet  = "devnet"
)

// Snapshot represents summarized network metadata for status reporting.
type Snapshot struct {
	Network     string
	NetworkType string
	ChainID     string
	BlockNumber uint64
	Provider    string
}

// Client defines the common interface that any chain implementation must
// provide so higher layers can interact with different networks uniformly.
// Network-specific capabilities are reached by asserting to the concrete
// client type, mirroring how tool dispatch branches on the network name.
type Client interface {
	Network() string
	NetworkType() string
	FetchSnapshot(ctx context.Context) (Snapshot, error)
	Healthy(ctx context.Context) bool
	Close()
}

// Key builds the registry key for a network and network type pair.
func Key(network, networkType string) string {
	return strings.ToLower(strings.TrimSpace(network)) + ":" + strings.ToLower(strings.TrimSpace(networkType))
}

// MaskProviderURL hides credential-bearing path segments and query values so
// endpoints can be echoed back in results without leaking API keys.
func MaskProviderURL(provider string) string {
	parsed, err := url.Parse(provider)
	if err != nil {
		return provider
	}
	masked := false
	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			lower := strings.ToLower(key)
			if strings.Contains(lower, "key") || strings.Contains(lower, "token") {
				query.Set(key, "***")
				masked = true
			}
		}
		if masked {
			parsed.RawQuery = query.Encode()
		}
	}
	// Alchemy/Infura style endpoints carry the key as the last path segment.
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) > 0 {
		last := segments[len(segments)-1]
		if len(last) >= 20 && !strings.ContainsAny(last, ".") {
			segments[len(segments)-1] = last[:3] + "..." + last[len(last)-2:]
			parsed.Path = "/" + strings.Join(segments, "/")
		}
	}
	return parsed.String()
}
