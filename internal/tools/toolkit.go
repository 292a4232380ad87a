package tools

import (
	"Web3Agent-Chain/internal/ipfs"
	"Web3Agent-Chain/internal/web3/provider"
)

// NewDefaultRegistry registers the full tool set against the given clients.
func NewDefaultRegistry(providers *provider.Registry, ipfsClient *ipfs.Client) *Registry {
	registry := NewRegistry()
	registry.Register(NewConnectionTool(providers))
	registry.Register(NewSmartContractTool(providers))
	registry.Register(NewTokenTool(providers))
	registry.Register(NewNFTTool(providers, ipfsClient))
	registry.Register(NewDeFiTool(providers))
	registry.Register(NewENSTool(providers))
	registry.Register(NewIPFSTool(ipfsClient))
	return registry
}
