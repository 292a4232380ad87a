package ethereum

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "Web3Agent-Chain/internal/errors"
)

var zeroAddress = common.Address{}

// IsENSName reports whether s looks like an ENS name rather than an address.
func IsENSName(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(s, ".") || strings.HasPrefix(s, "0x") {
		return false
	}
	return !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".")
}

// Namehash computes the EIP-137 node hash of an ENS name. Names are
// lowercased first; empty input hashes to the zero node.
func Namehash(name string) [32]byte {
	var node [32]byte
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}

// resolverFor looks up the resolver contract registered for a node.
func (c *Client) resolverFor(ctx context.Context, node [32]byte) (common.Address, error) {
	var resolver common.Address
	registry := common.HexToAddress(ENSRegistryAddress)
	if err := c.readInto(ctx, registry, registryABI, "resolver", []any{node}, &resolver); err != nil {
		return common.Address{}, err
	}
	if resolver == zeroAddress {
		return common.Address{}, apperrors.New(apperrors.CodeENSNotFound, "该名称未设置解析器")
	}
	return resolver, nil
}

// ResolveENS resolves an ENS name to its checksummed address.
func (c *Client) ResolveENS(ctx context.Context, name string) (string, error) {
	if !IsENSName(name) {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("无效的 ENS 名称: %s", name))
	}
	node := Namehash(name)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	var addr common.Address
	if err := c.readInto(ctx, resolver, resolverABI, "addr", []any{node}, &addr); err != nil {
		return "", err
	}
	if addr == zeroAddress {
		return "", apperrors.New(apperrors.CodeENSNotFound,
			fmt.Sprintf("名称未解析到地址: %s", name))
	}
	return addr.Hex(), nil
}

// ReverseResolveENS resolves an address back to its primary ENS name. The
// result is verified by forward-resolving the returned name.
func (c *Client) ReverseResolveENS(ctx context.Context, address string) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	reverse := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse"
	node := Namehash(reverse)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	var name string
	if err := c.readInto(ctx, resolver, resolverABI, "name", []any{node}, &name); err != nil {
		return "", err
	}
	if name == "" {
		return "", apperrors.New(apperrors.CodeENSNotFound,
			fmt.Sprintf("地址未设置反向解析: %s", addr.Hex()))
	}
	// Reverse records are claimable by anyone; only a matching forward
	// record makes the name authoritative.
	forward, err := c.ResolveENS(ctx, name)
	if err != nil || !strings.EqualFold(forward, addr.Hex()) {
		return "", apperrors.New(apperrors.CodeENSNotFound,
			fmt.Sprintf("反向解析结果未通过正向校验: %s", name))
	}
	return name, nil
}

// ENSText reads a text record, e.g. "url" or "com.twitter".
func (c *Client) ENSText(ctx context.Context, name, key string) (string, error) {
	if !IsENSName(name) {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("无效的 ENS 名称: %s", name))
	}
	node := Namehash(name)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	var value string
	if err := c.readInto(ctx, resolver, resolverABI, "text", []any{node, key}, &value); err != nil {
		return "", err
	}
	return value, nil
}

// ENSContentHash reads the raw contenthash record as a 0x-prefixed hex string.
func (c *Client) ENSContentHash(ctx context.Context, name string) (string, error) {
	if !IsENSName(name) {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("无效的 ENS 名称: %s", name))
	}
	node := Namehash(name)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	var raw []byte
	if err := c.readInto(ctx, resolver, resolverABI, "contenthash", []any{node}, &raw); err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", apperrors.New(apperrors.CodeENSNotFound,
			fmt.Sprintf("名称未设置 contenthash: %s", name))
	}
	return "0x" + hex.EncodeToString(raw), nil
}
