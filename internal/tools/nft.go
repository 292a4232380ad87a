package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/ipfs"
	"Web3Agent-Chain/internal/web3"
	"Web3Agent-Chain/internal/web3/ethereum"
	"Web3Agent-Chain/internal/web3/provider"
)

const nftMetadataTTL = 10 * time.Minute

// NFTTool 查询与转移 NFT。
type NFTTool struct {
	registry *provider.Registry
	ipfs     *ipfs.Client
	metadata *gocache.Cache
}

// NewNFTTool wires the NFT tool to the provider registry and the IPFS client
// used to resolve ipfs:// metadata URIs.
func NewNFTTool(registry *provider.Registry, ipfsClient *ipfs.Client) *NFTTool {
	return &NFTTool{
		registry: registry,
		ipfs:     ipfsClient,
		metadata: gocache.New(nftMetadataTTL, 2*nftMetadataTTL),
	}
}

func (t *NFTTool) Name() string { return "nft" }

func (t *NFTTool) Description() string {
	return "NFT 操作: 元数据查询、持有人查询、转移、ERC-1155 余额"
}

func (t *NFTTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	network, networkType := networkParams(params)
	if network != web3.NetworkEthereum {
		return Failf(apperrors.CodeUnsupportedNetwork, "NFT 工具只支持以太坊网络, 实际为 %s", network)
	}
	client, err := t.registry.Ethereum(ctx, networkType)
	if err != nil {
		return Fail(err)
	}
	switch action := actionOf(params); action {
	case "get_metadata", "metadata", "":
		return t.getMetadata(ctx, client, params)
	case "get_owner", "owner":
		return t.getOwner(ctx, client, params)
	case "transfer":
		return t.transfer(ctx, client, params)
	case "erc1155_balance":
		return t.erc1155Balance(ctx, client, params)
	case "collection_info":
		return t.collectionInfo(ctx, client, params)
	default:
		return failUnknownAction(t.Name(), action)
	}
}

func nftParams(params map[string]any) (contract string, tokenID *big.Int, err error) {
	if contract, err = requireString(params, "contract_address"); err != nil {
		return
	}
	raw, err := requireString(params, "token_id")
	if err != nil {
		return
	}
	tokenID, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		err = apperrors.New(apperrors.CodeInvalidArgument, "token_id 必须是十进制整数")
	}
	return contract, tokenID, err
}

func (t *NFTTool) getMetadata(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	contract, tokenID, err := nftParams(params)
	if err != nil {
		return Fail(err)
	}
	forceRefresh := boolParam(params, "force_refresh")
	cacheKey := strings.ToLower(contract) + "#" + tokenID.String()
	if !forceRefresh {
		if cached, ok := t.metadata.Get(cacheKey); ok {
			result := cached.(map[string]any)
			out := OK(result)
			out["from_cache"] = true
			return out
		}
	}

	uri, err := client.NFTTokenURI(ctx, contract, tokenID)
	if err != nil {
		// ERC-1155 collections expose uri() instead of tokenURI().
		uri, err = client.ERC1155URI(ctx, contract, tokenID)
		if err != nil {
			return Fail(err)
		}
		// The uri() template embeds the id as 64 hex digits.
		uri = strings.ReplaceAll(uri, "{id}", fmt.Sprintf("%064x", tokenID))
	}

	fields := map[string]any{
		"contract":  ethereum.ChecksumAddress(contract),
		"token_id":  tokenID.String(),
		"token_uri": uri,
	}
	if metadata := t.resolveMetadata(ctx, uri, forceRefresh); metadata != nil {
		fields["metadata"] = metadata
	}
	t.metadata.Set(cacheKey, fields, gocache.DefaultExpiration)
	return OK(fields)
}

// resolveMetadata fetches and decodes the metadata document when the URI is
// reachable through IPFS. Unreachable or non-IPFS URIs degrade to nil rather
// than failing the whole lookup.
func (t *NFTTool) resolveMetadata(ctx context.Context, uri string, forceRefresh bool) map[string]any {
	if t.ipfs == nil || !strings.HasPrefix(strings.ToLower(uri), "ipfs:") {
		return nil
	}
	content, err := t.ipfs.Fetch(ctx, uri, forceRefresh)
	if err != nil {
		return nil
	}
	var metadata map[string]any
	if json.Unmarshal(content.Data, &metadata) != nil {
		return nil
	}
	return metadata
}

func (t *NFTTool) getOwner(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	contract, tokenID, err := nftParams(params)
	if err != nil {
		return Fail(err)
	}
	owner, err := client.NFTOwner(ctx, contract, tokenID)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"contract": ethereum.ChecksumAddress(contract),
		"token_id": tokenID.String(),
		"owner":    owner,
	})
}

func (t *NFTTool) transfer(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	contract, tokenID, err := nftParams(params)
	if err != nil {
		return Fail(err)
	}
	privateKey, err := requireString(params, "private_key")
	if err != nil {
		return Fail(err)
	}
	to, err := requireString(params, "to_address")
	if err != nil {
		return Fail(err)
	}
	from := stringParam(params, "from_address")
	if from == "" {
		if from, err = ethereum.PublicAddressFromKey(privateKey); err != nil {
			return Fail(err)
		}
	}
	tx, err := client.TransferNFT(ctx, privateKey, contract, from, to, tokenID)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"tx_hash":  tx.Hash,
		"contract": ethereum.ChecksumAddress(contract),
		"token_id": tokenID.String(),
		"from":     ethereum.ChecksumAddress(from),
		"to":       ethereum.ChecksumAddress(to),
	})
}

func (t *NFTTool) erc1155Balance(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	contract, tokenID, err := nftParams(params)
	if err != nil {
		return Fail(err)
	}
	account, err := requireString(params, "address")
	if err != nil {
		return Fail(err)
	}
	balance, err := client.ERC1155Balance(ctx, contract, account, tokenID)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"contract": ethereum.ChecksumAddress(contract),
		"token_id": tokenID.String(),
		"address":  ethereum.ChecksumAddress(account),
		"balance":  balance.String(),
	})
}

func (t *NFTTool) collectionInfo(ctx context.Context, client *ethereum.Client, params map[string]any) map[string]any {
	contract, err := requireString(params, "contract_address")
	if err != nil {
		return Fail(err)
	}
	name, symbol, err := client.NFTCollectionInfo(ctx, contract)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"contract": ethereum.ChecksumAddress(contract),
		"name":     name,
		"symbol":   symbol,
	})
}
