package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NFTOwner returns the current owner of an ERC721 token id.
func (c *Client) NFTOwner(ctx context.Context, contract string, tokenID *big.Int) (string, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return "", err
	}
	var owner common.Address
	if err := c.readInto(ctx, addr, erc721ABI, "ownerOf", []any{tokenID}, &owner); err != nil {
		return "", err
	}
	return owner.Hex(), nil
}

// NFTTokenURI returns the metadata URI of an ERC721 token id.
func (c *Client) NFTTokenURI(ctx context.Context, contract string, tokenID *big.Int) (string, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return "", err
	}
	var uri string
	if err := c.readInto(ctx, addr, erc721ABI, "tokenURI", []any{tokenID}, &uri); err != nil {
		return "", err
	}
	return uri, nil
}

// NFTBalance returns how many tokens of an ERC721 collection owner holds.
func (c *Client) NFTBalance(ctx context.Context, contract, owner string) (*big.Int, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := ParseAddress(owner)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if err := c.readInto(ctx, addr, erc721ABI, "balanceOf", []any{ownerAddr}, &balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// NFTCollectionInfo reads the name and symbol of an ERC721 collection.
func (c *Client) NFTCollectionInfo(ctx context.Context, contract string) (name, symbol string, err error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return "", "", err
	}
	if err := c.readInto(ctx, addr, erc721ABI, "name", nil, &name); err != nil {
		return "", "", err
	}
	if err := c.readInto(ctx, addr, erc721ABI, "symbol", nil, &symbol); err != nil {
		return "", "", err
	}
	return name, symbol, nil
}

// TransferNFT moves an ERC721 token between addresses. The key must control
// the from address or hold operator approval.
func (c *Client) TransferNFT(ctx context.Context, privateKeyHex, contract, from, to string, tokenID *big.Int) (*TxResult, error) {
	contractAddr, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	fromAddr, err := ParseAddress(from)
	if err != nil {
		return nil, err
	}
	toAddr, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}
	return c.TransactMethod(ctx, TxRequest{PrivateKeyHex: privateKeyHex, To: contractAddr},
		ERC721ABI, "transferFrom", []any{fromAddr, toAddr, tokenID})
}

// ERC1155Balance returns the balance account holds of a single ERC1155 id.
func (c *Client) ERC1155Balance(ctx context.Context, contract, account string, id *big.Int) (*big.Int, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	accountAddr, err := ParseAddress(account)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if err := c.readInto(ctx, addr, erc1155ABI, "balanceOf", []any{accountAddr, id}, &balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// ERC1155URI returns the metadata URI template of an ERC1155 id.
func (c *Client) ERC1155URI(ctx context.Context, contract string, id *big.Int) (string, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return "", err
	}
	var uri string
	if err := c.readInto(ctx, addr, erc1155ABI, "uri", []any{id}, &uri); err != nil {
		return "", err
	}
	return uri, nil
}
