// Package ipfs provides content addressing helpers and a gateway client for
// fetching and publishing IPFS content.
package ipfs

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	apperrors "Web3Agent-Chain/internal/errors"
)

// IsCID reports whether s parses as a CID of any version.
func IsCID(s string) bool {
	_, err := cid.Decode(s)
	return err == nil
}

// ParseCID decodes s into a CID, returning a typed error on failure.
func ParseCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, apperrors.Wrap(apperrors.CodeInvalidCID, err,
			fmt.Sprintf("无效的 CID: %s", s))
	}
	return c, nil
}

// ToV1 returns the CIDv1 form of s. V1 input is returned unchanged.
func ToV1(s string) (string, error) {
	c, err := ParseCID(s)
	if err != nil {
		return "", err
	}
	if c.Version() == 1 {
		return c.String(), nil
	}
	return cid.NewCidV1(c.Type(), c.Hash()).String(), nil
}

// ToV0 returns the base58 CIDv0 form of s. Only dag-pb sha2-256 content has a
// v0 representation.
func ToV0(s string) (string, error) {
	c, err := ParseCID(s)
	if err != nil {
		return "", err
	}
	if c.Version() == 0 {
		return c.String(), nil
	}
	if c.Type() != cid.DagProtobuf {
		return "", apperrors.New(apperrors.CodeInvalidCID,
			fmt.Sprintf("只有 dag-pb 内容才有 CIDv0 形式, 实际编码为 %d", c.Type()))
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil || decoded.Code != multihash.SHA2_256 {
		return "", apperrors.New(apperrors.CodeInvalidCID, "CIDv0 只支持 sha2-256 摘要")
	}
	return cid.NewCidV0(c.Hash()).String(), nil
}

// ComputeCID derives the CIDv1 of raw bytes using sha2-256, matching what a
// gateway returns for `ipfs add --cid-version=1 --raw-leaves` of small files.
func ComputeCID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidCID, err, "计算内容摘要失败")
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
