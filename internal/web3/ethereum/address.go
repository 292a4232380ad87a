package ethereum

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "Web3Agent-Chain/internal/errors"
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsAddress reports whether s is a syntactically valid Ethereum address.
// Mixed-case input must additionally carry a valid EIP-55 checksum; all-lower
// and all-upper hex is accepted without one.
func IsAddress(s string) bool {
	if !hexAddressPattern.MatchString(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return ChecksumAddress(strings.ToLower(s)) == s
}

// ChecksumAddress returns the EIP-55 checksummed form of a valid address.
// The input casing is ignored.
func ChecksumAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// ParseAddress validates s and returns its common.Address form.
func ParseAddress(s string) (common.Address, error) {
	if !IsAddress(s) {
		return common.Address{}, apperrors.New(apperrors.CodeInvalidAddress,
			fmt.Sprintf("无效的以太坊地址: %s", s))
	}
	return common.HexToAddress(s), nil
}

// PublicAddressFromKey derives the checksummed address controlled by a hex
// encoded secp256k1 private key.
func PublicAddressFromKey(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析私钥失败")
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
