package solana

import (
	"fmt"

	"github.com/mr-tron/base58"

	apperrors "Web3Agent-Chain/internal/errors"
)

// IsAddress reports whether s is a valid Solana account address, i.e. the
// base58 encoding of a 32 byte ed25519 public key.
func IsAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(raw) == 32
}

// ValidateAddress returns a typed error when s is not a valid address.
func ValidateAddress(s string) error {
	if !IsAddress(s) {
		return apperrors.New(apperrors.CodeInvalidAddress,
			fmt.Sprintf("无效的 Solana 地址: %s", s))
	}
	return nil
}
