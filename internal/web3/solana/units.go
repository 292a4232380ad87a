package solana

import (
	"fmt"
	"math/big"
	"strings"

	apperrors "Web3Agent-Chain/internal/errors"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// LamportsToSOL formats a lamport amount as a decimal SOL string without any
// floating point rounding.
func LamportsToSOL(lamports uint64) string {
	whole := lamports / LamportsPerSOL
	frac := lamports % LamportsPerSOL
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

// SOLToLamports parses a decimal SOL string into lamports exactly.
func SOLToLamports(amount string) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return 0, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("无效的 SOL 金额: %q", amount))
	}
	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 9 {
		return 0, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("SOL 金额小数位不能超过 9 位: %s", amount))
	}
	frac += strings.Repeat("0", 9-len(frac))
	total, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return 0, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("无法解析 SOL 金额: %s", amount))
	}
	if !total.IsUint64() {
		return 0, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("SOL 金额超出范围: %s", amount))
	}
	return total.Uint64(), nil
}
