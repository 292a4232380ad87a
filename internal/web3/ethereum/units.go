package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	apperrors "Web3Agent-Chain/internal/errors"
)

// unitDecimals maps a unit name to its decimal exponent relative to wei.
var unitDecimals = map[string]int{
	"wei":        0,
	"kwei":       3,
	"mwei":       6,
	"gwei":       9,
	"microether": 12,
	"milliether": 15,
	"ether":      18,
	"eth":        18,
}

// UnitDecimals 返回单位对应的小数位数。
func UnitDecimals(unit string) (int, error) {
	d, ok := unitDecimals[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("不支持的单位: %s", unit))
	}
	return d, nil
}

// ParseUnits converts a decimal string amount expressed in a unit with the
// given number of decimals into its integer base representation. The
// conversion is exact; amounts with more fractional digits than the unit
// carries are rejected rather than rounded.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "金额不能为空")
	}
	neg := false
	if strings.HasPrefix(amount, "-") {
		neg = true
		amount = amount[1:]
	}
	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("金额 %s 的小数位超过单位精度 %d", amount, decimals))
	}
	frac += strings.Repeat("0", decimals-len(frac))
	digits := whole + frac
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("无法解析金额: %s", amount))
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}

// FormatUnits renders an integer base amount as a decimal string in a unit
// with the given number of decimals. Trailing fractional zeros are trimmed;
// FormatUnits(ParseUnits(x)) round-trips for any canonical x.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(amount)
	if amount.Sign() < 0 {
		sign = "-"
	}
	digits := abs.String()
	if decimals == 0 {
		return sign + digits
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	split := len(digits) - decimals
	whole, frac := digits[:split], strings.TrimRight(digits[split:], "0")
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}

// ConvertUnits converts a decimal amount between two named units exactly.
func ConvertUnits(amount, fromUnit, toUnit string) (string, error) {
	fromDec, err := UnitDecimals(fromUnit)
	if err != nil {
		return "", err
	}
	toDec, err := UnitDecimals(toUnit)
	if err != nil {
		return "", err
	}
	// Parse at a precision wide enough for either side so that e.g.
	// gwei -> ether keeps every digit.
	width := fromDec
	if toDec > width {
		width = toDec
	}
	base, err := ParseUnits(amount, width)
	if err != nil {
		return "", err
	}
	// base is amount * 10^width with the amount denominated in fromUnit;
	// rescale to wei first, then format in the target unit.
	shift := fromDec - width
	wei := new(big.Int).Set(base)
	if shift > 0 {
		wei.Mul(wei, pow10(shift))
	} else if shift < 0 {
		rem := new(big.Int)
		wei.QuoRem(wei, pow10(-shift), rem)
		if rem.Sign() != 0 {
			return "", apperrors.New(apperrors.CodeInvalidArgument,
				fmt.Sprintf("金额 %s 无法精确表示为 wei", amount))
		}
	}
	return FormatUnits(wei, toDec), nil
}

// EtherToWei converts a decimal ether amount to wei exactly.
func EtherToWei(amount string) (*big.Int, error) {
	return ParseUnits(amount, 18)
}

// WeiToEther formats a wei amount as a decimal ether string.
func WeiToEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
