// internal/utils/money.go
package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultMaxFractionDigits is used when callers do not care about precision.
	DefaultMaxFractionDigits = 6

	// InvalidAmount is returned instead of an error on malformed input.
	InvalidAmount = "N/A"

	// MaxTokenDecimals bounds token decimals; a uint256 has 78 decimal digits.
	MaxTokenDecimals = 77
)

// ParseBaseUnits parses a non-negative integer amount given in decimal or 0x-prefixed hex.
func ParseBaseUnits(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}

	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// FormatBaseUnits renders an amount in smallest units as a decimal string. Fraction digits past
// maxFractionDigits are truncated, never rounded, and trailing zeros are trimmed.
func FormatBaseUnits(amount *big.Int, decimals, maxFractionDigits int) string {
	if amount == nil || amount.Sign() < 0 || decimals < 0 || decimals > MaxTokenDecimals || maxFractionDigits < 0 {
		return InvalidAmount
	}
	if amount.Sign() == 0 {
		return "0"
	}

	digits := amount.String()
	if decimals == 0 {
		return digits
	}

	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-decimals]
	fraction := digits[len(digits)-decimals:]

	if len(fraction) > maxFractionDigits {
		fraction = fraction[:maxFractionDigits]
	}
	fraction = strings.TrimRight(fraction, "0")

	if fraction == "" {
		return whole
	}
	return whole + "." + fraction
}

// FormatBaseUnitsString is FormatBaseUnits for amounts that arrive as strings in upstream JSON.
func FormatBaseUnitsString(amount string, decimals, maxFractionDigits int) string {
	n, ok := ParseBaseUnits(amount)
	if !ok {
		return InvalidAmount
	}
	return FormatBaseUnits(n, decimals, maxFractionDigits)
}

// ToDecimal converts base units into an exact decimal token amount.
func ToDecimal(amount *big.Int, decimals int) decimal.Decimal {
	if amount == nil || decimals < 0 || decimals > MaxTokenDecimals {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, int32(-decimals))
}

// ComputeUSDValue returns the USD value of amount at rate. A nil rate means no price is known.
func ComputeUSDValue(amount *big.Int, decimals int, rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return decimal.Zero
	}
	return ToDecimal(amount, decimals).Mul(*rate)
}

// FormatUSD renders value as dollars rounded to cents, e.g. "$3.00" or "-$0.25".
func FormatUSD(value decimal.Decimal) string {
	if value.IsNegative() {
		return "-$" + value.Neg().StringFixed(2)
	}
	return "$" + value.StringFixed(2)
}

// FormatDecimal renders a token amount that is already in human units, truncating past
// maxFractionDigits.
func FormatDecimal(d decimal.Decimal, maxFractionDigits int) string {
	if d.IsNegative() || maxFractionDigits < 0 {
		return InvalidAmount
	}
	return d.Truncate(int32(maxFractionDigits)).String()
}
