// Package units converts raw on-chain integers into human-scale decimals.
package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LPDecimals is the precision of pair liquidity tokens.
const LPDecimals = 18

// ExponentToDecimal returns 10^decimals.
func ExponentToDecimal(decimals uint8) decimal.Decimal {
	return decimal.New(1, int32(decimals))
}

// ConvertTokenToDecimal scales a raw amount down by the token's precision.
// Zero decimals leaves the amount unscaled. A nil amount is zero.
func ConvertTokenToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	if decimals == 0 {
		return decimal.NewFromBigInt(raw, 0)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// SignificantDigits is the precision kept by Div, matching a 128-bit
// decimal float.
const SignificantDigits = 34

// Div returns a/b rounded to at least SignificantDigits significant digits,
// however small or large the quotient is. b must be non-zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		return decimal.Zero
	}
	// a/b lies in [10^(m-1), 10^(m+1)) where m is the magnitude difference.
	m := magnitude(a) - magnitude(b)
	places := SignificantDigits - m
	if places < 0 {
		places = 0
	}
	return a.DivRound(b, int32(places))
}

// SafeDiv returns a/b, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return Div(a, b)
}

// magnitude is the position of the leading digit: 10^(magnitude-1) <= |d| < 10^magnitude.
func magnitude(d decimal.Decimal) int {
	return d.NumDigits() + int(d.Exponent())
}
