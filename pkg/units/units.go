// Package units converts between decimal text and fixed-point token amounts.
//
// Amounts go through shopspring/decimal and big.Int; no floating point is involved, so
// Format(Parse(s, d), d) reproduces s for any s with at most d fractional digits.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyAmount is returned for blank input
	ErrEmptyAmount = errors.New("amount is empty")
	// ErrInvalidAmount is returned for text that is not a non-negative decimal
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrTooManyDecimals is returned when the fraction exceeds the token precision
	ErrTooManyDecimals = errors.New("too many decimal places")
)

// BasisPoints is the denominator for slippage percentages (10000 = 100%)
const BasisPoints = 10000

// Parse converts decimal text such as "1.5" into base units for the given precision
func Parse(text string, decimals uint8) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAmount
	}

	d, err := parseDecimal(text)
	if err != nil {
		return nil, err
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d", ErrTooManyDecimals, text, decimals)
	}
	return shifted.BigInt(), nil
}

// Format renders base units as decimal text with trailing fractional zeros removed
func Format(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// IsZero reports whether text is blank or parses to zero. Malformed text is not zero.
func IsZero(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || text == "." {
		return true
	}
	d, err := parseDecimal(text)
	return err == nil && d.IsZero()
}

// ApplySlippage reduces amount by bps basis points, rounding down
func ApplySlippage(amount *big.Int, bps uint) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	if bps >= BasisPoints {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(BasisPoints-bps)))
	return out.Quo(out, big.NewInt(BasisPoints))
}

// parseDecimal accepts plain non-negative decimals only: no sign, no exponent
func parseDecimal(text string) (decimal.Decimal, error) {
	if strings.ContainsAny(text, "+-eE") {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	return d, nil
}
