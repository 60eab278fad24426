package types

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of chain fixed-point amounts.
const Decimals = 8

// ErrAmountOutOfRange is returned for amounts that do not fit the chain's
// signed 64-bit fixed-point representation.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	maxChainAmount = decimal.NewFromInt(math.MaxInt64)
	minChainAmount = decimal.NewFromInt(math.MinInt64)
)

// ToChainAmount scales a decimal token amount by 10^8 and truncates it to
// an integer, as encoded in message bodies and sign docs.
func ToChainAmount(d decimal.Decimal) (int64, error) {
	v := d.Shift(Decimals).Truncate(0)
	if v.GreaterThan(maxChainAmount) || v.LessThan(minChainAmount) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d.String())
	}
	return v.IntPart(), nil
}

// FromChainAmount converts a fixed-point integer back to a decimal amount.
func FromChainAmount(v int64) decimal.Decimal {
	return decimal.New(v, -Decimals)
}

// ParseAmount parses a decimal string such as "199.97207842".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
