package tx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// Validation errors.
var (
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDestination = errors.New("invalid destination address")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidVoteOption  = errors.New("invalid vote option")
	ErrMemoTooLong        = errors.New("memo too long")
)

// MaxMemoLength is the longest memo the chain accepts, in bytes.
const MaxMemoLength = 128

func checkSymbol(symbol string) error {
	if symbol == "" || strings.ContainsAny(symbol, " \t\n\"") {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// checkAmount converts a decimal amount to chain fixed-point and rejects
// values that truncate to zero or below or overflow the fixed-point range.
func checkAmount(d decimal.Decimal) (int64, error) {
	v, err := types.ToChainAmount(d)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	return v, nil
}

func checkMemo(memo string) error {
	if len(memo) > MaxMemoLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrMemoTooLong, len(memo), MaxMemoLength)
	}
	return nil
}
