package domain

import (
	"fmt"
	"math/big"
)

// Amounts and the fee rate are 18-decimal fixed-point integers, serialized
// as decimal strings on the wire and in storage.

// FeeScale is the denominator of the fee rate: FeeScale means 100%.
var FeeScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseAmount parses a non-negative base-unit decimal string.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// FormatAmount renders an amount as a decimal string. A nil amount is "0".
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ValidFeeRate reports whether rate is within [0, 100%].
func ValidFeeRate(rate *big.Int) bool {
	return rate != nil && rate.Sign() >= 0 && rate.Cmp(FeeScale) <= 0
}
