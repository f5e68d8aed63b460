package model

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	weiPerEther = decimal.New(1, 18)

	ErrNegativeAmount = errors.New("amount must not be negative")
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// ParseEther converts a decimal ether amount such as "0.01" into wei.
// Amounts with more than 18 fractional digits cannot be represented exactly and are rejected.
func ParseEther(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	wei := d.Mul(weiPerEther)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("ether amount %q has more than 18 decimals", amount)
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount in ether. Display only.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}

// FormatGwei renders a wei amount divided by 1e9. Display only.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).String()
}

// zeroIfNil returns a copy of v, or zero when v is nil.
func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
