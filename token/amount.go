package token

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrValidation is returned when a user supplied amount, supply or decimals value is not a
// finite, strictly positive number or does not fit the token.
var ErrValidation = errors.New("validation error")

// maxUint256Bits is the width of an EVM word.
const maxUint256Bits = 256

// ParseDecimals parses a decimals value, a strictly positive integer that fits in a uint8.
func ParseDecimals(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	d, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: decimals %q must be an integer between 1 and 255", ErrValidation, s)
	}
	if d == 0 {
		return 0, fmt.Errorf("%w: decimals must be greater than zero", ErrValidation)
	}

	return uint8(d), nil
}

// ParseUnits converts a human readable amount such as "0.001" into the token's smallest unit,
// i.e. amount × 10^decimals, with arbitrary precision. The amount must be strictly positive, must
// not have more fractional digits than decimals and the result must fit in 256 bits.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	d, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrValidation, amount, decimals)
	}

	units := scaled.BigInt()
	if units.BitLen() > maxUint256Bits {
		return nil, fmt.Errorf("%w: %q overflows uint256 at %d decimals", ErrValidation, amount, decimals)
	}

	return units, nil
}

// ValidateAmount checks that amount is a strictly positive number. Whether it fits the token's
// decimals is only known once they are read from the chain, see ParseUnits.
func ValidateAmount(amount string) error {
	_, err := parseAmount(strings.TrimSpace(amount))

	return err
}

func parseAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", ErrValidation, amount)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q must be greater than zero", ErrValidation, amount)
	}

	return d, nil
}

// FormatUnits renders an amount in the smallest unit as a decimal string with the given number of
// decimals, without trailing zeros.
func FormatUnits(units *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(units, -int32(decimals)).String()
}
