/*
This file contains helpers for converting between raw token amounts (smallest unit)
and human readable decimal strings, used by the API and the config loader.
*/

package utils

import (
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrConversionFailed = errors.New("conversion failed")
)

func pow10(precision int) sdkmath.LegacyDec {
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}
	return factor
}

// FormatUnits renders a raw amount as a decimal string with the given precision.
// FormatUnits(1500000000000000000, 18) == "1.500000000000000000".
func FormatUnits(amount sdkmath.Int, precision int) (string, error) {
	if precision < 0 || precision > 18 {
		return "", fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}
	if amount.IsNegative() {
		return "", ErrAmountNegative
	}

	dec := sdkmath.LegacyNewDecFromInt(amount).Quo(pow10(precision))
	s := dec.String()
	// LegacyDec always prints 18 decimals; trim to the requested precision.
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		if precision == 0 {
			return s[:dot], nil
		}
		return s[:dot+1+precision], nil
	}
	return s, nil
}

// ParseUnits converts a decimal string ("1.5") into a raw amount with the given precision.
func ParseUnits(value string, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty value", ErrConversionFailed)
	}
	if strings.HasPrefix(value, "-") {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	dec, err := sdkmath.LegacyNewDecFromStr(value)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	return dec.Mul(pow10(precision)).TruncateInt(), nil
}

// ParseInt parses a base-10 raw amount ("913242009132420000").
func ParseInt(value string) (sdkmath.Int, error) {
	i, ok := sdkmath.NewIntFromString(strings.TrimSpace(value))
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, value)
	}
	if i.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return i, nil
}
