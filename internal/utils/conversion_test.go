package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount    sdkmath.Int
		precision int
		want      string
	}{
		{sdkmath.NewInt(1_500_000_000_000_000_000), 18, "1.500000000000000000"},
		{sdkmath.NewInt(913242009132420000), 18, "0.913242009132420000"},
		{sdkmath.NewInt(1_234_567), 6, "1.234567"},
		{sdkmath.NewInt(42), 0, "42"},
	}
	for _, tt := range tests {
		got, err := FormatUnits(tt.amount, tt.precision)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FormatUnits(sdkmath.NewInt(-1), 18)
	require.ErrorIs(t, err, ErrAmountNegative)
	_, err = FormatUnits(sdkmath.Int{}, 18)
	require.ErrorIs(t, err, ErrAmountNil)
	_, err = FormatUnits(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestParseUnits(t *testing.T) {
	got, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1_500_000_000_000_000_000), got)

	got, err = ParseUnits(" 0.000001 ", 6)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1), got)

	_, err = ParseUnits("-1", 18)
	require.ErrorIs(t, err, ErrAmountNegative)
	_, err = ParseUnits("abc", 18)
	require.ErrorIs(t, err, ErrConversionFailed)
	_, err = ParseUnits("", 18)
	require.ErrorIs(t, err, ErrConversionFailed)
}

func TestParseInt(t *testing.T) {
	got, err := ParseInt("913242009132420000")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(913242009132420000), got)

	_, err = ParseInt("1.5")
	require.ErrorIs(t, err, ErrConversionFailed)
	_, err = ParseInt("-3")
	require.ErrorIs(t, err, ErrAmountNegative)
}
