package utils

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hummus-exchange/farm/internal/types"
)

// maxUint256 is 2^256-1.
var maxUint256 = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

func TestSafeArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      func() (sdkmath.Int, error)
		want    sdkmath.Int
		wantErr bool
	}{
		{"add", func() (sdkmath.Int, error) { return SafeAdd(sdkmath.NewInt(2), sdkmath.NewInt(3)) }, sdkmath.NewInt(5), false},
		{"add overflow", func() (sdkmath.Int, error) { return SafeAdd(maxUint256, sdkmath.OneInt()) }, sdkmath.Int{}, true},
		{"sub", func() (sdkmath.Int, error) { return SafeSub(sdkmath.NewInt(5), sdkmath.NewInt(3)) }, sdkmath.NewInt(2), false},
		{"sub underflow", func() (sdkmath.Int, error) { return SafeSub(sdkmath.NewInt(3), sdkmath.NewInt(5)) }, sdkmath.Int{}, true},
		{"mul", func() (sdkmath.Int, error) { return SafeMul(sdkmath.NewInt(6), sdkmath.NewInt(7)) }, sdkmath.NewInt(42), false},
		{"mul overflow", func() (sdkmath.Int, error) { return SafeMul(maxUint256, sdkmath.NewInt(2)) }, sdkmath.Int{}, true},
		{"muldiv floors", func() (sdkmath.Int, error) {
			return SafeMulDiv(sdkmath.NewInt(10), sdkmath.NewInt(1), sdkmath.NewInt(3))
		}, sdkmath.NewInt(3), false},
		{"muldiv wide product", func() (sdkmath.Int, error) { return SafeMulDiv(maxUint256, maxUint256, maxUint256) }, maxUint256, false},
		{"muldiv by zero", func() (sdkmath.Int, error) {
			return SafeMulDiv(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
		}, sdkmath.Int{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op()
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrArithmeticOverflow)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCheckedKeepsFirstError(t *testing.T) {
	var c Checked
	x := c.Add(c.Mul(sdkmath.NewInt(3), sdkmath.NewInt(4)), sdkmath.NewInt(1))
	require.NoError(t, c.Err())
	assert.Equal(t, sdkmath.NewInt(13), x)

	_ = c.Sub(sdkmath.ZeroInt(), sdkmath.OneInt())
	first := c.Err()
	require.ErrorIs(t, first, types.ErrArithmeticOverflow)

	assert.True(t, c.MulDiv(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt()).IsZero())
	assert.Equal(t, first, c.Err())
}

func TestSortAddresses(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x0a")
	c := common.HexToAddress("0xff00000000000000000000000000000000000000")
	addrs := []types.Address{c, a, b}
	SortAddresses(addrs)
	assert.Equal(t, []types.Address{a, b, c}, addrs)
}
