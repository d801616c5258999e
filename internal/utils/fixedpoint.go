/*
Checked 256-bit arithmetic for the reward accumulators.

sdkmath.Int panics once a result exceeds 256 bits. The helpers below check the bit
length on the intermediate big.Int first and return types.ErrArithmeticOverflow
instead, so a failing operation aborts before it writes any state.
*/

package utils

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
)

func bounded(r *big.Int, op string, a, b sdkmath.Int) (sdkmath.Int, error) {
	if r.Sign() < 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s %s %s underflows", types.ErrArithmeticOverflow, a, op, b)
	}
	if r.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s %s %s", types.ErrArithmeticOverflow, a, op, b)
	}
	return sdkmath.NewIntFromBigInt(r), nil
}

// SafeAdd returns a+b.
func SafeAdd(a, b sdkmath.Int) (sdkmath.Int, error) {
	return bounded(new(big.Int).Add(a.BigInt(), b.BigInt()), "+", a, b)
}

// SafeSub returns a-b. A negative result is treated as overflow (unsigned semantics).
func SafeSub(a, b sdkmath.Int) (sdkmath.Int, error) {
	return bounded(new(big.Int).Sub(a.BigInt(), b.BigInt()), "-", a, b)
}

// SafeMul returns a*b.
func SafeMul(a, b sdkmath.Int) (sdkmath.Int, error) {
	return bounded(new(big.Int).Mul(a.BigInt(), b.BigInt()), "*", a, b)
}

// SafeMulDiv returns floor(a*b/c). The product may exceed 256 bits as long as the quotient does not.
func SafeMulDiv(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if c.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: division by zero in %s * %s / 0", types.ErrArithmeticOverflow, a, b)
	}
	r := new(big.Int).Mul(a.BigInt(), b.BigInt())
	r.Quo(r, c.BigInt())
	return bounded(r, "*/", a, b)
}

// Checked chains arithmetic and keeps the first error, so a formula reads in one block:
//
//	var c utils.Checked
//	x := c.Add(c.Mul(a, b), d)
//	if err := c.Err(); err != nil { ... }
type Checked struct {
	err error
}

func (c *Checked) apply(f func(a, b sdkmath.Int) (sdkmath.Int, error), a, b sdkmath.Int) sdkmath.Int {
	if c.err != nil {
		return sdkmath.ZeroInt()
	}
	r, err := f(a, b)
	if err != nil {
		c.err = err
		return sdkmath.ZeroInt()
	}
	return r
}

func (c *Checked) Add(a, b sdkmath.Int) sdkmath.Int { return c.apply(SafeAdd, a, b) }
func (c *Checked) Sub(a, b sdkmath.Int) sdkmath.Int { return c.apply(SafeSub, a, b) }
func (c *Checked) Mul(a, b sdkmath.Int) sdkmath.Int { return c.apply(SafeMul, a, b) }

func (c *Checked) MulDiv(a, b, d sdkmath.Int) sdkmath.Int {
	if c.err != nil {
		return sdkmath.ZeroInt()
	}
	r, err := SafeMulDiv(a, b, d)
	if err != nil {
		c.err = err
		return sdkmath.ZeroInt()
	}
	return r
}

func (c *Checked) Err() error {
	return c.err
}

// Uint returns u as an sdkmath.Int.
func Uint(u uint64) sdkmath.Int {
	return sdkmath.NewIntFromUint64(u)
}
