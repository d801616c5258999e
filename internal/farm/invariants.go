package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// CheckInvariants recomputes the aggregates from the stored positions and
// compares them to the pool totals. It is read-only; the keeper runs it after
// every cycle.
func (f *Farm) CheckInvariants() error {
	var allocSum uint64
	for _, p := range f.pools {
		allocSum += p.AllocPoint()
	}
	if allocSum != f.totalAllocPoint {
		return fmt.Errorf("total alloc point %d, pools sum to %d", f.totalAllocPoint, allocSum)
	}

	for _, p := range f.pools {
		staked := sdkmath.ZeroInt()
		factors := sdkmath.ZeroInt()
		for _, pos := range f.positions[p.ID] {
			staked = staked.Add(pos.Amount)
			factors = factors.Add(pos.Factor)
		}
		if !staked.Equal(p.TotalStaked) {
			return fmt.Errorf("pool %d: total staked %s, positions sum to %s", p.ID, p.TotalStaked, staked)
		}
		if !factors.Equal(p.SumOfFactors) {
			return fmt.Errorf("pool %d: sum of factors %s, positions sum to %s", p.ID, p.SumOfFactors, factors)
		}
		if lp := f.vault.BalanceOf(p.LPToken, f.address); lp.LT(p.TotalStaked) {
			return fmt.Errorf("pool %d: custody holds %s of %s, staked %s",
				p.ID, lp, p.LPToken.Hex(), p.TotalStaked)
		}
	}
	return nil
}
