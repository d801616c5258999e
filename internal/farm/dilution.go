package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

func (f *Farm) escrowBalance(account types.Address, now uint64) sdkmath.Int {
	if f.escrow == nil {
		return sdkmath.ZeroInt()
	}
	bal := f.escrow.BalanceOf(account, now)
	if bal.IsNil() || bal.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return bal
}

// factorFor caps the voting-escrow balance at maxBoost times the staked amount.
func (f *Farm) factorFor(amount, veBalance sdkmath.Int) (sdkmath.Int, error) {
	limit, err := utils.SafeMulDiv(amount, utils.Uint(f.maxBoost), types.BoostInt)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sdkmath.MinInt(veBalance, limit), nil
}

// applyFactor swaps pos's factor for one derived from veBalance and rebases
// its debt. pos must already be settled against pool.
func (f *Farm) applyFactor(pool types.Pool, pos types.UserPosition, veBalance sdkmath.Int) (types.Pool, types.UserPosition, error) {
	factor, err := f.factorFor(pos.Amount, veBalance)
	if err != nil {
		return pool, pos, err
	}
	var c utils.Checked
	pool.SumOfFactors = c.Add(c.Sub(pool.SumOfFactors, pos.Factor), factor)
	if err := c.Err(); err != nil {
		return pool, pos, fmt.Errorf("factor of %s in pool %d: %w", pos.Account.Hex(), pool.ID, err)
	}
	pos.Factor = factor
	if pos.RewardDebt, err = debtOf(pool, pos.Amount, factor); err != nil {
		return pool, pos, err
	}
	return pool, pos, nil
}

// SyncFactor re-reads the escrow balance of account and refreshes its factor in
// pid. Pending reward under the old factor is kept as claimable, not paid.
func (f *Farm) SyncFactor(pid types.PoolID, account types.Address, now uint64) (types.UserPosition, error) {
	if err := f.requireInitialized(); err != nil {
		return types.UserPosition{}, err
	}
	ref, err := f.poolRef(pid)
	if err != nil {
		return types.UserPosition{}, err
	}
	stored, ok := f.positionRef(pid, account)
	if !ok {
		return types.NewUserPosition(pid, account), nil
	}
	pool, pos, err := f.rebase(*ref, *stored, f.escrowBalance(account, now), now)
	if err != nil {
		return types.UserPosition{}, err
	}
	*ref = pool
	f.storePosition(pos)
	f.notifyRewarder(pool, pos, now)
	return pos, nil
}

func (f *Farm) rebase(pool types.Pool, pos types.UserPosition, veBalance sdkmath.Int, now uint64) (types.Pool, types.UserPosition, error) {
	pool, err := f.accrue(pool, now)
	if err != nil {
		return pool, pos, err
	}
	if pos, _, err = settle(pool, pos); err != nil {
		return pool, pos, err
	}
	return f.applyFactor(pool, pos, veBalance)
}

// OnLockChanged applies a new voting-escrow balance to every position of the
// account. All pools are rebased or none are; a returned error tells the
// escrow to undo the lock change.
func (f *Farm) OnLockChanged(ev types.LockChanged) error {
	if !f.initialized {
		return nil
	}
	bal := ev.Balance
	if bal.IsNil() || bal.IsNegative() {
		bal = sdkmath.ZeroInt()
	}

	type staged struct {
		pool types.Pool
		pos  types.UserPosition
	}
	var batch []staged
	for _, ref := range f.pools {
		stored, ok := f.positionRef(ref.ID, ev.Account)
		if !ok || stored.Amount.IsZero() {
			continue
		}
		pool, pos, err := f.rebase(*ref, *stored, bal, ev.Timestamp)
		if err != nil {
			return fmt.Errorf("rebase %s in pool %d: %w", ev.Account.Hex(), ref.ID, err)
		}
		batch = append(batch, staged{pool: pool, pos: pos})
	}

	for _, s := range batch {
		*f.pools[s.pool.ID] = s.pool
		f.storePosition(s.pos)
	}
	for _, s := range batch {
		f.notifyRewarder(s.pool, s.pos, ev.Timestamp)
	}
	if len(batch) > 0 {
		f.logger.Debug().
			Str("event", ev.ID.String()).
			Str("kind", string(ev.Kind)).
			Str("account", ev.Account.Hex()).
			Str("balance", bal.String()).
			Int("pools", len(batch)).
			Msg("Boost factors rebased")
	}
	return nil
}
