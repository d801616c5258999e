package farm

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// pendingOf returns the reward accrued by pos since its last settlement.
func pendingOf(pool types.Pool, pos types.UserPosition) (sdkmath.Int, error) {
	var c utils.Checked
	accrued := c.Add(
		c.Mul(pos.Amount, pool.AccRewardPerShare),
		c.Mul(pos.Factor, pool.AccRewardPerFactorShare),
	)
	owed := c.Sub(accrued, pos.RewardDebt)
	if err := c.Err(); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pending of %s in pool %d: %w", pos.Account.Hex(), pool.ID, err)
	}
	return owed.Quo(types.AccPrecisionInt), nil
}

// debtOf is the scaled reward already priced into amount and factor.
func debtOf(pool types.Pool, amount, factor sdkmath.Int) (sdkmath.Int, error) {
	var c utils.Checked
	debt := c.Add(c.Mul(amount, pool.AccRewardPerShare), c.Mul(factor, pool.AccRewardPerFactorShare))
	return debt, c.Err()
}

// settle credits pending reward to pos.Claimable and rebases the debt on the
// unchanged amount and factor.
func settle(pool types.Pool, pos types.UserPosition) (types.UserPosition, sdkmath.Int, error) {
	pending, err := pendingOf(pool, pos)
	if err != nil {
		return pos, pending, err
	}
	if pos.Claimable, err = utils.SafeAdd(pos.Claimable, pending); err != nil {
		return pos, pending, err
	}
	if pos.RewardDebt, err = debtOf(pool, pos.Amount, pos.Factor); err != nil {
		return pos, pending, err
	}
	return pos, pending, nil
}

func (f *Farm) loadPosition(pid types.PoolID, account types.Address) types.UserPosition {
	if pos, ok := f.positionRef(pid, account); ok {
		return *pos
	}
	return types.NewUserPosition(pid, account)
}

// Deposit stakes amount of the pool's LP token for account. Pending reward is
// settled first and paid out. A zero amount is a harvest.
func (f *Farm) Deposit(pid types.PoolID, account types.Address, amount sdkmath.Int, now uint64) (types.Receipt, error) {
	return f.modify(pid, account, amount, sdkmath.ZeroInt(), now)
}

// Withdraw unstakes amount for account, failing with ErrInsufficientBalance
// when it exceeds the staked amount.
func (f *Farm) Withdraw(pid types.PoolID, account types.Address, amount sdkmath.Int, now uint64) (types.Receipt, error) {
	return f.modify(pid, account, sdkmath.ZeroInt(), amount, now)
}

// Claim settles and pays pending reward without changing the stake. An
// account without a position receives an empty receipt.
func (f *Farm) Claim(pid types.PoolID, account types.Address, now uint64) (types.Receipt, error) {
	if err := f.requireInitialized(); err != nil {
		return types.Receipt{}, err
	}
	if _, err := f.poolRef(pid); err != nil {
		return types.Receipt{}, err
	}
	if _, ok := f.positionRef(pid, account); !ok {
		return types.NewReceipt(pid, account), nil
	}
	return f.modify(pid, account, sdkmath.ZeroInt(), sdkmath.ZeroInt(), now)
}

// MultiClaim claims from several pools. Each pool commits on its own; the
// first failure stops the loop and the receipts gathered so far are returned.
func (f *Farm) MultiClaim(pids []types.PoolID, account types.Address, now uint64) ([]types.Receipt, error) {
	receipts := make([]types.Receipt, 0, len(pids))
	for _, pid := range pids {
		r, err := f.Claim(pid, account, now)
		if err != nil {
			return receipts, fmt.Errorf("claim pool %d: %w", pid, err)
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

func (f *Farm) modify(pid types.PoolID, account types.Address, deposit, withdraw sdkmath.Int, now uint64) (types.Receipt, error) {
	receipt := types.NewReceipt(pid, account)
	if err := f.requireInitialized(); err != nil {
		return receipt, err
	}
	if deposit.IsNil() || deposit.IsNegative() || withdraw.IsNil() || withdraw.IsNegative() {
		return receipt, fmt.Errorf("%w: amount must be non-negative", types.ErrInvalidParameter)
	}
	ref, err := f.poolRef(pid)
	if err != nil {
		return receipt, err
	}
	pos := f.loadPosition(pid, account)
	if withdraw.GT(pos.Amount) {
		return receipt, fmt.Errorf("%w: withdraw %s from pool %d, staked %s",
			types.ErrInsufficientBalance, withdraw, pid, pos.Amount)
	}

	pool, err := f.accrue(*ref, now)
	if err != nil {
		return receipt, err
	}
	pos, pending, err := settle(pool, pos)
	if err != nil {
		return receipt, err
	}

	var c utils.Checked
	pos.Amount = c.Sub(c.Add(pos.Amount, deposit), withdraw)
	pool.TotalStaked = c.Sub(c.Add(pool.TotalStaked, deposit), withdraw)
	if err := c.Err(); err != nil {
		return receipt, err
	}
	pool, pos, err = f.applyFactor(pool, pos, f.escrowBalance(account, now))
	if err != nil {
		return receipt, err
	}

	// Custody moves last: if it fails nothing above has been committed.
	if deposit.IsPositive() {
		if err := f.vault.Transfer(pool.LPToken, account, f.address, deposit); err != nil {
			return receipt, fmt.Errorf("deposit into pool %d: %w", pid, err)
		}
	}
	if withdraw.IsPositive() {
		if err := f.vault.Transfer(pool.LPToken, f.address, account, withdraw); err != nil {
			return receipt, fmt.Errorf("withdraw from pool %d: %w", pid, err)
		}
	}

	*ref = pool
	pos, paid := f.payout(pool, pos)
	f.storePosition(pos)

	receipt.Pending = pending
	receipt.Paid = paid
	receipt.Amount = pos.Amount
	if side, ok := f.notifyRewarder(pool, pos, now); ok {
		receipt.Side = append(receipt.Side, side)
	}

	f.logger.Debug().
		Uint64("pid", uint64(pid)).
		Str("account", account.Hex()).
		Str("deposit", deposit.String()).
		Str("withdraw", withdraw.String()).
		Str("pending", pending.String()).
		Str("paid", paid.String()).
		Str("amount", pos.Amount.String()).
		Msg("Position updated")
	return receipt, nil
}

// EmergencyWithdraw returns the whole stake without settling. Reward accrued
// since the last settlement is forfeited; already settled Claimable stays owed.
func (f *Farm) EmergencyWithdraw(pid types.PoolID, account types.Address, now uint64) (types.Receipt, error) {
	receipt := types.NewReceipt(pid, account)
	if err := f.requireInitialized(); err != nil {
		return receipt, err
	}
	ref, err := f.poolRef(pid)
	if err != nil {
		return receipt, err
	}
	stored, ok := f.positionRef(pid, account)
	if !ok || stored.Amount.IsZero() {
		return receipt, nil
	}
	pos := *stored
	amount := pos.Amount

	pool, err := f.accrue(*ref, now)
	if err != nil {
		return receipt, err
	}
	var c utils.Checked
	pool.TotalStaked = c.Sub(pool.TotalStaked, amount)
	pool.SumOfFactors = c.Sub(pool.SumOfFactors, pos.Factor)
	if err := c.Err(); err != nil {
		return receipt, err
	}
	pos.Amount = sdkmath.ZeroInt()
	pos.Factor = sdkmath.ZeroInt()
	pos.RewardDebt = sdkmath.ZeroInt()

	if err := f.vault.Transfer(pool.LPToken, f.address, account, amount); err != nil {
		return receipt, fmt.Errorf("emergency withdraw from pool %d: %w", pid, err)
	}
	*ref = pool
	f.storePosition(pos)
	if side, ok := f.notifyRewarder(pool, pos, now); ok {
		receipt.Side = append(receipt.Side, side)
	}

	f.logger.Warn().
		Uint64("pid", uint64(pid)).
		Str("account", account.Hex()).
		Str("amount", amount.String()).
		Msg("Emergency withdraw")
	return receipt, nil
}

// rewardReserve is the farm's reward token balance minus any principal staked
// in a pool whose LP token is the reward token itself.
func (f *Farm) rewardReserve(pool types.Pool) sdkmath.Int {
	bal := f.vault.BalanceOf(f.rewardToken, f.address)
	if pid, ok := f.poolByToken[f.rewardToken]; ok {
		staked := f.pools[pid].TotalStaked
		if pid == pool.ID {
			staked = pool.TotalStaked
		}
		if bal.LTE(staked) {
			return sdkmath.ZeroInt()
		}
		return bal.Sub(staked)
	}
	return bal
}

// payout transfers as much of pos.Claimable as the reserve covers.
func (f *Farm) payout(pool types.Pool, pos types.UserPosition) (types.UserPosition, sdkmath.Int) {
	if pos.Claimable.IsZero() {
		return pos, sdkmath.ZeroInt()
	}
	pay := sdkmath.MinInt(pos.Claimable, f.rewardReserve(pool))
	if pay.IsZero() {
		f.logger.Warn().
			Uint64("pid", uint64(pool.ID)).
			Str("account", pos.Account.Hex()).
			Str("owed", pos.Claimable.String()).
			Msg("Reward reserve empty, reward kept as claimable")
		return pos, pay
	}
	if err := f.vault.Transfer(f.rewardToken, f.address, pos.Account, pay); err != nil {
		f.logger.Error().Err(err).Str("account", pos.Account.Hex()).Msg("Reward transfer failed, reward kept as claimable")
		return pos, sdkmath.ZeroInt()
	}
	pos.Claimable = pos.Claimable.Sub(pay)
	pos.Claimed = pos.Claimed.Add(pay)
	if pos.Claimable.IsPositive() {
		f.logger.Warn().
			Uint64("pid", uint64(pool.ID)).
			Str("account", pos.Account.Hex()).
			Str("unpaid", pos.Claimable.String()).
			Msg("Reward reserve short, remainder kept as claimable")
	}
	return pos, pay
}

// notifyRewarder forwards the new shares to the pool's side rewarder. Its
// failures stay local: the primary ledger is already committed.
func (f *Farm) notifyRewarder(pool types.Pool, pos types.UserPosition, now uint64) (types.SideReceipt, bool) {
	if pool.Rewarder == types.ZeroAddress {
		return types.SideReceipt{}, false
	}
	r, ok := f.rewarders[pool.Rewarder]
	if !ok {
		return types.SideReceipt{}, false
	}
	side := types.SideReceipt{Rewarder: r.Address(), Token: r.RewardToken(), Paid: sdkmath.ZeroInt()}
	paid, err := r.OnReward(f.address, pos.Account, types.Shares{Amount: pos.Amount, Factor: pos.Factor}, now)
	if !paid.IsNil() {
		side.Paid = paid
	}
	if err != nil {
		side.Error = err.Error()
		var payoutErr *types.PayoutError
		if errors.As(err, &payoutErr) {
			f.logger.Warn().Err(err).Uint64("pid", uint64(pool.ID)).Msg("Side reward payout incomplete")
		} else {
			f.logger.Error().Err(err).Uint64("pid", uint64(pool.ID)).Msg("Side rewarder hook failed")
		}
	}
	return side, true
}
