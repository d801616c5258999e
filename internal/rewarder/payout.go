package rewarder

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
	"github.com/hummus-exchange/farm/internal/vault"
)

// OnReward settles account under its previous shares, pays what the balance
// covers and records the new shares. Only the operator may call it.
//
// State is committed even when the payout falls short; the returned
// *types.PayoutError then carries the paid and unpaid split.
func (r *Rewarder) OnReward(caller, account types.Address, shares types.Shares, now uint64) (sdkmath.Int, error) {
	if caller != r.operator {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s is not the operator of %s",
			types.ErrUnauthorized, caller.Hex(), r.address.Hex())
	}
	if shares.Amount.IsNil() || shares.Amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: negative shares", types.ErrInvalidParameter)
	}
	factor := sdkmath.ZeroInt()
	if r.kind == KindVeRewarder && !shares.Factor.IsNil() && shares.Factor.IsPositive() {
		factor = shares.Factor
	}

	a, err := r.accrue(now)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	h := r.holderCopy(account)
	pending, err := accrued(a, h)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	var c utils.Checked
	owed := c.Add(pending, h.unpaid)
	totalShares := c.Add(c.Sub(r.totalShares, h.amount), shares.Amount)
	sumOfFactors := c.Add(c.Sub(r.sumOfFactors, h.factor), factor)
	h.amount = shares.Amount
	h.factor = factor
	h.rewardDebt = c.Add(c.Mul(h.amount, a.AccTokenPerShare), c.Mul(h.factor, a.AccTokenPerFactorShare))
	if err := c.Err(); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("rewarder %s update of %s: %w", r.address.Hex(), account.Hex(), err)
	}

	paid, payErr := r.pay(account, owed)
	h.unpaid = owed.Sub(paid)

	r.acc = a
	r.totalShares = totalShares
	r.sumOfFactors = sumOfFactors
	r.holders[account] = &h

	r.logger.Debug().
		Str("account", account.Hex()).
		Str("shares", shares.Amount.String()).
		Str("factor", factor.String()).
		Str("paid", paid.String()).
		Str("unpaid", h.unpaid.String()).
		Msg("Rewarder settled")
	return paid, payErr
}

// pay transfers up to owed. A refused native transfer pays nothing and only
// affects this account.
func (r *Rewarder) pay(account types.Address, owed sdkmath.Int) (sdkmath.Int, error) {
	if owed.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	amount := sdkmath.MinInt(owed, r.Balance())
	if amount.IsPositive() {
		var err error
		if r.acc.IsNative {
			err = r.vault.TransferNative(r.address, account, amount)
		} else {
			err = r.vault.Transfer(r.rewardToken, r.address, account, amount)
		}
		if err != nil {
			cause := err
			if !errors.Is(err, types.ErrTransferRejected) {
				cause = fmt.Errorf("%w: %v", types.ErrTransferRejected, err)
			}
			r.logger.Warn().Err(err).Str("account", account.Hex()).Str("owed", owed.String()).Msg("Reward transfer refused")
			return sdkmath.ZeroInt(), &types.PayoutError{
				Account: account, Token: r.rewardToken,
				Paid: sdkmath.ZeroInt(), Unpaid: owed, Cause: cause,
			}
		}
	}
	if amount.LT(owed) {
		unpaid := owed.Sub(amount)
		r.logger.Warn().Str("account", account.Hex()).Str("unpaid", unpaid.String()).Msg("Rewarder underfunded")
		return amount, &types.PayoutError{
			Account: account, Token: r.rewardToken,
			Paid: amount, Unpaid: unpaid, Cause: types.ErrInsufficientFunds,
		}
	}
	return amount, nil
}

// Fund moves amount of the reward asset from funder into the rewarder.
func (r *Rewarder) Fund(funder types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: fund amount must be positive", types.ErrInvalidParameter)
	}
	if err := r.vault.Transfer(r.rewardToken, funder, r.address, amount); err != nil {
		return fmt.Errorf("fund rewarder %s: %w", r.address.Hex(), err)
	}
	r.logger.Info().Str("funder", funder.Hex()).Str("amount", amount.String()).Msg("Rewarder funded")
	return nil
}

// SetRewardRate accrues at the old rate up to now, then switches.
func (r *Rewarder) SetRewardRate(caller types.Address, tokenPerSec sdkmath.Int, now uint64) error {
	if caller != r.admin {
		return fmt.Errorf("%w: %s cannot set the rate of %s", types.ErrUnauthorized, caller.Hex(), r.address.Hex())
	}
	if tokenPerSec.IsNil() || tokenPerSec.IsNegative() {
		return fmt.Errorf("%w: token per sec must be non-negative", types.ErrInvalidParameter)
	}
	a, err := r.accrue(now)
	if err != nil {
		return err
	}
	old := a.TokenPerSec
	a.TokenPerSec = tokenPerSec
	r.acc = a
	r.logger.Info().Str("old", old.String()).Str("new", tokenPerSec.String()).Msg("Reward rate updated")
	return nil
}

// EmergencyWithdraw sends the whole balance to to. Holders keep what they are
// owed as unpaid.
func (r *Rewarder) EmergencyWithdraw(caller, to types.Address) (sdkmath.Int, error) {
	if caller != r.admin {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s cannot drain %s", types.ErrUnauthorized, caller.Hex(), r.address.Hex())
	}
	bal := r.Balance()
	if bal.IsZero() {
		return bal, nil
	}
	var err error
	if r.rewardToken == vault.NativeToken {
		err = r.vault.TransferNative(r.address, to, bal)
	} else {
		err = r.vault.Transfer(r.rewardToken, r.address, to, bal)
	}
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("emergency withdraw %s: %w", r.address.Hex(), err)
	}
	r.logger.Warn().Str("to", to.Hex()).Str("amount", bal.String()).Msg("Rewarder drained")
	return bal, nil
}
