package voter

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// Vote sets the account's absolute weight on one gauge.
func (v *Voter) Vote(account, lpToken types.Address, weight sdkmath.Int, now uint64) ([]types.SideReceipt, error) {
	return v.VoteMany(account, []types.VoteAllocation{{LPToken: lpToken, Weight: weight}}, now)
}

// VoteMany applies several allocations as one change: the voting power check
// runs on the final state, so moving weight between gauges never needs spare
// power. A later entry for the same gauge overrides an earlier one.
func (v *Voter) VoteMany(account types.Address, allocs []types.VoteAllocation, now uint64) ([]types.SideReceipt, error) {
	if v.Phase(now) == types.EpochLocked {
		return nil, fmt.Errorf("%w: epoch %d ended at %d", types.ErrEpochLocked, v.epoch, v.epochEnd)
	}
	prev := v.votes[account]
	next := make(map[types.Address]sdkmath.Int, len(prev)+len(allocs))
	for lp, w := range prev {
		next[lp] = w
	}

	var touched []types.Address
	seen := make(map[types.Address]bool)
	used := v.UsedWeight(account)
	var c utils.Checked
	for _, a := range allocs {
		if a.Weight.IsNil() || a.Weight.IsNegative() {
			return nil, fmt.Errorf("%w: negative vote weight", types.ErrInvalidParameter)
		}
		if _, err := v.gauge(a.LPToken); err != nil {
			return nil, err
		}
		old, ok := next[a.LPToken]
		if !ok {
			old = sdkmath.ZeroInt()
		}
		used = c.Add(c.Sub(used, old), a.Weight)
		next[a.LPToken] = a.Weight
		if !seen[a.LPToken] {
			seen[a.LPToken] = true
			touched = append(touched, a.LPToken)
		}
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	power := v.escrow.BalanceOf(account, now)
	if used.GT(power) {
		return nil, fmt.Errorf("%w: %s wants %s, holds %s",
			types.ErrInsufficientVotingPower, account.Hex(), used, power)
	}

	for _, lp := range touched {
		g, _ := v.gauge(lp)
		old, ok := prev[lp]
		if !ok {
			old = sdkmath.ZeroInt()
		}
		g.Votes = g.Votes.Sub(old).Add(next[lp])
		if next[lp].IsZero() {
			delete(next, lp)
		}
	}
	if len(next) == 0 {
		delete(v.votes, account)
		delete(v.used, account)
	} else {
		v.votes[account] = next
		v.used[account] = used
	}
	v.dirty = true

	v.logger.Debug().
		Str("account", account.Hex()).
		Int("gauges", len(touched)).
		Str("used", used.String()).
		Str("power", power.String()).
		Msg("Votes cast")

	return v.notifyBribes(account, touched, now), nil
}

// Distribute pushes vote-proportional allocation points to the farm. It rolls
// the epoch when its end has passed, first dropping the votes of accounts
// whose escrow balance no longer covers them. Without a vote change or a
// rollover it does nothing and returns false.
func (v *Voter) Distribute(now uint64) (bool, error) {
	rolled := now >= v.epochEnd
	if !rolled && !v.dirty {
		return false, nil
	}

	epoch, start, end := v.epoch, v.epochStart, v.epochEnd
	var resets []types.Address
	if rolled {
		periods := (now-v.epochEnd)/v.epochLength + 1
		epoch += periods
		start += periods * v.epochLength
		end = start + v.epochLength
		for _, acct := range v.Voters() {
			if v.UsedWeight(acct).GT(v.escrow.BalanceOf(acct, now)) {
				resets = append(resets, acct)
			}
		}
	}

	votes := make([]sdkmath.Int, len(v.gauges))
	total := sdkmath.ZeroInt()
	for i, g := range v.gauges {
		w := g.Votes
		for _, acct := range resets {
			if r, ok := v.votes[acct][g.LPToken]; ok {
				w = w.Sub(r)
			}
		}
		votes[i] = w
		total = total.Add(w)
	}
	allocs := make(map[types.PoolID]uint64, len(v.gauges))
	for i, g := range v.gauges {
		if total.IsZero() {
			allocs[g.PoolID] = 0
			continue
		}
		share, err := utils.SafeMulDiv(votes[i], utils.Uint(v.voteAllocPoints), total)
		if err != nil {
			return false, err
		}
		allocs[g.PoolID] = share.Uint64()
	}

	if len(allocs) > 0 {
		if err := v.farm.SetVoteAllocPoints(v.address, allocs, now); err != nil {
			return false, fmt.Errorf("push vote allocation: %w", err)
		}
	}

	v.epoch, v.epochStart, v.epochEnd = epoch, start, end
	for i, g := range v.gauges {
		g.Votes = votes[i]
		g.AllocPoint = allocs[g.PoolID]
	}
	resetVotes := make(map[types.Address][]types.Address, len(resets))
	for _, acct := range resets {
		resetVotes[acct] = v.lpTokensOf(acct)
		delete(v.votes, acct)
		delete(v.used, acct)
	}
	v.dirty = false
	for _, acct := range resets {
		v.notifyBribes(acct, resetVotes[acct], now)
	}

	v.logger.Info().
		Uint64("epoch", v.epoch).
		Bool("rolled", rolled).
		Int("resets", len(resets)).
		Str("totalVotes", total.String()).
		Msg("Gauge allocation distributed")
	return true, nil
}

// OnLockChanged drops every vote of an account whose new balance is below
// the weight it has allocated.
func (v *Voter) OnLockChanged(ev types.LockChanged) error {
	used := v.UsedWeight(ev.Account)
	if used.IsZero() || (!ev.Balance.IsNil() && used.LTE(ev.Balance)) {
		return nil
	}
	lps := v.lpTokensOf(ev.Account)
	for _, lp := range lps {
		g, _ := v.gauge(lp)
		g.Votes = g.Votes.Sub(v.votes[ev.Account][lp])
	}
	delete(v.votes, ev.Account)
	delete(v.used, ev.Account)
	v.dirty = true
	v.notifyBribes(ev.Account, lps, ev.Timestamp)

	v.logger.Info().
		Str("account", ev.Account.Hex()).
		Str("used", used.String()).
		Str("balance", ev.Balance.String()).
		Msg("Votes reset after lock change")
	return nil
}

func (v *Voter) lpTokensOf(account types.Address) []types.Address {
	var out []types.Address
	for _, g := range v.gauges {
		if _, ok := v.votes[account][g.LPToken]; ok {
			out = append(out, g.LPToken)
		}
	}
	return out
}

// notifyBribes reports the account's current votes to each touched gauge's
// bribe. Bribe failures are returned as receipts and never undo the vote.
func (v *Voter) notifyBribes(account types.Address, lps []types.Address, now uint64) []types.SideReceipt {
	var out []types.SideReceipt
	for _, lp := range lps {
		b, ok := v.bribes[lp]
		if !ok {
			continue
		}
		weight, ok := v.votes[account][lp]
		if !ok {
			weight = sdkmath.ZeroInt()
		}
		r := types.SideReceipt{Rewarder: b.Address(), Token: b.RewardToken(), Paid: sdkmath.ZeroInt()}
		paid, err := b.OnReward(v.address, account, types.Shares{Amount: weight, Factor: sdkmath.ZeroInt()}, now)
		if !paid.IsNil() {
			r.Paid = paid
		}
		if err != nil {
			r.Error = err.Error()
			v.logger.Warn().Err(err).Str("account", account.Hex()).Str("lpToken", lp.Hex()).Msg("Bribe hook failed")
		}
		out = append(out, r)
	}
	return out
}
