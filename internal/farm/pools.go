package farm

import (
	"fmt"
	"math/bits"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// accrue returns p brought forward to now. It never mutates the farm.
//
// reward = (now - last) * tokenPerSec * allocPoint / totalAllocPoint
// accRewardPerShare       += reward * 1e12 * dil / (totalStaked * 1000)
// accRewardPerFactorShare += reward * 1e12 * (1000 - dil) / (sumOfFactors * 1000)
//
// An empty pool only advances lastRewardTime. The boosted share of a pool with
// no factor holders is emitted but never credited to anyone.
func (f *Farm) accrue(p types.Pool, now uint64) (types.Pool, error) {
	if now <= p.LastRewardTime {
		return p, nil
	}
	alloc := p.AllocPoint()
	if p.TotalStaked.IsZero() || alloc == 0 || f.totalAllocPoint == 0 || f.tokenPerSec.IsZero() {
		p.LastRewardTime = now
		return p, nil
	}

	var c utils.Checked
	elapsed := utils.Uint(now - p.LastRewardTime)
	reward := c.MulDiv(c.Mul(elapsed, f.tokenPerSec), utils.Uint(alloc), utils.Uint(f.totalAllocPoint))
	scaled := c.Mul(reward, types.AccPrecisionInt)

	if f.dilutingRepartition > 0 {
		delta := c.MulDiv(scaled, utils.Uint(f.dilutingRepartition), c.Mul(p.TotalStaked, types.RepartitionInt))
		p.AccRewardPerShare = c.Add(p.AccRewardPerShare, delta)
	}
	if f.dilutingRepartition < types.RepartitionDenominator && p.SumOfFactors.IsPositive() {
		nonDiluting := utils.Uint(types.RepartitionDenominator - f.dilutingRepartition)
		delta := c.MulDiv(scaled, nonDiluting, c.Mul(p.SumOfFactors, types.RepartitionInt))
		p.AccRewardPerFactorShare = c.Add(p.AccRewardPerFactorShare, delta)
	}
	p.Emitted = c.Add(p.Emitted, reward)

	if err := c.Err(); err != nil {
		return p, fmt.Errorf("accrue pool %d: %w", p.ID, err)
	}
	p.LastRewardTime = now
	return p, nil
}

// accrueAll brings every pool forward without committing.
func (f *Farm) accrueAll(now uint64) ([]types.Pool, error) {
	out := make([]types.Pool, len(f.pools))
	for i, ref := range f.pools {
		p, err := f.accrue(*ref, now)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (f *Farm) commitPools(pools []types.Pool) {
	for i := range pools {
		*f.pools[i] = pools[i]
	}
}

// MassUpdatePools accrues every pool up to now.
func (f *Farm) MassUpdatePools(now uint64) error {
	if err := f.requireInitialized(); err != nil {
		return err
	}
	pools, err := f.accrueAll(now)
	if err != nil {
		return err
	}
	f.commitPools(pools)
	return nil
}

// UpdatePool accrues a single pool up to now.
func (f *Farm) UpdatePool(pid types.PoolID, now uint64) error {
	if err := f.requireInitialized(); err != nil {
		return err
	}
	ref, err := f.poolRef(pid)
	if err != nil {
		return err
	}
	p, err := f.accrue(*ref, now)
	if err != nil {
		return err
	}
	*ref = p
	return nil
}

func sumAllocPoints(pools []types.Pool) (uint64, error) {
	var total uint64
	for _, p := range pools {
		s, carry := bits.Add64(p.BaseAllocPoint, p.VoteAllocPoint, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: alloc points of pool %d", types.ErrArithmeticOverflow, p.ID)
		}
		total, carry = bits.Add64(total, s, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: total alloc points", types.ErrArithmeticOverflow)
		}
	}
	return total, nil
}

// Add registers a new pool for lpToken. Every existing pool is accrued first
// so the change of totalAllocPoint only affects emission from now on.
func (f *Farm) Add(caller types.Address, allocPoint uint64, lpToken types.Address, rewarder SideRewarder, now uint64) (types.PoolID, error) {
	if err := f.onlyAdmin(caller); err != nil {
		return 0, err
	}
	if err := f.requireInitialized(); err != nil {
		return 0, err
	}
	if lpToken == types.ZeroAddress {
		return 0, fmt.Errorf("%w: lp token cannot be zero", types.ErrInvalidParameter)
	}
	if _, exists := f.poolByToken[lpToken]; exists {
		return 0, fmt.Errorf("%w: %s", types.ErrDuplicatePool, lpToken.Hex())
	}

	pools, err := f.accrueAll(now)
	if err != nil {
		return 0, err
	}

	lastRewardTime := now
	if f.startTimestamp > lastRewardTime {
		lastRewardTime = f.startTimestamp
	}
	rewarderAddr := types.ZeroAddress
	if rewarder != nil {
		rewarderAddr = rewarder.Address()
	}
	pid := types.PoolID(len(f.pools))
	pool := types.NewPool(pid, lpToken, allocPoint, rewarderAddr, lastRewardTime)

	total, err := sumAllocPoints(append(pools, pool))
	if err != nil {
		return 0, err
	}

	f.commitPools(pools)
	f.pools = append(f.pools, &pool)
	f.poolByToken[lpToken] = pid
	f.totalAllocPoint = total
	if rewarder != nil {
		f.rewarders[rewarderAddr] = rewarder
	}

	f.logger.Info().
		Uint64("pid", uint64(pid)).
		Str("lpToken", lpToken.Hex()).
		Uint64("allocPoint", allocPoint).
		Str("rewarder", rewarderAddr.Hex()).
		Uint64("totalAllocPoint", total).
		Msg("Pool added")
	return pid, nil
}

// Set changes a pool's base weight. The rewarder is only replaced when
// overwrite is true; with overwrite false the stored reference is kept even
// if a different rewarder is passed. Passing nil with overwrite detaches it.
//
// A replaced rewarder settles every staker down to zero shares and the new one
// starts from the pool's current positions.
func (f *Farm) Set(caller types.Address, pid types.PoolID, allocPoint uint64, rewarder SideRewarder, overwrite bool, now uint64) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if err := f.requireInitialized(); err != nil {
		return err
	}
	if _, err := f.poolRef(pid); err != nil {
		return err
	}

	pools, err := f.accrueAll(now)
	if err != nil {
		return err
	}
	pools[pid].BaseAllocPoint = allocPoint
	previous := pools[pid].Rewarder
	rewarderAddr := previous
	if overwrite {
		rewarderAddr = types.ZeroAddress
		if rewarder != nil {
			rewarderAddr = rewarder.Address()
		}
		pools[pid].Rewarder = rewarderAddr
	}
	total, err := sumAllocPoints(pools)
	if err != nil {
		return err
	}

	f.commitPools(pools)
	f.totalAllocPoint = total
	if overwrite && rewarder != nil {
		f.rewarders[rewarderAddr] = rewarder
	}
	if rewarderAddr != previous {
		f.rebindRewarder(pid, previous, rewarderAddr, now)
	}

	f.logger.Info().
		Uint64("pid", uint64(pid)).
		Uint64("allocPoint", allocPoint).
		Bool("overwrite", overwrite).
		Str("rewarder", rewarderAddr.Hex()).
		Uint64("totalAllocPoint", total).
		Msg("Pool updated")
	return nil
}

// SetVoter authorizes the gauge voter allowed to push vote weights.
func (f *Farm) SetVoter(caller, voter types.Address) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	f.voter = voter
	f.logger.Info().Str("voter", voter.Hex()).Msg("Voter set")
	return nil
}

func (f *Farm) Voter() types.Address { return f.voter }

// SetVoteAllocPoints replaces the vote-directed weight of the listed pools.
// Pools not listed keep their current vote weight. Pushing values identical to
// the stored ones changes nothing, not even lastRewardTime.
func (f *Farm) SetVoteAllocPoints(caller types.Address, allocs map[types.PoolID]uint64, now uint64) error {
	if f.voter == types.ZeroAddress || caller != f.voter {
		return fmt.Errorf("%w: %s is not the voter", types.ErrUnauthorized, caller.Hex())
	}
	if err := f.requireInitialized(); err != nil {
		return err
	}
	changed := false
	for pid, points := range allocs {
		ref, err := f.poolRef(pid)
		if err != nil {
			return err
		}
		if ref.VoteAllocPoint != points {
			changed = true
		}
	}
	if !changed {
		return nil
	}

	pools, err := f.accrueAll(now)
	if err != nil {
		return err
	}
	for pid, points := range allocs {
		pools[pid].VoteAllocPoint = points
	}
	total, err := sumAllocPoints(pools)
	if err != nil {
		return err
	}
	f.commitPools(pools)
	f.totalAllocPoint = total

	f.logger.Info().Int("pools", len(allocs)).Uint64("totalAllocPoint", total).Msg("Vote allocation applied")
	return nil
}

// UpdateEmissionRate changes tokenPerSec after accruing every pool at the old rate.
func (f *Farm) UpdateEmissionRate(caller types.Address, tokenPerSec sdkmath.Int, now uint64) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if err := f.requireInitialized(); err != nil {
		return err
	}
	if tokenPerSec.IsNil() || tokenPerSec.IsNegative() {
		return fmt.Errorf("%w: token per sec must be non-negative", types.ErrInvalidParameter)
	}
	pools, err := f.accrueAll(now)
	if err != nil {
		return err
	}
	f.commitPools(pools)
	old := f.tokenPerSec
	f.tokenPerSec = tokenPerSec
	f.logger.Info().Str("old", old.String()).Str("new", tokenPerSec.String()).Msg("Emission rate updated")
	return nil
}

// UpdateDilutingRepartition changes the diluting share (parts per 1000).
func (f *Farm) UpdateDilutingRepartition(caller types.Address, repartition uint64, now uint64) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if err := f.requireInitialized(); err != nil {
		return err
	}
	if repartition > types.RepartitionDenominator {
		return fmt.Errorf("%w: diluting repartition %d exceeds %d",
			types.ErrInvalidParameter, repartition, types.RepartitionDenominator)
	}
	pools, err := f.accrueAll(now)
	if err != nil {
		return err
	}
	f.commitPools(pools)
	f.dilutingRepartition = repartition
	f.logger.Info().Uint64("dilutingRepartition", repartition).Msg("Diluting repartition updated")
	return nil
}

// UpdateMaxBoost changes the boost cap. Existing factors are re-capped the
// next time each account settles or is synced.
func (f *Farm) UpdateMaxBoost(caller types.Address, maxBoost uint64, now uint64) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if err := f.requireInitialized(); err != nil {
		return err
	}
	if maxBoost < types.BoostDenominator {
		return fmt.Errorf("%w: max boost %d below 1x", types.ErrInvalidParameter, maxBoost)
	}
	pools, err := f.accrueAll(now)
	if err != nil {
		return err
	}
	f.commitPools(pools)
	f.maxBoost = maxBoost
	f.logger.Info().Uint64("maxBoost", maxBoost).Msg("Max boost updated")
	return nil
}

// rebindRewarder moves the pool's share basis from the old rewarder to the new
// one. Hook failures are logged like any other side payout and never undo the
// change.
func (f *Farm) rebindRewarder(pid types.PoolID, from, to types.Address, now uint64) {
	accounts := f.Accounts(pid)
	if old, ok := f.rewarders[from]; ok && from != types.ZeroAddress {
		for _, account := range accounts {
			if _, err := old.OnReward(f.address, account, types.ZeroShares(), now); err != nil {
				f.logger.Warn().Err(err).Uint64("pid", uint64(pid)).Str("account", account.Hex()).Msg("Detached rewarder settlement incomplete")
			}
		}
	}
	next, ok := f.rewarders[to]
	if !ok || to == types.ZeroAddress {
		return
	}
	seeded := 0
	for _, account := range accounts {
		pos, _ := f.positionRef(pid, account)
		if pos == nil || !pos.Amount.IsPositive() {
			continue
		}
		if _, err := next.OnReward(f.address, account, types.Shares{Amount: pos.Amount, Factor: pos.Factor}, now); err != nil {
			f.logger.Warn().Err(err).Uint64("pid", uint64(pid)).Str("account", account.Hex()).Msg("Rewarder seeding failed")
			continue
		}
		seeded++
	}
	f.logger.Info().Uint64("pid", uint64(pid)).Str("rewarder", to.Hex()).Int("stakers", seeded).Msg("Rewarder share basis seeded")
}
