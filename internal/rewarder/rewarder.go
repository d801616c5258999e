/*

Side reward streams. A Rewarder keeps its own accumulator over the share basis
reported by its operator: the farm for pool rewarders, the voter for bribes.
It is funded separately and never pays more than it holds; the shortfall stays
owed to the account and is paid on a later interaction.

*/

package rewarder

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
	"github.com/hummus-exchange/farm/internal/vault"
)

const (
	KindRewarder   = "REWARDER"
	KindVeRewarder = "VE_REWARDER"
	KindBribe      = "BRIBE"
)

// Deps are the pieces every rewarder variant needs regardless of its stream.
type Deps struct {
	Address types.Address // where the reward balance is held
	Admin   types.Address // may change the rate and drain the balance
	Vault   vault.TokenVault
}

type holder struct {
	amount     sdkmath.Int
	factor     sdkmath.Int
	rewardDebt sdkmath.Int // scaled by AccPrecision
	unpaid     sdkmath.Int
}

func newHolder() holder {
	return holder{
		amount:     sdkmath.ZeroInt(),
		factor:     sdkmath.ZeroInt(),
		rewardDebt: sdkmath.ZeroInt(),
		unpaid:     sdkmath.ZeroInt(),
	}
}

type Rewarder struct {
	kind                string
	address             types.Address
	admin               types.Address
	operator            types.Address
	rewardToken         types.Address
	lpToken             types.Address
	escrow              types.Address
	dilutingRepartition uint64
	vault               vault.TokenVault
	logger              zerolog.Logger

	acc          types.RewardAccumulator
	totalShares  sdkmath.Int
	sumOfFactors sdkmath.Int
	holders      map[types.Address]*holder
}

// NewRewarder creates a pool rewarder driven by the farm. Every staked unit
// earns the same rate.
func NewRewarder(d Deps, rewardToken, lpToken types.Address, tokenPerSec sdkmath.Int, farm types.Address, isNative bool) (*Rewarder, error) {
	return newRewarder(KindRewarder, d, rewardToken, lpToken, farm, types.ZeroAddress, tokenPerSec, types.RepartitionDenominator, isNative)
}

// NewBribe creates a bribe driven by the voter. Shares are the votes an
// account holds on the bribe's gauge.
func NewBribe(d Deps, voter, lpToken, rewardToken types.Address, tokenPerSec sdkmath.Int, isNative bool) (*Rewarder, error) {
	return newRewarder(KindBribe, d, rewardToken, lpToken, voter, types.ZeroAddress, tokenPerSec, types.RepartitionDenominator, isNative)
}

// NewVeRewarder creates a pool rewarder whose stream is split like the farm's:
// dilutingRepartition parts per 1000 by staked amount, the rest by boost factor.
func NewVeRewarder(d Deps, rewardToken, lpToken, farm, escrow types.Address, tokenPerSec sdkmath.Int, dilutingRepartition uint64, isNative bool) (*Rewarder, error) {
	if escrow == types.ZeroAddress {
		return nil, fmt.Errorf("%w: ve rewarder needs an escrow", types.ErrInvalidParameter)
	}
	return newRewarder(KindVeRewarder, d, rewardToken, lpToken, farm, escrow, tokenPerSec, dilutingRepartition, isNative)
}

func newRewarder(kind string, d Deps, rewardToken, lpToken, operator, escrow types.Address,
	tokenPerSec sdkmath.Int, dilutingRepartition uint64, isNative bool) (*Rewarder, error) {
	switch {
	case d.Address == types.ZeroAddress:
		return nil, fmt.Errorf("%w: rewarder address cannot be zero", types.ErrInvalidParameter)
	case d.Vault == nil:
		return nil, fmt.Errorf("%w: vault cannot be nil", types.ErrInvalidParameter)
	case operator == types.ZeroAddress:
		return nil, fmt.Errorf("%w: operator cannot be zero", types.ErrInvalidParameter)
	case lpToken == types.ZeroAddress:
		return nil, fmt.Errorf("%w: lp token cannot be zero", types.ErrInvalidParameter)
	case !isNative && rewardToken == types.ZeroAddress:
		return nil, fmt.Errorf("%w: reward token cannot be zero", types.ErrInvalidParameter)
	case tokenPerSec.IsNil() || tokenPerSec.IsNegative():
		return nil, fmt.Errorf("%w: token per sec must be non-negative", types.ErrInvalidParameter)
	case dilutingRepartition > types.RepartitionDenominator:
		return nil, fmt.Errorf("%w: diluting repartition %d exceeds %d",
			types.ErrInvalidParameter, dilutingRepartition, types.RepartitionDenominator)
	}
	if isNative {
		rewardToken = vault.NativeToken
	}
	admin := d.Admin
	if admin == types.ZeroAddress {
		admin = operator
	}
	return &Rewarder{
		kind:                kind,
		address:             d.Address,
		admin:               admin,
		operator:            operator,
		rewardToken:         rewardToken,
		lpToken:             lpToken,
		escrow:              escrow,
		dilutingRepartition: dilutingRepartition,
		vault:               d.Vault,
		logger:              logger.GetForComponent("rewarder").With().Str("kind", kind).Str("rewarder", d.Address.Hex()).Logger(),
		acc:                 types.NewRewardAccumulator(tokenPerSec, isNative),
		totalShares:         sdkmath.ZeroInt(),
		sumOfFactors:        sdkmath.ZeroInt(),
		holders:             make(map[types.Address]*holder),
	}, nil
}

func (r *Rewarder) Address() types.Address { return r.address }

func (r *Rewarder) RewardToken() types.Address { return r.rewardToken }

func (r *Rewarder) LPToken() types.Address { return r.lpToken }

func (r *Rewarder) Kind() string { return r.kind }

func (r *Rewarder) IsNative() bool { return r.acc.IsNative }

// Balance is what the rewarder can currently pay out.
func (r *Rewarder) Balance() sdkmath.Int {
	return r.vault.BalanceOf(r.rewardToken, r.address)
}

// Info is the read-only view served by the API.
func (r *Rewarder) Info() types.RewarderInfo {
	unpaid := sdkmath.ZeroInt()
	for _, h := range r.holders {
		unpaid = unpaid.Add(h.unpaid)
	}
	return types.RewarderInfo{
		Kind:                r.kind,
		Address:             r.address,
		RewardToken:         r.rewardToken,
		LPToken:             r.lpToken,
		Operator:            r.operator,
		DilutingRepartition: r.dilutingRepartition,
		Accumulator:         r.acc,
		TotalShares:         r.totalShares,
		SumOfFactors:        r.sumOfFactors,
		Balance:             r.Balance(),
		Unpaid:              unpaid,
	}
}

// accrue returns the accumulator brought forward to now.
func (r *Rewarder) accrue(now uint64) (types.RewardAccumulator, error) {
	a := r.acc
	if now <= a.LastRewardTime {
		return a, nil
	}
	if r.totalShares.IsZero() || a.TokenPerSec.IsZero() {
		a.LastRewardTime = now
		return a, nil
	}
	var c utils.Checked
	reward := c.Mul(utils.Uint(now-a.LastRewardTime), a.TokenPerSec)
	scaled := c.Mul(reward, types.AccPrecisionInt)
	if r.dilutingRepartition > 0 {
		delta := c.MulDiv(scaled, utils.Uint(r.dilutingRepartition), c.Mul(r.totalShares, types.RepartitionInt))
		a.AccTokenPerShare = c.Add(a.AccTokenPerShare, delta)
	}
	if r.dilutingRepartition < types.RepartitionDenominator && r.sumOfFactors.IsPositive() {
		rest := utils.Uint(types.RepartitionDenominator - r.dilutingRepartition)
		delta := c.MulDiv(scaled, rest, c.Mul(r.sumOfFactors, types.RepartitionInt))
		a.AccTokenPerFactorShare = c.Add(a.AccTokenPerFactorShare, delta)
	}
	a.Emitted = c.Add(a.Emitted, reward)
	if err := c.Err(); err != nil {
		return r.acc, fmt.Errorf("accrue rewarder %s: %w", r.address.Hex(), err)
	}
	a.LastRewardTime = now
	return a, nil
}

func (r *Rewarder) holderCopy(account types.Address) holder {
	if h, ok := r.holders[account]; ok {
		return *h
	}
	return newHolder()
}

func accrued(a types.RewardAccumulator, h holder) (sdkmath.Int, error) {
	var c utils.Checked
	total := c.Add(c.Mul(h.amount, a.AccTokenPerShare), c.Mul(h.factor, a.AccTokenPerFactorShare))
	owed := c.Sub(total, h.rewardDebt)
	if err := c.Err(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return owed.Quo(types.AccPrecisionInt), nil
}

// PendingTokens reports what account would be owed at now, including any
// earlier shortfall.
func (r *Rewarder) PendingTokens(account types.Address, now uint64) (sdkmath.Int, error) {
	a, err := r.accrue(now)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	h := r.holderCopy(account)
	pending, err := accrued(a, h)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.SafeAdd(pending, h.unpaid)
}
