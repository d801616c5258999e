/*

Pool state for the reward farm. One pool per staked LP token.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

type PoolID uint64

// Address identifies accounts, tokens and contracts.
type Address = common.Address

// ZeroAddress is used to mean "no rewarder" / "no bribe".
var ZeroAddress = common.Address{}

const (
	// AccPrecision scales accRewardPerShare and accRewardPerFactorShare.
	AccPrecision = 1_000_000_000_000
	// RepartitionDenominator is the base of dilutingRepartition (parts per 1000).
	RepartitionDenominator = 1000
	// BoostDenominator is the base of maxBoost (2500 = 2.5x).
	BoostDenominator = 1000
)

var (
	AccPrecisionInt = sdkmath.NewInt(AccPrecision)
	RepartitionInt  = sdkmath.NewInt(RepartitionDenominator)
	BoostInt        = sdkmath.NewInt(BoostDenominator)
)

type Pool struct {
	ID      PoolID  `json:"id"`
	LPToken Address `json:"lp_token"`

	BaseAllocPoint uint64 `json:"base_alloc_point"` // set by add/set
	VoteAllocPoint uint64 `json:"vote_alloc_point"` // pushed by the gauge voter

	LastRewardTime          uint64      `json:"last_reward_time"`
	AccRewardPerShare       sdkmath.Int `json:"acc_reward_per_share"`        // diluting part, scaled by AccPrecision
	AccRewardPerFactorShare sdkmath.Int `json:"acc_reward_per_factor_share"` // boosted part, scaled by AccPrecision
	TotalStaked             sdkmath.Int `json:"total_staked"`
	SumOfFactors            sdkmath.Int `json:"sum_of_factors"`

	Rewarder Address `json:"rewarder"`

	// Emitted is the base reward allocated to this pool so far, including
	// the boosted share that had no factor holders to go to.
	Emitted sdkmath.Int `json:"emitted"`
}

// NewPool returns a pool with every accumulator initialised to zero.
func NewPool(id PoolID, lpToken Address, allocPoint uint64, rewarder Address, lastRewardTime uint64) Pool {
	return Pool{
		ID:                      id,
		LPToken:                 lpToken,
		BaseAllocPoint:          allocPoint,
		LastRewardTime:          lastRewardTime,
		AccRewardPerShare:       sdkmath.ZeroInt(),
		AccRewardPerFactorShare: sdkmath.ZeroInt(),
		TotalStaked:             sdkmath.ZeroInt(),
		SumOfFactors:            sdkmath.ZeroInt(),
		Rewarder:                rewarder,
		Emitted:                 sdkmath.ZeroInt(),
	}
}

// AllocPoint is the pool's effective weight in the emission split.
func (p Pool) AllocPoint() uint64 {
	return p.BaseAllocPoint + p.VoteAllocPoint
}
