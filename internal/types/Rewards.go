/*

Accumulator shared by side rewarders, ve rewarders and bribes.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type RewardAccumulator struct {
	AccTokenPerShare       sdkmath.Int `json:"acc_token_per_share"`
	AccTokenPerFactorShare sdkmath.Int `json:"acc_token_per_factor_share"`
	LastRewardTime         uint64      `json:"last_reward_time"`
	TokenPerSec            sdkmath.Int `json:"token_per_sec"`
	IsNative               bool        `json:"is_native"`
	Emitted                sdkmath.Int `json:"emitted"` // accrued to holders so far, paid or not
}

func NewRewardAccumulator(tokenPerSec sdkmath.Int, isNative bool) RewardAccumulator {
	return RewardAccumulator{
		AccTokenPerShare:       sdkmath.ZeroInt(),
		AccTokenPerFactorShare: sdkmath.ZeroInt(),
		TokenPerSec:            tokenPerSec,
		IsNative:               isNative,
		Emitted:                sdkmath.ZeroInt(),
	}
}

// RewarderInfo is the read-only view of a side rewarder exposed over the API.
type RewarderInfo struct {
	Kind                string            `json:"kind"` // REWARDER, VE_REWARDER or BRIBE
	Address             Address           `json:"address"`
	RewardToken         Address           `json:"reward_token"`
	LPToken             Address           `json:"lp_token"`
	Operator            Address           `json:"operator"`
	DilutingRepartition uint64            `json:"diluting_repartition"`
	Accumulator         RewardAccumulator `json:"accumulator"`
	TotalShares         sdkmath.Int       `json:"total_shares"`
	SumOfFactors        sdkmath.Int       `json:"sum_of_factors"`
	Balance             sdkmath.Int       `json:"balance"`
	Unpaid              sdkmath.Int       `json:"unpaid"` // owed to holders beyond the balance
}

// RewarderParams are the constructor arguments of a side stream. The operator
// (farm or voter) and the escrow are filled in by whoever wires the stream.
type RewarderParams struct {
	Kind                string      `json:"kind"`
	Address             Address     `json:"address"`
	RewardToken         Address     `json:"reward_token"`
	LPToken             Address     `json:"lp_token"`
	TokenPerSec         sdkmath.Int `json:"token_per_sec"`
	DilutingRepartition uint64      `json:"diluting_repartition,omitempty"` // VE_REWARDER only
	IsNative            bool        `json:"is_native"`
}
