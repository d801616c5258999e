/*

Gauge voting state.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type Gauge struct {
	Gauge   Address     `json:"gauge"` // the farm receiving the emission share
	LPToken Address     `json:"lp_token"`
	PoolID  PoolID      `json:"pool_id"`
	Bribe   Address     `json:"bribe"`
	Votes   sdkmath.Int `json:"votes"`
	// AllocPoint is the share last pushed to the farm.
	AllocPoint uint64 `json:"alloc_point"`
}

type EpochPhase string

const (
	EpochOpen   EpochPhase = "OPEN"
	EpochLocked EpochPhase = "LOCKED"
)

type EpochInfo struct {
	Number     uint64      `json:"number"`
	Start      uint64      `json:"start"`
	End        uint64      `json:"end"`
	Phase      EpochPhase  `json:"phase"`
	TotalVotes sdkmath.Int `json:"total_votes"`
}

// VoteAllocation sets an account's absolute weight on one gauge.
type VoteAllocation struct {
	LPToken Address     `json:"lp_token"`
	Weight  sdkmath.Int `json:"weight"`
}
