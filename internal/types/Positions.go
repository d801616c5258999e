/*

Per-account state inside a pool plus the receipts returned by ledger operations.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// UserPosition is keyed by (PoolID, Account). It is never removed.
type UserPosition struct {
	PoolID  PoolID  `json:"pool_id"`
	Account Address `json:"account"`

	Amount sdkmath.Int `json:"amount"`
	// Factor is the boosted share basis: min(escrowBalance, amount*maxBoost).
	Factor sdkmath.Int `json:"factor"`
	// RewardDebt is amount*accRewardPerShare + factor*accRewardPerFactorShare
	// at the last settlement, still scaled by AccPrecision.
	RewardDebt sdkmath.Int `json:"reward_debt"`
	// Claimable holds settled reward the farm could not pay out yet.
	Claimable sdkmath.Int `json:"claimable"`
	// Claimed is the running total paid to the account from this pool.
	Claimed sdkmath.Int `json:"claimed"`
}

func NewUserPosition(pid PoolID, account Address) UserPosition {
	return UserPosition{
		PoolID:     pid,
		Account:    account,
		Amount:     sdkmath.ZeroInt(),
		Factor:     sdkmath.ZeroInt(),
		RewardDebt: sdkmath.ZeroInt(),
		Claimable:  sdkmath.ZeroInt(),
		Claimed:    sdkmath.ZeroInt(),
	}
}

// Shares is the basis a side rewarder accrues on.
type Shares struct {
	Amount sdkmath.Int `json:"amount"`
	Factor sdkmath.Int `json:"factor"`
}

func ZeroShares() Shares {
	return Shares{Amount: sdkmath.ZeroInt(), Factor: sdkmath.ZeroInt()}
}

// SideReceipt is the outcome of one side-rewarder or bribe hook call.
type SideReceipt struct {
	Rewarder Address     `json:"rewarder"`
	Token    Address     `json:"token"`
	Paid     sdkmath.Int `json:"paid"`
	Error    string      `json:"error,omitempty"`
}

// Receipt is returned by deposit, withdraw and claim.
type Receipt struct {
	PoolID  PoolID  `json:"pool_id"`
	Account Address `json:"account"`
	// Pending is the reward settled by this call.
	Pending sdkmath.Int `json:"pending"`
	// Paid is what was transferred, including previously unpaid reward.
	Paid sdkmath.Int `json:"paid"`
	// Amount is the staked balance after the call.
	Amount sdkmath.Int    `json:"amount"`
	Side   []SideReceipt `json:"side,omitempty"`
}

func NewReceipt(pid PoolID, account Address) Receipt {
	return Receipt{
		PoolID:  pid,
		Account: account,
		Pending: sdkmath.ZeroInt(),
		Paid:    sdkmath.ZeroInt(),
		Amount:  sdkmath.ZeroInt(),
	}
}

// PendingTokens is the view of everything an account could claim from a pool.
type PendingTokens struct {
	PoolID      PoolID        `json:"pool_id"`
	Account     Address       `json:"account"`
	Pending     sdkmath.Int   `json:"pending"`
	BonusTokens []BonusReward `json:"bonus_tokens,omitempty"`
}

type BonusReward struct {
	Rewarder Address     `json:"rewarder"`
	Token    Address     `json:"token"`
	Pending  sdkmath.Int `json:"pending"`
}
