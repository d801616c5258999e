/*

Snapshot types persisted by the state package after every keeper cycle.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type FarmSnapshot struct {
	Initialized         bool           `json:"initialized"`
	RewardToken         Address        `json:"reward_token"`
	Escrow              Address        `json:"escrow"`
	TokenPerSec         sdkmath.Int    `json:"token_per_sec"`
	DilutingRepartition uint64         `json:"diluting_repartition"`
	MaxBoost            uint64         `json:"max_boost"`
	StartTimestamp      uint64         `json:"start_timestamp"`
	TotalAllocPoint     uint64         `json:"total_alloc_point"`
	Pools               []Pool         `json:"pools"`
	Positions           []UserPosition `json:"positions"`
}

type VoterSnapshot struct {
	Epoch  EpochInfo `json:"epoch"`
	Gauges []Gauge   `json:"gauges"`
}

type LedgerSnapshot struct {
	SnapshotID int64         `json:"snapshot_id,omitempty"` // assigned by the DB
	Epoch      uint64        `json:"epoch"`
	Timestamp  time.Time     `json:"timestamp"`
	LedgerTime uint64        `json:"ledger_time"`
	Farm       FarmSnapshot  `json:"farm"`
	Voter      VoterSnapshot `json:"voter"`
}

// OperationRecord is one journaled keeper call.
type OperationRecord struct {
	OperationID string      `json:"operation_id"`
	Type        string      `json:"type"`
	PoolID      *PoolID     `json:"pool_id,omitempty"`
	Account     Address     `json:"account"`
	Amount      sdkmath.Int `json:"amount"`
	Reward      sdkmath.Int `json:"reward"`
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// FarmParameters is one version of the emission parameters, recorded each
// time an administrator changes them.
type FarmParameters struct {
	ParamsID            int64       `json:"params_id,omitempty"` // assigned by the DB
	TokenPerSec         sdkmath.Int `json:"token_per_sec"`
	DilutingRepartition uint64      `json:"diluting_repartition"`
	MaxBoost            uint64      `json:"max_boost"`
	TotalAllocPoint     uint64      `json:"total_alloc_point"`
	Reason              string      `json:"reason"` // operation that produced this version
	ActivatedAt         time.Time   `json:"activated_at"`
}

// RewardSummary aggregates the journal per pool.
type RewardSummary struct {
	PoolID     PoolID      `json:"pool_id"`
	Operations int64       `json:"operations"`
	Failures   int64       `json:"failures"`
	Paid       sdkmath.Int `json:"paid"`
}
