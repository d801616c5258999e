/*

Voting-escrow lock state and the event published whenever a lock changes.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

type EscrowLock struct {
	Account Address     `json:"account"`
	Amount  sdkmath.Int `json:"amount"` // locked principal
	Start   uint64      `json:"start"`
	End     uint64      `json:"end"`
}

// LockChangeKind names what happened to a lock.
type LockChangeKind string

const (
	LockCreated    LockChangeKind = "CREATED"
	LockIncreased  LockChangeKind = "INCREASED"
	LockExtended   LockChangeKind = "EXTENDED"
	LockWithdrawn  LockChangeKind = "WITHDRAWN"
	LockCheckpoint LockChangeKind = "CHECKPOINT"
	LockRestored   LockChangeKind = "RESTORED"
)

// LockChanged carries an account's new voting-escrow balance to listeners.
type LockChanged struct {
	ID        uuid.UUID      `json:"id"`
	Kind      LockChangeKind `json:"kind"`
	Account   Address        `json:"account"`
	Balance   sdkmath.Int    `json:"balance"`
	Timestamp uint64         `json:"timestamp"`
}
