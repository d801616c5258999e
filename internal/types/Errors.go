/*

Error taxonomy shared by the farm, escrow, rewarder and voter packages.
Every operation either commits fully or returns one of these (wrapped with context).

*/

package types

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrDuplicatePool           = errors.New("duplicate pool")
	ErrPoolNotFound            = errors.New("pool not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientVotingPower = errors.New("insufficient voting power")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrAlreadyInitialized      = errors.New("already initialized")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrArithmeticOverflow      = errors.New("arithmetic overflow")

	ErrNotInitialized   = errors.New("not initialized")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDuplicateGauge   = errors.New("duplicate gauge")
	ErrGaugeNotFound    = errors.New("gauge not found")
	ErrEpochLocked      = errors.New("voting epoch is locked")
	ErrTransferRejected = errors.New("transfer rejected by recipient")
	ErrNoLock           = errors.New("no escrow lock")
	ErrLockExists       = errors.New("escrow lock already exists")
	ErrLockNotExpired   = errors.New("escrow lock not expired")
)

// PayoutError reports a side-reward payout that could not be completed in full.
// Whatever was not paid stays owed to the account.
type PayoutError struct {
	Account Address
	Token   Address
	Paid    sdkmath.Int
	Unpaid  sdkmath.Int
	Cause   error
}

func (e *PayoutError) Error() string {
	return fmt.Sprintf("payout of %s to %s incomplete: paid %s, unpaid %s: %v",
		e.Token.Hex(), e.Account.Hex(), e.Paid, e.Unpaid, e.Cause)
}

func (e *PayoutError) Unwrap() error {
	return e.Cause
}
