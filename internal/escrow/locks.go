package escrow

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// change is one staged lock mutation. next nil means the lock is removed.
type change struct {
	kind    types.LockChangeKind
	account types.Address
	next    *types.EscrowLock
	deposit sdkmath.Int // moved account -> escrow
	refund  sdkmath.Int // moved escrow -> account
}

// CreateLock locks amount for duration seconds starting at now.
func (e *VoteEscrow) CreateLock(account types.Address, amount sdkmath.Int, duration, now uint64) (types.EscrowLock, error) {
	if err := e.validAmount(amount); err != nil {
		return types.EscrowLock{}, err
	}
	if err := e.validDuration(duration); err != nil {
		return types.EscrowLock{}, err
	}
	if _, ok := e.locks[account]; ok {
		return types.EscrowLock{}, fmt.Errorf("%w: %s", types.ErrLockExists, account.Hex())
	}
	next := types.EscrowLock{Account: account, Amount: amount, Start: now, End: now + duration}
	return next, e.apply(change{
		kind: types.LockCreated, account: account, next: &next,
		deposit: amount, refund: sdkmath.ZeroInt(),
	}, now)
}

// IncreaseAmount adds amount to an unexpired lock without moving its end.
func (e *VoteEscrow) IncreaseAmount(account types.Address, amount sdkmath.Int, now uint64) (types.EscrowLock, error) {
	if err := e.validAmount(amount); err != nil {
		return types.EscrowLock{}, err
	}
	cur, err := e.activeLock(account, now)
	if err != nil {
		return types.EscrowLock{}, err
	}
	next := cur
	if next.Amount, err = utils.SafeAdd(cur.Amount, amount); err != nil {
		return types.EscrowLock{}, err
	}
	if err := e.validAmount(next.Amount); err != nil {
		return types.EscrowLock{}, err
	}
	return next, e.apply(change{
		kind: types.LockIncreased, account: account, next: &next,
		deposit: amount, refund: sdkmath.ZeroInt(),
	}, now)
}

// ExtendLock restarts an unexpired lock at now for duration seconds. The new
// end must be later than the current one.
func (e *VoteEscrow) ExtendLock(account types.Address, duration, now uint64) (types.EscrowLock, error) {
	if err := e.validDuration(duration); err != nil {
		return types.EscrowLock{}, err
	}
	cur, err := e.activeLock(account, now)
	if err != nil {
		return types.EscrowLock{}, err
	}
	if now+duration <= cur.End {
		return types.EscrowLock{}, fmt.Errorf("%w: new end %d not after current end %d",
			types.ErrInvalidParameter, now+duration, cur.End)
	}
	next := cur
	next.Start = now
	next.End = now + duration
	return next, e.apply(change{
		kind: types.LockExtended, account: account, next: &next,
		deposit: sdkmath.ZeroInt(), refund: sdkmath.ZeroInt(),
	}, now)
}

// Withdraw returns the principal of an expired lock and removes it.
func (e *VoteEscrow) Withdraw(account types.Address, now uint64) (sdkmath.Int, error) {
	cur, ok := e.locks[account]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", types.ErrNoLock, account.Hex())
	}
	if now < cur.End {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: unlocks at %d", types.ErrLockNotExpired, cur.End)
	}
	err := e.apply(change{
		kind: types.LockWithdrawn, account: account,
		deposit: sdkmath.ZeroInt(), refund: cur.Amount,
	}, now)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return cur.Amount, nil
}

// Checkpoint re-publishes the account's current balance so listeners catch up
// with decay. Nothing is stored.
func (e *VoteEscrow) Checkpoint(account types.Address, now uint64) error {
	ev := e.event(types.LockCheckpoint, account, now)
	if err := e.publish(ev); err != nil {
		return fmt.Errorf("checkpoint %s: %w", account.Hex(), err)
	}
	return nil
}

func (e *VoteEscrow) activeLock(account types.Address, now uint64) (types.EscrowLock, error) {
	cur, ok := e.locks[account]
	if !ok {
		return cur, fmt.Errorf("%w: %s", types.ErrNoLock, account.Hex())
	}
	if now >= cur.End {
		return cur, fmt.Errorf("%w: lock of %s expired at %d", types.ErrInvalidParameter, account.Hex(), cur.End)
	}
	return cur, nil
}

func (e *VoteEscrow) validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: lock amount must be positive", types.ErrInvalidParameter)
	}
	// amount * maxLock must stay representable for BalanceOf
	if _, err := utils.SafeMul(amount, utils.Uint(e.maxLock)); err != nil {
		return err
	}
	return nil
}

func (e *VoteEscrow) validDuration(duration uint64) error {
	if duration == 0 || duration > e.maxLock {
		return fmt.Errorf("%w: lock duration %d outside (0, %d]", types.ErrInvalidParameter, duration, e.maxLock)
	}
	return nil
}

func (e *VoteEscrow) event(kind types.LockChangeKind, account types.Address, now uint64) types.LockChanged {
	return types.LockChanged{
		ID:        uuid.New(),
		Kind:      kind,
		Account:   account,
		Balance:   e.BalanceOf(account, now),
		Timestamp: now,
	}
}

func (e *VoteEscrow) publish(ev types.LockChanged) error {
	for i, l := range e.listeners {
		if err := l.OnLockChanged(ev); err != nil {
			return fmt.Errorf("listener %d rejected %s event %s: %w", i, ev.Kind, ev.ID, err)
		}
	}
	return nil
}

// apply moves tokens, stores the lock and publishes. If a listener rejects the
// event the previous lock and balances are restored and listeners are told the
// restored balance.
func (e *VoteEscrow) apply(c change, now uint64) error {
	prev, had := e.locks[c.account]

	if c.deposit.IsPositive() {
		if err := e.vault.Transfer(e.token, c.account, e.address, c.deposit); err != nil {
			return fmt.Errorf("lock %s: %w", c.account.Hex(), err)
		}
	}
	if c.refund.IsPositive() {
		if err := e.vault.Transfer(e.token, e.address, c.account, c.refund); err != nil {
			return fmt.Errorf("unlock %s: %w", c.account.Hex(), err)
		}
	}
	if c.next != nil {
		e.locks[c.account] = *c.next
	} else {
		delete(e.locks, c.account)
	}

	ev := e.event(c.kind, c.account, now)
	err := e.publish(ev)
	if err == nil {
		e.logger.Debug().
			Str("event", ev.ID.String()).
			Str("kind", string(c.kind)).
			Str("account", c.account.Hex()).
			Str("balance", ev.Balance.String()).
			Msg("Lock changed")
		return nil
	}

	if had {
		e.locks[c.account] = prev
	} else {
		delete(e.locks, c.account)
	}
	if c.deposit.IsPositive() {
		if rerr := e.vault.Transfer(e.token, e.address, c.account, c.deposit); rerr != nil {
			e.logger.Error().Err(rerr).Str("account", c.account.Hex()).Msg("Refund after rejected lock failed")
		}
	}
	if c.refund.IsPositive() {
		if rerr := e.vault.Transfer(e.token, c.account, e.address, c.refund); rerr != nil {
			e.logger.Error().Err(rerr).Str("account", c.account.Hex()).Msg("Re-escrow after rejected withdraw failed")
		}
	}
	restored := e.event(types.LockRestored, c.account, now)
	if rerr := e.publish(restored); rerr != nil {
		e.logger.Error().Err(rerr).Str("account", c.account.Hex()).Msg("Listener rejected restored lock")
	}
	e.logger.Warn().Err(err).Str("kind", string(c.kind)).Str("account", c.account.Hex()).Msg("Lock change rolled back")
	return err
}
