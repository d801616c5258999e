/*

Voting-escrow locks. An account locks the escrow token for up to MaxLock seconds
and receives a voting balance proportional to amount and lock length. Every
change is published synchronously as a types.LockChanged event; the farm and the
voter subscribe to keep boost factors and vote weights in step.

*/

package escrow

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
	"github.com/hummus-exchange/farm/internal/vault"
)

// Listener consumes lock changes. A non-nil error makes the escrow undo the
// change that produced the event.
type Listener interface {
	OnLockChanged(ev types.LockChanged) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev types.LockChanged) error

func (fn ListenerFunc) OnLockChanged(ev types.LockChanged) error { return fn(ev) }

type Config struct {
	Address types.Address // custody address of locked tokens
	Token   types.Address // token being locked
	Vault   vault.TokenVault
	MaxLock uint64 // seconds
	// Decaying selects a balance that falls linearly to zero at unlock. When
	// false the balance stays at its initial value until the lock expires.
	Decaying bool
}

type VoteEscrow struct {
	address  types.Address
	token    types.Address
	vault    vault.TokenVault
	maxLock  uint64
	decaying bool
	logger   zerolog.Logger

	locks     map[types.Address]types.EscrowLock
	listeners []Listener
}

func NewVoteEscrow(cfg Config) (*VoteEscrow, error) {
	if cfg.Address == types.ZeroAddress || cfg.Token == types.ZeroAddress {
		return nil, fmt.Errorf("%w: escrow and token address are required", types.ErrInvalidParameter)
	}
	if cfg.Vault == nil {
		return nil, fmt.Errorf("%w: vault cannot be nil", types.ErrInvalidParameter)
	}
	if cfg.MaxLock == 0 {
		return nil, fmt.Errorf("%w: max lock must be positive", types.ErrInvalidParameter)
	}
	return &VoteEscrow{
		address:  cfg.Address,
		token:    cfg.Token,
		vault:    cfg.Vault,
		maxLock:  cfg.MaxLock,
		decaying: cfg.Decaying,
		logger:   logger.GetForComponent("escrow"),
		locks:    make(map[types.Address]types.EscrowLock),
	}, nil
}

// Subscribe registers l. Listeners are called in subscription order.
func (e *VoteEscrow) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

func (e *VoteEscrow) Address() types.Address { return e.address }

func (e *VoteEscrow) Token() types.Address { return e.token }

func (e *VoteEscrow) MaxLock() uint64 { return e.maxLock }

func (e *VoteEscrow) Decaying() bool { return e.decaying }

// Lock returns the account's lock, if any.
func (e *VoteEscrow) Lock(account types.Address) (types.EscrowLock, bool) {
	l, ok := e.locks[account]
	return l, ok
}

// Holders returns every account with a lock, in address order.
func (e *VoteEscrow) Holders() []types.Address {
	out := make([]types.Address, 0, len(e.locks))
	for a := range e.locks {
		out = append(out, a)
	}
	utils.SortAddresses(out)
	return out
}

// TotalLocked is the principal held by the escrow.
func (e *VoteEscrow) TotalLocked() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, l := range e.locks {
		total = total.Add(l.Amount)
	}
	return total
}

// BalanceOf returns the voting balance of account at now.
func (e *VoteEscrow) BalanceOf(account types.Address, now uint64) sdkmath.Int {
	l, ok := e.locks[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return e.balanceOf(l, now)
}

func (e *VoteEscrow) balanceOf(l types.EscrowLock, now uint64) sdkmath.Int {
	if now >= l.End || l.Amount.IsZero() {
		return sdkmath.ZeroInt()
	}
	remaining := l.End - l.Start
	if e.decaying {
		remaining = l.End - now
	}
	return l.Amount.Mul(utils.Uint(remaining)).Quo(utils.Uint(e.maxLock))
}

// TotalSupply sums every voting balance at now.
func (e *VoteEscrow) TotalSupply(now uint64) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, l := range e.locks {
		total = total.Add(e.balanceOf(l, now))
	}
	return total
}
