/*

In-memory implementation of TokenVault. It is the settlement layer used by the
daemon and by tests: a multi-asset balance sheet with minting for operators and
per-account refusal of native value (contracts without a receive hook).

*/

package vault

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

type Ledger struct {
	mu       sync.RWMutex
	balances map[types.Address]map[types.Address]sdkmath.Int // token -> holder -> amount
	rejects  map[types.Address]bool
	supply   map[types.Address]sdkmath.Int
	logger   zerolog.Logger
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[types.Address]map[types.Address]sdkmath.Int),
		rejects:  make(map[types.Address]bool),
		supply:   make(map[types.Address]sdkmath.Int),
		logger:   logger.GetForComponent("vault"),
	}
}

var _ TokenVault = (*Ledger)(nil)

func (l *Ledger) balanceLocked(token, holder types.Address) sdkmath.Int {
	if byHolder, ok := l.balances[token]; ok {
		if b, ok := byHolder[holder]; ok {
			return b
		}
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) setLocked(token, holder types.Address, amount sdkmath.Int) {
	byHolder, ok := l.balances[token]
	if !ok {
		byHolder = make(map[types.Address]sdkmath.Int)
		l.balances[token] = byHolder
	}
	byHolder[holder] = amount
}

func (l *Ledger) BalanceOf(token, holder types.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(token, holder)
}

// Mint credits amount of token to holder out of thin air.
func (l *Ledger) Mint(token, to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: mint amount %v", types.ErrInvalidParameter, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, err := utils.SafeAdd(l.balanceLocked(token, to), amount)
	if err != nil {
		return err
	}
	supply, ok := l.supply[token]
	if !ok {
		supply = sdkmath.ZeroInt()
	}
	supply, err = utils.SafeAdd(supply, amount)
	if err != nil {
		return err
	}
	l.setLocked(token, to, bal)
	l.supply[token] = supply
	l.logger.Debug().Str("token", token.Hex()).Str("to", to.Hex()).Str("amount", amount.String()).Msg("Minted")
	return nil
}

// TotalSupply returns everything minted for token.
func (l *Ledger) TotalSupply(token types.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.supply[token]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// RejectNative makes holder refuse (or accept again) incoming native transfers.
func (l *Ledger) RejectNative(holder types.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reject {
		l.rejects[holder] = true
	} else {
		delete(l.rejects, holder)
	}
}

func (l *Ledger) Transfer(token, from, to types.Address, amount sdkmath.Int) error {
	if token == NativeToken {
		return l.TransferNative(from, to, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(token, from, to, amount)
}

func (l *Ledger) TransferNative(from, to types.Address, amount sdkmath.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rejects[to] {
		return fmt.Errorf("%w: %s refuses native value", types.ErrTransferRejected, to.Hex())
	}
	return l.transferLocked(NativeToken, from, to, amount)
}

func (l *Ledger) transferLocked(token, from, to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: transfer amount %v", types.ErrInvalidParameter, amount)
	}
	if amount.IsZero() || from == to {
		return nil
	}
	fromBal := l.balanceLocked(token, from)
	if fromBal.LT(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			types.ErrInsufficientBalance, from.Hex(), fromBal, token.Hex(), amount)
	}
	toBal, err := utils.SafeAdd(l.balanceLocked(token, to), amount)
	if err != nil {
		return err
	}
	l.setLocked(token, from, fromBal.Sub(amount))
	l.setLocked(token, to, toBal)
	return nil
}

// Holders lists accounts with a non-zero balance of token, sorted by address.
func (l *Ledger) Holders(token types.Address) []types.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Address, 0, len(l.balances[token]))
	for h, b := range l.balances[token] {
		if b.IsPositive() {
			out = append(out, h)
		}
	}
	utils.SortAddresses(out)
	return out
}
