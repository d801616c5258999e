package vault

import (
	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
)

// NativeToken is the pseudo token address used for the chain-native asset.
var NativeToken = types.Address{
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
}

// TokenVault defines custody of every asset the farm, rewarders, bribes and escrow move.
// This interface abstracts away the settlement layer, so the accounting packages only
// see balances and transfers.
type TokenVault interface {
	// BalanceOf returns the holder's balance of token (NativeToken for the native asset).
	BalanceOf(token, holder types.Address) sdkmath.Int

	// Transfer moves amount of token from one holder to another.
	// It fails with types.ErrInsufficientBalance when from cannot cover amount.
	Transfer(token, from, to types.Address, amount sdkmath.Int) error

	// TransferNative moves native value. The recipient may refuse it, in which
	// case types.ErrTransferRejected is returned and nothing moves.
	TransferNative(from, to types.Address, amount sdkmath.Int) error
}
