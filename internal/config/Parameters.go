/*

Default emission and voting parameters, taken from the mainnet deployment.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/types"
)

// DefaultFarmParameters is used for anything the environment leaves unset.
var DefaultFarmParameters = types.FarmParameters{
	// 0.91324200913242 HUM per second, 28.8M HUM per year.
	TokenPerSec: sdkmath.NewIntFromUint64(913242009132420000),

	// 37.5% of each pool's emission is split by stake, 62.5% by boosted factor.
	DilutingRepartition: 375,

	// A factor can reach 2.5x the staked amount.
	MaxBoost: 2500,

	Reason: "defaults",
}

const (
	// DefaultPoolAllocPoint is the base weight given to each stable LP pool.
	DefaultPoolAllocPoint = 100

	DefaultEpochLength     = 7 * 24 * 60 * 60 // one week
	DefaultVoteAllocPoints = 300

	// DefaultEscrowMaxLock is four years.
	DefaultEscrowMaxLock = 4 * 365 * 24 * 60 * 60

	DefaultKeeperInterval = 10 * time.Minute
)
