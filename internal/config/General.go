package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// FarmAdmin may add pools, change weights and emission parameters.
	FarmAdmin types.Address
	// FarmAddress holds staked LP tokens and the base reward balance.
	FarmAddress types.Address
	VoterAddress  types.Address
	EscrowAddress types.Address
	// RewardToken is emitted by the farm and locked in the escrow.
	RewardToken types.Address

	TokenPerSec         sdkmath.Int
	DilutingRepartition uint64
	MaxBoost            uint64
	StartTimestamp      uint64

	EpochLength     uint64
	VoteAllocPoints uint64

	EscrowMaxLock  uint64
	EscrowDecaying bool

	// FarmReserve is the reward balance minted to the farm at start. Zero
	// means one year of emission at TokenPerSec.
	FarmReserve sdkmath.Int

	KeeperInterval time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Addresses are required; emission parameters fall back to Parameters.go.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	if FarmAdmin, err = getEnvAsAddress("FARM_ADMIN"); err != nil {
		return err
	}
	if FarmAddress, err = getEnvAsAddress("FARM_ADDRESS"); err != nil {
		return err
	}
	if VoterAddress, err = getEnvAsAddress("VOTER_ADDRESS"); err != nil {
		return err
	}
	if EscrowAddress, err = getEnvAsAddress("ESCROW_ADDRESS"); err != nil {
		return err
	}
	if RewardToken, err = getEnvAsAddress("REWARD_TOKEN"); err != nil {
		return err
	}

	if TokenPerSec, err = getEnvAsIntOr("TOKEN_PER_SEC", DefaultFarmParameters.TokenPerSec); err != nil {
		return err
	}
	if DilutingRepartition, err = getEnvAsUint64Or("DILUTING_REPARTITION", DefaultFarmParameters.DilutingRepartition); err != nil {
		return err
	}
	if MaxBoost, err = getEnvAsUint64Or("MAX_BOOST", DefaultFarmParameters.MaxBoost); err != nil {
		return err
	}
	if StartTimestamp, err = getEnvAsUint64Or("START_TIMESTAMP", 0); err != nil {
		return err
	}
	if EpochLength, err = getEnvAsUint64Or("EPOCH_LENGTH_SECONDS", DefaultEpochLength); err != nil {
		return err
	}
	if VoteAllocPoints, err = getEnvAsUint64Or("VOTE_ALLOC_POINTS", DefaultVoteAllocPoints); err != nil {
		return err
	}
	if EscrowMaxLock, err = getEnvAsUint64Or("ESCROW_MAX_LOCK_SECONDS", DefaultEscrowMaxLock); err != nil {
		return err
	}
	if EscrowDecaying, err = getEnvAsBoolOr("ESCROW_DECAYING", false); err != nil {
		return err
	}
	if FarmReserve, err = getEnvAsTokensOr("FARM_RESERVE", sdkmath.ZeroInt()); err != nil {
		return err
	}
	if KeeperInterval, err = getEnvAsDurationOr("KEEPER_INTERVAL", DefaultKeeperInterval); err != nil {
		return err
	}

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("FarmAddress", FarmAddress.Hex()).
		Str("RewardToken", RewardToken.Hex()).
		Str("TokenPerSec", TokenPerSec.String()).
		Uint64("DilutingRepartition", DilutingRepartition).
		Dur("KeeperInterval", KeeperInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsAddress(key string) (types.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return types.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return types.Address{}, errors.New("environment variable " + key + " must be a hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

func getEnvAsUint64Or(key string, fallback uint64) (uint64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsIntOr reads a base-10 integer of arbitrary size (token amounts in wei).
func getEnvAsIntOr(key string, fallback sdkmath.Int) (sdkmath.Int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := utils.ParseInt(valueStr)
	if err != nil {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a non-negative integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsTokensOr reads a decimal amount of whole 18-decimal tokens ("1.5").
func getEnvAsTokensOr(key string, fallback sdkmath.Int) (sdkmath.Int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := utils.ParseUnits(valueStr, 18)
	if err != nil {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a token amount, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsBoolOr(key string, fallback bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a boolean, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsDurationOr(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}
