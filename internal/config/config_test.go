package config

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FARM_ADMIN", "0x08961b470a39bEE12435f3742aFaA70B64DCa893")
	t.Setenv("FARM_ADDRESS", "0x9cadd693cDb2B118F00252Bb3be4C6Df6A74d42C")
	t.Setenv("VOTER_ADDRESS", "0x000000000000000000000000000000000000707e")
	t.Setenv("ESCROW_ADDRESS", "0x89351BEAA4AbbA563710864051a8C253E7b3E16d")
	t.Setenv("REWARD_TOKEN", "0x4aAC94985cD83be30164DfE7e9AF7C054D7d2121")
	t.Setenv("DB_HOST", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	require.NoError(t, LoadConfig())

	assert.Equal(t, common.HexToAddress("0x4aAC94985cD83be30164DfE7e9AF7C054D7d2121"), RewardToken)
	assert.Equal(t, sdkmath.NewInt(913242009132420000), TokenPerSec)
	assert.Equal(t, uint64(375), DilutingRepartition)
	assert.Equal(t, uint64(2500), MaxBoost)
	assert.Equal(t, uint64(DefaultEpochLength), EpochLength)
	assert.Equal(t, DefaultKeeperInterval, KeeperInterval)
	assert.Equal(t, "8080", WebPort)
	assert.False(t, DBEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_PER_SEC", "1000000000000000000000000000000")
	t.Setenv("ESCROW_DECAYING", "true")
	t.Setenv("KEEPER_INTERVAL", "30s")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "farm")
	t.Setenv("DB_NAME", "farm")
	require.NoError(t, LoadConfig())

	want, _ := sdkmath.NewIntFromString("1000000000000000000000000000000")
	assert.Equal(t, want, TokenPerSec)
	assert.True(t, EscrowDecaying)
	assert.Equal(t, 30*time.Second, KeeperInterval)
	assert.True(t, DBEnabled)
	assert.Equal(t, 5432, DBPort)
	assert.Equal(t, "disable", DBSSLMode)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"FARM_ADMIN":           "not-an-address",
		"TOKEN_PER_SEC":        "-1",
		"DILUTING_REPARTITION": "abc",
		"ESCROW_DECAYING":      "maybe",
		"KEEPER_INTERVAL":      "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)
			require.Error(t, LoadConfig())
		})
	}
}

func TestLPLabels(t *testing.T) {
	labels := LPLabels()
	assert.Equal(t, "HLPUSDC", labels[common.HexToAddress("0x9E3F3Be65fEc3731197AFF816489eB1Eb6E6b830")])
	assert.Len(t, labels, len(LPTokens))
}

func TestFarmReserveInWholeTokens(t *testing.T) {
	setRequired(t)
	t.Setenv("FARM_RESERVE", "1.5")
	require.NoError(t, LoadConfig())
	assert.Equal(t, sdkmath.NewInt(1_500_000_000_000_000_000), FarmReserve)
}
