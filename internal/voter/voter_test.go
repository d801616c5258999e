package voter

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hummus-exchange/farm/internal/escrow"
	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/rewarder"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/vault"
)

var (
	admin      = common.HexToAddress("0x000000000000000000000000000000000000ad11")
	farmAddr   = common.HexToAddress("0x00000000000000000000000000000000000f4a11")
	voterAddr  = common.HexToAddress("0x000000000000000000000000000000000000707e")
	escrowAddr = common.HexToAddress("0x000000000000000000000000000000000000e5c0")
	bribeAddr  = common.HexToAddress("0x000000000000000000000000000000000000b41b")
	hum        = common.HexToAddress("0x00000000000000000000000000000000000004b1")
	metis      = common.HexToAddress("0xDeadDeAddeAddEAddeadDEaDDEAdDeaDDeAD0000")
	lpX        = common.HexToAddress("0x9E3F3Be65fEc3731197AFF816489eB1Eb6E6b830")
	lpY        = common.HexToAddress("0x9F51f0D7F500343E969D28010C7Eb0Db1bCaAEf9")
	lpZ        = common.HexToAddress("0xd5A0760D55ad46B6A1C46D28725e4C117312a7aD")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000a1ce0")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol      = common.HexToAddress("0x000000000000000000000000000000000000ca50")
)

const (
	t0          = uint64(1_700_000_000)
	epochLength = uint64(1_000)
)

type harness struct {
	vault  *vault.Ledger
	farm   *farm.Farm
	escrow *escrow.VoteEscrow
	voter  *Voter
	bribe  *rewarder.Rewarder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	v := vault.NewLedger()
	esc, err := escrow.NewVoteEscrow(escrow.Config{Address: escrowAddr, Token: hum, Vault: v, MaxLock: 10_000})
	require.NoError(t, err)

	f, err := farm.NewFarm(farm.Config{Address: farmAddr, Admin: admin, Vault: v})
	require.NoError(t, err)
	require.NoError(t, f.Initialize(admin, farm.InitParams{
		Token: hum, Escrow: esc, TokenPerSec: sdkmath.NewInt(1_000), DilutingRepartition: 1000,
	}, t0))
	for _, lp := range []types.Address{lpX, lpY, lpZ} {
		_, err := f.Add(admin, 100, lp, nil, t0)
		require.NoError(t, err)
	}
	require.NoError(t, f.SetVoter(admin, voterAddr))

	vt, err := NewVoter(Config{
		Address: voterAddr, Admin: admin, Farm: f, Escrow: esc,
		EpochLength: epochLength, VoteAllocPoints: 300, Start: t0,
	})
	require.NoError(t, err)

	bribe, err := rewarder.NewBribe(rewarder.Deps{Address: bribeAddr, Admin: admin, Vault: v}, voterAddr, lpY, metis, sdkmath.NewInt(10), false)
	require.NoError(t, err)
	require.NoError(t, v.Mint(metis, admin, sdkmath.NewInt(1_000_000)))
	require.NoError(t, bribe.Fund(admin, sdkmath.NewInt(1_000_000)))

	require.NoError(t, vt.AddGauge(admin, farmAddr, lpX, nil))
	require.NoError(t, vt.AddGauge(admin, farmAddr, lpY, bribe))
	require.NoError(t, vt.AddGauge(admin, farmAddr, lpZ, nil))

	esc.Subscribe(f)
	esc.Subscribe(vt)

	for acct, amount := range map[types.Address]int64{alice: 1_000, bob: 500, carol: 200} {
		require.NoError(t, v.Mint(hum, acct, sdkmath.NewInt(amount)))
	}
	// non-decaying, a full-length lock gives balance == amount
	_, err = esc.CreateLock(alice, sdkmath.NewInt(1_000), 10_000, t0)
	require.NoError(t, err)
	_, err = esc.CreateLock(bob, sdkmath.NewInt(500), 10_000, t0)
	require.NoError(t, err)

	return &harness{vault: v, farm: f, escrow: esc, voter: vt, bribe: bribe}
}

func (h *harness) voteAlloc(t *testing.T, lp types.Address) uint64 {
	t.Helper()
	pid, err := h.farm.PoolIDByToken(lp)
	require.NoError(t, err)
	p, err := h.farm.Pool(pid)
	require.NoError(t, err)
	return p.VoteAllocPoint
}

func TestVoteReallocation(t *testing.T) {
	h := newHarness(t)

	_, err := h.voter.Vote(bob, lpZ, sdkmath.NewInt(500), t0+10)
	require.NoError(t, err)
	_, err = h.voter.Vote(alice, lpX, sdkmath.NewInt(1_000), t0+10)
	require.NoError(t, err)

	pushed, err := h.voter.Distribute(t0 + 20)
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, uint64(200), h.voteAlloc(t, lpX))
	assert.Equal(t, uint64(0), h.voteAlloc(t, lpY))
	assert.Equal(t, uint64(100), h.voteAlloc(t, lpZ))

	_, err = h.voter.VoteMany(alice, []types.VoteAllocation{
		{LPToken: lpX, Weight: sdkmath.ZeroInt()},
		{LPToken: lpY, Weight: sdkmath.NewInt(1_000)},
	}, t0+30)
	require.NoError(t, err)

	_, err = h.voter.Distribute(t0 + 40)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.voteAlloc(t, lpX))
	assert.Equal(t, uint64(200), h.voteAlloc(t, lpY))
	assert.Equal(t, uint64(100), h.voteAlloc(t, lpZ))

	px, _ := h.farm.Pool(0)
	assert.Equal(t, uint64(100), px.AllocPoint())
	assert.Equal(t, uint64(600), h.farm.TotalAllocPoint())
	assert.Equal(t, []types.VoteAllocation{{LPToken: lpY, Weight: sdkmath.NewInt(1_000)}}, h.voter.VotesOf(alice))
	require.NoError(t, h.farm.CheckInvariants())
}

func TestDistributeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, err := h.voter.Vote(alice, lpX, sdkmath.NewInt(600), t0+10)
	require.NoError(t, err)

	pushed, err := h.voter.Distribute(t0 + 20)
	require.NoError(t, err)
	require.True(t, pushed)
	before := h.farm.Pools()

	pushed, err = h.voter.Distribute(t0 + 50)
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Equal(t, before, h.farm.Pools())
}

func TestInsufficientVotingPower(t *testing.T) {
	h := newHarness(t)

	_, err := h.voter.Vote(bob, lpX, sdkmath.NewInt(501), t0+1)
	require.ErrorIs(t, err, types.ErrInsufficientVotingPower)

	_, err = h.voter.VoteMany(bob, []types.VoteAllocation{
		{LPToken: lpX, Weight: sdkmath.NewInt(300)},
		{LPToken: lpZ, Weight: sdkmath.NewInt(300)},
	}, t0+1)
	require.ErrorIs(t, err, types.ErrInsufficientVotingPower)
	assert.True(t, h.voter.UsedWeight(bob).IsZero())
	assert.Empty(t, h.voter.VotesOf(bob))

	_, err = h.voter.Vote(bob, lpX, sdkmath.NewInt(500), t0+1)
	require.NoError(t, err)
	// moving everything at once never needs spare power
	_, err = h.voter.VoteMany(bob, []types.VoteAllocation{
		{LPToken: lpZ, Weight: sdkmath.NewInt(500)},
		{LPToken: lpX, Weight: sdkmath.ZeroInt()},
	}, t0+2)
	require.NoError(t, err)
	assert.Equal(t, int64(500), h.voter.UsedWeight(bob).Int64())

	_, err = h.voter.Vote(bob, carol, sdkmath.NewInt(1), t0+3)
	require.ErrorIs(t, err, types.ErrGaugeNotFound)
}

func TestEpochLocksUntilDistribute(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, types.EpochOpen, h.voter.Phase(t0+999))
	assert.Equal(t, types.EpochLocked, h.voter.Phase(t0+epochLength))

	_, err := h.voter.Vote(alice, lpX, sdkmath.NewInt(10), t0+epochLength)
	require.ErrorIs(t, err, types.ErrEpochLocked)

	pushed, err := h.voter.Distribute(t0 + epochLength + 5)
	require.NoError(t, err)
	assert.True(t, pushed)

	info := h.voter.Epoch(t0 + epochLength + 5)
	assert.Equal(t, uint64(2), info.Number)
	assert.Equal(t, t0+epochLength, info.Start)
	assert.Equal(t, types.EpochOpen, info.Phase)

	_, err = h.voter.Vote(alice, lpX, sdkmath.NewInt(10), t0+epochLength+6)
	require.NoError(t, err)

	// several epochs skipped at once
	_, err = h.voter.Distribute(t0 + 5*epochLength + 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), h.voter.Epoch(t0+5*epochLength+1).Number)
}

func TestLockWithdrawResetsVotes(t *testing.T) {
	h := newHarness(t)
	_, err := h.escrow.CreateLock(carol, sdkmath.NewInt(200), 100, t0)
	require.NoError(t, err)
	// short lock: 200 * 100 / 10000
	assert.Equal(t, int64(2), h.escrow.BalanceOf(carol, t0+1).Int64())

	_, err = h.voter.Vote(carol, lpZ, sdkmath.NewInt(2), t0+10)
	require.NoError(t, err)
	_, err = h.voter.Vote(alice, lpX, sdkmath.NewInt(2), t0+10)
	require.NoError(t, err)

	_, err = h.escrow.Withdraw(carol, t0+100)
	require.NoError(t, err)
	assert.True(t, h.voter.UsedWeight(carol).IsZero())

	for _, g := range h.voter.Gauges() {
		if g.LPToken == lpZ {
			assert.True(t, g.Votes.IsZero())
		}
	}
	_, err = h.voter.Distribute(t0 + 110)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), h.voteAlloc(t, lpX))
	assert.Equal(t, uint64(0), h.voteAlloc(t, lpZ))
}

func TestBribeFollowsVotes(t *testing.T) {
	h := newHarness(t)

	receipts, err := h.voter.Vote(alice, lpY, sdkmath.NewInt(300), t0+10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, bribeAddr, receipts[0].Rewarder)

	_, err = h.voter.Vote(bob, lpY, sdkmath.NewInt(100), t0+10)
	require.NoError(t, err)

	pa, err := h.bribe.PendingTokens(alice, t0+110)
	require.NoError(t, err)
	pb, err := h.bribe.PendingTokens(bob, t0+110)
	require.NoError(t, err)
	assert.Equal(t, int64(750), pa.Int64())
	assert.Equal(t, int64(250), pb.Int64())

	receipts, err = h.voter.Vote(alice, lpY, sdkmath.ZeroInt(), t0+110)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, int64(750), receipts[0].Paid.Int64())
	assert.Equal(t, int64(750), h.vault.BalanceOf(metis, alice).Int64())
}

func TestNewBribeStartsFromCurrentVotes(t *testing.T) {
	h := newHarness(t)

	_, err := h.voter.Vote(alice, lpX, sdkmath.NewInt(300), t0+5)
	require.NoError(t, err)
	_, err = h.voter.Vote(bob, lpX, sdkmath.NewInt(100), t0+5)
	require.NoError(t, err)

	late := common.HexToAddress("0x000000000000000000000000000000000000b42b")
	bribe, err := rewarder.NewBribe(rewarder.Deps{Address: late, Admin: admin, Vault: h.vault}, voterAddr, lpX, metis, sdkmath.NewInt(10), false)
	require.NoError(t, err)
	require.NoError(t, h.vault.Mint(metis, admin, sdkmath.NewInt(1_000_000)))
	require.NoError(t, bribe.Fund(admin, sdkmath.NewInt(1_000_000)))

	require.NoError(t, h.voter.SetBribe(admin, lpX, bribe, t0+10))
	assert.Equal(t, int64(400), bribe.Info().TotalShares.Int64())

	pa, err := bribe.PendingTokens(alice, t0+110)
	require.NoError(t, err)
	pb, err := bribe.PendingTokens(bob, t0+110)
	require.NoError(t, err)
	assert.Equal(t, int64(750), pa.Int64())
	assert.Equal(t, int64(250), pb.Int64())

	// detaching settles both voters and leaves no shares behind
	require.NoError(t, h.voter.SetBribe(admin, lpX, nil, t0+110))
	assert.True(t, bribe.Info().TotalShares.IsZero())
	assert.Equal(t, int64(750), h.vault.BalanceOf(metis, alice).Int64())
	assert.Equal(t, int64(250), h.vault.BalanceOf(metis, bob).Int64())
}

func TestGaugeAdministration(t *testing.T) {
	h := newHarness(t)

	err := h.voter.AddGauge(bob, farmAddr, lpX, nil)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	err = h.voter.AddGauge(admin, farmAddr, lpX, nil)
	require.ErrorIs(t, err, types.ErrDuplicateGauge)
	err = h.voter.AddGauge(admin, farmAddr, carol, nil)
	require.ErrorIs(t, err, types.ErrPoolNotFound)

	require.NoError(t, h.voter.SetBribe(admin, lpY, nil, t0))
	_, ok := h.voter.Bribe(lpY)
	assert.False(t, ok)
	require.ErrorIs(t, h.voter.SetBribe(admin, carol, nil, t0), types.ErrGaugeNotFound)

	assert.Len(t, h.voter.Gauges(), 3)
}
