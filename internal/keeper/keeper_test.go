package keeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hummus-exchange/farm/internal/escrow"
	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/vault"
	"github.com/hummus-exchange/farm/internal/voter"
)

var (
	admin      = common.HexToAddress("0x000000000000000000000000000000000000ad11")
	farmAddr   = common.HexToAddress("0x00000000000000000000000000000000000f4a11")
	voterAddr  = common.HexToAddress("0x000000000000000000000000000000000000707e")
	escrowAddr = common.HexToAddress("0x000000000000000000000000000000000000e5c0")
	hum        = common.HexToAddress("0x00000000000000000000000000000000000004b1")
	lpX        = common.HexToAddress("0x9E3F3Be65fEc3731197AFF816489eB1Eb6E6b830")
	lpY        = common.HexToAddress("0x9F51f0D7F500343E969D28010C7Eb0Db1bCaAEf9")
	metis      = common.HexToAddress("0xDeadDeAddeAddEAddeadDEaDDEAdDeaDDeAD0000")
	sideAddr   = common.HexToAddress("0x000000000000000000000000000000000000a77a")
	bribeAddr  = common.HexToAddress("0x000000000000000000000000000000000000b41b")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000a1ce0")
)

const t0 = int64(1_700_000_000)

type fakeStore struct {
	mu        sync.Mutex
	cycle     int
	snapshots []types.LedgerSnapshot
	ops       []types.OperationRecord
	params    []types.FarmParameters
	failOps   bool
}

func (s *fakeStore) NextCycle() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle++
	return s.cycle, nil
}

func (s *fakeStore) SaveSnapshot(_ int, snap types.LedgerSnapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return int64(len(s.snapshots)), nil
}

func (s *fakeStore) SaveOperations(records []types.OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOps {
		return errors.New("connection refused")
	}
	s.ops = append(s.ops, records...)
	return nil
}

func (s *fakeStore) SaveParameters(p types.FarmParameters) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, p)
	return int64(len(s.params)), nil
}

func (s *fakeStore) cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

type fixture struct {
	keeper *Keeper
	clock  *clockwork.FakeClock
	store  *fakeStore
	farm   *farm.Farm
	vault  *vault.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(t0, 0))
	now := uint64(t0)

	v := vault.NewLedger()
	esc, err := escrow.NewVoteEscrow(escrow.Config{Address: escrowAddr, Token: hum, Vault: v, MaxLock: 10_000})
	require.NoError(t, err)
	f, err := farm.NewFarm(farm.Config{Address: farmAddr, Admin: admin, Vault: v})
	require.NoError(t, err)
	require.NoError(t, f.Initialize(admin, farm.InitParams{
		Token: hum, Escrow: esc, TokenPerSec: sdkmath.NewInt(1_000), DilutingRepartition: 1000,
	}, now))
	require.NoError(t, f.SetVoter(admin, voterAddr))

	vt, err := voter.NewVoter(voter.Config{
		Address: voterAddr, Admin: admin, Farm: f, Escrow: esc,
		EpochLength: 1_000, VoteAllocPoints: 300, Start: now,
	})
	require.NoError(t, err)
	esc.Subscribe(f)
	esc.Subscribe(vt)

	require.NoError(t, v.Mint(hum, farmAddr, sdkmath.NewInt(1_000_000_000)))
	require.NoError(t, v.Mint(hum, alice, sdkmath.NewInt(1_000)))
	require.NoError(t, v.Mint(lpX, alice, sdkmath.NewInt(1_000)))

	store := &fakeStore{}
	k, err := NewKeeper(Config{Farm: f, Escrow: esc, Voter: vt, Vault: v, Store: store, Clock: clock})
	require.NoError(t, err)

	for _, lp := range []types.Address{lpX, lpY} {
		_, err := k.AddPool(admin, 100, lp, types.ZeroAddress)
		require.NoError(t, err)
		require.NoError(t, k.AddGauge(admin, farmAddr, lp, types.ZeroAddress))
	}
	return &fixture{keeper: k, clock: clock, store: store, farm: f, vault: v}
}

func TestNewKeeperValidation(t *testing.T) {
	_, err := NewKeeper(Config{})
	require.Error(t, err)
}

func TestOperationsAreJournaled(t *testing.T) {
	fx := newFixture(t)
	k := fx.keeper

	_, err := k.Deposit(0, alice, sdkmath.NewInt(1_000))
	require.NoError(t, err)
	fx.clock.Advance(100 * time.Second)

	r, err := k.Claim(0, alice)
	require.NoError(t, err)
	// 1000/s split evenly across two pools
	assert.Equal(t, sdkmath.NewInt(50_000), r.Paid)

	_, err = k.Withdraw(0, alice, sdkmath.NewInt(5_000))
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	require.NoError(t, k.RunCycle(context.Background()))
	assert.Zero(t, k.PendingJournal())

	var kinds []string
	for _, op := range fx.store.ops {
		kinds = append(kinds, op.Type)
	}
	assert.Equal(t, []string{"add_pool", "add_gauge", "add_pool", "add_gauge", "deposit", "claim", "withdraw", "distribute"}, kinds)

	withdraw := fx.store.ops[6]
	assert.False(t, withdraw.Success)
	assert.Contains(t, withdraw.Message, "insufficient")
	claim := fx.store.ops[5]
	require.NotNil(t, claim.PoolID)
	assert.Equal(t, types.PoolID(0), *claim.PoolID)
	assert.Equal(t, sdkmath.NewInt(50_000), claim.Reward)

	require.Len(t, fx.store.snapshots, 1)
	snap := fx.store.snapshots[0]
	assert.Equal(t, uint64(t0+100), snap.LedgerTime)
	assert.Len(t, snap.Farm.Pools, 2)
	assert.Equal(t, 1, fx.store.cycles())
}

func TestAdminChangesRecordParameters(t *testing.T) {
	fx := newFixture(t)
	k := fx.keeper

	require.ErrorIs(t, k.UpdateEmissionRate(alice, sdkmath.NewInt(5)), types.ErrUnauthorized)
	require.NoError(t, k.UpdateEmissionRate(admin, sdkmath.NewInt(2_000)))
	require.NoError(t, k.RunCycle(context.Background()))

	require.Len(t, fx.store.params, 3) // two add_pool, one rate change
	last := fx.store.params[2]
	assert.Equal(t, "update_emission_rate", last.Reason)
	assert.Equal(t, sdkmath.NewInt(2_000), last.TokenPerSec)
	assert.Equal(t, uint64(200), last.TotalAllocPoint)
}

func TestRewarderAttachedThroughKeeper(t *testing.T) {
	fx := newFixture(t)
	k := fx.keeper

	_, err := k.Deposit(0, alice, sdkmath.NewInt(1_000))
	require.NoError(t, err)

	info, err := k.CreateRewarder(admin, types.RewarderParams{
		Kind: "REWARDER", Address: sideAddr, RewardToken: metis, LPToken: lpX, TokenPerSec: sdkmath.NewInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, farmAddr, info.Operator)
	require.NoError(t, k.Mint(admin, metis, admin, sdkmath.NewInt(1_000_000)))
	require.NoError(t, k.FundRewarder(admin, sideAddr, sdkmath.NewInt(1_000_000)))

	require.NoError(t, k.SetPool(admin, 0, 100, sideAddr, true))
	fx.clock.Advance(100 * time.Second)

	r, err := k.Claim(0, alice)
	require.NoError(t, err)
	require.Len(t, r.Side, 1)
	assert.Equal(t, int64(1_000), r.Side[0].Paid.Int64())
	assert.Equal(t, int64(1_000), fx.vault.BalanceOf(metis, alice).Int64())

	_, err = k.CreateRewarder(admin, types.RewarderParams{
		Kind: "BRIBE", Address: bribeAddr, RewardToken: metis, LPToken: lpY, TokenPerSec: sdkmath.NewInt(1),
	})
	require.NoError(t, err)
	require.NoError(t, k.SetBribe(admin, lpY, bribeAddr))
	require.ErrorIs(t, k.SetBribe(admin, lpX, bribeAddr), types.ErrInvalidParameter)
	require.ErrorIs(t, k.SetPool(admin, 1, 100, bribeAddr, true), types.ErrInvalidParameter)
	require.ErrorIs(t, k.Mint(alice, metis, alice, sdkmath.NewInt(1)), types.ErrUnauthorized)
	_, err = k.CreateRewarder(admin, types.RewarderParams{Kind: "REWARDER", Address: sideAddr, RewardToken: metis, LPToken: lpX})
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	gauges := k.Gauges()
	assert.Equal(t, bribeAddr, gauges[1].Bribe)
	assert.Len(t, k.Rewarders(), 2)
}

func TestJournalIsRequeuedWhenStoreFails(t *testing.T) {
	fx := newFixture(t)
	k := fx.keeper
	fx.store.failOps = true

	_, err := k.Deposit(0, alice, sdkmath.NewInt(10))
	require.NoError(t, err)
	require.Error(t, k.RunCycle(context.Background()))
	pending := k.PendingJournal()
	assert.Greater(t, pending, 0)
	assert.Empty(t, fx.store.snapshots)

	fx.store.failOps = false
	require.NoError(t, k.RunCycle(context.Background()))
	assert.Zero(t, k.PendingJournal())
	// the failed cycle's records plus the second distribute
	assert.Len(t, fx.store.ops, pending+1)
}

func TestCycleRollsEpochAndPushesVotes(t *testing.T) {
	fx := newFixture(t)
	k := fx.keeper

	_, err := k.CreateLock(alice, sdkmath.NewInt(1_000), 10_000)
	require.NoError(t, err)
	_, err = k.Vote(alice, lpY, sdkmath.NewInt(1_000))
	require.NoError(t, err)

	fx.clock.Advance(1_500 * time.Second)
	assert.Equal(t, types.EpochLocked, k.Epoch().Phase)
	require.NoError(t, k.RunCycle(context.Background()))

	epoch := k.Epoch()
	assert.Equal(t, uint64(2), epoch.Number)
	assert.Equal(t, types.EpochOpen, epoch.Phase)

	py, err := k.Pool(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), py.VoteAllocPoint)
	assert.Equal(t, uint64(500), fx.farm.TotalAllocPoint())
	assert.Equal(t, sdkmath.NewInt(1_000), k.EscrowBalance(alice))
}

func TestRunLoopRunsOnEveryTick(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		fx.keeper.RunLoop(ctx, time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool { return fx.store.cycles() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, fx.clock.BlockUntilContext(ctx, 1))
	fx.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return fx.store.cycles() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keeper loop did not stop")
	}
}
