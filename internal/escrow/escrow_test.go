package escrow

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/vault"
)

var (
	escrowAddr = common.HexToAddress("0x000000000000000000000000000000000000e5c0")
	hum        = common.HexToAddress("0x00000000000000000000000000000000000004b1")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000a1ce0")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

const (
	t0      = uint64(1_700_000_000)
	maxLock = uint64(1_000)
)

type recorder struct {
	events []types.LockChanged
	fail   bool
}

func (r *recorder) OnLockChanged(ev types.LockChanged) error {
	r.events = append(r.events, ev)
	if r.fail && ev.Kind != types.LockRestored {
		return errors.New("rejected")
	}
	return nil
}

func newEscrow(t *testing.T, decaying bool) (*VoteEscrow, *vault.Ledger) {
	t.Helper()
	v := vault.NewLedger()
	require.NoError(t, v.Mint(hum, alice, sdkmath.NewInt(10_000)))
	require.NoError(t, v.Mint(hum, bob, sdkmath.NewInt(10_000)))
	e, err := NewVoteEscrow(Config{Address: escrowAddr, Token: hum, Vault: v, MaxLock: maxLock, Decaying: decaying})
	require.NoError(t, err)
	return e, v
}

func TestBalanceCurves(t *testing.T) {
	tests := []struct {
		name     string
		decaying bool
		at       uint64
		want     int64
	}{
		{"decaying at start", true, t0, 500},
		{"decaying halfway", true, t0 + 250, 250},
		{"decaying at end", true, t0 + 500, 0},
		{"flat at start", false, t0, 500},
		{"flat before end", false, t0 + 499, 500},
		{"flat at end", false, t0 + 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEscrow(t, tt.decaying)
			_, err := e.CreateLock(alice, sdkmath.NewInt(1_000), 500, t0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.BalanceOf(alice, tt.at).Int64())
		})
	}
}

func TestLockLifecycle(t *testing.T) {
	e, v := newEscrow(t, true)
	rec := &recorder{}
	e.Subscribe(rec)

	_, err := e.CreateLock(alice, sdkmath.NewInt(1_000), 1_000, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), v.BalanceOf(hum, alice).Int64())

	_, err = e.CreateLock(alice, sdkmath.NewInt(1), 10, t0)
	require.ErrorIs(t, err, types.ErrLockExists)

	lock, err := e.IncreaseAmount(alice, sdkmath.NewInt(1_000), t0+500)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), lock.Amount.Int64())
	assert.Equal(t, int64(1_000), e.BalanceOf(alice, t0+500).Int64())

	_, err = e.ExtendLock(alice, 400, t0+500)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
	lock, err = e.ExtendLock(alice, 1_000, t0+500)
	require.NoError(t, err)
	assert.Equal(t, t0+1_500, lock.End)

	_, err = e.Withdraw(alice, t0+1_000)
	require.ErrorIs(t, err, types.ErrLockNotExpired)

	amount, err := e.Withdraw(alice, t0+1_500)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), amount.Int64())
	assert.Equal(t, int64(10_000), v.BalanceOf(hum, alice).Int64())

	kinds := make([]types.LockChangeKind, 0, len(rec.events))
	for _, ev := range rec.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []types.LockChangeKind{
		types.LockCreated, types.LockIncreased, types.LockExtended, types.LockWithdrawn,
	}, kinds)
	assert.True(t, rec.events[3].Balance.IsZero())
	assert.Empty(t, e.Holders())
}

func TestListenerRejectionRestoresLock(t *testing.T) {
	e, v := newEscrow(t, false)
	ok := &recorder{}
	bad := &recorder{}
	e.Subscribe(ok)
	e.Subscribe(bad)

	_, err := e.CreateLock(alice, sdkmath.NewInt(1_000), 1_000, t0)
	require.NoError(t, err)

	bad.fail = true
	_, err = e.IncreaseAmount(alice, sdkmath.NewInt(500), t0+10)
	require.Error(t, err)

	lock, found := e.Lock(alice)
	require.True(t, found)
	assert.Equal(t, int64(1_000), lock.Amount.Int64())
	assert.Equal(t, int64(9_000), v.BalanceOf(hum, alice).Int64())

	last := ok.events[len(ok.events)-1]
	assert.Equal(t, types.LockRestored, last.Kind)
	assert.Equal(t, int64(1_000), last.Balance.Int64())
}

func TestCheckpointPublishesDecay(t *testing.T) {
	e, _ := newEscrow(t, true)
	rec := &recorder{}
	e.Subscribe(ListenerFunc(rec.OnLockChanged))

	_, err := e.CreateLock(bob, sdkmath.NewInt(1_000), 1_000, t0)
	require.NoError(t, err)
	require.NoError(t, e.Checkpoint(bob, t0+600))

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, types.LockCheckpoint, last.Kind)
	assert.Equal(t, int64(400), last.Balance.Int64())
	assert.NotEqual(t, rec.events[0].ID, last.ID)
}

func TestLockValidation(t *testing.T) {
	e, _ := newEscrow(t, true)

	_, err := e.CreateLock(alice, sdkmath.ZeroInt(), 10, t0)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
	_, err = e.CreateLock(alice, sdkmath.NewInt(1), maxLock+1, t0)
	require.ErrorIs(t, err, types.ErrInvalidParameter)
	_, err = e.CreateLock(alice, sdkmath.NewInt(20_000), 10, t0)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
	_, err = e.IncreaseAmount(bob, sdkmath.NewInt(1), t0)
	require.ErrorIs(t, err, types.ErrNoLock)
	_, err = e.Withdraw(bob, t0)
	require.ErrorIs(t, err, types.ErrNoLock)

	_, ok := e.Lock(alice)
	assert.False(t, ok)
}
