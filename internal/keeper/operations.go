package keeper

import (
	sdkmath "cosmossdk.io/math"

	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/types"
)

func zero() sdkmath.Int { return sdkmath.ZeroInt() }

func (k *Keeper) Deposit(pid types.PoolID, account types.Address, amount sdkmath.Int) (types.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	r, err := k.farm.Deposit(pid, account, amount, k.Now())
	k.record("deposit", &pid, account, amount, r.Paid, err)
	return r, err
}

func (k *Keeper) Withdraw(pid types.PoolID, account types.Address, amount sdkmath.Int) (types.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	r, err := k.farm.Withdraw(pid, account, amount, k.Now())
	k.record("withdraw", &pid, account, amount, r.Paid, err)
	return r, err
}

func (k *Keeper) Claim(pid types.PoolID, account types.Address) (types.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	r, err := k.farm.Claim(pid, account, k.Now())
	k.record("claim", &pid, account, zero(), r.Paid, err)
	return r, err
}

// MultiClaim journals one record per pool that produced a receipt.
func (k *Keeper) MultiClaim(pids []types.PoolID, account types.Address) ([]types.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	receipts, err := k.farm.MultiClaim(pids, account, k.Now())
	for _, r := range receipts {
		pid := r.PoolID
		k.record("claim", &pid, account, zero(), r.Paid, nil)
	}
	if err != nil {
		k.record("multi_claim", nil, account, zero(), zero(), err)
	}
	return receipts, err
}

func (k *Keeper) EmergencyWithdraw(pid types.PoolID, account types.Address) (types.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	staked := zero()
	if pos, ok := k.farm.Position(pid, account); ok {
		staked = pos.Amount
	}
	r, err := k.farm.EmergencyWithdraw(pid, account, k.Now())
	k.record("emergency_withdraw", &pid, account, staked, zero(), err)
	return r, err
}

func (k *Keeper) SyncFactor(pid types.PoolID, account types.Address) (types.UserPosition, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pos, err := k.farm.SyncFactor(pid, account, k.Now())
	k.record("sync_factor", &pid, account, zero(), zero(), err)
	return pos, err
}

// Escrow

func (k *Keeper) CreateLock(account types.Address, amount sdkmath.Int, duration uint64) (types.EscrowLock, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, err := k.escrow.CreateLock(account, amount, duration, k.Now())
	k.record("create_lock", nil, account, amount, zero(), err)
	return l, err
}

func (k *Keeper) IncreaseLockAmount(account types.Address, amount sdkmath.Int) (types.EscrowLock, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, err := k.escrow.IncreaseAmount(account, amount, k.Now())
	k.record("increase_lock", nil, account, amount, zero(), err)
	return l, err
}

func (k *Keeper) ExtendLock(account types.Address, duration uint64) (types.EscrowLock, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, err := k.escrow.ExtendLock(account, duration, k.Now())
	k.record("extend_lock", nil, account, zero(), zero(), err)
	return l, err
}

func (k *Keeper) WithdrawLock(account types.Address) (sdkmath.Int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	amount, err := k.escrow.Withdraw(account, k.Now())
	k.record("withdraw_lock", nil, account, amount, zero(), err)
	return amount, err
}

// Voting

func (k *Keeper) Vote(account, lpToken types.Address, weight sdkmath.Int) ([]types.SideReceipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	side, err := k.voter.Vote(account, lpToken, weight, k.Now())
	k.record("vote", k.poolOf(lpToken), account, weight, zero(), err)
	return side, err
}

func (k *Keeper) VoteMany(account types.Address, allocs []types.VoteAllocation) ([]types.SideReceipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	side, err := k.voter.VoteMany(account, allocs, k.Now())
	total := zero()
	for _, a := range allocs {
		if !a.Weight.IsNil() {
			total = total.Add(a.Weight)
		}
	}
	k.record("vote_many", nil, account, total, zero(), err)
	return side, err
}

// Distribute runs gauge distribution outside the cycle.
func (k *Keeper) Distribute() (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pushed, err := k.voter.Distribute(k.Now())
	k.record("distribute", nil, k.voter.Address(), zero(), zero(), err)
	return pushed, err
}

func (k *Keeper) poolOf(lpToken types.Address) *types.PoolID {
	pid, err := k.farm.PoolIDByToken(lpToken)
	if err != nil {
		return nil
	}
	return &pid
}

// Administration

// AddPool registers lpToken. rewarder is the address of a registered pool
// rewarder, or zero for none.
func (k *Keeper) AddPool(caller types.Address, allocPoint uint64, lpToken, rewarder types.Address) (types.PoolID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	side, err := k.poolRewarder(rewarder, lpToken)
	if err != nil {
		k.record("add_pool", nil, caller, zero(), zero(), err)
		return 0, err
	}
	pid, err := k.farm.Add(caller, allocPoint, lpToken, side, k.Now())
	if err != nil {
		k.record("add_pool", nil, caller, zero(), zero(), err)
		return pid, err
	}
	k.record("add_pool", &pid, caller, zero(), zero(), nil)
	k.recordParameters("add_pool")
	return pid, nil
}

func (k *Keeper) SetPool(caller types.Address, pid types.PoolID, allocPoint uint64, rewarder types.Address, overwrite bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	err := k.setPool(caller, pid, allocPoint, rewarder, overwrite)
	k.record("set_pool", &pid, caller, zero(), zero(), err)
	if err == nil {
		k.recordParameters("set_pool")
	}
	return err
}

func (k *Keeper) setPool(caller types.Address, pid types.PoolID, allocPoint uint64, rewarder types.Address, overwrite bool) error {
	var side farm.SideRewarder
	if overwrite {
		pool, err := k.farm.Pool(pid)
		if err != nil {
			return err
		}
		if side, err = k.poolRewarder(rewarder, pool.LPToken); err != nil {
			return err
		}
	}
	return k.farm.Set(caller, pid, allocPoint, side, overwrite, k.Now())
}

func (k *Keeper) UpdateEmissionRate(caller types.Address, tokenPerSec sdkmath.Int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	err := k.farm.UpdateEmissionRate(caller, tokenPerSec, k.Now())
	k.record("update_emission_rate", nil, caller, tokenPerSec, zero(), err)
	if err == nil {
		k.recordParameters("update_emission_rate")
	}
	return err
}

func (k *Keeper) UpdateDilutingRepartition(caller types.Address, repartition uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	err := k.farm.UpdateDilutingRepartition(caller, repartition, k.Now())
	k.record("update_diluting_repartition", nil, caller, sdkmath.NewIntFromUint64(repartition), zero(), err)
	if err == nil {
		k.recordParameters("update_diluting_repartition")
	}
	return err
}

func (k *Keeper) UpdateMaxBoost(caller types.Address, maxBoost uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	err := k.farm.UpdateMaxBoost(caller, maxBoost, k.Now())
	k.record("update_max_boost", nil, caller, sdkmath.NewIntFromUint64(maxBoost), zero(), err)
	if err == nil {
		k.recordParameters("update_max_boost")
	}
	return err
}

func (k *Keeper) AddGauge(caller, gauge, lpToken, bribe types.Address) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, err := k.gaugeBribe(bribe, lpToken)
	if err == nil {
		err = k.voter.AddGauge(caller, gauge, lpToken, b)
	}
	k.record("add_gauge", k.poolOf(lpToken), caller, zero(), zero(), err)
	return err
}

// SetBribe attaches a registered bribe to lpToken's gauge, or detaches the
// current one when bribe is zero.
func (k *Keeper) SetBribe(caller, lpToken, bribe types.Address) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, err := k.gaugeBribe(bribe, lpToken)
	if err == nil {
		err = k.voter.SetBribe(caller, lpToken, b, k.Now())
	}
	k.record("set_bribe", k.poolOf(lpToken), caller, zero(), zero(), err)
	return err
}

// Views

func (k *Keeper) Pools() []types.Pool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.farm.Pools()
}

func (k *Keeper) Pool(pid types.PoolID) (types.Pool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.farm.Pool(pid)
}

func (k *Keeper) Position(pid types.PoolID, account types.Address) (types.UserPosition, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.farm.Position(pid, account)
}

func (k *Keeper) PendingTokens(pid types.PoolID, account types.Address) (types.PendingTokens, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.farm.PendingTokens(pid, account, k.Now())
}

func (k *Keeper) Gauges() []types.Gauge {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.voter.Gauges()
}

func (k *Keeper) Epoch() types.EpochInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.voter.Epoch(k.Now())
}

func (k *Keeper) VotesOf(account types.Address) []types.VoteAllocation {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.voter.VotesOf(account)
}

func (k *Keeper) EscrowBalance(account types.Address) sdkmath.Int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.escrow.BalanceOf(account, k.Now())
}

// Snapshot is the in-memory ledger state at the current clock time.
func (k *Keeper) Snapshot() types.LedgerSnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.snapshotLocked(k.Now())
}

// PendingJournal is the number of records not yet flushed to the store.
func (k *Keeper) PendingJournal() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.journal)
}
