// Package farm implements the staking ledger: per-pool share bookkeeping, lazy
// per-second emission split by allocation points, and the voting-escrow boost.
//
// A Farm is a single-writer state machine. Callers serialize every call (the
// keeper holds one lock) and supply the current unix time; nothing runs in the
// background. Each operation either commits fully or returns an error with no
// state written.
package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
	"github.com/hummus-exchange/farm/internal/vault"
)

const DefaultMaxBoost = 2500

// Escrow is the read-only view of voting-escrow balances.
type Escrow interface {
	Address() types.Address
	BalanceOf(account types.Address, now uint64) sdkmath.Int
}

// SideRewarder is an independently funded reward stream attached to a pool.
// The farm calls OnReward after every change of an account's shares.
type SideRewarder interface {
	Address() types.Address
	RewardToken() types.Address
	OnReward(caller, account types.Address, shares types.Shares, now uint64) (sdkmath.Int, error)
	PendingTokens(account types.Address, now uint64) (sdkmath.Int, error)
}

// Config holds what a Farm needs before initialization.
type Config struct {
	Address  types.Address // custody address of the farm in the vault
	Admin    types.Address
	Vault    vault.TokenVault
	MaxBoost uint64 // parts per 1000, DefaultMaxBoost when zero
}

// InitParams are the one-time initialize arguments.
type InitParams struct {
	Token               types.Address
	Escrow              Escrow // may be nil: no boost
	TokenPerSec         sdkmath.Int
	DilutingRepartition uint64 // parts per 1000
	StartTimestamp      uint64
}

type Farm struct {
	address types.Address
	admin   types.Address
	vault   vault.TokenVault
	logger  zerolog.Logger

	initialized         bool
	rewardToken         types.Address
	escrow              Escrow
	voter               types.Address
	tokenPerSec         sdkmath.Int
	dilutingRepartition uint64
	maxBoost            uint64
	startTimestamp      uint64
	totalAllocPoint     uint64

	pools       []*types.Pool
	poolByToken map[types.Address]types.PoolID
	rewarders   map[types.Address]SideRewarder
	positions   map[types.PoolID]map[types.Address]*types.UserPosition
}

// NewFarm creates an uninitialized farm.
func NewFarm(cfg Config) (*Farm, error) {
	if err := validateFarmConfig(cfg); err != nil {
		return nil, fmt.Errorf("farm configuration validation failed: %w", err)
	}
	maxBoost := cfg.MaxBoost
	if maxBoost == 0 {
		maxBoost = DefaultMaxBoost
	}
	return &Farm{
		address:     cfg.Address,
		admin:       cfg.Admin,
		vault:       cfg.Vault,
		logger:      logger.GetForComponent("farm"),
		tokenPerSec: sdkmath.ZeroInt(),
		maxBoost:    maxBoost,
		poolByToken: make(map[types.Address]types.PoolID),
		rewarders:   make(map[types.Address]SideRewarder),
		positions:   make(map[types.PoolID]map[types.Address]*types.UserPosition),
	}, nil
}

func validateFarmConfig(cfg Config) error {
	if cfg.Address == types.ZeroAddress {
		return fmt.Errorf("%w: farm address cannot be zero", types.ErrInvalidParameter)
	}
	if cfg.Admin == types.ZeroAddress {
		return fmt.Errorf("%w: admin cannot be zero", types.ErrInvalidParameter)
	}
	if cfg.Vault == nil {
		return fmt.Errorf("%w: vault cannot be nil", types.ErrInvalidParameter)
	}
	if cfg.MaxBoost != 0 && cfg.MaxBoost < types.BoostDenominator {
		return fmt.Errorf("%w: max boost %d below 1x", types.ErrInvalidParameter, cfg.MaxBoost)
	}
	return nil
}

// Initialize performs the one-time setup. A start timestamp in the past is
// clamped to now so no pool accrues for time before the farm existed.
func (f *Farm) Initialize(caller types.Address, p InitParams, now uint64) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if f.initialized {
		return types.ErrAlreadyInitialized
	}
	if p.Token == types.ZeroAddress {
		return fmt.Errorf("%w: reward token cannot be zero", types.ErrInvalidParameter)
	}
	if p.TokenPerSec.IsNil() || p.TokenPerSec.IsNegative() {
		return fmt.Errorf("%w: token per sec must be non-negative", types.ErrInvalidParameter)
	}
	if p.DilutingRepartition > types.RepartitionDenominator {
		return fmt.Errorf("%w: diluting repartition %d exceeds %d",
			types.ErrInvalidParameter, p.DilutingRepartition, types.RepartitionDenominator)
	}

	start := p.StartTimestamp
	if start < now {
		start = now
	}

	f.rewardToken = p.Token
	f.escrow = p.Escrow
	f.tokenPerSec = p.TokenPerSec
	f.dilutingRepartition = p.DilutingRepartition
	f.startTimestamp = start
	f.initialized = true

	f.logger.Info().
		Str("token", p.Token.Hex()).
		Str("tokenPerSec", p.TokenPerSec.String()).
		Uint64("dilutingRepartition", p.DilutingRepartition).
		Uint64("startTimestamp", start).
		Msg("Farm initialized")
	return nil
}

func (f *Farm) onlyAdmin(caller types.Address) error {
	if caller != f.admin {
		return fmt.Errorf("%w: %s is not the farm admin", types.ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (f *Farm) requireInitialized() error {
	if !f.initialized {
		return types.ErrNotInitialized
	}
	return nil
}

func (f *Farm) poolRef(pid types.PoolID) (*types.Pool, error) {
	if uint64(pid) >= uint64(len(f.pools)) {
		return nil, fmt.Errorf("%w: pid %d", types.ErrPoolNotFound, pid)
	}
	return f.pools[pid], nil
}

func (f *Farm) positionRef(pid types.PoolID, account types.Address) (*types.UserPosition, bool) {
	byAccount, ok := f.positions[pid]
	if !ok {
		return nil, false
	}
	pos, ok := byAccount[account]
	return pos, ok
}

func (f *Farm) storePosition(pos types.UserPosition) {
	byAccount, ok := f.positions[pos.PoolID]
	if !ok {
		byAccount = make(map[types.Address]*types.UserPosition)
		f.positions[pos.PoolID] = byAccount
	}
	stored := pos
	byAccount[pos.Account] = &stored
}

// Address is the farm's custody address; rewarders and the voter use it as caller identity.
func (f *Farm) Address() types.Address { return f.address }

func (f *Farm) Admin() types.Address { return f.admin }

func (f *Farm) Initialized() bool { return f.initialized }

func (f *Farm) RewardToken() types.Address { return f.rewardToken }

func (f *Farm) TokenPerSec() sdkmath.Int { return f.tokenPerSec }

func (f *Farm) DilutingRepartition() uint64 { return f.dilutingRepartition }

func (f *Farm) MaxBoost() uint64 { return f.maxBoost }

func (f *Farm) TotalAllocPoint() uint64 { return f.totalAllocPoint }

func (f *Farm) PoolLength() int { return len(f.pools) }

// Pool returns a copy of the pool state.
func (f *Farm) Pool(pid types.PoolID) (types.Pool, error) {
	p, err := f.poolRef(pid)
	if err != nil {
		return types.Pool{}, err
	}
	return *p, nil
}

// Pools returns copies of every pool in pid order.
func (f *Farm) Pools() []types.Pool {
	out := make([]types.Pool, 0, len(f.pools))
	for _, p := range f.pools {
		out = append(out, *p)
	}
	return out
}

// PoolIDByToken resolves the pool staking lpToken.
func (f *Farm) PoolIDByToken(lpToken types.Address) (types.PoolID, error) {
	pid, ok := f.poolByToken[lpToken]
	if !ok {
		return 0, fmt.Errorf("%w: lp token %s", types.ErrPoolNotFound, lpToken.Hex())
	}
	return pid, nil
}

// Position returns a copy of the account's position in pid.
func (f *Farm) Position(pid types.PoolID, account types.Address) (types.UserPosition, bool) {
	pos, ok := f.positionRef(pid, account)
	if !ok {
		return types.UserPosition{}, false
	}
	return *pos, true
}

// Rewarder returns the side rewarder attached to pid, if any.
func (f *Farm) Rewarder(pid types.PoolID) (SideRewarder, bool) {
	p, err := f.poolRef(pid)
	if err != nil || p.Rewarder == types.ZeroAddress {
		return nil, false
	}
	r, ok := f.rewarders[p.Rewarder]
	return r, ok
}

// PendingTokens reports the base reward (settled-but-unpaid plus accrued) and
// the attached rewarder's pending reward for account at time now.
func (f *Farm) PendingTokens(pid types.PoolID, account types.Address, now uint64) (types.PendingTokens, error) {
	out := types.PendingTokens{PoolID: pid, Account: account, Pending: sdkmath.ZeroInt()}
	ref, err := f.poolRef(pid)
	if err != nil {
		return out, err
	}
	pos, ok := f.positionRef(pid, account)
	if ok {
		pool, err := f.accrue(*ref, now)
		if err != nil {
			return out, err
		}
		pending, err := pendingOf(pool, *pos)
		if err != nil {
			return out, err
		}
		if out.Pending, err = utils.SafeAdd(pending, pos.Claimable); err != nil {
			return out, err
		}
	}
	if r, ok := f.Rewarder(pid); ok {
		bonus, err := r.PendingTokens(account, now)
		if err != nil {
			return out, fmt.Errorf("rewarder %s pending: %w", r.Address().Hex(), err)
		}
		out.BonusTokens = append(out.BonusTokens, types.BonusReward{
			Rewarder: r.Address(),
			Token:    r.RewardToken(),
			Pending:  bonus,
		})
	}
	return out, nil
}

// Accounts returns every account holding a position in pid, sorted.
func (f *Farm) Accounts(pid types.PoolID) []types.Address {
	out := make([]types.Address, 0, len(f.positions[pid]))
	for a := range f.positions[pid] {
		out = append(out, a)
	}
	utils.SortAddresses(out)
	return out
}

// Snapshot exports the farm state in deterministic order.
func (f *Farm) Snapshot() types.FarmSnapshot {
	snap := types.FarmSnapshot{
		Initialized:         f.initialized,
		RewardToken:         f.rewardToken,
		TokenPerSec:         f.tokenPerSec,
		DilutingRepartition: f.dilutingRepartition,
		MaxBoost:            f.maxBoost,
		StartTimestamp:      f.startTimestamp,
		TotalAllocPoint:     f.totalAllocPoint,
		Pools:               f.Pools(),
	}
	if f.escrow != nil {
		snap.Escrow = f.escrow.Address()
	}
	for _, p := range f.pools {
		for _, a := range f.Accounts(p.ID) {
			snap.Positions = append(snap.Positions, *f.positions[p.ID][a])
		}
	}
	return snap
}
