// Package voter lets escrow holders direct a fixed budget of allocation points
// across gauges. Each gauge is a farm pool; distribute turns vote totals into
// the pools' vote allocation.
//
// Epochs run Open -> Locked -> Open. Once an epoch's end has passed, votes are
// refused until Distribute rolls the epoch forward.
package voter

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
)

// Farm is the part of the farm the voter drives.
type Farm interface {
	PoolIDByToken(lpToken types.Address) (types.PoolID, error)
	SetVoteAllocPoints(caller types.Address, allocs map[types.PoolID]uint64, now uint64) error
}

type Escrow interface {
	BalanceOf(account types.Address, now uint64) sdkmath.Int
}

// Bribe pays voters of one gauge. Shares.Amount is the account's votes on it.
type Bribe interface {
	Address() types.Address
	RewardToken() types.Address
	OnReward(caller, account types.Address, shares types.Shares, now uint64) (sdkmath.Int, error)
	PendingTokens(account types.Address, now uint64) (sdkmath.Int, error)
}

type Config struct {
	Address         types.Address
	Admin           types.Address
	Farm            Farm
	Escrow          Escrow
	EpochLength     uint64 // seconds
	VoteAllocPoints uint64 // points shared among gauges by vote
	Start           uint64
}

type Voter struct {
	address         types.Address
	admin           types.Address
	farm            Farm
	escrow          Escrow
	epochLength     uint64
	voteAllocPoints uint64
	logger          zerolog.Logger

	epoch      uint64
	epochStart uint64
	epochEnd   uint64
	dirty      bool

	gauges []*types.Gauge
	byLP   map[types.Address]int
	bribes map[types.Address]Bribe // by lp token

	votes map[types.Address]map[types.Address]sdkmath.Int // account -> lp -> weight
	used  map[types.Address]sdkmath.Int
}

func NewVoter(cfg Config) (*Voter, error) {
	if err := validateVoterConfig(cfg); err != nil {
		return nil, fmt.Errorf("voter configuration validation failed: %w", err)
	}
	return &Voter{
		address:         cfg.Address,
		admin:           cfg.Admin,
		farm:            cfg.Farm,
		escrow:          cfg.Escrow,
		epochLength:     cfg.EpochLength,
		voteAllocPoints: cfg.VoteAllocPoints,
		logger:          logger.GetForComponent("voter"),
		epoch:           1,
		epochStart:      cfg.Start,
		epochEnd:        cfg.Start + cfg.EpochLength,
		byLP:            make(map[types.Address]int),
		bribes:          make(map[types.Address]Bribe),
		votes:           make(map[types.Address]map[types.Address]sdkmath.Int),
		used:            make(map[types.Address]sdkmath.Int),
	}, nil
}

func validateVoterConfig(cfg Config) error {
	if cfg.Address == types.ZeroAddress || cfg.Admin == types.ZeroAddress {
		return fmt.Errorf("%w: voter and admin address are required", types.ErrInvalidParameter)
	}
	if cfg.Farm == nil || cfg.Escrow == nil {
		return fmt.Errorf("%w: farm and escrow are required", types.ErrInvalidParameter)
	}
	if cfg.EpochLength == 0 {
		return fmt.Errorf("%w: epoch length must be positive", types.ErrInvalidParameter)
	}
	return nil
}

func (v *Voter) Address() types.Address { return v.address }

// AddGauge registers lpToken for voting. The lp token must already be a farm
// pool; gauge is the contract receiving the emission (the farm itself here).
func (v *Voter) AddGauge(caller, gauge, lpToken types.Address, bribe Bribe) error {
	if caller != v.admin {
		return fmt.Errorf("%w: %s is not the voter admin", types.ErrUnauthorized, caller.Hex())
	}
	if gauge == types.ZeroAddress {
		return fmt.Errorf("%w: gauge cannot be zero", types.ErrInvalidParameter)
	}
	if _, ok := v.byLP[lpToken]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateGauge, lpToken.Hex())
	}
	pid, err := v.farm.PoolIDByToken(lpToken)
	if err != nil {
		return err
	}
	g := &types.Gauge{
		Gauge:   gauge,
		LPToken: lpToken,
		PoolID:  pid,
		Votes:   sdkmath.ZeroInt(),
	}
	if bribe != nil {
		g.Bribe = bribe.Address()
		v.bribes[lpToken] = bribe
	}
	v.byLP[lpToken] = len(v.gauges)
	v.gauges = append(v.gauges, g)

	v.logger.Info().
		Str("lpToken", lpToken.Hex()).
		Uint64("pid", uint64(pid)).
		Str("bribe", g.Bribe.Hex()).
		Msg("Gauge added")
	return nil
}

// SetBribe replaces the gauge's bribe; nil detaches it. The old bribe settles
// every current voter of the gauge down to zero votes and the new one starts
// from their present votes.
func (v *Voter) SetBribe(caller, lpToken types.Address, bribe Bribe, now uint64) error {
	if caller != v.admin {
		return fmt.Errorf("%w: %s is not the voter admin", types.ErrUnauthorized, caller.Hex())
	}
	g, err := v.gauge(lpToken)
	if err != nil {
		return err
	}
	old, hadOld := v.bribes[lpToken]
	if bribe == nil {
		g.Bribe = types.ZeroAddress
		delete(v.bribes, lpToken)
	} else {
		g.Bribe = bribe.Address()
		v.bribes[lpToken] = bribe
	}
	if hadOld && (bribe == nil || old.Address() != bribe.Address()) {
		v.rebindBribe(lpToken, old, types.ZeroAddress, now)
	}
	if bribe != nil && (!hadOld || old.Address() != bribe.Address()) {
		v.rebindBribe(lpToken, bribe, bribe.Address(), now)
	}
	v.logger.Info().Str("lpToken", lpToken.Hex()).Str("bribe", g.Bribe.Hex()).Msg("Bribe set")
	return nil
}

// rebindBribe reports every voter of lpToken to b: their votes when b is the
// attached bribe, zero when it is being detached.
func (v *Voter) rebindBribe(lpToken types.Address, b Bribe, attached types.Address, now uint64) {
	for _, account := range v.Voters() {
		weight, ok := v.votes[account][lpToken]
		if !ok || !weight.IsPositive() {
			continue
		}
		shares := types.ZeroShares()
		if attached != types.ZeroAddress {
			shares.Amount = weight
		}
		if _, err := b.OnReward(v.address, account, shares, now); err != nil {
			v.logger.Warn().Err(err).Str("account", account.Hex()).Str("lpToken", lpToken.Hex()).Msg("Bribe rebind incomplete")
		}
	}
}

func (v *Voter) gauge(lpToken types.Address) (*types.Gauge, error) {
	i, ok := v.byLP[lpToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrGaugeNotFound, lpToken.Hex())
	}
	return v.gauges[i], nil
}

// Bribe returns the bribe attached to lpToken's gauge.
func (v *Voter) Bribe(lpToken types.Address) (Bribe, bool) {
	b, ok := v.bribes[lpToken]
	return b, ok
}

// Gauges returns copies in registration order.
func (v *Voter) Gauges() []types.Gauge {
	out := make([]types.Gauge, 0, len(v.gauges))
	for _, g := range v.gauges {
		out = append(out, *g)
	}
	return out
}

// VotesOf lists the account's non-zero allocations in gauge order.
func (v *Voter) VotesOf(account types.Address) []types.VoteAllocation {
	var out []types.VoteAllocation
	for _, g := range v.gauges {
		if w, ok := v.votes[account][g.LPToken]; ok && w.IsPositive() {
			out = append(out, types.VoteAllocation{LPToken: g.LPToken, Weight: w})
		}
	}
	return out
}

func (v *Voter) UsedWeight(account types.Address) sdkmath.Int {
	if u, ok := v.used[account]; ok {
		return u
	}
	return sdkmath.ZeroInt()
}

// Voters returns every account with a recorded allocation, sorted.
func (v *Voter) Voters() []types.Address {
	out := make([]types.Address, 0, len(v.votes))
	for a := range v.votes {
		out = append(out, a)
	}
	utils.SortAddresses(out)
	return out
}

func (v *Voter) totalVotes() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, g := range v.gauges {
		total = total.Add(g.Votes)
	}
	return total
}

// Phase reports whether votes are accepted at now.
func (v *Voter) Phase(now uint64) types.EpochPhase {
	if now >= v.epochEnd {
		return types.EpochLocked
	}
	return types.EpochOpen
}

func (v *Voter) Epoch(now uint64) types.EpochInfo {
	return types.EpochInfo{
		Number:     v.epoch,
		Start:      v.epochStart,
		End:        v.epochEnd,
		Phase:      v.Phase(now),
		TotalVotes: v.totalVotes(),
	}
}

func (v *Voter) Snapshot(now uint64) types.VoterSnapshot {
	return types.VoterSnapshot{Epoch: v.Epoch(now), Gauges: v.Gauges()}
}
