// Package keeper is the only writer of the ledger. It serializes every
// mutation behind one lock, stamps it with the clock, journals it, and runs
// the periodic cycle that distributes gauge votes, refreshes escrow balances
// and persists a snapshot.
package keeper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/hummus-exchange/farm/internal/escrow"
	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/metrics"
	"github.com/hummus-exchange/farm/internal/rewarder"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/vault"
	"github.com/hummus-exchange/farm/internal/voter"
)

// Store persists what the keeper produces. state.PostgresStore implements it.
type Store interface {
	NextCycle() (int, error)
	SaveSnapshot(cycle int, snap types.LedgerSnapshot) (int64, error)
	SaveOperations(records []types.OperationRecord) error
	SaveParameters(p types.FarmParameters) (int64, error)
}

// Custody is the vault rewarders are funded through. Mint credits balances in
// the in-memory ledger.
type Custody interface {
	vault.TokenVault
	Mint(token, to types.Address, amount sdkmath.Int) error
}

// Config holds the configuration for creating a new Keeper.
type Config struct {
	Farm   *farm.Farm
	Escrow *escrow.VoteEscrow
	Voter  *voter.Voter
	Vault  Custody         // nil disables rewarder creation and minting
	Store  Store           // nil keeps everything in memory
	Clock  clockwork.Clock // defaults to the real clock
}

type Keeper struct {
	logger zerolog.Logger
	clock  clockwork.Clock
	store  Store

	mu      sync.Mutex
	farm    *farm.Farm
	escrow  *escrow.VoteEscrow
	voter   *voter.Voter
	vault   Custody
	journal []types.OperationRecord
	params  []types.FarmParameters

	rewarders map[types.Address]*rewarder.Rewarder

	cycleCount int
}

// NewKeeper creates a keeper over already wired components.
func NewKeeper(cfg Config) (*Keeper, error) {
	if err := validateKeeperConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	k := &Keeper{
		logger: logger.GetForComponent("keeper"),
		clock:  clock,
		store:  cfg.Store,
		farm:   cfg.Farm,
		escrow: cfg.Escrow,
		voter:  cfg.Voter,
		vault:  cfg.Vault,

		rewarders: make(map[types.Address]*rewarder.Rewarder),
	}
	k.logger.Info().
		Str("farm", cfg.Farm.Address().Hex()).
		Str("voter", cfg.Voter.Address().Hex()).
		Bool("persistent", cfg.Store != nil).
		Msg("Keeper created")
	return k, nil
}

func validateKeeperConfig(cfg Config) error {
	if cfg.Farm == nil {
		return fmt.Errorf("farm cannot be nil")
	}
	if cfg.Escrow == nil {
		return fmt.Errorf("escrow cannot be nil")
	}
	if cfg.Voter == nil {
		return fmt.Errorf("voter cannot be nil")
	}
	return nil
}

// Now is the ledger time of the next operation.
func (k *Keeper) Now() uint64 {
	return uint64(k.clock.Now().Unix())
}

// record journals one operation. Callers hold k.mu.
func (k *Keeper) record(op string, pid *types.PoolID, account types.Address, amount, reward sdkmath.Int, err error) {
	metrics.RecordOperation(op, err)
	rec := types.OperationRecord{
		OperationID: uuid.New().String(),
		Type:        op,
		PoolID:      pid,
		Account:     account,
		Amount:      amount,
		Reward:      reward,
		Success:     err == nil,
		Timestamp:   k.clock.Now().UTC(),
	}
	if err != nil {
		rec.Message = err.Error()
		k.logger.Debug().Err(err).Str("operation", op).Str("account", account.Hex()).Msg("Operation failed")
	}
	if err == nil && pid != nil && !reward.IsNil() && reward.IsPositive() {
		metrics.RewardsPaidTotal.WithLabelValues(poolLabel(*pid)).Add(metrics.Tokens(reward))
	}
	k.journal = append(k.journal, rec)
}

// recordParameters queues a new parameter version after an admin change.
// Callers hold k.mu.
func (k *Keeper) recordParameters(reason string) {
	k.params = append(k.params, types.FarmParameters{
		TokenPerSec:         k.farm.TokenPerSec(),
		DilutingRepartition: k.farm.DilutingRepartition(),
		MaxBoost:            k.farm.MaxBoost(),
		TotalAllocPoint:     k.farm.TotalAllocPoint(),
		Reason:              reason,
		ActivatedAt:         k.clock.Now().UTC(),
	})
}

func poolLabel(pid types.PoolID) string {
	return strconv.FormatUint(uint64(pid), 10)
}

// RunLoop runs a cycle immediately and then once per interval until ctx ends.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().Dur("interval", interval).Msg("Starting keeper loop")

	ticker := k.clock.NewTicker(interval)
	defer ticker.Stop()

	k.runCycleLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.Chan():
			k.runCycleLogged(ctx)
		}
	}
}

func (k *Keeper) runCycleLogged(ctx context.Context) {
	k.cycleCount++
	k.logger.Info().Int("cycle", k.cycleCount).Msg("Initiating keeper cycle")
	if err := k.RunCycle(ctx); err != nil {
		k.logger.Error().Err(err).Int("cycle", k.cycleCount).Msg("Keeper cycle failed")
		return
	}
	k.logger.Info().Int("cycle", k.cycleCount).Msg("Keeper cycle completed")
}
