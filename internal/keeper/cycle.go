package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/hummus-exchange/farm/internal/metrics"
	"github.com/hummus-exchange/farm/internal/types"
)

// RunCycle executes one keeper cycle:
//  1. distribute gauge votes (rolls the epoch when it has ended)
//  2. checkpoint every escrow holder so decayed balances reach farm and voter
//  3. accrue all pools and check the ledger invariants
//  4. persist the snapshot, the journal and any new parameter versions
func (k *Keeper) RunCycle(ctx context.Context) (err error) {
	cycleStart := k.clock.Now()
	defer func() { metrics.RecordCycle(k.clock.Since(cycleStart), err) }()

	cycleLogger := k.logger.With().Str("cycle_id", uuid.New().String()).Logger()
	cycleLogger.Info().Msg("--- Starting keeper cycle ---")

	k.mu.Lock()
	now := k.Now()

	pushed, derr := k.voter.Distribute(now)
	k.record("distribute", nil, k.voter.Address(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), derr)
	if derr != nil {
		cycleLogger.Error().Err(derr).Msg("Step 1: gauge distribution failed")
	} else {
		cycleLogger.Info().Bool("pushed", pushed).Uint64("epoch", k.voter.Epoch(now).Number).Msg("Step 1: gauges distributed")
	}

	holders := k.escrow.Holders()
	checkpointFailures := 0
	for _, h := range holders {
		if cerr := k.escrow.Checkpoint(h, now); cerr != nil {
			checkpointFailures++
			cycleLogger.Warn().Err(cerr).Str("account", h.Hex()).Msg("Checkpoint rejected")
		}
	}
	cycleLogger.Info().Int("holders", len(holders)).Int("failures", checkpointFailures).Msg("Step 2: escrow balances checkpointed")

	if k.farm.Initialized() {
		if uerr := k.farm.MassUpdatePools(now); uerr != nil {
			cycleLogger.Error().Err(uerr).Msg("Step 3: pool accrual failed")
		}
	}
	if ierr := k.farm.CheckInvariants(); ierr != nil {
		metrics.InvariantViolationsTotal.Inc()
		cycleLogger.Error().Err(ierr).Msg("Step 3: ledger invariant violated")
	}
	k.updateGauges(now)

	snap := k.snapshotLocked(now)
	journal, params := k.journal, k.params
	k.journal, k.params = nil, nil
	k.mu.Unlock()

	if k.store == nil {
		k.logEndOfCycleState(cycleStart, len(journal))
		return derr
	}
	if err := ctx.Err(); err != nil {
		k.requeue(journal, params)
		return fmt.Errorf("cycle cancelled before persisting: %w", err)
	}

	perr := k.persist(snap, journal, params)
	if perr != nil {
		cycleLogger.Error().Err(perr).Msg("Step 4: persistence failed")
	} else {
		cycleLogger.Info().Int("operations", len(journal)).Int("parameterVersions", len(params)).Msg("Step 4: cycle persisted")
	}
	k.logEndOfCycleState(cycleStart, len(journal))
	return errors.Join(derr, perr)
}

func (k *Keeper) persist(snap types.LedgerSnapshot, journal []types.OperationRecord, params []types.FarmParameters) error {
	for i, p := range params {
		if _, err := k.store.SaveParameters(p); err != nil {
			k.requeue(journal, params[i:])
			return fmt.Errorf("save parameters: %w", err)
		}
	}
	if err := k.store.SaveOperations(journal); err != nil {
		k.requeue(journal, nil)
		return fmt.Errorf("save journal: %w", err)
	}
	cycle, err := k.store.NextCycle()
	if err != nil {
		return fmt.Errorf("next cycle number: %w", err)
	}
	if _, err := k.store.SaveSnapshot(cycle, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// requeue puts unsaved records back in front of anything recorded since.
func (k *Keeper) requeue(journal []types.OperationRecord, params []types.FarmParameters) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.journal = append(append([]types.OperationRecord{}, journal...), k.journal...)
	k.params = append(append([]types.FarmParameters{}, params...), k.params...)
}

// updateGauges refreshes the Prometheus view of the ledger. Callers hold k.mu.
func (k *Keeper) updateGauges(now uint64) {
	for _, p := range k.farm.Pools() {
		pool := poolLabel(p.ID)
		metrics.PoolTotalStaked.WithLabelValues(pool, p.LPToken.Hex()).Set(metrics.Tokens(p.TotalStaked))
		metrics.PoolAllocPoints.WithLabelValues(pool, "base").Set(float64(p.BaseAllocPoint))
		metrics.PoolAllocPoints.WithLabelValues(pool, "vote").Set(float64(p.VoteAllocPoint))
	}
	metrics.TotalAllocPoints.Set(float64(k.farm.TotalAllocPoint()))
	metrics.VoterEpoch.Set(float64(k.voter.Epoch(now).Number))
	for _, g := range k.voter.Gauges() {
		metrics.GaugeVotes.WithLabelValues(g.LPToken.Hex()).Set(metrics.Tokens(g.Votes))
	}
}

func (k *Keeper) snapshotLocked(now uint64) types.LedgerSnapshot {
	return types.LedgerSnapshot{
		Epoch:      k.voter.Epoch(now).Number,
		Timestamp:  k.clock.Now().UTC(),
		LedgerTime: now,
		Farm:       k.farm.Snapshot(),
		Voter:      k.voter.Snapshot(now),
	}
}

func (k *Keeper) logEndOfCycleState(cycleStart time.Time, operations int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.logger.Info().
		Int("pools", k.farm.PoolLength()).
		Uint64("totalAllocPoint", k.farm.TotalAllocPoint()).
		Int("operations", operations).
		Dur("duration", k.clock.Since(cycleStart)).
		Msg("--- Keeper cycle finished ---")
}
