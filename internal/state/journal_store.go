package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/hummus-exchange/farm/internal/types"
)

// numeric renders an Int for a NUMERIC(78,0) column; nil becomes NULL.
func numeric(i sdkmath.Int) any {
	if i.IsNil() {
		return nil
	}
	return i.String()
}

// SaveOperations writes a batch of journal records in one transaction.
// Records already stored (same operation id) are skipped.
func SaveOperations(records []types.OperationRecord) (err error) {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO operation_journal (
			operation_id, operation_type, pool_id, account,
			amount, reward, success, message, operation_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (operation_id) DO NOTHING;`)
	if err != nil {
		return fmt.Errorf("failed to prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var pid any
		if r.PoolID != nil {
			pid = int64(*r.PoolID)
		}
		if _, err = stmt.Exec(
			r.OperationID, r.Type, pid, r.Account.Hex(),
			numeric(r.Amount), numeric(r.Reward), r.Success, r.Message, r.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to insert operation %s: %w", r.OperationID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal batch: %w", err)
	}
	log.Debug().Int("records", len(records)).Msg("Operation journal flushed")
	return nil
}

// SaveFarmParameters records a new parameter version and marks it active.
func SaveFarmParameters(p types.FarmParameters) (id int64, err error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`UPDATE farm_parameters SET is_active = FALSE WHERE is_active = TRUE;`); err != nil {
		return 0, fmt.Errorf("failed to deactivate current parameters: %w", err)
	}
	err = tx.QueryRow(`
		INSERT INTO farm_parameters (
			token_per_sec, diluting_repartition, max_boost, total_alloc_point,
			reason, is_active, activated_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING params_id;`,
		numeric(p.TokenPerSec), p.DilutingRepartition, p.MaxBoost, p.TotalAllocPoint,
		p.Reason, p.ActivatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert farm parameters: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit farm parameters: %w", err)
	}

	log.Info().Int64("params_id", id).Str("reason", p.Reason).Msg("Farm parameters saved")
	return id, nil
}

// GetActiveFarmParameters returns the active version, or nil if none.
func GetActiveFarmParameters() (*types.FarmParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	rows, err := DB.Query(`
		SELECT params_id, token_per_sec::text, diluting_repartition, max_boost,
		       total_alloc_point, reason, activated_at
		FROM farm_parameters
		WHERE is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query farm parameters: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}

	var (
		p    types.FarmParameters
		rate string
	)
	if err := rows.Scan(&p.ParamsID, &rate, &p.DilutingRepartition, &p.MaxBoost,
		&p.TotalAllocPoint, &p.Reason, &p.ActivatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan farm parameters: %w", err)
	}
	tokenPerSec, ok := sdkmath.NewIntFromString(rate)
	if !ok {
		return nil, fmt.Errorf("invalid token_per_sec %q", rate)
	}
	p.TokenPerSec = tokenPerSec
	return &p, nil
}
