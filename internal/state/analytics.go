package state

import (
	"database/sql"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/hummus-exchange/farm/internal/types"
)

const operationColumns = `
	operation_id, operation_type, pool_id, account,
	COALESCE(amount::text, ''), COALESCE(reward::text, ''),
	success, COALESCE(message, ''), operation_timestamp`

func scanOperations(rows *sql.Rows) ([]types.OperationRecord, error) {
	defer rows.Close()

	var out []types.OperationRecord
	for rows.Next() {
		var (
			r              types.OperationRecord
			pid            sql.NullInt64
			account        string
			amount, reward string
		)
		if err := rows.Scan(&r.OperationID, &r.Type, &pid, &account, &amount, &reward,
			&r.Success, &r.Message, &r.Timestamp); err != nil {
			log.Error().Err(err).Msg("Failed to scan operation row")
			continue
		}
		if pid.Valid {
			p := types.PoolID(pid.Int64)
			r.PoolID = &p
		}
		r.Account = common.HexToAddress(account)
		r.Amount = parseNumeric(amount)
		r.Reward = parseNumeric(reward)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func parseNumeric(s string) sdkmath.Int {
	if i, ok := sdkmath.NewIntFromString(s); ok {
		return i
	}
	return sdkmath.ZeroInt()
}

// GetRecentOperations returns the newest journal records first.
func GetRecentOperations(limit int) ([]types.OperationRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := DB.Query(`SELECT `+operationColumns+`
		FROM operation_journal
		ORDER BY operation_timestamp DESC, journal_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent operations: %w", err)
	}
	return scanOperations(rows)
}

// GetOperationsByAccounts returns every journaled operation of the given accounts.
func GetOperationsByAccounts(accounts []types.Address, limit int) ([]types.OperationRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	hexes := make([]string, 0, len(accounts))
	for _, a := range accounts {
		hexes = append(hexes, a.Hex())
	}

	rows, err := DB.Query(`SELECT `+operationColumns+`
		FROM operation_journal
		WHERE account = ANY($1)
		ORDER BY operation_timestamp DESC, journal_id DESC
		LIMIT $2`, pq.Array(hexes), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations for %s: %w", strings.Join(hexes, ","), err)
	}
	return scanOperations(rows)
}

// GetRewardSummaries aggregates journaled operations per pool.
func GetRewardSummaries() ([]types.RewardSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`
		SELECT pool_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE NOT success),
		       COALESCE(SUM(reward) FILTER (WHERE success), 0)::text
		FROM operation_journal
		WHERE pool_id IS NOT NULL
		GROUP BY pool_id
		ORDER BY pool_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward summaries: %w", err)
	}
	defer rows.Close()

	var out []types.RewardSummary
	for rows.Next() {
		var (
			s    types.RewardSummary
			pid  int64
			paid string
		)
		if err := rows.Scan(&pid, &s.Operations, &s.Failures, &paid); err != nil {
			return nil, fmt.Errorf("failed to scan reward summary: %w", err)
		}
		s.PoolID = types.PoolID(pid)
		s.Paid = parseNumeric(paid)
		out = append(out, s)
	}
	return out, rows.Err()
}
