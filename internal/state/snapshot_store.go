package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hummus-exchange/farm/internal/types"
)

// SaveLedgerSnapshot stores the farm and voter state as JSONB and returns the row id.
func SaveLedgerSnapshot(cycle int, snapshot types.LedgerSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	farmJSON, err := json.Marshal(snapshot.Farm)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal farm snapshot: %w", err)
	}
	voterJSON, err := json.Marshal(snapshot.Voter)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal voter snapshot: %w", err)
	}

	query := `
		INSERT INTO ledger_snapshots (
			cycle_number, epoch, ledger_time, snapshot_timestamp, farm, voter
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING snapshot_id;
	`
	var snapshotID int64
	err = DB.QueryRow(query,
		cycle, snapshot.Epoch, snapshot.LedgerTime, snapshot.Timestamp, farmJSON, voterJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save ledger snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", cycle).
		Int("pools", len(snapshot.Farm.Pools)).
		Msg("Ledger snapshot saved to database")
	return snapshotID, nil
}

// GetLatestLedgerSnapshot returns the newest snapshot, or nil when none exists.
func GetLatestLedgerSnapshot() (*types.LedgerSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var (
		snap                types.LedgerSnapshot
		farmJSON, voterJSON []byte
	)
	err := DB.QueryRow(`
		SELECT snapshot_id, epoch, ledger_time, snapshot_timestamp, farm, voter
		FROM ledger_snapshots
		ORDER BY snapshot_id DESC
		LIMIT 1;`).Scan(&snap.SnapshotID, &snap.Epoch, &snap.LedgerTime, &snap.Timestamp, &farmJSON, &voterJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	if err := json.Unmarshal(farmJSON, &snap.Farm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal farm snapshot: %w", err)
	}
	if err := json.Unmarshal(voterJSON, &snap.Voter); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voter snapshot: %w", err)
	}
	return &snap, nil
}
