package state

import (
	"github.com/hummus-exchange/farm/internal/types"
)

// PostgresStore exposes the package functions as a value the keeper and the
// web server can hold. It uses the global pool opened by InitDB.
type PostgresStore struct{}

func (PostgresStore) NextCycle() (int, error) { return IncrementCycleNumber() }

func (PostgresStore) SaveSnapshot(cycle int, snap types.LedgerSnapshot) (int64, error) {
	return SaveLedgerSnapshot(cycle, snap)
}

func (PostgresStore) LatestSnapshot() (*types.LedgerSnapshot, error) { return GetLatestLedgerSnapshot() }

func (PostgresStore) SaveOperations(records []types.OperationRecord) error {
	return SaveOperations(records)
}

func (PostgresStore) SaveParameters(p types.FarmParameters) (int64, error) {
	return SaveFarmParameters(p)
}

func (PostgresStore) RecentOperations(limit int) ([]types.OperationRecord, error) {
	return GetRecentOperations(limit)
}

func (PostgresStore) RewardSummaries() ([]types.RewardSummary, error) { return GetRewardSummaries() }
