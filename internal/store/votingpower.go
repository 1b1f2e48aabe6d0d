package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VotingPowerStore persists VotingPowerSnapshot rows idempotently on
// (voter, dao_id, txid).
type VotingPowerStore struct {
	db *gorm.DB
}

// NewVotingPowerStore builds a VotingPowerStore over db.
func NewVotingPowerStore(db *gorm.DB) *VotingPowerStore { return &VotingPowerStore{db: db} }

// UpsertMany writes voting power snapshots in chunks.
func (s *VotingPowerStore) UpsertMany(ctx context.Context, snapshots []VotingPowerSnapshot) error {
	for start := 0; start < len(snapshots); start += chunkSize {
		end := start + chunkSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		batch := snapshots[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "voter"}, {Name: "dao_id"}, {Name: "tx_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"voting_power", "timestamp", "block"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert voting_power_snapshots: %w", err)
		}
	}
	return nil
}

// TotalDelegatedVPAt sums every voter's latest voting power snapshot at or
// before the given timestamp within a DAO, using the same
// latest-row-per-key windowing idiom as votes.LatestPerVoter.
func (s *VotingPowerStore) TotalDelegatedVPAt(ctx context.Context, daoID string, at time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(voting_power), 0) FROM (
			SELECT voter, voting_power, ROW_NUMBER() OVER (
				PARTITION BY voter
				ORDER BY timestamp DESC, block DESC
			) AS rn
			FROM voting_power_snapshots
			WHERE dao_id = ? AND timestamp <= ?
		) ranked
		WHERE rn = 1
	`
	var total float64
	if err := s.db.WithContext(ctx).Raw(query, daoID, at).Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("store: total_delegated_vp_at: %w", err)
	}
	return total, nil
}
