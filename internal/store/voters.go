package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoterRefreshInterval bounds how often a voter's ENS/avatar may be
// refreshed, per spec.
const VoterRefreshInterval = 24 * time.Hour

// VoterStore persists Voter directory rows.
type VoterStore struct {
	db *gorm.DB
}

// NewVoterStore builds a VoterStore over db.
func NewVoterStore(db *gorm.DB) *VoterStore { return &VoterStore{db: db} }

// Upsert writes a single voter row, replacing ENS/avatar/updated_at.
func (s *VoterStore) Upsert(ctx context.Context, v Voter) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"ens", "avatar", "updated_at"}),
	}).Create(&v).Error; err != nil {
		return fmt.Errorf("store: upsert voter: %w", err)
	}
	return nil
}

// DueForRefresh lists addresses whose directory record is missing or older
// than VoterRefreshInterval.
func (s *VoterStore) DueForRefresh(ctx context.Context, addresses []string) ([]string, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	cutoff := time.Now().Add(-VoterRefreshInterval)
	var fresh []string
	if err := s.db.WithContext(ctx).
		Model(&Voter{}).
		Where("address IN ? AND updated_at > ?", addresses, cutoff).
		Pluck("address", &fresh).Error; err != nil {
		return nil, fmt.Errorf("store: due_for_refresh: %w", err)
	}
	freshSet := make(map[string]struct{}, len(fresh))
	for _, a := range fresh {
		freshSet[a] = struct{}{}
	}
	due := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if _, ok := freshSet[a]; !ok {
			due = append(due, a)
		}
	}
	return due, nil
}
