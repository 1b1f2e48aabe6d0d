package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DelegationStore persists Delegation rows idempotently on (delegator, dao_id, txid).
type DelegationStore struct {
	db *gorm.DB
}

// NewDelegationStore builds a DelegationStore over db.
func NewDelegationStore(db *gorm.DB) *DelegationStore { return &DelegationStore{db: db} }

// UpsertMany writes delegation events in chunks.
func (s *DelegationStore) UpsertMany(ctx context.Context, delegations []Delegation) error {
	for start := 0; start < len(delegations); start += chunkSize {
		end := start + chunkSize
		if end > len(delegations) {
			end = len(delegations)
		}
		batch := delegations[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "delegator"}, {Name: "dao_id"}, {Name: "tx_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"delegate", "timestamp", "block"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert delegations: %w", err)
		}
	}
	return nil
}

// CurrentDelegate returns the most recently recorded delegate for a
// delegator within a DAO, or zero value if none exists.
func (s *DelegationStore) CurrentDelegate(ctx context.Context, daoID, delegator string) (string, error) {
	var d Delegation
	err := s.db.WithContext(ctx).
		Where("dao_id = ? AND delegator = ?", daoID, delegator).
		Order("timestamp DESC").
		First(&d).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("store: current_delegate: %w", err)
	}
	return d.Delegate, nil
}
