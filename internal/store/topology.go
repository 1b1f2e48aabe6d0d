package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopologyStore seeds and reads the DAO/Governor/DaoDiscourseConfig rows
// derived from static configuration.
type TopologyStore struct {
	db *gorm.DB
}

// NewTopologyStore builds a TopologyStore over db.
func NewTopologyStore(db *gorm.DB) *TopologyStore { return &TopologyStore{db: db} }

// EnsureDAO upserts a DAO by slug, returning its id whether newly created
// or already present.
func (s *TopologyStore) EnsureDAO(ctx context.Context, slug, displayName string) (uuid.UUID, error) {
	row := DAO{ID: uuid.New(), Slug: slug, DisplayName: displayName}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
	}).Create(&row).Error; err != nil {
		return uuid.UUID{}, fmt.Errorf("store: ensure_dao: %w", err)
	}
	var existing DAO
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&existing).Error; err != nil {
		return uuid.UUID{}, fmt.Errorf("store: ensure_dao reload: %w", err)
	}
	return existing.ID, nil
}

// EnsureGovernor upserts a Governor by (dao, variant), returning its id.
// tokenAddress is empty for governors with no separately-indexed
// governance token.
func (s *TopologyStore) EnsureGovernor(ctx context.Context, daoID uuid.UUID, variant, network, address string, typ GovernorType, portalURL, tokenAddress string) (uuid.UUID, error) {
	row := Governor{
		ID: uuid.New(), DAOID: daoID, Variant: variant, Network: network,
		Address: address, Type: typ, PortalURL: portalURL,
	}
	if tokenAddress != "" {
		row.TokenAddress = &tokenAddress
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dao_id"}, {Name: "variant"}},
		DoUpdates: clause.AssignmentColumns([]string{"network", "address", "type", "portal_url", "token_address"}),
	}).Create(&row).Error; err != nil {
		return uuid.UUID{}, fmt.Errorf("store: ensure_governor: %w", err)
	}
	var existing Governor
	if err := s.db.WithContext(ctx).Where("dao_id = ? AND variant = ?", daoID, variant).First(&existing).Error; err != nil {
		return uuid.UUID{}, fmt.Errorf("store: ensure_governor reload: %w", err)
	}
	return existing.ID, nil
}

// EnsureDiscourseConfig upserts the single DaoDiscourseConfig row per DAO.
func (s *TopologyStore) EnsureDiscourseConfig(ctx context.Context, daoID uuid.UUID, baseURL string, enabled bool, categoryIDs []int) error {
	row := DaoDiscourseConfig{DAOID: daoID, BaseURL: baseURL, Enabled: enabled, CategoryIDs: JSONIntSlice(categoryIDs)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dao_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"base_url", "enabled", "category_ids", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("store: ensure_discourse_config: %w", err)
	}
	return nil
}
