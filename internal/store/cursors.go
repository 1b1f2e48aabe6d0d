package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"daoindexer/internal/indexer"
)

// CursorStore persists IndexerCursor rows and implements indexer.CursorStore.
type CursorStore struct {
	db *gorm.DB
}

// NewCursorStore builds a CursorStore over db.
func NewCursorStore(db *gorm.DB) *CursorStore { return &CursorStore{db: db} }

// LoadCursor returns the persisted cursor for (sourceID, variant), or a
// freshly enabled zero cursor if none exists yet.
func (s *CursorStore) LoadCursor(ctx context.Context, sourceID uuid.UUID, variant string) (indexer.Cursor, error) {
	var row IndexerCursor
	err := s.db.WithContext(ctx).Where("source_id = ? AND variant = ?", sourceID, variant).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		window := indexer.SpeedFor(variant)
		return indexer.Cursor{
			SourceID:     sourceID,
			Variant:      variant,
			CurrentIndex: 0,
			RefreshSpeed: window.Min,
			Enabled:      true,
		}, nil
	}
	if err != nil {
		return indexer.Cursor{}, fmt.Errorf("store: load_cursor: %w", err)
	}
	return indexer.Cursor{
		SourceID:      row.SourceID,
		Variant:       row.Variant,
		CurrentIndex:  row.CurrentIndex,
		RefreshSpeed:  row.RefreshSpeed,
		Enabled:       row.Enabled,
		LastUpdatedAt: row.LastUpdatedAt,
	}, nil
}

// StoreCursor upserts the cursor's new position.
func (s *CursorStore) StoreCursor(ctx context.Context, c indexer.Cursor) error {
	row := IndexerCursor{
		SourceID:      c.SourceID,
		Variant:       c.Variant,
		CurrentIndex:  c.CurrentIndex,
		RefreshSpeed:  c.RefreshSpeed,
		Enabled:       c.Enabled,
		LastUpdatedAt: c.LastUpdatedAt,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "variant"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_index", "refresh_speed", "enabled", "last_updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("store: store_cursor: %w", err)
	}
	return nil
}
