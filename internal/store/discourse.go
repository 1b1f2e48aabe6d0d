package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DiscourseStore persists forum mirror rows idempotently on
// (dao_discourse_config_id, external_id).
type DiscourseStore struct {
	db *gorm.DB
}

// NewDiscourseStore builds a DiscourseStore over db.
func NewDiscourseStore(db *gorm.DB) *DiscourseStore { return &DiscourseStore{db: db} }

// UpsertCategories writes category rows in chunks.
func (s *DiscourseStore) UpsertCategories(ctx context.Context, rows []DiscourseCategory) error {
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		batch := rows[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dao_discourse_config_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert discourse_categories: %w", err)
		}
	}
	return nil
}

// UpsertTopics writes topic rows in chunks.
func (s *DiscourseStore) UpsertTopics(ctx context.Context, rows []DiscourseTopic) error {
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		batch := rows[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dao_discourse_config_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"category_id", "title", "slug", "updated_at"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert discourse_topics: %w", err)
		}
	}
	return nil
}

// UpsertPosts writes post rows in chunks.
func (s *DiscourseStore) UpsertPosts(ctx context.Context, rows []DiscoursePost) error {
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		batch := rows[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dao_discourse_config_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cooked", "post_number", "version", "updated_at"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert discourse_posts: %w", err)
		}
	}
	return nil
}

// UpsertUsers writes user rows in chunks.
func (s *DiscourseStore) UpsertUsers(ctx context.Context, rows []DiscourseUser) error {
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		batch := rows[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dao_discourse_config_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert discourse_users: %w", err)
		}
	}
	return nil
}

// TopicsSince returns topics whose external id is at or above
// fromExternalID, ordered by external id ascending, for paginated re-reads.
func (s *DiscourseStore) TopicsSince(ctx context.Context, configID string, fromExternalID int) ([]DiscourseTopic, error) {
	var out []DiscourseTopic
	if err := s.db.WithContext(ctx).
		Where("dao_discourse_config_id = ? AND external_id >= ?", configID, fromExternalID).
		Order("external_id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: topics_since: %w", err)
	}
	return out, nil
}
