package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupStore persists ProposalGroup and ProposalGroupItem rows. Every
// (kind, external_id) pair is unique per DAO across all groups.
type GroupStore struct {
	db *gorm.DB
}

// NewGroupStore builds a GroupStore over db.
func NewGroupStore(db *gorm.DB) *GroupStore { return &GroupStore{db: db} }

// ItemOwner returns the group id that already owns (dao, kind, external_id),
// if any.
func (s *GroupStore) ItemOwner(ctx context.Context, daoID uuid.UUID, kind GroupItemKind, externalID string) (uuid.UUID, bool, error) {
	var item ProposalGroupItem
	err := s.db.WithContext(ctx).
		Where("dao_id = ? AND kind = ? AND external_id = ?", daoID, kind, externalID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return uuid.UUID{}, false, nil
	}
	if err != nil {
		return uuid.UUID{}, false, fmt.Errorf("store: item_owner: %w", err)
	}
	return item.GroupID, true, nil
}

// CreateGroup creates a new group with its items in one transaction.
func (s *GroupStore) CreateGroup(ctx context.Context, group ProposalGroup) (uuid.UUID, error) {
	if group.ID == (uuid.UUID{}) {
		group.ID = uuid.New()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ProposalGroup{ID: group.ID, DAOID: group.DAOID, Name: group.Name, CreatedAt: group.CreatedAt}).Error; err != nil {
			return err
		}
		for i := range group.Items {
			group.Items[i].ID = uuid.New()
			group.Items[i].GroupID = group.ID
		}
		if len(group.Items) > 0 {
			if err := tx.Create(&group.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("store: create_group: %w", err)
	}
	return group.ID, nil
}

// AddItem appends a single item to an existing group, honoring the
// uniqueness invariant via ON CONFLICT DO NOTHING.
func (s *GroupStore) AddItem(ctx context.Context, item ProposalGroupItem) error {
	if item.ID == (uuid.UUID{}) {
		item.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dao_id"}, {Name: "kind"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(&item).Error; err != nil {
		return fmt.Errorf("store: add_item: %w", err)
	}
	return nil
}

// UngroupedProposals returns proposals for a DAO with no group item
// reference yet.
func (s *GroupStore) UngroupedProposals(ctx context.Context, daoID uuid.UUID) ([]Proposal, error) {
	var out []Proposal
	if err := s.db.WithContext(ctx).
		Where("dao_id = ? AND id NOT IN (SELECT external_id::uuid FROM proposal_group_items WHERE dao_id = ? AND kind = ?)", daoID, daoID, GroupItemProposal).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: ungrouped_proposals: %w", err)
	}
	return out, nil
}

// UngroupedTopics returns discourse topics for a DAO with no group item
// reference yet.
func (s *GroupStore) UngroupedTopics(ctx context.Context, daoID uuid.UUID, configID uuid.UUID) ([]DiscourseTopic, error) {
	var out []DiscourseTopic
	if err := s.db.WithContext(ctx).
		Where("dao_discourse_config_id = ? AND external_id NOT IN (SELECT external_id::int FROM proposal_group_items WHERE dao_id = ? AND kind = ?)", configID, daoID, GroupItemTopic).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: ungrouped_topics: %w", err)
	}
	return out, nil
}
