package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteStore persists Vote rows idempotently on (proposal_id, voter_address, txid).
type VoteStore struct {
	db *gorm.DB
}

// NewVoteStore builds a VoteStore over db.
func NewVoteStore(db *gorm.DB) *VoteStore { return &VoteStore{db: db} }

// UpsertMany writes votes in chunks, never overwriting an existing row's
// txid-scoped identity. A later vote by the same voter with a different
// txid is a new row per spec — both persist side by side.
func (s *VoteStore) UpsertMany(ctx context.Context, votes []Vote) error {
	for start := 0; start < len(votes); start += chunkSize {
		end := start + chunkSize
		if end > len(votes) {
			end = len(votes)
		}
		batch := votes[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "proposal_id"}, {Name: "voter_address"}, {Name: "tx_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"voting_power", "choice", "reason", "block_created_at"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert votes: %w", err)
		}
	}
	return nil
}

// LatestPerVoter returns the most recent vote per voter on a proposal,
// using a window function keyed on (voter_address) ordered by created_at
// and block descending, the way a reconciliation query would dedupe
// superseding rows without deleting history.
func (s *VoteStore) LatestPerVoter(ctx context.Context, proposalID string) ([]Vote, error) {
	const query = `
		SELECT * FROM (
			SELECT v.*, ROW_NUMBER() OVER (
				PARTITION BY voter_address
				ORDER BY created_at DESC, block_created_at DESC
			) AS rn
			FROM votes v
			WHERE proposal_id = ?
		) ranked
		WHERE rn = 1
	`
	var out []Vote
	if err := s.db.WithContext(ctx).Raw(query, proposalID).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("store: latest_per_voter: %w", err)
	}
	return out, nil
}

// ByProposal returns every vote row for a proposal, including superseded
// entries, ordered oldest first.
func (s *VoteStore) ByProposal(ctx context.Context, proposalID string) ([]Vote, error) {
	var out []Vote
	if err := s.db.WithContext(ctx).Where("proposal_id = ?", proposalID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: by_proposal: %w", err)
	}
	return out, nil
}

// DistinctVoterAddresses lists every address that has cast at least one
// vote, feeding the ENS refresh sweep.
func (s *VoteStore) DistinctVoterAddresses(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.db.WithContext(ctx).Model(&Vote{}).Distinct().Pluck("voter_address", &out).Error; err != nil {
		return nil, fmt.Errorf("store: distinct_voter_addresses: %w", err)
	}
	return out, nil
}
