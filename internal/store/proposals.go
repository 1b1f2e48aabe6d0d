package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chunkSize bounds how many rows a single upsert statement touches, mirroring
// the reconciler's preference for bounded per-statement work over one giant
// batch.
const chunkSize = 100

// ProposalStore persists Proposal rows idempotently on (governor_id, external_id).
type ProposalStore struct {
	db *gorm.DB
}

// NewProposalStore builds a ProposalStore over db.
func NewProposalStore(db *gorm.DB) *ProposalStore { return &ProposalStore{db: db} }

// UpsertMany writes proposals in chunks of chunkSize, applying proposalPatch
// on conflict: most columns overwrite unconditionally since a decode always
// re-derives them from fresh chain/API data, but a handful of
// coalescedColumns only overwrite when the incoming row actually populated
// them, so a pass that couldn't resolve an optional field (an IPFS timeout
// leaving author/discussion_url unset, say) never blanks out a value a
// previous pass already stored.
func (s *ProposalStore) UpsertMany(ctx context.Context, proposals []Proposal) error {
	for start := 0; start < len(proposals); start += chunkSize {
		end := start + chunkSize
		if end > len(proposals) {
			end = len(proposals)
		}
		batch := proposals[start:end]
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "governor_id"}, {Name: "external_id"}},
			DoUpdates: proposalPatch.assignments(),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("store: upsert proposals: %w", err)
		}
	}
	return nil
}

// ProposalPatch is the field mask UpsertMany applies on conflict: overwrite
// columns always take the incoming value, while coalesced columns keep the
// stored value whenever the incoming one is NULL.
type ProposalPatch struct {
	overwrite []string
	coalesced []string
}

var proposalPatch = ProposalPatch{
	overwrite: []string{
		"name", "body", "url",
		"choices", "quorum", "state", "scores", "scores_total", "scores_quorum",
		"start_at", "end_at", "block_created_at", "block_start_at", "block_end_at",
		"tx_id", "metadata", "marked_spam", "updated_at",
	},
	coalesced: []string{"author", "discussion_url"},
}

func (p ProposalPatch) assignments() clause.Set {
	set := append(clause.Set{}, clause.AssignmentColumns(p.overwrite)...)
	for _, col := range p.coalesced {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value: gorm.Expr(
				"COALESCE(?, ?)",
				clause.Column{Table: "excluded", Name: col},
				clause.Column{Table: "proposals", Name: col},
			),
		})
	}
	return set
}

// ByExternalID fetches a single proposal by (governor, external id).
func (s *ProposalStore) ByExternalID(ctx context.Context, governorID, externalID string) (*Proposal, error) {
	var p Proposal
	if err := s.db.WithContext(ctx).Where("governor_id = ? AND external_id = ?", governorID, externalID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveOrPending returns proposals from a governor currently in a state
// that keeps the cursor sticky, ordered by creation block ascending.
func (s *ProposalStore) ActiveOrPending(ctx context.Context, governorID string) ([]Proposal, error) {
	var out []Proposal
	if err := s.db.WithContext(ctx).
		Where("governor_id = ? AND state IN ?", governorID, []ProposalState{StatePending, StateActive}).
		Order("block_created_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: active_or_pending: %w", err)
	}
	return out, nil
}

// ByGovernor lists every proposal for a governor, newest first.
func (s *ProposalStore) ByGovernor(ctx context.Context, governorID string) ([]Proposal, error) {
	var out []Proposal
	if err := s.db.WithContext(ctx).Where("governor_id = ?", governorID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: by_governor: %w", err)
	}
	return out, nil
}
