package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestProposalUpsertManyInsertsAndUpdates(t *testing.T) {
	db := setupTestDB(t)
	s := NewProposalStore(db)
	governorID := uuid.New()
	daoID := uuid.New()

	p := Proposal{
		ID:         uuid.New(),
		ExternalID: "1",
		GovernorID: governorID,
		DAOID:      daoID,
		Name:       "First cut",
		State:      StatePending,
		Choices:    JSONStringSlice{"For", "Against"},
		Scores:     JSONFloatSlice{1, 2},
		Metadata:   JSONMap{"vote_type": "onchain"},
	}
	require.NoError(t, s.UpsertMany(context.Background(), []Proposal{p}))

	got, err := s.ByExternalID(context.Background(), governorID.String(), "1")
	require.NoError(t, err)
	require.Equal(t, "First cut", got.Name)
	require.Equal(t, StatePending, got.State)

	updated := p
	updated.ID = uuid.New() // identity is (governor_id, external_id), not the row ID
	updated.Name = "First cut, revised"
	updated.State = StateActive
	require.NoError(t, s.UpsertMany(context.Background(), []Proposal{updated}))

	got, err = s.ByExternalID(context.Background(), governorID.String(), "1")
	require.NoError(t, err)
	require.Equal(t, "First cut, revised", got.Name)
	require.Equal(t, StateActive, got.State)
}

func TestProposalUpsertManyCoalescesOptionalFields(t *testing.T) {
	db := setupTestDB(t)
	s := NewProposalStore(db)
	governorID := uuid.New()
	daoID := uuid.New()

	author := "0xauthor"
	discussion := "https://forum.example/t/1"
	initial := Proposal{
		ID:            uuid.New(),
		ExternalID:    "7",
		GovernorID:    governorID,
		DAOID:         daoID,
		Name:          "Treasury swap",
		State:         StateActive,
		Author:        &author,
		DiscussionURL: &discussion,
	}
	require.NoError(t, s.UpsertMany(context.Background(), []Proposal{initial}))

	// A later pass that couldn't re-derive author/discussion_url (nil on
	// this decode) must not blank out the values already stored.
	rescan := initial
	rescan.ID = uuid.New()
	rescan.Author = nil
	rescan.DiscussionURL = nil
	rescan.State = StateSucceeded
	require.NoError(t, s.UpsertMany(context.Background(), []Proposal{rescan}))

	got, err := s.ByExternalID(context.Background(), governorID.String(), "7")
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, got.State)
	require.NotNil(t, got.Author)
	require.Equal(t, author, *got.Author)
	require.NotNil(t, got.DiscussionURL)
	require.Equal(t, discussion, *got.DiscussionURL)
}

func TestProposalActiveOrPending(t *testing.T) {
	db := setupTestDB(t)
	s := NewProposalStore(db)
	governorID := uuid.New()
	daoID := uuid.New()

	rows := []Proposal{
		{ID: uuid.New(), ExternalID: "1", GovernorID: governorID, DAOID: daoID, State: StatePending, BlockCreatedAt: ptrUint64Test(1)},
		{ID: uuid.New(), ExternalID: "2", GovernorID: governorID, DAOID: daoID, State: StateActive, BlockCreatedAt: ptrUint64Test(2)},
		{ID: uuid.New(), ExternalID: "3", GovernorID: governorID, DAOID: daoID, State: StateExecuted, BlockCreatedAt: ptrUint64Test(3)},
	}
	require.NoError(t, s.UpsertMany(context.Background(), rows))

	got, err := s.ActiveOrPending(context.Background(), governorID.String())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ExternalID)
	require.Equal(t, "2", got[1].ExternalID)
}

func TestProposalByGovernor(t *testing.T) {
	db := setupTestDB(t)
	s := NewProposalStore(db)
	governorID := uuid.New()
	daoID := uuid.New()
	otherGovernor := uuid.New()

	now := time.Now().UTC()
	require.NoError(t, s.UpsertMany(context.Background(), []Proposal{
		{ID: uuid.New(), ExternalID: "1", GovernorID: governorID, DAOID: daoID, CreatedAt: now.Add(-time.Hour)},
		{ID: uuid.New(), ExternalID: "2", GovernorID: governorID, DAOID: daoID, CreatedAt: now},
		{ID: uuid.New(), ExternalID: "1", GovernorID: otherGovernor, DAOID: daoID, CreatedAt: now},
	}))

	got, err := s.ByGovernor(context.Background(), governorID.String())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2", got[0].ExternalID) // newest first
}

func ptrUint64Test(v uint64) *uint64 { return &v }
