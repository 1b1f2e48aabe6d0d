package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestVoteUpsertManySameVoterNewTxIsNewRow(t *testing.T) {
	db := setupTestDB(t)
	s := NewVoteStore(db)
	proposalID := uuid.New()
	governorID := uuid.New()
	daoID := uuid.New()

	first := Vote{
		ID: uuid.New(), ProposalID: proposalID, GovernorID: governorID, DAOID: daoID,
		VoterAddress: "0xvoter", VotingPower: 10, TxID: strPtrTest("0xtx1"),
	}
	second := Vote{
		ID: uuid.New(), ProposalID: proposalID, GovernorID: governorID, DAOID: daoID,
		VoterAddress: "0xvoter", VotingPower: 20, TxID: strPtrTest("0xtx2"),
	}
	require.NoError(t, s.UpsertMany(context.Background(), []Vote{first, second}))

	got, err := s.ByProposal(context.Background(), proposalID.String())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestVoteUpsertManyReplacesSameIdentity(t *testing.T) {
	db := setupTestDB(t)
	s := NewVoteStore(db)
	proposalID := uuid.New()
	governorID := uuid.New()
	daoID := uuid.New()

	v := Vote{
		ID: uuid.New(), ProposalID: proposalID, GovernorID: governorID, DAOID: daoID,
		VoterAddress: "0xvoter", VotingPower: 10, TxID: strPtrTest("0xtx1"),
	}
	require.NoError(t, s.UpsertMany(context.Background(), []Vote{v}))

	v.VotingPower = 99
	require.NoError(t, s.UpsertMany(context.Background(), []Vote{v}))

	got, err := s.ByProposal(context.Background(), proposalID.String())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 99.0, got[0].VotingPower)
}

func TestVoteDistinctVoterAddresses(t *testing.T) {
	db := setupTestDB(t)
	s := NewVoteStore(db)
	proposalID := uuid.New()
	governorID := uuid.New()
	daoID := uuid.New()

	require.NoError(t, s.UpsertMany(context.Background(), []Vote{
		{ID: uuid.New(), ProposalID: proposalID, GovernorID: governorID, DAOID: daoID, VoterAddress: "0xa", TxID: strPtrTest("0xtx1")},
		{ID: uuid.New(), ProposalID: proposalID, GovernorID: governorID, DAOID: daoID, VoterAddress: "0xb", TxID: strPtrTest("0xtx2")},
		{ID: uuid.New(), ProposalID: proposalID, GovernorID: governorID, DAOID: daoID, VoterAddress: "0xa", TxID: strPtrTest("0xtx3")},
	}))

	got, err := s.DistinctVoterAddresses(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"0xa", "0xb"}, got)
}

func strPtrTest(s string) *string { return &s }
