package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestVotingPowerUpsertManyUpdatesOnConflict(t *testing.T) {
	db := setupTestDB(t)
	s := NewVotingPowerStore(db)
	daoID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	snap := VotingPowerSnapshot{
		ID: uuid.New(), Voter: "0xvoter", DAOID: daoID,
		VotingPower: 100, Timestamp: now, Block: 10, TxID: "0xtx1",
	}
	require.NoError(t, s.UpsertMany(context.Background(), []VotingPowerSnapshot{snap}))

	snap.VotingPower = 150
	require.NoError(t, s.UpsertMany(context.Background(), []VotingPowerSnapshot{snap}))

	total, err := s.TotalDelegatedVPAt(context.Background(), daoID.String(), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 150.0, total)
}

func TestTotalDelegatedVPAtSumsLatestPerVoter(t *testing.T) {
	db := setupTestDB(t)
	s := NewVotingPowerStore(db)
	daoID := uuid.New()
	t0 := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpsertMany(context.Background(), []VotingPowerSnapshot{
		{ID: uuid.New(), Voter: "0xa", DAOID: daoID, VotingPower: 10, Timestamp: t0, Block: 1, TxID: "0xa-tx1"},
		{ID: uuid.New(), Voter: "0xa", DAOID: daoID, VotingPower: 40, Timestamp: t0.Add(time.Hour), Block: 2, TxID: "0xa-tx2"},
		{ID: uuid.New(), Voter: "0xb", DAOID: daoID, VotingPower: 5, Timestamp: t0, Block: 1, TxID: "0xb-tx1"},
	}))

	// Only the latest snapshot per voter (0xa: 40, 0xb: 5) should count.
	total, err := s.TotalDelegatedVPAt(context.Background(), daoID.String(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 45.0, total)

	// At t0 exactly, 0xa's later snapshot hasn't happened yet.
	total, err = s.TotalDelegatedVPAt(context.Background(), daoID.String(), t0)
	require.NoError(t, err)
	require.Equal(t, 15.0, total)
}

func TestTotalDelegatedVPAtNoSnapshots(t *testing.T) {
	db := setupTestDB(t)
	s := NewVotingPowerStore(db)
	total, err := s.TotalDelegatedVPAt(context.Background(), uuid.New().String(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 0.0, total)
}
