package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDelegationUpsertManyUpdatesOnConflict(t *testing.T) {
	db := setupTestDB(t)
	s := NewDelegationStore(db)
	daoID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	d := Delegation{
		ID: uuid.New(), Delegator: "0xdelegator", Delegate: "0xold", DAOID: daoID,
		Timestamp: now, Block: 1, TxID: "0xtx1",
	}
	require.NoError(t, s.UpsertMany(context.Background(), []Delegation{d}))

	got, err := s.CurrentDelegate(context.Background(), daoID.String(), "0xdelegator")
	require.NoError(t, err)
	require.Equal(t, "0xold", got)

	d.Delegate = "0xnew"
	require.NoError(t, s.UpsertMany(context.Background(), []Delegation{d}))

	got, err = s.CurrentDelegate(context.Background(), daoID.String(), "0xdelegator")
	require.NoError(t, err)
	require.Equal(t, "0xnew", got)
}

func TestCurrentDelegateMostRecentWins(t *testing.T) {
	db := setupTestDB(t)
	s := NewDelegationStore(db)
	daoID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpsertMany(context.Background(), []Delegation{
		{ID: uuid.New(), Delegator: "0xd", Delegate: "0xfirst", DAOID: daoID, Timestamp: now, Block: 1, TxID: "0xtx1"},
		{ID: uuid.New(), Delegator: "0xd", Delegate: "0xsecond", DAOID: daoID, Timestamp: now.Add(time.Hour), Block: 2, TxID: "0xtx2"},
	}))

	got, err := s.CurrentDelegate(context.Background(), daoID.String(), "0xd")
	require.NoError(t, err)
	require.Equal(t, "0xsecond", got)
}

func TestCurrentDelegateUnknownDelegator(t *testing.T) {
	db := setupTestDB(t)
	s := NewDelegationStore(db)
	got, err := s.CurrentDelegate(context.Background(), uuid.New().String(), "0xnobody")
	require.NoError(t, err)
	require.Equal(t, "", got)
}
