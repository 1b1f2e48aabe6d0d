package onchain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"daoindexer/internal/store"
)

func TestMapState(t *testing.T) {
	require.Equal(t, store.StateActive, mapState(ozStateTable, 1, false, false))
	require.Equal(t, store.StateExecuted, mapState(ozStateTable, 99, true, false))
	require.Equal(t, store.StateCanceled, mapState(ozStateTable, 99, false, true))
	require.Equal(t, store.StateUnknown, mapState(ozStateTable, 99, false, false))
}

func TestMapStateOrFallback(t *testing.T) {
	// A successful call trusts the decoded code, even at the zero value.
	require.Equal(t, store.StatePending, mapStateOrFallback(ozStateTable, 0, nil, false, false))

	// A failed call never trusts the zero-value code, which would
	// otherwise be indistinguishable from a genuinely pending proposal.
	callErr := errors.New("eth_call failed")
	require.Equal(t, store.StateUnknown, mapStateOrFallback(ozStateTable, 0, callErr, false, false))
	require.Equal(t, store.StateExecuted, mapStateOrFallback(ozStateTable, 0, callErr, true, false))
	require.Equal(t, store.StateCanceled, mapStateOrFallback(ozStateTable, 0, callErr, false, true))
}
