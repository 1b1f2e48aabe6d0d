package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"daoindexer/internal/store"
)

func TestMapSnapshotState(t *testing.T) {
	cases := []struct {
		state, privacy, scoresState string
		want                        store.ProposalState
	}{
		{"active", "", "", store.StateActive},
		{"pending", "shutter", "", store.StateHidden},
		{"pending", "", "", store.StatePending},
		{"closed", "", "final", store.StateExecuted},
		{"closed", "", "pending", store.StateDefeated},
		{"cancelled", "", "", store.StateCanceled},
		{"nonsense", "", "", store.StateUnknown},
	}
	for _, tc := range cases {
		got := mapSnapshotState(tc.state, tc.privacy, tc.scoresState)
		require.Equal(t, tc.want, got, "state=%s privacy=%s scoresState=%s", tc.state, tc.privacy, tc.scoresState)
	}
}

func TestScoresQuorumOf(t *testing.T) {
	require.Equal(t, 0.0, scoresQuorumOf([]float64{1, 2, 3}, 0))
	require.Equal(t, 6.0, scoresQuorumOf([]float64{1, 2, 3}, 10))
}
