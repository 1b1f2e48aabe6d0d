package onchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"daoindexer/internal/store"
)

func TestNormalizeSupport(t *testing.T) {
	require.Equal(t, 1, normalizeSupport(0)) // Against
	require.Equal(t, 0, normalizeSupport(1)) // For
	require.Equal(t, 2, normalizeSupport(2)) // Abstain
	require.Equal(t, 9, normalizeSupport(9)) // unknown passthrough
}

func TestChoiceJSONRoundTrip(t *testing.T) {
	require.Equal(t, []int{2}, decodeChoiceIndices(choiceJSON(2)))
	require.Equal(t, []int{0, 1, 3}, decodeChoiceIndices(choiceIndicesJSON([]int{0, 1, 3})))
}

func TestDecodeChoiceIndicesEmpty(t *testing.T) {
	require.Nil(t, decodeChoiceIndices(store.JSONValue{}))
}

func TestAggregateApprovalScores(t *testing.T) {
	votes := []store.Vote{
		{Choice: choiceJSON(0), VotingPower: 10},
		{Choice: choiceJSON(1), VotingPower: 5},
		{Choice: choiceIndicesJSON([]int{0, 2}), VotingPower: 3},
		{Choice: choiceJSON(99), VotingPower: 100}, // out of range, ignored
	}
	got := AggregateApprovalScores(votes, 3)
	require.Equal(t, []float64{13, 5, 3}, got)
}

func TestAggregateApprovalScoresEmpty(t *testing.T) {
	require.Equal(t, []float64{0, 0}, AggregateApprovalScores(nil, 2))
}
