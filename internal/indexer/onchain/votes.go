package onchain

import (
	"encoding/json"

	"daoindexer/internal/store"
)

// normalizeSupport remaps OZ's support ∈ {0 Against, 1 For, 2 Abstain} onto
// the proposal's own choices ordering, which for standard governors is
// [For, Against, Abstain].
func normalizeSupport(support uint8) int {
	switch support {
	case 0:
		return 1 // Against
	case 1:
		return 0 // For
	case 2:
		return 2 // Abstain
	default:
		return int(support)
	}
}

func choiceJSON(index int) store.JSONValue {
	raw, _ := json.Marshal(index)
	return store.JSONValue{Raw: raw}
}

func choiceIndicesJSON(indices []int) store.JSONValue {
	raw, _ := json.Marshal(indices)
	return store.JSONValue{Raw: raw}
}

// AggregateApprovalScores sums persisted vote rows into a scores array for
// the "approval v2" Optimism module, where choice is stored as either a
// single integer index or an array of indices and scores are not tracked
// on-chain at all. This is a pure function over already-decoded votes so
// it can be re-run any time new votes land without touching the chain.
func AggregateApprovalScores(votes []store.Vote, numChoices int) []float64 {
	scores := make([]float64, numChoices)
	for _, v := range votes {
		indices := decodeChoiceIndices(v.Choice)
		for _, idx := range indices {
			if idx >= 0 && idx < numChoices {
				scores[idx] += v.VotingPower
			}
		}
	}
	return scores
}

func decodeChoiceIndices(choice store.JSONValue) []int {
	if len(choice.Raw) == 0 {
		return nil
	}
	var single int
	if err := json.Unmarshal(choice.Raw, &single); err == nil {
		return []int{single}
	}
	var many []int
	if err := json.Unmarshal(choice.Raw, &many); err == nil {
		return many
	}
	return nil
}
