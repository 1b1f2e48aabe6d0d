package onchain

import "daoindexer/internal/store"

// ozStateTable maps OZ Governor's documented state enum:
// 0 Pending, 1 Active, 2 Canceled, 3 Defeated, 4 Succeeded, 5 Queued,
// 6 Expired, 7 Executed.
var ozStateTable = map[uint8]store.ProposalState{
	0: store.StatePending,
	1: store.StateActive,
	2: store.StateCanceled,
	3: store.StateDefeated,
	4: store.StateSucceeded,
	5: store.StateQueued,
	6: store.StateExpired,
	7: store.StateExecuted,
}

// aaveV2StateTable maps Aave Governor V2's documented state enum:
// 0 Pending, 1 Canceled, 2 Active, 3 Failed, 4 Succeeded, 5 Queued,
// 6 Expired, 7 Executed.
var aaveV2StateTable = map[uint8]store.ProposalState{
	0: store.StatePending,
	1: store.StateCanceled,
	2: store.StateActive,
	3: store.StateDefeated,
	4: store.StateSucceeded,
	5: store.StateQueued,
	6: store.StateExpired,
	7: store.StateExecuted,
}

// aaveV3StateTable mirrors Aave Governor V3's access-level-gated lifecycle,
// collapsed onto the same enum surface as V2.
var aaveV3StateTable = map[uint8]store.ProposalState{
	0: store.StatePending,
	1: store.StateActive,
	2: store.StateQueued,
	3: store.StateExecuted,
	4: store.StateCanceled,
	5: store.StateDefeated,
	6: store.StateExpired,
}

func mapState(table map[uint8]store.ProposalState, code uint8, executed, canceled bool) store.ProposalState {
	if s, ok := table[code]; ok {
		return s
	}
	if executed {
		return store.StateExecuted
	}
	if canceled {
		return store.StateCanceled
	}
	return store.StateUnknown
}

// mapStateOrFallback is mapState for a state-determining eth_call that can
// fail. A failed call leaves code at its Go zero value, which every table
// above maps to Pending — indistinguishable from a genuinely pending
// proposal. When callErr is non-nil the zero value is never trusted; the
// state is derived from executed/canceled instead, falling to Unknown.
func mapStateOrFallback(table map[uint8]store.ProposalState, code uint8, callErr error, executed, canceled bool) store.ProposalState {
	if callErr != nil {
		if executed {
			return store.StateExecuted
		}
		if canceled {
			return store.StateCanceled
		}
		return store.StateUnknown
	}
	return mapState(table, code, executed, canceled)
}
