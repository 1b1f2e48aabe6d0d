package onchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"daoindexer/internal/errs"
	"daoindexer/internal/store"
)

var errMissingFields = errors.New("decode: required event fields missing or wrong type")

func ptrUint64(v uint64) *uint64 { return &v }

func secToTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func lowerHex(addr common.Address) string { return strings.ToLower(addr.Hex()) }

// firstLine extracts a short name from a markdown-style proposal
// description, the way a forum title derives from its first heading.
func firstLine(description string) string {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "Untitled proposal"
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = strings.TrimPrefix(trimmed, "# ")
	if trimmed == "#" {
		trimmed = ""
	}
	trimmed = strings.Trim(trimmed, "\"")
	if trimmed == "" {
		return "Untitled proposal"
	}
	return trimmed
}

// standardChoices is the fixed three-way ballot most governors use.
var standardChoices = []string{"For", "Against", "Abstain"}

// quorumChoicesStandard sums only For + Abstain toward quorum, the OZ
// convention; Aave counts For only (see aaveQuorumIndices).
var quorumChoicesStandard = []int{0, 2}
var aaveQuorumIndices = []int{0}

func resolveBlockTime(ctx context.Context, dctx *DecodeContext, block uint64) int64 {
	if dctx.ResolveTime == nil {
		return 0
	}
	ts, err := dctx.ResolveTime(ctx, dctx.Network, block)
	if err != nil {
		return 0
	}
	return ts
}

func unixToBlockTime(sec int64) (created, start, end int64) {
	return sec, sec, sec
}

func txHashOf(log gethtypes.Log) *string {
	h := log.TxHash.Hex()
	return &h
}

// largerDeadline honors the larger of the event-recorded end block and a
// live proposalDeadline call, since some governors extend deadlines after
// creation.
func largerDeadline(eventEnd uint64, liveEnd *big.Int) uint64 {
	if liveEnd == nil {
		return eventEnd
	}
	live := liveEnd.Uint64()
	if live > eventEnd {
		return live
	}
	return eventEnd
}

func addressOrNil(addr common.Address) *string {
	if addr == (common.Address{}) {
		return nil
	}
	s := addr.Hex()
	return &s
}

func newProposalErr(where string, err error) error {
	return errs.Wrap(errs.KindDecode, where, err)
}

// logCallErr warns on a failed eth_call follow-up without aborting the
// decode; callers that don't need the result for state determination use
// this for every Provider.Call they otherwise discard.
func logCallErr(log *slog.Logger, where string, err error) {
	if err == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	log.Warn("onchain: eth_call failed, using zero value", "call", where, "err", err)
}

// firstErr returns the first non-nil error, or nil if all are nil.
func firstErr(candidates ...error) error {
	for _, err := range candidates {
		if err != nil {
			return err
		}
	}
	return nil
}

func baseMetadata(voteType, votingModule string, quorumChoices []int) store.JSONMap {
	return store.JSONMap{
		"vote_type":      voteType,
		"voting_module":  votingModule,
		"quorum_choices": quorumChoices,
	}
}

// withExtra merges extra keys into a metadata map built by baseMetadata,
// overwriting on conflict.
func withExtra(base store.JSONMap, extra map[string]interface{}) store.JSONMap {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func scoresQuorumOf(scores []float64, quorumChoices []int) float64 {
	var total float64
	for _, idx := range quorumChoices {
		if idx >= 0 && idx < len(scores) {
			total += scores[idx]
		}
	}
	return total
}

func scoresTotalOf(scores []float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	return total
}

func mustProposalID(args []interface{}, idx int) (*big.Int, error) {
	if idx >= len(args) {
		return nil, fmt.Errorf("decode: missing proposal id arg at index %d", idx)
	}
	id, ok := args[idx].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode: proposal id arg not *big.Int")
	}
	return id, nil
}
