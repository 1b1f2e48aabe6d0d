// Package onchain decodes governor contract events into the normalized
// proposal/vote model, dispatching on a GovernorKind enum rather than
// reflection so each family's quirks stay in its own file.
package onchain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"daoindexer/internal/chain"
	chainabi "daoindexer/internal/chain/abi"
	"daoindexer/internal/store"
)

// GovernorKind identifies a governor contract family with its own event
// shapes, state mapping, and scoring rules.
type GovernorKind string

const (
	KindAaveV2Mainnet      GovernorKind = "AaveV2Mainnet"
	KindAaveV3Mainnet      GovernorKind = "AaveV3Mainnet"
	KindArbitrumTreasury   GovernorKind = "ArbitrumTreasury"
	KindArbitrumCore       GovernorKind = "ArbitrumCore"
	KindOptimismGovernorV6 GovernorKind = "OptimismGovernorV6"
	KindUniswap            GovernorKind = "Uniswap"
)

// Decoder normalizes one governor family's ProposalCreated/VoteCast shapes
// into the persistence model.
type Decoder interface {
	ABIName() chainabi.Name
	DecodeProposal(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Proposal, error)
	// DecodeVote returns the decoded vote plus the external proposal id it
	// belongs to, since Vote.ProposalID itself is only resolvable once the
	// caller looks up the owning Proposal row.
	DecodeVote(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Vote, string, error)
	ProposalCreatedTopics() []common.Hash
	VoteCastTopics() []common.Hash
}

// DecodeContext bundles the dependencies a Decoder needs to enrich a raw
// log into a full record: chain access for eth_call follow-ups, a
// timestamp resolver, and identity for the owning governor/DAO.
type DecodeContext struct {
	Provider    *chain.Provider
	ABI         *gethabi.ABI
	GovernorID  string
	DAOID       string
	Address     common.Address
	Network     string
	ResolveTime func(ctx context.Context, network string, block uint64) (int64, error)

	// FetchIPFS resolves an Aave ipfsHash into (title, body, discussionURL).
	// Nil for governor families that don't host bodies off-chain.
	FetchIPFS func(ctx context.Context, ipfsHash [32]byte) (title, body, discussionURL string, err error)

	// VotesForProposal returns the already-persisted vote rows for a given
	// external proposal id, one per voter's latest ballot. Used by modules
	// whose scores aren't tracked on-chain (Optimism's approval-v2) and
	// must be recomputed from stored votes on every re-scan. Returns a nil
	// slice, no error, the first time a proposal is seen, before it has
	// ever been persisted.
	VotesForProposal func(ctx context.Context, externalID string) ([]store.Vote, error)

	// Log receives warnings for eth_call follow-ups that fail; nil-safe.
	Log *slog.Logger

	// TotalDelegatedVPAt sums every voter's latest voting-power snapshot in
	// this DAO as of the given time. Set whenever the Scanner has a
	// VotingPowerStore, nil otherwise; for a DAO whose token is not indexed
	// (see config.Governor.TokenAddress) there are no snapshots and it
	// returns 0.
	TotalDelegatedVPAt func(ctx context.Context, at time.Time) (float64, error)
}

// dispatch is the static family-to-decoder table; no reflection.
var dispatch = map[GovernorKind]func() Decoder{
	KindAaveV2Mainnet:      func() Decoder { return &aaveV2Decoder{} },
	KindAaveV3Mainnet:      func() Decoder { return &aaveV3Decoder{} },
	KindArbitrumTreasury:   func() Decoder { return &ozDecoder{kind: KindArbitrumTreasury} },
	KindArbitrumCore:       func() Decoder { return &ozDecoder{kind: KindArbitrumCore} },
	KindOptimismGovernorV6: func() Decoder { return &optimismDecoder{} },
	KindUniswap:            func() Decoder { return &ozDecoder{kind: KindUniswap} },
}

// DecoderFor returns the Decoder registered for kind.
func DecoderFor(kind GovernorKind) (Decoder, bool) {
	factory, ok := dispatch[kind]
	if !ok {
		return nil, false
	}
	return factory(), true
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	scaled := new(big.Float).Quo(f, big.NewFloat(1e18))
	out, _ := scaled.Float64()
	return out
}
