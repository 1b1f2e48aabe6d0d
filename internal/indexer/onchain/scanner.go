package onchain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"daoindexer/internal/chain"
	chainabi "daoindexer/internal/chain/abi"
	"daoindexer/internal/indexer"
	"daoindexer/internal/ipfs"
	"daoindexer/internal/store"
)

// Scanner implements indexer.Scanner for one governor contract, decoding
// ProposalCreated and VoteCast logs in [from, to] and persisting them
// through the store layer.
type Scanner struct {
	provider   *chain.Provider
	decoder    Decoder
	abi        *gethabi.ABI
	address    common.Address
	network    string
	governorID uuid.UUID
	daoID      uuid.UUID

	resolveTime func(ctx context.Context, network string, block uint64) (int64, error)
	ipfsFetcher *ipfs.Fetcher

	proposals   *store.ProposalStore
	votes       *store.VoteStore
	votingPower *store.VotingPowerStore
	log         *slog.Logger
}

// NewScanner builds a Scanner for one governor's kind, resolving its ABI
// fragment from the shared embedded set.
func NewScanner(
	provider *chain.Provider,
	kind GovernorKind,
	address common.Address,
	network string,
	governorID, daoID uuid.UUID,
	resolveTime func(ctx context.Context, network string, block uint64) (int64, error),
	ipfsFetcher *ipfs.Fetcher,
	proposals *store.ProposalStore,
	votes *store.VoteStore,
	votingPower *store.VotingPowerStore,
	log *slog.Logger,
) (*Scanner, error) {
	decoder, ok := DecoderFor(kind)
	if !ok {
		return nil, newProposalErr("onchain.NewScanner", errMissingFields)
	}
	a, err := chainabi.Get(decoder.ABIName())
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		provider:    provider,
		decoder:     decoder,
		abi:         a,
		address:     address,
		network:     network,
		governorID:  governorID,
		daoID:       daoID,
		resolveTime: resolveTime,
		ipfsFetcher: ipfsFetcher,
		proposals:   proposals,
		votes:       votes,
		votingPower: votingPower,
		log:         log,
	}, nil
}

// ChainTip returns the network's current block number.
func (s *Scanner) ChainTip(ctx context.Context) (uint64, error) {
	return s.provider.GetBlockNumber(ctx)
}

// Scan decodes every ProposalCreated/VoteCast log in [from, to], persists
// them, and reports the lowest block among still-active/pending proposals
// as the sticky cursor floor.
func (s *Scanner) Scan(ctx context.Context, from, to uint64) (indexer.Result, error) {
	dctx := &DecodeContext{
		Provider:    s.provider,
		ABI:         s.abi,
		GovernorID:  s.governorID.String(),
		DAOID:       s.daoID.String(),
		Address:     s.address,
		Network:     s.network,
		ResolveTime: s.resolveTime,
		Log:         s.log,
		VotesForProposal: func(ctx context.Context, externalID string) ([]store.Vote, error) {
			existing, err := s.proposals.ByExternalID(ctx, s.governorID.String(), externalID)
			if err != nil {
				return nil, nil
			}
			return s.votes.LatestPerVoter(ctx, existing.ID.String())
		},
	}
	if s.ipfsFetcher != nil {
		dctx.FetchIPFS = s.ipfsFetcher.Fetch
	}
	if s.votingPower != nil {
		daoID := s.daoID.String()
		dctx.TotalDelegatedVPAt = func(ctx context.Context, at time.Time) (float64, error) {
			return s.votingPower.TotalDelegatedVPAt(ctx, daoID, at)
		}
	}

	count := 0

	proposalLogs, err := s.provider.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.address},
		Topics:    [][]common.Hash{s.decoder.ProposalCreatedTopics()},
	})
	if err != nil {
		return indexer.Result{}, err
	}

	decoded := make([]store.Proposal, 0, len(proposalLogs))
	for _, l := range proposalLogs {
		p, err := s.decoder.DecodeProposal(ctx, dctx, l)
		if err != nil {
			s.log.Warn("onchain: decode proposal failed, skipping", "governor", s.governorID, "block", l.BlockNumber, "err", err)
			continue
		}
		decoded = append(decoded, *p)
	}
	if len(decoded) > 0 {
		if err := s.proposals.UpsertMany(ctx, decoded); err != nil {
			return indexer.Result{}, err
		}
		count += len(decoded)
	}

	voteLogs, err := s.provider.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.address},
		Topics:    [][]common.Hash{s.decoder.VoteCastTopics()},
	})
	if err != nil {
		return indexer.Result{}, err
	}

	votes := make([]store.Vote, 0, len(voteLogs))
	for _, l := range voteLogs {
		v, externalID, err := s.decoder.DecodeVote(ctx, dctx, l)
		if err != nil {
			s.log.Warn("onchain: decode vote failed, skipping", "governor", s.governorID, "block", l.BlockNumber, "err", err)
			continue
		}
		owner, err := s.proposals.ByExternalID(ctx, s.governorID.String(), externalID)
		if err != nil {
			s.log.Warn("onchain: vote references unknown proposal, skipping", "governor", s.governorID, "external_id", externalID, "err", err)
			continue
		}
		v.ProposalID = owner.ID
		votes = append(votes, *v)
	}
	if len(votes) > 0 {
		if err := s.votes.UpsertMany(ctx, votes); err != nil {
			return indexer.Result{}, err
		}
		count += len(votes)
	}

	sticky, err := s.stickyFloor(ctx, from)
	if err != nil {
		s.log.Warn("onchain: sticky floor lookup failed", "governor", s.governorID, "err", err)
	}

	return indexer.Result{RecordCount: count, StickyIndex: sticky}, nil
}

// stickyFloor returns the block of the earliest still-active/pending
// proposal for this governor, if any, so the cursor refuses to advance
// past a proposal whose final state/scores haven't been re-read yet.
func (s *Scanner) stickyFloor(ctx context.Context, from uint64) (*uint64, error) {
	active, err := s.proposals.ActiveOrPending(ctx, s.governorID.String())
	if err != nil {
		return nil, err
	}
	var floor *uint64
	for _, p := range active {
		if p.BlockCreatedAt == nil {
			continue
		}
		if *p.BlockCreatedAt < from {
			continue
		}
		if floor == nil || *p.BlockCreatedAt < *floor {
			b := *p.BlockCreatedAt
			floor = &b
		}
	}
	return floor, nil
}
