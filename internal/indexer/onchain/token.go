package onchain

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"daoindexer/internal/chain"
	chainabi "daoindexer/internal/chain/abi"
	"daoindexer/internal/indexer"
	"daoindexer/internal/store"
)

var (
	delegateChangedTopic      = gethcrypto.Keccak256Hash([]byte("DelegateChanged(address,address,address)"))
	delegateVotesChangedTopic = gethcrypto.Keccak256Hash([]byte("DelegateVotesChanged(address,uint256,uint256)"))
)

// TokenScanner decodes a governance token's ERC20Votes delegation events
// into Delegation and VotingPowerSnapshot rows. It runs independently of
// the governor's own proposal/vote scanner since the token contract and
// the governor contract are separate addresses watched at their own
// cadence; there is no sticky-cursor floor because delegation history
// never needs re-reading once a block range has been decoded.
type TokenScanner struct {
	provider *chain.Provider
	abi      *gethabi.ABI
	address  common.Address
	network  string
	daoID    uuid.UUID

	resolveTime func(ctx context.Context, network string, block uint64) (int64, error)

	delegations *store.DelegationStore
	votingPower *store.VotingPowerStore
	log         *slog.Logger
}

// NewTokenScanner builds a TokenScanner over a governance token address.
func NewTokenScanner(
	provider *chain.Provider,
	address common.Address,
	network string,
	daoID uuid.UUID,
	resolveTime func(ctx context.Context, network string, block uint64) (int64, error),
	delegations *store.DelegationStore,
	votingPower *store.VotingPowerStore,
	log *slog.Logger,
) (*TokenScanner, error) {
	a, err := chainabi.Get(chainabi.ERC20Votes)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &TokenScanner{
		provider:    provider,
		abi:         a,
		address:     address,
		network:     network,
		daoID:       daoID,
		resolveTime: resolveTime,
		delegations: delegations,
		votingPower: votingPower,
		log:         log,
	}, nil
}

// ChainTip returns the network's current block number.
func (s *TokenScanner) ChainTip(ctx context.Context) (uint64, error) {
	return s.provider.GetBlockNumber(ctx)
}

// Scan decodes every DelegateChanged/DelegateVotesChanged log in [from, to]
// and persists the resulting delegation and voting-power-snapshot rows.
func (s *TokenScanner) Scan(ctx context.Context, from, to uint64) (indexer.Result, error) {
	logs, err := s.provider.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.address},
		Topics:    [][]common.Hash{{delegateChangedTopic, delegateVotesChangedTopic}},
	})
	if err != nil {
		return indexer.Result{}, err
	}

	delegations := make([]store.Delegation, 0, len(logs))
	snapshots := make([]store.VotingPowerSnapshot, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) == 0 {
			continue
		}
		switch l.Topics[0] {
		case delegateChangedTopic:
			d, err := s.decodeDelegateChanged(ctx, l)
			if err != nil {
				s.log.Warn("token: decode delegate_changed failed, skipping", "block", l.BlockNumber, "err", err)
				continue
			}
			delegations = append(delegations, *d)
		case delegateVotesChangedTopic:
			v, err := s.decodeDelegateVotesChanged(ctx, l)
			if err != nil {
				s.log.Warn("token: decode delegate_votes_changed failed, skipping", "block", l.BlockNumber, "err", err)
				continue
			}
			snapshots = append(snapshots, *v)
		}
	}

	count := 0
	if len(delegations) > 0 {
		if err := s.delegations.UpsertMany(ctx, delegations); err != nil {
			return indexer.Result{}, err
		}
		count += len(delegations)
	}
	if len(snapshots) > 0 {
		if err := s.votingPower.UpsertMany(ctx, snapshots); err != nil {
			return indexer.Result{}, err
		}
		count += len(snapshots)
	}

	return indexer.Result{RecordCount: count}, nil
}

func (s *TokenScanner) decodeDelegateChanged(ctx context.Context, log gethtypes.Log) (*store.Delegation, error) {
	if len(log.Topics) < 4 {
		return nil, errMissingFields
	}
	delegator := common.BytesToAddress(log.Topics[1].Bytes())
	toDelegate := common.BytesToAddress(log.Topics[3].Bytes())

	d := &store.Delegation{
		ID:        uuid.New(),
		Delegator: lowerHex(delegator),
		Delegate:  lowerHex(toDelegate),
		DAOID:     s.daoID,
		Block:     log.BlockNumber,
		TxID:      log.TxHash.Hex(),
	}
	if sec := resolveTimeOrZero(ctx, s.resolveTime, s.network, log.BlockNumber); sec > 0 {
		d.Timestamp = secToTime(sec)
	}
	return d, nil
}

func (s *TokenScanner) decodeDelegateVotesChanged(ctx context.Context, log gethtypes.Log) (*store.VotingPowerSnapshot, error) {
	if len(log.Topics) < 2 {
		return nil, errMissingFields
	}
	delegate := common.BytesToAddress(log.Topics[1].Bytes())

	out := map[string]interface{}{}
	if err := s.abi.UnpackIntoMap(out, "DelegateVotesChanged", log.Data); err != nil {
		return nil, newProposalErr("token.decodeDelegateVotesChanged.unpack", err)
	}
	newBalance, _ := out["newBalance"].(*big.Int)

	v := &store.VotingPowerSnapshot{
		ID:          uuid.New(),
		Voter:       lowerHex(delegate),
		DAOID:       s.daoID,
		VotingPower: bigToFloat(newBalance),
		Block:       log.BlockNumber,
		TxID:        log.TxHash.Hex(),
	}
	if sec := resolveTimeOrZero(ctx, s.resolveTime, s.network, log.BlockNumber); sec > 0 {
		v.Timestamp = secToTime(sec)
	}
	return v, nil
}

func resolveTimeOrZero(ctx context.Context, resolve func(ctx context.Context, network string, block uint64) (int64, error), network string, block uint64) int64 {
	if resolve == nil {
		return 0
	}
	sec, err := resolve(ctx, network, block)
	if err != nil {
		return 0
	}
	return sec
}
