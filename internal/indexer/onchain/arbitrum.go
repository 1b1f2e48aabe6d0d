package onchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	chainabi "daoindexer/internal/chain/abi"
	"daoindexer/internal/store"
)

var (
	ozProposalCreatedTopic = gethcrypto.Keccak256Hash([]byte("ProposalCreated(uint256,address,address[],uint256[],string[],bytes[],uint256,uint256,string)"))
	ozVoteCastTopic        = gethcrypto.Keccak256Hash([]byte("VoteCast(address,uint256,uint8,uint256,string)"))
	ozVoteCastParamsTopic  = gethcrypto.Keccak256Hash([]byte("VoteCastWithParams(address,uint256,uint8,uint256,string,bytes)"))
)

// ozDecoder handles the standard OpenZeppelin Governor event shape shared
// by Arbitrum's treasury/core governors and Uniswap's governor.
type ozDecoder struct {
	kind GovernorKind
}

func (d *ozDecoder) ABIName() chainabi.Name {
	if d.kind == KindArbitrumTreasury {
		return chainabi.ArbitrumTreasuryGovernor
	}
	return chainabi.OZGovernor
}

func (d *ozDecoder) ProposalCreatedTopics() []common.Hash { return []common.Hash{ozProposalCreatedTopic} }
func (d *ozDecoder) VoteCastTopics() []common.Hash {
	return []common.Hash{ozVoteCastTopic, ozVoteCastParamsTopic}
}

func (d *ozDecoder) DecodeProposal(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Proposal, error) {
	out := map[string]interface{}{}
	if err := dctx.ABI.UnpackIntoMap(out, "ProposalCreated", log.Data); err != nil {
		return nil, newProposalErr("oz.DecodeProposal.unpack", err)
	}
	proposalID, _ := out["proposalId"].(*big.Int)
	startBlock, _ := out["startBlock"].(*big.Int)
	endBlock, _ := out["endBlock"].(*big.Int)
	description, _ := out["description"].(string)
	if proposalID == nil || startBlock == nil || endBlock == nil {
		return nil, newProposalErr("oz.DecodeProposal", errMissingFields)
	}

	var stateCode uint8
	stateErr := dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "state", nil, &stateCode, proposalID)
	logCallErr(dctx.Log, "oz.state", stateErr)

	var votes struct {
		AgainstVotes *big.Int `abi:"againstVotes"`
		ForVotes     *big.Int `abi:"forVotes"`
		AbstainVotes *big.Int `abi:"abstainVotes"`
	}
	logCallErr(dctx.Log, "oz.proposalVotes", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "proposalVotes", nil, &votes, proposalID))

	var liveDeadline *big.Int
	logCallErr(dctx.Log, "oz.proposalDeadline", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "proposalDeadline", nil, &liveDeadline, proposalID))
	endBlockFinal := largerDeadline(endBlock.Uint64(), liveDeadline)

	var quorumVal *big.Int
	logCallErr(dctx.Log, "oz.quorum", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "quorum", nil, &quorumVal, startBlock))

	scores := []float64{bigToFloat(votes.ForVotes), bigToFloat(votes.AgainstVotes), bigToFloat(votes.AbstainVotes)}
	startSec := resolveBlockTime(ctx, dctx, startBlock.Uint64())
	endSec := resolveBlockTime(ctx, dctx, endBlockFinal)
	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)

	metadata := baseMetadata("onchain", "standard", quorumChoicesStandard)
	if d.kind == KindArbitrumTreasury && dctx.TotalDelegatedVPAt != nil && createdSec > 0 {
		if total, err := dctx.TotalDelegatedVPAt(ctx, secToTime(createdSec)); err == nil {
			metadata = withExtra(metadata, map[string]interface{}{"total_delegated_vp": total})
		} else {
			logCallErr(dctx.Log, "arbitrum.total_delegated_vp", err)
		}
	}

	p := &store.Proposal{
		ID:            uuid.New(),
		ExternalID:    proposalID.String(),
		GovernorID:    uuid.MustParse(dctx.GovernorID),
		DAOID:         uuid.MustParse(dctx.DAOID),
		Name:          firstLine(description),
		Body:          description,
		URL:           "",
		Choices:       standardChoices,
		Quorum:        bigToFloat(quorumVal),
		State:         mapStateOrFallback(ozStateTable, stateCode, stateErr, false, false),
		Scores:        scores,
		ScoresTotal:   scoresTotalOf(scores),
		ScoresQuorum:  scoresQuorumOf(scores, quorumChoicesStandard),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		BlockStartAt:   ptrUint64(startBlock.Uint64()),
		BlockEndAt:     ptrUint64(endBlockFinal),
		TxID:          txHashOf(log),
		Metadata:      metadata,
	}
	if createdSec > 0 {
		p.CreatedAt = secToTime(createdSec)
	}
	if startSec > 0 {
		p.StartAt = secToTime(startSec)
	}
	if endSec > 0 {
		p.EndAt = secToTime(endSec)
	}
	return p, nil
}

func (d *ozDecoder) DecodeVote(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Vote, string, error) {
	out := map[string]interface{}{}
	eventName := "VoteCast"
	if len(log.Topics) > 0 && log.Topics[0] == ozVoteCastParamsTopic {
		eventName = "VoteCastWithParams"
	}
	if err := dctx.ABI.UnpackIntoMap(out, eventName, log.Data); err != nil {
		return nil, "", newProposalErr("oz.DecodeVote.unpack", err)
	}
	proposalID, _ := out["proposalId"].(*big.Int)
	support, _ := out["support"].(uint8)
	weight, _ := out["weight"].(*big.Int)
	reason, _ := out["reason"].(string)
	if proposalID == nil {
		return nil, "", newProposalErr("oz.DecodeVote", errMissingFields)
	}
	var voter common.Address
	if len(log.Topics) > 1 {
		voter = common.BytesToAddress(log.Topics[1].Bytes())
	}

	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	v := &store.Vote{
		ID:             uuid.New(),
		GovernorID:     uuid.MustParse(dctx.GovernorID),
		DAOID:          uuid.MustParse(dctx.DAOID),
		VoterAddress:   lowerHex(voter),
		VotingPower:    bigToFloat(weight),
		Choice:         choiceJSON(normalizeSupport(support)),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		TxID:           txHashOf(log),
	}
	if reason != "" {
		v.Reason = &reason
	}
	if createdSec > 0 {
		v.CreatedAt = secToTime(createdSec)
	}
	return v, proposalID.String(), nil
}
