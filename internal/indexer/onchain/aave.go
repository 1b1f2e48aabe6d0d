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
	aaveV2ProposalCreatedTopic = gethcrypto.Keccak256Hash([]byte("ProposalCreated(uint256,address,address,address[],uint256[],string[],bytes[],bool[],uint256,uint256,address,bytes32)"))
	aaveV2VoteEmittedTopic     = gethcrypto.Keccak256Hash([]byte("VoteEmitted(uint256,address,bool,uint256)"))
	aaveV3ProposalCreatedTopic = gethcrypto.Keccak256Hash([]byte("ProposalCreated(uint256,address,uint8,bytes32,(uint256,uint8,address,uint40)[],address,bytes32,uint256,uint256)"))
	aaveV3VoteCastTopic        = gethcrypto.Keccak256Hash([]byte("VoteCast(uint256,address,bool,uint256)"))
)

// aaveV2Decoder handles Aave Governor V2's bespoke ProposalCreated/VoteEmitted
// shape and its IPFS-hosted proposal body.
type aaveV2Decoder struct{}

func (d *aaveV2Decoder) ABIName() chainabi.Name { return chainabi.AaveGovernorV2 }
func (d *aaveV2Decoder) ProposalCreatedTopics() []common.Hash {
	return []common.Hash{aaveV2ProposalCreatedTopic}
}
func (d *aaveV2Decoder) VoteCastTopics() []common.Hash { return []common.Hash{aaveV2VoteEmittedTopic} }

func (d *aaveV2Decoder) DecodeProposal(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Proposal, error) {
	out := map[string]interface{}{}
	if err := dctx.ABI.UnpackIntoMap(out, "ProposalCreated", log.Data); err != nil {
		return nil, newProposalErr("aaveV2.DecodeProposal.unpack", err)
	}
	id, _ := out["id"].(*big.Int)
	startBlock, _ := out["startBlock"].(*big.Int)
	endBlock, _ := out["endBlock"].(*big.Int)
	ipfsHash, _ := out["ipfsHash"].([32]byte)
	if id == nil || startBlock == nil || endBlock == nil {
		return nil, newProposalErr("aaveV2.DecodeProposal", errMissingFields)
	}

	var full struct {
		Id                *big.Int         `abi:"id"`
		Creator           common.Address   `abi:"creator"`
		Executor          common.Address   `abi:"executor"`
		Targets           []common.Address `abi:"targets"`
		Values            []*big.Int       `abi:"values"`
		Signatures        []string         `abi:"signatures"`
		Calldatas         [][]byte         `abi:"calldatas"`
		WithDelegatecalls []bool           `abi:"withDelegatecalls"`
		StartBlock        *big.Int         `abi:"startBlock"`
		EndBlock          *big.Int         `abi:"endBlock"`
		ExecutionTime     *big.Int         `abi:"executionTime"`
		ForVotes          *big.Int         `abi:"forVotes"`
		AgainstVotes      *big.Int         `abi:"againstVotes"`
		Executed          bool             `abi:"executed"`
		Canceled          bool             `abi:"canceled"`
		Strategy          common.Address   `abi:"strategy"`
		IpfsHash          [32]byte         `abi:"ipfsHash"`
	}
	fullErr := dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "getProposalById", nil, &full, id)
	logCallErr(dctx.Log, "aaveV2.getProposalById", fullErr)

	var stateCode uint8
	stateErr := dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "getProposalState", nil, &stateCode, id)
	logCallErr(dctx.Log, "aaveV2.getProposalState", stateErr)

	title, body, discussionURL := "Unknown", "", ""
	if dctx.FetchIPFS != nil {
		if t, b, u, err := dctx.FetchIPFS(ctx, ipfsHash); err == nil {
			title, body, discussionURL = t, b, u
		}
	}

	scores := []float64{bigToFloat(full.ForVotes), bigToFloat(full.AgainstVotes), 0}
	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	startSec := resolveBlockTime(ctx, dctx, startBlock.Uint64())
	endSec := resolveBlockTime(ctx, dctx, endBlock.Uint64())

	p := &store.Proposal{
		ID:             uuid.New(),
		ExternalID:     id.String(),
		GovernorID:     uuid.MustParse(dctx.GovernorID),
		DAOID:          uuid.MustParse(dctx.DAOID),
		Name:           title,
		Body:           body,
		Author:         addressOrNil(full.Creator),
		Choices:        standardChoices,
		State:          mapStateOrFallback(aaveV2StateTable, stateCode, firstErr(stateErr, fullErr), full.Executed, full.Canceled),
		Scores:         scores,
		ScoresTotal:    scoresTotalOf(scores),
		ScoresQuorum:   scoresQuorumOf(scores, aaveQuorumIndices),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		BlockStartAt:   ptrUint64(startBlock.Uint64()),
		BlockEndAt:     ptrUint64(endBlock.Uint64()),
		TxID:           txHashOf(log),
		Metadata:       baseMetadata("onchain", "aave-v2", aaveQuorumIndices),
	}
	if discussionURL != "" {
		p.DiscussionURL = &discussionURL
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

func (d *aaveV2Decoder) DecodeVote(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Vote, string, error) {
	out := map[string]interface{}{}
	if err := dctx.ABI.UnpackIntoMap(out, "VoteEmitted", log.Data); err != nil {
		return nil, "", newProposalErr("aaveV2.DecodeVote.unpack", err)
	}
	proposalID, _ := out["id"].(*big.Int)
	voter, _ := out["voter"].(common.Address)
	support, _ := out["support"].(bool)
	votingPower, _ := out["votingPower"].(*big.Int)
	if proposalID == nil {
		return nil, "", newProposalErr("aaveV2.DecodeVote", errMissingFields)
	}

	choiceIdx := 1
	if support {
		choiceIdx = 0
	}
	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	v := &store.Vote{
		ID:             uuid.New(),
		GovernorID:     uuid.MustParse(dctx.GovernorID),
		DAOID:          uuid.MustParse(dctx.DAOID),
		VoterAddress:   lowerHex(voter),
		VotingPower:    bigToFloat(votingPower),
		Choice:         choiceJSON(choiceIdx),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		TxID:           txHashOf(log),
	}
	if createdSec > 0 {
		v.CreatedAt = secToTime(createdSec)
	}
	return v, proposalID.String(), nil
}

// aaveV3Decoder handles Aave Governor V3's payload-based proposals.
type aaveV3Decoder struct{}

func (d *aaveV3Decoder) ABIName() chainabi.Name { return chainabi.AaveGovernorV3 }
func (d *aaveV3Decoder) ProposalCreatedTopics() []common.Hash {
	return []common.Hash{aaveV3ProposalCreatedTopic}
}
func (d *aaveV3Decoder) VoteCastTopics() []common.Hash { return []common.Hash{aaveV3VoteCastTopic} }

func (d *aaveV3Decoder) DecodeProposal(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Proposal, error) {
	var id *big.Int
	if len(log.Topics) > 1 {
		id = new(big.Int).SetBytes(log.Topics[1].Bytes())
	}
	out := map[string]interface{}{}
	if err := dctx.ABI.UnpackIntoMap(out, "ProposalCreated", log.Data); err != nil {
		return nil, newProposalErr("aaveV3.DecodeProposal.unpack", err)
	}
	ipfsHash, _ := out["ipfsHash"].([32]byte)
	if id == nil {
		return nil, newProposalErr("aaveV3.DecodeProposal", errMissingFields)
	}

	var full struct {
		VotingDuration          uint32         `abi:"votingDuration"`
		VotingActivationTime    uint64         `abi:"votingActivationTime"`
		Creator                 common.Address `abi:"creator"`
		AccessLevel             uint8          `abi:"accessLevel"`
		State                   uint8          `abi:"state"`
		SnapshotBlockHash       [32]byte       `abi:"snapshotBlockHash"`
		IpfsHash                [32]byte       `abi:"ipfsHash"`
		ForVotes                *big.Int       `abi:"forVotes"`
		AgainstVotes            *big.Int       `abi:"againstVotes"`
		CancellationFee         *big.Int       `abi:"cancellationFee"`
		CreationTime            uint64         `abi:"creationTime"`
		VotingClosedAndSentTime uint64         `abi:"votingClosedAndSentTime"`
	}
	fullErr := dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "getProposal", nil, &full, id)
	logCallErr(dctx.Log, "aaveV3.getProposal", fullErr)

	title, body, discussionURL := "Unknown", "", ""
	if dctx.FetchIPFS != nil {
		if t, b, u, err := dctx.FetchIPFS(ctx, ipfsHash); err == nil {
			title, body, discussionURL = t, b, u
		}
	}

	startBlock := log.BlockNumber
	endBlock := log.BlockNumber + uint64(full.VotingDuration)
	scores := []float64{bigToFloat(full.ForVotes), bigToFloat(full.AgainstVotes), 0}
	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	startSec := resolveBlockTime(ctx, dctx, startBlock)
	endSec := resolveBlockTime(ctx, dctx, endBlock)

	p := &store.Proposal{
		ID:             uuid.New(),
		ExternalID:     id.String(),
		GovernorID:     uuid.MustParse(dctx.GovernorID),
		DAOID:          uuid.MustParse(dctx.DAOID),
		Name:           title,
		Body:           body,
		Author:         addressOrNil(full.Creator),
		Choices:        standardChoices,
		State:          mapStateOrFallback(aaveV3StateTable, full.State, fullErr, false, false),
		Scores:         scores,
		ScoresTotal:    scoresTotalOf(scores),
		ScoresQuorum:   scoresQuorumOf(scores, aaveQuorumIndices),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		BlockStartAt:   ptrUint64(startBlock),
		BlockEndAt:     ptrUint64(endBlock),
		TxID:           txHashOf(log),
		Metadata:       baseMetadata("onchain", "aave-v3", aaveQuorumIndices),
	}
	if discussionURL != "" {
		p.DiscussionURL = &discussionURL
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

func (d *aaveV3Decoder) DecodeVote(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Vote, string, error) {
	out := map[string]interface{}{}
	if err := dctx.ABI.UnpackIntoMap(out, "VoteCast", log.Data); err != nil {
		return nil, "", newProposalErr("aaveV3.DecodeVote.unpack", err)
	}
	if len(log.Topics) < 3 {
		return nil, "", newProposalErr("aaveV3.DecodeVote", errMissingFields)
	}
	proposalID := new(big.Int).SetBytes(log.Topics[1].Bytes())
	voter := common.BytesToAddress(log.Topics[2].Bytes())
	support, _ := out["support"].(bool)
	votingPower, _ := out["votingPower"].(*big.Int)

	choiceIdx := 1
	if support {
		choiceIdx = 0
	}
	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	v := &store.Vote{
		ID:             uuid.New(),
		GovernorID:     uuid.MustParse(dctx.GovernorID),
		DAOID:          uuid.MustParse(dctx.DAOID),
		VoterAddress:   lowerHex(voter),
		VotingPower:    bigToFloat(votingPower),
		Choice:         choiceJSON(choiceIdx),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		TxID:           txHashOf(log),
	}
	if createdSec > 0 {
		v.CreatedAt = secToTime(createdSec)
	}
	return v, proposalID.String(), nil
}
