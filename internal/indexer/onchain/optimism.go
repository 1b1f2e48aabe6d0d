package onchain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	chainabi "daoindexer/internal/chain/abi"
	"daoindexer/internal/store"
)

// votingModulePrefix identifies one of Optimism's three non-standard
// voting modules by the leading bytes of its module address.
type votingModulePrefix string

const (
	moduleApproval   votingModulePrefix = "0x54a8" // approval voting module
	moduleApprovalV2 votingModulePrefix = "0xdd02" // approval voting module v2, score from stored votes
	moduleThreshold  votingModulePrefix = "0x2796" // threshold-against voting module
)

var (
	optimismProposalCreatedTopic = gethcrypto.Keccak256Hash([]byte("ProposalCreated(uint256,address,address[],uint256[],string[],bytes[],uint256,uint256,string)"))
	optimismWithParamsTopic      = gethcrypto.Keccak256Hash([]byte("ProposalCreatedWithParams(uint256,address,address[],uint256[],string[],bytes[],uint256,uint256,string,address,bytes)"))
	optimismCreated1Topic        = gethcrypto.Keccak256Hash([]byte("ProposalCreated1(uint256,address,address,bytes,uint256,uint256,string)"))
	optimismCreated2Topic        = gethcrypto.Keccak256Hash([]byte("ProposalCreated2(uint256,address,address[],uint256[],bytes[],uint256,uint256,string)"))
	optimismVoteCastTopic        = gethcrypto.Keccak256Hash([]byte("VoteCast(address,uint256,uint8,uint256,string)"))
	optimismVoteCastParamsTopic  = gethcrypto.Keccak256Hash([]byte("VoteCastWithParams(address,uint256,uint8,uint256,string,bytes)"))
)

// optimismDecoder handles Optimism Governor v6's four ProposalCreated
// overloads and three non-standard voting modules.
type optimismDecoder struct{}

func (d *optimismDecoder) ABIName() chainabi.Name { return chainabi.OptimismGovernorV6 }

func (d *optimismDecoder) ProposalCreatedTopics() []common.Hash {
	return []common.Hash{optimismProposalCreatedTopic, optimismWithParamsTopic, optimismCreated1Topic, optimismCreated2Topic}
}

func (d *optimismDecoder) VoteCastTopics() []common.Hash {
	return []common.Hash{optimismVoteCastTopic, optimismVoteCastParamsTopic}
}

// approvalOption mirrors the (targets, values, calldatas, description)
// tuple encoded into the approval module's proposalData.
type approvalOption struct {
	Targets     []common.Address
	Values      []*big.Int
	Calldatas   [][]byte
	Description string
}

func (d *optimismDecoder) DecodeProposal(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Proposal, error) {
	eventName, hasModule := eventNameForTopic(log.Topics[0])
	out := map[string]interface{}{}
	if err := dctx.ABI.UnpackIntoMap(out, eventName, log.Data); err != nil {
		return nil, newProposalErr("optimism.DecodeProposal.unpack", err)
	}
	proposalID, _ := out["proposalId"].(*big.Int)
	startBlock, _ := out["startBlock"].(*big.Int)
	endBlock, _ := out["endBlock"].(*big.Int)
	description, _ := out["description"].(string)
	if proposalID == nil {
		return nil, newProposalErr("optimism.DecodeProposal", errMissingFields)
	}

	var stateCode uint8
	stateErr := dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "state", nil, &stateCode, proposalID)
	logCallErr(dctx.Log, "optimism.state", stateErr)

	var liveDeadline *big.Int
	logCallErr(dctx.Log, "optimism.proposalDeadline", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "proposalDeadline", nil, &liveDeadline, proposalID))
	endBlockFinal := endBlockOr(endBlock, liveDeadline)

	var quorumVal *big.Int
	if startBlock != nil {
		logCallErr(dctx.Log, "optimism.quorum", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "quorum", nil, &quorumVal, startBlock))
	}

	choices := standardChoices
	scores := []float64{0, 0, 0}
	votingModule := "standard"

	if hasModule {
		moduleAddr, _ := out["votingModule"].(common.Address)
		data, _ := out["proposalData"].([]byte)
		prefix := addressPrefix(moduleAddr)
		switch votingModulePrefix(prefix) {
		case moduleApproval, moduleApprovalV2:
			votingModule = string(prefix)
			opts, err := decodeApprovalOptions(data, prefix == string(moduleApprovalV2))
			if err == nil {
				choices = make([]string, len(opts))
				for i, o := range opts {
					choices[i] = o.Description
				}
				if prefix == string(moduleApprovalV2) {
					// Scores aren't tracked on-chain for this module; they're
					// aggregated from already-persisted votes and recomputed on
					// every re-scan as new votes land.
					scores = make([]float64, len(choices))
					if dctx.VotesForProposal != nil {
						if cast, err := dctx.VotesForProposal(ctx, proposalID.String()); err == nil && len(cast) > 0 {
							scores = AggregateApprovalScores(cast, len(choices))
						}
					}
				} else {
					scores = d.approvalOptionVotes(ctx, dctx, moduleAddr, proposalID, len(choices))
				}
			}
		case moduleThreshold:
			votingModule = string(prefix)
			scores = d.thresholdScores(ctx, dctx, startBlock, data)
		}
	} else {
		var votes struct {
			AgainstVotes *big.Int `abi:"againstVotes"`
			ForVotes     *big.Int `abi:"forVotes"`
			AbstainVotes *big.Int `abi:"abstainVotes"`
		}
		logCallErr(dctx.Log, "optimism.proposalVotes", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "proposalVotes", nil, &votes, proposalID))
		scores = []float64{bigToFloat(votes.ForVotes), bigToFloat(votes.AgainstVotes), bigToFloat(votes.AbstainVotes)}
	}

	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	var startSec, endSec int64
	if startBlock != nil {
		startSec = resolveBlockTime(ctx, dctx, startBlock.Uint64())
	}
	endSec = resolveBlockTime(ctx, dctx, endBlockFinal)

	metadata := withExtra(
		baseMetadata("onchain", votingModule, quorumChoicesStandard),
		map[string]interface{}{"proposal_type": proposalTypeForTopic(log.Topics[0])},
	)

	p := &store.Proposal{
		ID:           uuid.New(),
		ExternalID:   proposalID.String(),
		GovernorID:   uuid.MustParse(dctx.GovernorID),
		DAOID:        uuid.MustParse(dctx.DAOID),
		Name:         firstLine(description),
		Body:         description,
		Choices:      choices,
		Quorum:       bigToFloat(quorumVal),
		State:        mapStateOrFallback(ozStateTable, stateCode, stateErr, false, false),
		Scores:       scores,
		ScoresTotal:  scoresTotalOf(scores),
		ScoresQuorum: scoresQuorumOf(scores, quorumChoicesStandard),
		BlockCreatedAt: ptrUint64(log.BlockNumber),
		BlockEndAt:     ptrUint64(endBlockFinal),
		TxID:           txHashOf(log),
		Metadata:       metadata,
	}
	if startBlock != nil {
		p.BlockStartAt = ptrUint64(startBlock.Uint64())
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

func (d *optimismDecoder) DecodeVote(ctx context.Context, dctx *DecodeContext, log gethtypes.Log) (*store.Vote, string, error) {
	out := map[string]interface{}{}
	eventName := "VoteCast"
	if len(log.Topics) > 0 && log.Topics[0] == optimismVoteCastParamsTopic {
		eventName = "VoteCastWithParams"
	}
	if err := dctx.ABI.UnpackIntoMap(out, eventName, log.Data); err != nil {
		return nil, "", newProposalErr("optimism.DecodeVote.unpack", err)
	}
	proposalID, _ := out["proposalId"].(*big.Int)
	support, _ := out["support"].(uint8)
	weight, _ := out["weight"].(*big.Int)
	reason, _ := out["reason"].(string)
	if proposalID == nil {
		return nil, "", newProposalErr("optimism.DecodeVote", errMissingFields)
	}
	var voter common.Address
	if len(log.Topics) > 1 {
		voter = common.BytesToAddress(log.Topics[1].Bytes())
	}

	var choice store.JSONValue
	if params, ok := out["params"].([]byte); ok && len(params) > 0 {
		if indices, err := decodeApprovalChoiceIndices(params); err == nil {
			choice = choiceIndicesJSON(indices)
		} else {
			choice = choiceJSON(normalizeSupport(support))
		}
	} else {
		choice = choiceJSON(normalizeSupport(support))
	}

	createdSec := resolveBlockTime(ctx, dctx, log.BlockNumber)
	v := &store.Vote{
		ID:             uuid.New(),
		GovernorID:     uuid.MustParse(dctx.GovernorID),
		DAOID:          uuid.MustParse(dctx.DAOID),
		VoterAddress:   lowerHex(voter),
		VotingPower:    bigToFloat(weight),
		Choice:         choice,
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

// approvalOptionVotes reads per-option tallies from the approval voting
// module contract, not the governor itself.
func (d *optimismDecoder) approvalOptionVotes(ctx context.Context, dctx *DecodeContext, moduleAddr common.Address, proposalID *big.Int, numOptions int) []float64 {
	moduleABI, err := chainabi.Get(chainabi.OptimismApprovalModule)
	if err != nil {
		return make([]float64, numOptions)
	}
	var votes struct {
		AgainstVotes *big.Int   `abi:"againstVotes"`
		ForVotes     []*big.Int `abi:"forVotes"`
		AbstainVotes *big.Int   `abi:"abstainVotes"`
	}
	if err := dctx.Provider.Call(ctx, moduleABI, moduleAddr, "proposalVotes", nil, &votes, proposalID); err != nil {
		return make([]float64, numOptions)
	}
	scores := make([]float64, numOptions)
	for i, v := range votes.ForVotes {
		if i < numOptions {
			scores[i] = bigToFloat(v)
		}
	}
	return scores
}

func (d *optimismDecoder) thresholdScores(ctx context.Context, dctx *DecodeContext, startBlock *big.Int, data []byte) []float64 {
	args, err := decodeThresholdParams(data)
	if err != nil {
		return []float64{0, 0, 0}
	}
	var supply *big.Int
	if startBlock != nil {
		logCallErr(dctx.Log, "optimism.votableSupply", dctx.Provider.Call(ctx, dctx.ABI, dctx.Address, "votableSupply", nil, &supply, startBlock))
	}
	if supply == nil || supply.Sign() == 0 {
		// Falls back to the governor's own totalSupply when votableSupply is
		// unset; Optimism's governor token doubles as the governor's voting
		// weight source so this resolves against the same address.
		erc20abi, err := chainabi.Get(chainabi.ERC20)
		if err == nil {
			logCallErr(dctx.Log, "optimism.totalSupply", dctx.Provider.Call(ctx, erc20abi, dctx.Address, "totalSupply", nil, &supply))
		}
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	against := args.AgainstThreshold
	forVotes := new(big.Int).Sub(supply, against)
	if forVotes.Sign() < 0 {
		forVotes = big.NewInt(0)
	}
	return []float64{bigToFloat(forVotes), bigToFloat(against), 0}
}

type thresholdParams struct {
	AgainstThreshold          *big.Int
	IsRelativeToVotableSupply bool
}

var thresholdArgs = abi.Arguments{
	{Type: mustType("uint256")},
	{Type: mustType("bool")},
}

func decodeThresholdParams(data []byte) (thresholdParams, error) {
	vals, err := thresholdArgs.Unpack(data)
	if err != nil || len(vals) < 2 {
		return thresholdParams{}, err
	}
	threshold, _ := vals[0].(*big.Int)
	relative, _ := vals[1].(bool)
	return thresholdParams{AgainstThreshold: threshold, IsRelativeToVotableSupply: relative}, nil
}

var approvalOptionsArgs = abi.Arguments{
	{Type: mustType("(address[],uint256[],bytes[],string)[]")},
	{Type: mustType("bytes")},
}

var approvalOptionsV2Args = abi.Arguments{
	{Type: mustType("uint256")},
	{Type: mustType("(address[],uint256[],bytes[],string)[]")},
	{Type: mustType("bytes")},
}

func decodeApprovalOptions(data []byte, isV2 bool) ([]approvalOption, error) {
	args := approvalOptionsArgs
	offset := 0
	if isV2 {
		args = approvalOptionsV2Args
		offset = 1
	}
	vals, err := args.Unpack(data)
	if err != nil || len(vals) <= offset {
		return nil, err
	}
	raw, ok := vals[offset].([]struct {
		Targets     []common.Address
		Values      []*big.Int
		Calldatas   [][]byte
		Description string
	})
	if !ok {
		return nil, errMissingFields
	}
	out := make([]approvalOption, len(raw))
	for i, r := range raw {
		out[i] = approvalOption{Targets: r.Targets, Values: r.Values, Calldatas: r.Calldatas, Description: r.Description}
	}
	return out, nil
}

func decodeApprovalChoiceIndices(params []byte) ([]int, error) {
	arg := abi.Arguments{{Type: mustType("uint256[]")}}
	vals, err := arg.Unpack(params)
	if err != nil || len(vals) != 1 {
		return nil, errMissingFields
	}
	raw, ok := vals[0].([]*big.Int)
	if !ok {
		return nil, errMissingFields
	}
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v.Int64())
	}
	return out, nil
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// proposalTypeForTopic maps each of the governor's four ProposalCreated
// overloads to the proposal_type ordinal the data pipeline has always
// assigned them: the bare (standard) event is type 1,
// ProposalCreatedWithParams is type 2, ProposalCreated1 is type 3 and
// ProposalCreated2 is type 4. Types 2 and 3 both carry a voting module.
func proposalTypeForTopic(topic common.Hash) int {
	switch topic {
	case optimismWithParamsTopic:
		return 2
	case optimismCreated1Topic:
		return 3
	case optimismCreated2Topic:
		return 4
	default:
		return 1
	}
}

func eventNameForTopic(topic common.Hash) (name string, hasModule bool) {
	switch topic {
	case optimismWithParamsTopic:
		return "ProposalCreatedWithParams", true
	case optimismCreated1Topic:
		return "ProposalCreated1", true
	case optimismCreated2Topic:
		return "ProposalCreated2", false
	default:
		return "ProposalCreated", false
	}
}

func addressPrefix(addr common.Address) string {
	hex := strings.ToLower(addr.Hex())
	if len(hex) < 6 {
		return hex
	}
	return hex[:6]
}

func endBlockOr(eventEnd *big.Int, liveEnd *big.Int) uint64 {
	if eventEnd == nil {
		if liveEnd == nil {
			return 0
		}
		return liveEnd.Uint64()
	}
	return largerDeadline(eventEnd.Uint64(), liveEnd)
}
