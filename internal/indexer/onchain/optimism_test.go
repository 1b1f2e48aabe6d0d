package onchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestProposalTypeForTopic(t *testing.T) {
	require.Equal(t, 1, proposalTypeForTopic(optimismProposalCreatedTopic))
	require.Equal(t, 2, proposalTypeForTopic(optimismWithParamsTopic))
	require.Equal(t, 3, proposalTypeForTopic(optimismCreated1Topic))
	require.Equal(t, 4, proposalTypeForTopic(optimismCreated2Topic))
	require.Equal(t, 1, proposalTypeForTopic(common.Hash{}))
}

func TestEventNameForTopic(t *testing.T) {
	cases := []struct {
		topic         common.Hash
		name          string
		wantHasModule bool
	}{
		{optimismProposalCreatedTopic, "ProposalCreated", false},
		{optimismWithParamsTopic, "ProposalCreatedWithParams", true},
		{optimismCreated1Topic, "ProposalCreated1", true},
		{optimismCreated2Topic, "ProposalCreated2", false},
	}
	for _, tc := range cases {
		name, hasModule := eventNameForTopic(tc.topic)
		require.Equal(t, tc.name, name)
		require.Equal(t, tc.wantHasModule, hasModule)
	}
}

func TestAddressPrefix(t *testing.T) {
	addr := common.HexToAddress("0x54a8c86747d3ab7c3e9b73ba82c94a2e62e6c5e0")
	require.Equal(t, "0x54a8", addressPrefix(addr))
}

func TestEndBlockOr(t *testing.T) {
	require.Equal(t, uint64(0), endBlockOr(nil, nil))
	require.Equal(t, uint64(42), endBlockOr(nil, big.NewInt(42)))
	require.Equal(t, uint64(100), endBlockOr(big.NewInt(100), nil))
	require.Equal(t, uint64(150), endBlockOr(big.NewInt(100), big.NewInt(150)))
}
