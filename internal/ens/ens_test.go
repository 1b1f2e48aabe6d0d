package ens

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestNamehash_EmptyName(t *testing.T) {
	var zero [32]byte
	require.Equal(t, zero, namehash(""))
}

func TestNamehash_EthTLD(t *testing.T) {
	// Well-known EIP-137 test vector for namehash("eth").
	want, err := hex.DecodeString("93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae")
	require.NoError(t, err)
	got := namehash("eth")
	require.Equal(t, want, got[:])
}

func TestReverseNode_IsDeterministicPerAddress(t *testing.T) {
	addrA := reverseNode(common.HexToAddress("0x0000000000000000000000000000000000000001"))
	addrB := reverseNode(common.HexToAddress("0x0000000000000000000000000000000000000002"))
	require.NotEqual(t, addrA, addrB)

	again := reverseNode(common.HexToAddress("0x0000000000000000000000000000000000000001"))
	require.Equal(t, addrA, again)
}
