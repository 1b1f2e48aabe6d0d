package onchain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"daoindexer/internal/store"
)

func TestFirstLine(t *testing.T) {
	cases := []struct {
		name, description, want string
	}{
		{"heading", "# Upgrade the treasury\n\nBody text follows.", "Upgrade the treasury"},
		{"quoted", "\"Quoted title\"\nrest", "Quoted title"},
		{"plain", "Just one line", "Just one line"},
		{"empty", "   ", "Untitled proposal"},
		{"heading only marker", "# ", "Untitled proposal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, firstLine(tc.description))
		})
	}
}

func TestLargerDeadline(t *testing.T) {
	require.Equal(t, uint64(100), largerDeadline(100, nil))
	require.Equal(t, uint64(150), largerDeadline(100, big.NewInt(150)))
	require.Equal(t, uint64(100), largerDeadline(100, big.NewInt(50)))
}

func TestAddressOrNil(t *testing.T) {
	require.Nil(t, addressOrNil(common.Address{}))
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	got := addressOrNil(addr)
	require.NotNil(t, got)
	require.Equal(t, addr.Hex(), *got)
}

func TestFirstErr(t *testing.T) {
	require.NoError(t, firstErr())
	require.NoError(t, firstErr(nil, nil))
	err := errMissingFields
	require.Equal(t, err, firstErr(nil, err, nil))
	require.Equal(t, err, firstErr(err, errMissingFields))
}

func TestWithExtra(t *testing.T) {
	base := store.JSONMap{"a": 1}
	got := withExtra(base, map[string]interface{}{"b": 2, "a": 3})
	require.Equal(t, store.JSONMap{"a": 3, "b": 2}, got)
}

func TestScoresTotalOf(t *testing.T) {
	require.Equal(t, 6.0, scoresTotalOf([]float64{1, 2, 3}))
	require.Equal(t, 0.0, scoresTotalOf(nil))
}

func TestScoresQuorumOfDecode(t *testing.T) {
	require.Equal(t, 4.0, scoresQuorumOf([]float64{1, 2, 3}, []int{0, 2}))
	require.Equal(t, 0.0, scoresQuorumOf([]float64{1, 2, 3}, nil))
	require.Equal(t, 2.0, scoresQuorumOf([]float64{1, 2, 3}, []int{1, 5, -1}))
}

func TestLowerHex(t *testing.T) {
	addr := common.HexToAddress("0xABCDEF0000000000000000000000000000ABCD")
	require.Equal(t, strings.ToLower(addr.Hex()), lowerHex(addr))
}
