package onchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBigToFloat(t *testing.T) {
	require.Equal(t, 0.0, bigToFloat(nil))
	require.Equal(t, 1.0, bigToFloat(big.NewInt(1e18)))
	require.InDelta(t, 1.5, bigToFloat(big.NewInt(15e17)), 1e-9)
}

func TestDecoderFor(t *testing.T) {
	for _, kind := range []GovernorKind{
		KindAaveV2Mainnet, KindAaveV3Mainnet, KindArbitrumTreasury,
		KindArbitrumCore, KindOptimismGovernorV6, KindUniswap,
	} {
		d, ok := DecoderFor(kind)
		require.True(t, ok, "kind=%s", kind)
		require.NotNil(t, d)
	}

	_, ok := DecoderFor(GovernorKind("nonsense"))
	require.False(t, ok)
}
