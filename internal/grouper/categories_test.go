package grouper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAllowedCategory(t *testing.T) {
	require.True(t, isAllowedCategory("arbitrum", 7))
	require.False(t, isAllowedCategory("arbitrum", 99))
	require.True(t, isAllowedCategory("unconfigured-dao", 1), "DAOs with no configured allow-list accept every category")
}
