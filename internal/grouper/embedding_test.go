package grouper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnavailableOracleAlwaysErrors(t *testing.T) {
	_, err := (Unavailable{}).Similarity(context.Background(), "a", "b", "c", "d")
	require.Error(t, err)
}

func TestNewDefaultsThreshold(t *testing.T) {
	g := New(nil, nil, 0, nil)
	require.Equal(t, DefaultSimilarityThreshold, g.threshold)
	require.IsType(t, Unavailable{}, g.oracle)
}
