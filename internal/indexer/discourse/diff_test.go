package discourse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInlineDiff_TagMarkup(t *testing.T) {
	before, after, err := ParseInlineDiff(`<div class="inline-diff"><del>old</del><ins>new</ins></div>`)
	require.NoError(t, err)
	require.Equal(t, "old", before)
	require.Equal(t, "new", after)
}

func TestParseInlineDiff_ClassMarkup(t *testing.T) {
	before, after, err := ParseInlineDiff(`<div class="inline-diff"><p class="diff-ins">A</p><p class="diff-del">B</p></div>`)
	require.NoError(t, err)
	require.Equal(t, "<p>B</p>", before)
	require.Equal(t, "<p>A</p>", after)
}

func TestParseInlineDiff_UnchangedContentSurvivesBothSides(t *testing.T) {
	before, after, err := ParseInlineDiff(`<div class="inline-diff"><p>shared</p><del>old</del><ins>new</ins></div>`)
	require.NoError(t, err)
	require.Equal(t, "<p>shared</p>old", before)
	require.Equal(t, "<p>shared</p>new", after)
}

func TestParseInlineDiff_WithoutWrapperDiv(t *testing.T) {
	before, after, err := ParseInlineDiff(`<del>old</del><ins>new</ins>`)
	require.NoError(t, err)
	require.Equal(t, "old", before)
	require.Equal(t, "new", after)
}
