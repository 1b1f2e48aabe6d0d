package grouper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTopicRef(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		wantID   *int
		wantSlug *string
	}{
		{"slug and id with query and fragment", "/t/my-topic/12345?u=x#p_5", intPtr(12345), strPtr("my-topic")},
		{"id only", "/t/12345", intPtr(12345), nil},
		{"slug only", "/t/slug-only", nil, strPtr("slug-only")},
		{"unrelated url", "https://snapshot.org/#/foo", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, slug := ExtractTopicRef(tc.url)
			if tc.wantID == nil {
				require.Nil(t, id)
			} else {
				require.NotNil(t, id)
				require.Equal(t, *tc.wantID, *id)
			}
			if tc.wantSlug == nil {
				require.Nil(t, slug)
			} else {
				require.NotNil(t, slug)
				require.Equal(t, *tc.wantSlug, *slug)
			}
		})
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
