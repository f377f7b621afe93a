package search

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippethub/internal/ranking"
)

func TestRoundTrip(t *testing.T) {
	states := []State{
		{Q: "sort", Lang: "Go", Sort: ranking.SortVotes, Tags: []string{"cli", "new"}, Page: 2},
		{Sort: ranking.SortNewest, Page: 1},
		{Q: "hello world & more", Sort: ranking.SortNewest, Page: 7},
		{Lang: "c++", Sort: ranking.SortVotes, Page: 1},
		{Tags: []string{"a b", "ü"}, Sort: ranking.SortNewest, Page: 3},
	}

	for _, s := range states {
		t.Run(s.Encode(), func(t *testing.T) {
			got, err := ParseQuery(s.Encode())
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestEncode_OmitsDefaults(t *testing.T) {
	assert.Equal(t, "", State{Sort: ranking.SortNewest, Page: 1}.Encode())
	assert.Equal(t, "page=2&q=sort&sort=votes&tags=cli%2Cnew",
		State{Q: "sort", Sort: ranking.SortVotes, Tags: []string{"cli", "new"}, Page: 2}.Encode())
}

func TestParse_Defaults(t *testing.T) {
	s := Parse(url.Values{})
	assert.Equal(t, "", s.Q)
	assert.Equal(t, "", s.Lang)
	assert.Equal(t, ranking.SortNewest, s.Sort)
	assert.Nil(t, s.Tags)
	assert.Equal(t, 1, s.Page)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  State
	}{
		{"non-numeric page", "page=abc", State{Sort: ranking.SortNewest, Page: 1}},
		{"negative page", "page=-3", State{Sort: ranking.SortNewest, Page: 1}},
		{"unknown sort", "sort=most-viewed", State{Sort: ranking.SortNewest, Page: 1}},
		{"messy tags", "tags=+cli+,,go,cli", State{Sort: ranking.SortNewest, Tags: []string{"cli", "go"}, Page: 1}},
		{"only commas", "tags=,,,", State{Sort: ranking.SortNewest, Page: 1}},
		{"padded query", "q=++loop++", State{Q: "loop", Sort: ranking.SortNewest, Page: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	s := State{Q: "  x ", Tags: []string{" go", "go"}}.Normalize()
	assert.Equal(t, State{Q: "x", Sort: ranking.SortNewest, Tags: []string{"go"}, Page: 1}, s)
}

func TestWithPageAndFilter(t *testing.T) {
	s := State{Q: "q", Lang: "go", Tags: []string{"cli"}, Sort: ranking.SortVotes, Page: 1}

	next := s.WithPage(2)
	assert.Equal(t, 2, next.Page)
	assert.Equal(t, 1, s.Page)

	f := s.Filter()
	assert.Equal(t, "q", f.Query)
	assert.Equal(t, "go", f.Language)
	assert.Equal(t, []string{"cli"}, f.Tags)
}
