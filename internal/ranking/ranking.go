// Package ranking orders search candidates and cuts them into pages.
//
// ORDER OF OPERATIONS:
// The full filtered candidate set is sorted first and paginated second.
// Paginating first and sorting each page would reorder rows across page
// boundaries, so Rank always sees every candidate.
//
// Both orderings use sort.SliceStable, so candidates that compare equal keep
// the order they arrived in. The store returns candidates in insertion order
// (created_at, id ascending), which makes results deterministic.
package ranking

import (
	"sort"

	"github.com/sakif/snippethub/internal/model"
)

// SortKey selects the ordering of a result page.
type SortKey string

const (
	SortNewest SortKey = "newest"
	SortVotes  SortKey = "votes"
)

// DefaultPageSize is the number of snippets shown per search page.
const DefaultPageSize = 4

// ParseSort maps a query-string value to a SortKey. Anything unknown,
// including the empty string, falls back to newest.
func ParseSort(s string) SortKey {
	switch SortKey(s) {
	case SortVotes:
		return SortVotes
	default:
		return SortNewest
	}
}

// Candidate is a snippet annotated with its vote aggregate.
type Candidate struct {
	Snippet model.SnippetWithAuthor
	Votes   model.VoteSummary
}

// Rank returns a sorted copy of the candidates. The input slice is not modified.
//
//   - newest: created_at descending
//   - votes:  net score descending, then created_at descending
func Rank(candidates []Candidate, key SortKey) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	switch key {
	case SortVotes:
		sort.SliceStable(out, func(i, j int) bool {
			si, sj := out[i].Votes.VoteCount.Score(), out[j].Votes.VoteCount.Score()
			if si != sj {
				return si > sj
			}
			return out[i].Snippet.CreatedAt.After(out[j].Snippet.CreatedAt)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Snippet.CreatedAt.After(out[j].Snippet.CreatedAt)
		})
	}

	return out
}

// Page is one slice of a ranked result set.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
}

// Paginate cuts page `page` (1-based) of size `size` out of items.
// A page past the end is empty with HasMore false.
func Paginate[T any](items []T, page, size int) Page[T] {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(items)
	offset := (page - 1) * size

	result := Page[T]{
		Items:    []T{},
		Total:    total,
		Page:     page,
		PageSize: size,
		HasMore:  offset+size < total,
	}
	if offset >= total {
		return result
	}

	end := offset + size
	if end > total {
		end = total
	}
	result.Items = items[offset:end]
	return result
}
