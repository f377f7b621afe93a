// Package search holds the URL-encoded search state shared by the API, the
// Go client and the CLI.
//
// A State round-trips through a query string: Parse(Encode(s)) == s for every
// normalised state. Default values are omitted when encoding so that the
// canonical query string for "no filters, first page, newest" is empty.
package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/ranking"
	"github.com/sakif/snippethub/internal/repository"
)

// Query-string parameter names.
const (
	ParamQuery    = "q"
	ParamLanguage = "lang"
	ParamSort     = "sort"
	ParamTags     = "tags"
	ParamPage     = "page"
)

// State is everything a search page needs to reproduce a result set.
type State struct {
	Q    string          `json:"q"`
	Lang string          `json:"lang"`
	Sort ranking.SortKey `json:"sort"`
	Tags []string        `json:"tags"`
	Page int             `json:"page"`
}

// Parse reads a State from query values. Missing or malformed values fall
// back to their defaults rather than failing: a bad page is page 1 and an
// unknown sort is newest.
func Parse(values url.Values) State {
	s := State{
		Q:    strings.TrimSpace(values.Get(ParamQuery)),
		Lang: strings.TrimSpace(values.Get(ParamLanguage)),
		Sort: ranking.ParseSort(values.Get(ParamSort)),
		Page: 1,
	}

	if raw := values.Get(ParamTags); raw != "" {
		s.Tags = model.NormalizeTags(strings.Split(raw, ","))
	}

	if p, err := strconv.Atoi(values.Get(ParamPage)); err == nil && p > 1 {
		s.Page = p
	}

	return s
}

// ParseQuery is Parse for a raw query string.
func ParseQuery(raw string) (State, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return State{}, err
	}
	return Parse(values), nil
}

// Normalize returns the state as Parse would produce it.
func (s State) Normalize() State {
	return Parse(s.Values())
}

// Values renders the state as query values, omitting defaults.
func (s State) Values() url.Values {
	v := url.Values{}
	if q := strings.TrimSpace(s.Q); q != "" {
		v.Set(ParamQuery, q)
	}
	if lang := strings.TrimSpace(s.Lang); lang != "" {
		v.Set(ParamLanguage, lang)
	}
	if s.Sort == ranking.SortVotes {
		v.Set(ParamSort, string(ranking.SortVotes))
	}
	if tags := model.NormalizeTags(s.Tags); len(tags) > 0 {
		v.Set(ParamTags, strings.Join(tags, ","))
	}
	if s.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(s.Page))
	}
	return v
}

// Encode is the canonical query string for the state. url.Values.Encode sorts
// keys, so equal states always encode identically.
func (s State) Encode() string {
	return s.Values().Encode()
}

// WithPage returns a copy of the state pointing at another page.
func (s State) WithPage(page int) State {
	s.Page = page
	return s
}

// Filter is the store-side predicate for this state. Sort and page are
// applied later, after the full candidate set has been fetched.
func (s State) Filter() repository.SnippetFilter {
	return repository.SnippetFilter{
		Query:    s.Q,
		Language: s.Lang,
		Tags:     s.Tags,
	}
}
