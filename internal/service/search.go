package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/snippethub/internal/ranking"
	"github.com/sakif/snippethub/internal/repository"
	"github.com/sakif/snippethub/internal/search"
)

// SearchService runs the filter → annotate → rank → paginate pipeline.
type SearchService struct {
	snippets repository.SnippetRepository
	votes    *VoteService
	pageSize int
	logger   *slog.Logger
}

func NewSearchService(snippets repository.SnippetRepository, votes *VoteService, pageSize int, logger *slog.Logger) *SearchService {
	if pageSize <= 0 {
		pageSize = ranking.DefaultPageSize
	}
	return &SearchService{
		snippets: snippets,
		votes:    votes,
		pageSize: pageSize,
		logger:   logger,
	}
}

// SearchResult is one page of results plus the state that produced it.
// Query is the canonical encoding of State; clients compare it with the
// parameters they sent to drop responses for searches they have moved past.
type SearchResult struct {
	Snippets []SnippetView `json:"snippets"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	HasMore  bool          `json:"hasMore"`
	State    search.State  `json:"state"`
	Query    string        `json:"query"`
}

// Search returns the requested page for the viewer.
//
// The whole filtered set is fetched and ranked before a page is cut out of
// it. That is what keeps page boundaries stable under the votes ordering,
// which the database cannot compute in the same query as the filter.
func (s *SearchService) Search(ctx context.Context, state search.State, viewerID string) (*SearchResult, error) {
	state = state.Normalize()

	candidates, err := s.snippets.FindSnippets(ctx, state.Filter())
	if err != nil {
		s.logger.Error("search query failed",
			slog.String("query", state.Encode()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/search: finding snippets: %w", err)
	}

	annotated, err := s.votes.Annotate(ctx, candidates, viewerID)
	if err != nil {
		s.logger.Error("search vote aggregation failed",
			slog.String("query", state.Encode()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	page := ranking.Paginate(ranking.Rank(annotated, state.Sort), state.Page, s.pageSize)

	return &SearchResult{
		Snippets: viewsOf(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
		State:    state,
		Query:    state.Encode(),
	}, nil
}

// PageSize reports the configured page size.
func (s *SearchService) PageSize() int {
	return s.pageSize
}
