package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/ranking"
	"github.com/sakif/snippethub/internal/repository"
)

// SignInToVoteMessage is shown to anonymous users who click a vote button.
const SignInToVoteMessage = "Please sign in to vote"

// maxToggleAttempts bounds how often Toggle re-reads the vote row after a
// concurrent request changed it between our read and our write.
const maxToggleAttempts = 3

// VoteService owns toggle-voting and the vote aggregates.
//
// THE STORE IS THE SOURCE OF TRUTH:
// Counts are never incremented locally. Every mutation is followed by a fresh
// aggregate read, so what the caller sees is always what was committed.
type VoteService struct {
	snippets repository.SnippetRepository
	votes    repository.VoteRepository
	logger   *slog.Logger
}

func NewVoteService(snippets repository.SnippetRepository, votes repository.VoteRepository, logger *slog.Logger) *VoteService {
	return &VoteService{
		snippets: snippets,
		votes:    votes,
		logger:   logger,
	}
}

// VoteResult is the outcome of a toggle.
//
// Summary is nil when the vote was stored but the follow-up aggregate read
// failed. The vote itself still happened.
type VoteResult struct {
	Vote    model.VoteValue    `json:"vote"`
	Summary *model.VoteSummary `json:"summary"`
}

// Toggle applies one click of `dir` by `profileID` on the snippet `slug`.
//
//	no vote  + click   → insert
//	same dir + click   → delete (back to neutral)
//	opposite + click   → update in place (one statement, no neutral gap)
//
// DOUBLE SUBMISSION:
// Two fast clicks can both read "no vote" and both try to insert. The store's
// UNIQUE (snippet, profile) constraint rejects the second insert with
// ErrConflict; we treat that as "already voted" and settle the row on the
// requested value with an update.
func (s *VoteService) Toggle(ctx context.Context, slug, profileID string, dir model.Direction) (*VoteResult, error) {
	if profileID == "" {
		return nil, apperror.Unauthenticated(SignInToVoteMessage)
	}

	snippet, err := s.snippets.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/vote: loading snippet %s: %w", slug, err)
	}

	var next model.VoteValue
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		next, err = s.toggleOnce(ctx, snippet.ID, profileID, dir)
		if err == nil || !errors.Is(err, apperror.ErrNotFound) {
			break
		}
		// The row we read disappeared before our write landed. Read again.
		s.logger.Debug("vote changed concurrently, retrying",
			slog.String("snippetID", snippet.ID),
			slog.Int("attempt", attempt),
		)
	}
	if err != nil {
		s.logger.Error("failed to store vote",
			slog.String("snippetID", snippet.ID),
			slog.String("profileID", profileID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/vote: toggling vote on %s: %w", slug, err)
	}

	result := &VoteResult{Vote: next}

	summary, err := s.summaryFor(ctx, snippet.ID, profileID)
	if err != nil {
		s.logger.Error("vote stored but refreshing counts failed",
			slog.String("snippetID", snippet.ID),
			slog.String("error", err.Error()),
		)
		return result, nil
	}
	result.Summary = summary
	return result, nil
}

// toggleOnce reads the current row, computes the next state and writes it.
// It returns the value now stored (VoteNone when the row was deleted).
func (s *VoteService) toggleOnce(ctx context.Context, snippetID, profileID string, dir model.Direction) (model.VoteValue, error) {
	current := model.VoteNone
	existing, err := s.votes.GetVote(ctx, snippetID, profileID)
	switch {
	case err == nil:
		current = existing.Value
	case errors.Is(err, apperror.ErrNotFound):
		// no row: neutral
	default:
		return model.VoteNone, err
	}

	next := model.NextVote(current, dir)
	vote := &model.Vote{SnippetID: snippetID, ProfileID: profileID, Value: next}

	switch {
	case next == model.VoteNone:
		return next, s.votes.DeleteVote(ctx, snippetID, profileID)

	case current == model.VoteNone:
		err := s.votes.InsertVote(ctx, vote)
		if errors.Is(err, apperror.ErrConflict) {
			vote.Value = dir.Value()
			return vote.Value, s.votes.UpdateVote(ctx, vote)
		}
		return next, err

	default:
		return next, s.votes.UpdateVote(ctx, vote)
	}
}

// Summary returns the aggregate for one snippet as seen by `viewerID`.
// An empty viewerID is an anonymous viewer: both flags are false.
func (s *VoteService) Summary(ctx context.Context, slug, viewerID string) (*model.VoteSummary, error) {
	snippet, err := s.snippets.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/vote: loading snippet %s: %w", slug, err)
	}

	summary, err := s.summaryFor(ctx, snippet.ID, viewerID)
	if err != nil {
		s.logger.Error("failed to read vote counts",
			slog.String("snippetID", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return summary, nil
}

func (s *VoteService) summaryFor(ctx context.Context, snippetID, viewerID string) (*model.VoteSummary, error) {
	ids := []string{snippetID}

	counts, err := s.votes.CountVotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/vote: counting votes: %w", err)
	}
	mine, err := s.votes.ViewerVotes(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("service/vote: reading viewer vote: %w", err)
	}

	summary := model.SummaryFor(counts[snippetID], mine[snippetID])
	return &summary, nil
}

// Annotate attaches vote aggregates and the viewer's state to a batch of
// snippets with two queries in total. A failed read is returned as an error;
// counts are never silently reported as zero.
func (s *VoteService) Annotate(ctx context.Context, snippets []model.SnippetWithAuthor, viewerID string) ([]ranking.Candidate, error) {
	candidates := make([]ranking.Candidate, len(snippets))
	if len(snippets) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(snippets))
	for i := range snippets {
		ids[i] = snippets[i].ID
	}

	counts, err := s.votes.CountVotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/vote: counting votes: %w", err)
	}
	mine, err := s.votes.ViewerVotes(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("service/vote: reading viewer votes: %w", err)
	}

	for i, snip := range snippets {
		candidates[i] = ranking.Candidate{
			Snippet: snip,
			Votes:   model.SummaryFor(counts[snip.ID], mine[snip.ID]),
		}
	}
	return candidates, nil
}

// UpvotesReceived totals the upvotes on every snippet a profile owns.
func (s *VoteService) UpvotesReceived(ctx context.Context, profileID string) (int, error) {
	n, err := s.votes.UpvotesReceived(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("service/vote: counting upvotes received: %w", err)
	}
	return n, nil
}
