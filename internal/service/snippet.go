// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never a concrete store, so the tests
// in this package run against small in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/ranking"
	"github.com/sakif/snippethub/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxLanguageLength    = 40
	MaxCodeLength        = 100000 // ~100KB of code
	MaxTags              = 10
	MaxTagLength         = 30
	DefaultLatestLimit   = 3
	MaxLatestLimit       = 50
	DashboardRecentLimit = 6
)

// SnippetInput is what a caller may set on a snippet.
type SnippetInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
	Code        string   `json:"code"`
}

// SnippetView is a snippet as rendered in lists and detail pages: the stored
// fields plus the derived author, the vote summary and the comment count.
type SnippetView struct {
	model.Snippet
	Author       model.Author      `json:"author"`
	Votes        model.VoteSummary `json:"votes"`
	CommentCount int               `json:"commentCount"`
}

func viewOf(c ranking.Candidate) SnippetView {
	return SnippetView{
		Snippet:      c.Snippet.Snippet,
		Author:       model.AuthorFromEmail(c.Snippet.AuthorEmail),
		Votes:        c.Votes,
		CommentCount: c.Snippet.CommentCount,
	}
}

func viewsOf(candidates []ranking.Candidate) []SnippetView {
	views := make([]SnippetView, len(candidates))
	for i, c := range candidates {
		views[i] = viewOf(c)
	}
	return views
}

// SnippetService handles authoring and reading snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	votes  *VoteService
	logger *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, votes *VoteService, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		votes:  votes,
		logger: logger,
	}
}

// Create validates and stores a new snippet owned by profileID.
func (s *SnippetService) Create(ctx context.Context, profileID string, in SnippetInput) (*model.Snippet, error) {
	if profileID == "" {
		return nil, apperror.Unauthenticated("Please sign in to share a snippet")
	}

	in, err := validateSnippetInput(in)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Slug:        NewSlug(in.Title),
		Title:       in.Title,
		Description: in.Description,
		Language:    in.Language,
		Tags:        in.Tags,
		Code:        in.Code,
		ProfileID:   profileID,
	}

	if err := s.repo.CreateSnippet(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("title", snippet.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/snippet: creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("slug", snippet.Slug),
	)
	return snippet, nil
}

// Update rewrites a snippet. Only its owner may do so.
func (s *SnippetService) Update(ctx context.Context, profileID, slug string, in SnippetInput) (*model.Snippet, error) {
	if profileID == "" {
		return nil, apperror.Unauthenticated("Please sign in to edit a snippet")
	}

	existing, err := s.repo.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/snippet: loading %s: %w", slug, err)
	}
	if existing.ProfileID != profileID {
		return nil, apperror.Forbidden("you can only edit your own snippets")
	}

	in, err = validateSnippetInput(in)
	if err != nil {
		return nil, err
	}

	snippet := existing.Snippet
	snippet.Title = in.Title
	snippet.Description = in.Description
	snippet.Language = in.Language
	snippet.Tags = in.Tags
	snippet.Code = in.Code

	if err := s.repo.UpdateSnippet(ctx, &snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/snippet: updating %s: %w", slug, err)
	}
	return &snippet, nil
}

// Get returns one snippet with the viewer's vote state.
func (s *SnippetService) Get(ctx context.Context, slug, viewerID string) (*SnippetView, error) {
	snippet, err := s.repo.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/snippet: loading %s: %w", slug, err)
	}

	annotated, err := s.votes.Annotate(ctx, []model.SnippetWithAuthor{*snippet}, viewerID)
	if err != nil {
		s.logger.Error("failed to read votes", slog.String("slug", slug), slog.String("error", err.Error()))
		return nil, err
	}

	view := viewOf(annotated[0])
	return &view, nil
}

// Latest returns the newest snippets across all authors.
func (s *SnippetService) Latest(ctx context.Context, limit int, viewerID string) ([]SnippetView, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	if limit > MaxLatestLimit {
		limit = MaxLatestLimit
	}

	snippets, err := s.repo.LatestSnippets(ctx, repository.ListOptions{Limit: limit})
	if err != nil {
		s.logger.Error("failed to list latest snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/snippet: listing latest: %w", err)
	}

	annotated, err := s.votes.Annotate(ctx, snippets, viewerID)
	if err != nil {
		s.logger.Error("failed to read votes", slog.String("error", err.Error()))
		return nil, err
	}
	return viewsOf(annotated), nil
}

// Dashboard summarises one author's activity.
type Dashboard struct {
	Languages       []model.LanguageCount `json:"languages"`
	TotalSnippets   int                   `json:"totalSnippets"`
	UpvotesReceived int                   `json:"upvotesReceived"`
	Recent          []SnippetView         `json:"recent"`
}

func (s *SnippetService) Dashboard(ctx context.Context, profileID string) (*Dashboard, error) {
	if profileID == "" {
		return nil, apperror.Unauthenticated("Please sign in to see your dashboard")
	}

	languages, err := s.repo.LanguageCounts(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("service/snippet: counting languages: %w", err)
	}

	total := 0
	for _, l := range languages {
		total += l.Count
	}

	upvotes, err := s.votes.UpvotesReceived(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("service/snippet: counting upvotes: %w", err)
	}

	recent, err := s.repo.SnippetsByProfile(ctx, profileID, repository.ListOptions{Limit: DashboardRecentLimit})
	if err != nil {
		return nil, fmt.Errorf("service/snippet: listing recent: %w", err)
	}
	annotated, err := s.votes.Annotate(ctx, recent, profileID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Languages:       languages,
		TotalSnippets:   total,
		UpvotesReceived: upvotes,
		Recent:          viewsOf(annotated),
	}, nil
}

// === VALIDATION ===

func validateSnippetInput(in SnippetInput) (SnippetInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Language = strings.TrimSpace(in.Language)

	switch {
	case in.Title == "":
		return in, apperror.ValidationFailed("title", "title is required")
	case len(in.Title) > MaxTitleLength:
		return in, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	case len(in.Description) > MaxDescriptionLength:
		return in, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	case in.Language == "":
		return in, apperror.ValidationFailed("language", "language is required")
	case len(in.Language) > MaxLanguageLength:
		return in, apperror.ValidationFailed("language",
			fmt.Sprintf("language must be %d characters or less", MaxLanguageLength))
	case strings.TrimSpace(in.Code) == "":
		return in, apperror.ValidationFailed("code", "code is required")
	case len(in.Code) > MaxCodeLength:
		return in, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	for _, tag := range in.Tags {
		if strings.Contains(tag, ",") {
			return in, apperror.ValidationFailed("tags", "tags cannot contain commas")
		}
		if len(strings.TrimSpace(tag)) > MaxTagLength {
			return in, apperror.ValidationFailed("tags",
				fmt.Sprintf("each tag must be %d characters or less", MaxTagLength))
		}
	}
	in.Tags = model.NormalizeTags(in.Tags)
	if len(in.Tags) > MaxTags {
		return in, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}

	return in, nil
}

const maxSlugBase = 60

// NewSlug builds a readable, unique slug: the title transliterated to ASCII
// kebab-case followed by the first eight characters of a random UUID.
func NewSlug(title string) string {
	base := slug.Make(title)
	if len(base) > maxSlugBase {
		base = strings.TrimRight(base[:maxSlugBase], "-")
	}
	if base == "" {
		base = "snippet"
	}
	return base + "-" + uuid.New().String()[:8]
}
