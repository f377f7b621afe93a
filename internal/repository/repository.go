// Package repository declares the storage contracts the service layer depends on.
// Implementations live in sub-packages (sqlstore). Services only ever see
// these interfaces, which is what lets tests swap in in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/snippethub/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// SnippetFilter is the predicate conjunction applied by FindSnippets.
// Empty fields do not constrain the result.
type SnippetFilter struct {
	Query    string   // case-insensitive substring of title OR description
	Language string   // case-insensitive substring of language
	Tags     []string // snippet must carry every tag
}

type SnippetRepository interface {
	CreateSnippet(ctx context.Context, snippet *model.Snippet) error
	UpdateSnippet(ctx context.Context, snippet *model.Snippet) error
	GetSnippetBySlug(ctx context.Context, slug string) (*model.SnippetWithAuthor, error)
	// FindSnippets returns every matching snippet in insertion order
	// (created_at, id ascending). Ranking and pagination happen afterwards.
	FindSnippets(ctx context.Context, filter SnippetFilter) ([]model.SnippetWithAuthor, error)
	LatestSnippets(ctx context.Context, opts ListOptions) ([]model.SnippetWithAuthor, error)
	SnippetsByProfile(ctx context.Context, profileID string, opts ListOptions) ([]model.SnippetWithAuthor, error)
	LanguageCounts(ctx context.Context, profileID string) ([]model.LanguageCount, error)
}

// VoteRepository is the vote store. InsertVote returns an apperror.ErrConflict
// when a row for the (snippet, profile) pair already exists; UpdateVote and
// DeleteVote return apperror.ErrNotFound when it does not.
type VoteRepository interface {
	GetVote(ctx context.Context, snippetID, profileID string) (*model.Vote, error)
	InsertVote(ctx context.Context, vote *model.Vote) error
	UpdateVote(ctx context.Context, vote *model.Vote) error
	DeleteVote(ctx context.Context, snippetID, profileID string) error
	// CountVotes is the per-snippet aggregate. Snippets with no votes are
	// absent from the map; callers treat that as {0, 0}.
	CountVotes(ctx context.Context, snippetIDs []string) (map[string]model.VoteCount, error)
	ViewerVotes(ctx context.Context, profileID string, snippetIDs []string) (map[string]model.VoteValue, error)
	UpvotesReceived(ctx context.Context, profileID string) (int, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	// ListComments returns every comment on a snippet, oldest first.
	ListComments(ctx context.Context, snippetID string) ([]model.CommentWithAuthor, error)
}

type ProfileRepository interface {
	// EnsureProfile inserts a profile for userID unless one exists, then
	// returns the stored row.
	EnsureProfile(ctx context.Context, userID, email string) (*model.Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
