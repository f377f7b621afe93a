package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/repository"
)

const (
	MaxCommentLength = 5000

	// SignInToCommentMessage is shown to anonymous users who try to comment.
	SignInToCommentMessage = "Please sign in to comment"
)

// CommentService handles the append-only discussion under a snippet.
//
// THREADING:
// Comments nest exactly one level. A reply to a reply is stored against the
// top-level comment it ultimately belongs to, so every thread is a root plus
// a flat, chronological list of replies.
type CommentService struct {
	snippets repository.SnippetRepository
	comments repository.CommentRepository
	logger   *slog.Logger
}

func NewCommentService(snippets repository.SnippetRepository, comments repository.CommentRepository, logger *slog.Logger) *CommentService {
	return &CommentService{
		snippets: snippets,
		comments: comments,
		logger:   logger,
	}
}

// Create adds a comment to the snippet `slug`. parentID may be empty.
func (s *CommentService) Create(ctx context.Context, profileID, slug, content, parentID string) (*model.Comment, error) {
	if profileID == "" {
		return nil, apperror.Unauthenticated(SignInToCommentMessage)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment cannot be empty")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	snippet, err := s.snippets.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/comment: loading snippet %s: %w", slug, err)
	}

	comment := &model.Comment{
		SnippetID: snippet.ID,
		ProfileID: profileID,
		Content:   content,
	}

	if parentID = strings.TrimSpace(parentID); parentID != "" {
		rootID, err := s.resolveRoot(ctx, snippet.ID, parentID)
		if err != nil {
			return nil, err
		}
		comment.ParentID = &rootID
	}

	if err := s.comments.CreateComment(ctx, comment); err != nil {
		s.logger.Error("failed to create comment",
			slog.String("snippetID", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/comment: creating comment: %w", err)
	}
	return comment, nil
}

// resolveRoot returns the top-level ancestor of parentID, validating that it
// belongs to the same snippet.
func (s *CommentService) resolveRoot(ctx context.Context, snippetID, parentID string) (string, error) {
	parent, err := s.comments.GetComment(ctx, parentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.ValidationFailed("parentId", "the comment you replied to does not exist")
		}
		return "", fmt.Errorf("service/comment: loading parent %s: %w", parentID, err)
	}
	if parent.SnippetID != snippetID {
		return "", apperror.ValidationFailed("parentId", "the comment you replied to belongs to another snippet")
	}
	if parent.ParentID != nil {
		return *parent.ParentID, nil
	}
	return parent.ID, nil
}

// List returns the threads of a snippet, oldest first at both levels.
func (s *CommentService) List(ctx context.Context, slug string) ([]model.CommentThread, error) {
	snippet, err := s.snippets.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/comment: loading snippet %s: %w", slug, err)
	}

	rows, err := s.comments.ListComments(ctx, snippet.ID)
	if err != nil {
		s.logger.Error("failed to list comments",
			slog.String("snippetID", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/comment: listing comments: %w", err)
	}

	return BuildThreads(rows), nil
}

// BuildThreads groups chronologically ordered comments into one-level
// threads. Replies whose parent is itself a reply are attached to that
// parent's root. Replies whose parent is missing are dropped.
func BuildThreads(rows []model.CommentWithAuthor) []model.CommentThread {
	byID := make(map[string]model.CommentWithAuthor, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	rootOf := func(c model.CommentWithAuthor) (string, bool) {
		seen := map[string]bool{}
		for c.ParentID != nil {
			if seen[c.ID] {
				return "", false
			}
			seen[c.ID] = true
			parent, ok := byID[*c.ParentID]
			if !ok {
				return "", false
			}
			c = parent
		}
		return c.ID, true
	}

	threads := []model.CommentThread{}
	index := map[string]int{}
	for _, r := range rows {
		if r.ParentID == nil {
			index[r.ID] = len(threads)
			threads = append(threads, model.CommentThread{
				Comment: r.Comment,
				Author:  model.AuthorFromEmail(r.AuthorEmail),
				Replies: []model.CommentThread{},
			})
		}
	}
	for _, r := range rows {
		if r.ParentID == nil {
			continue
		}
		root, ok := rootOf(r)
		if !ok {
			continue
		}
		i := index[root]
		threads[i].Replies = append(threads[i].Replies, model.CommentThread{
			Comment: r.Comment,
			Author:  model.AuthorFromEmail(r.AuthorEmail),
			Replies: []model.CommentThread{},
		})
	}
	return threads
}
