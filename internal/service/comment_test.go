package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
)

func newTestCommentService(t *testing.T) (*CommentService, *fakeSnippetRepo, *fakeCommentRepo) {
	t.Helper()
	snippets := newFakeSnippetRepo()
	comments := newFakeCommentRepo()
	return NewCommentService(snippets, comments, discardLogger()), snippets, comments
}

func TestCommentCreate(t *testing.T) {
	svc, snippets, _ := newTestCommentService(t)
	s := snippets.add("Snippet", "author", "Go")

	c, err := svc.Create(context.Background(), "alice", s.Slug, "  nice one  ", "")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "nice one", c.Content)
	assert.Equal(t, s.ID, c.SnippetID)
	assert.Nil(t, c.ParentID)
}

func TestCommentCreate_Rejections(t *testing.T) {
	svc, snippets, _ := newTestCommentService(t)
	s := snippets.add("Snippet", "author", "Go")
	other := snippets.add("Other", "author", "Go")
	ctx := context.Background()

	foreign, err := svc.Create(ctx, "alice", other.Slug, "elsewhere", "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		profileID string
		slug      string
		content   string
		parentID  string
		want      error
	}{
		{"anonymous", "", s.Slug, "hi", "", apperror.ErrUnauthenticated},
		{"empty", "alice", s.Slug, "   ", "", apperror.ErrValidation},
		{"too long", "alice", s.Slug, strings.Repeat("x", MaxCommentLength+1), "", apperror.ErrValidation},
		{"unknown snippet", "alice", "missing", "hi", "", apperror.ErrNotFound},
		{"unknown parent", "alice", s.Slug, "hi", "comment-999", apperror.ErrValidation},
		{"parent on other snippet", "alice", s.Slug, "hi", foreign.ID, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.profileID, tt.slug, tt.content, tt.parentID)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestCommentCreate_ReplyToReplyIsReparented(t *testing.T) {
	svc, snippets, _ := newTestCommentService(t)
	s := snippets.add("Snippet", "author", "Go")
	ctx := context.Background()

	root, err := svc.Create(ctx, "alice", s.Slug, "root", "")
	require.NoError(t, err)
	reply, err := svc.Create(ctx, "bob", s.Slug, "reply", root.ID)
	require.NoError(t, err)
	nested, err := svc.Create(ctx, "carol", s.Slug, "reply to reply", reply.ID)
	require.NoError(t, err)

	require.NotNil(t, nested.ParentID)
	assert.Equal(t, root.ID, *nested.ParentID)
}

func TestCommentList_Threads(t *testing.T) {
	svc, snippets, comments := newTestCommentService(t)
	comments.emails["alice"] = "alice@example.com"
	comments.emails["bob"] = "bob@example.com"
	s := snippets.add("Snippet", "author", "Go")
	ctx := context.Background()

	first, _ := svc.Create(ctx, "alice", s.Slug, "first", "")
	second, _ := svc.Create(ctx, "bob", s.Slug, "second", "")
	svc.Create(ctx, "bob", s.Slug, "re: first", first.ID)
	svc.Create(ctx, "alice", s.Slug, "re: second", second.ID)
	svc.Create(ctx, "alice", s.Slug, "re: first again", first.ID)

	threads, err := svc.List(ctx, s.Slug)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, "first", threads[0].Content)
	assert.Equal(t, "alice", threads[0].Author.Name)
	require.Len(t, threads[0].Replies, 2)
	assert.Equal(t, "re: first", threads[0].Replies[0].Content)
	assert.Equal(t, "bob", threads[0].Replies[0].Author.Name)
	assert.Equal(t, "re: first again", threads[0].Replies[1].Content)

	assert.Equal(t, "second", threads[1].Content)
	require.Len(t, threads[1].Replies, 1)
}

func TestCommentList_Empty(t *testing.T) {
	svc, snippets, _ := newTestCommentService(t)
	s := snippets.add("Snippet", "author", "Go")

	threads, err := svc.List(context.Background(), s.Slug)
	require.NoError(t, err)
	assert.NotNil(t, threads)
	assert.Empty(t, threads)
}

func TestBuildThreads_FlattensLegacyNesting(t *testing.T) {
	ptr := func(s string) *string { return &s }
	rows := []model.CommentWithAuthor{
		{Comment: model.Comment{ID: "a", Content: "root"}},
		{Comment: model.Comment{ID: "b", ParentID: ptr("a"), Content: "child"}},
		{Comment: model.Comment{ID: "c", ParentID: ptr("b"), Content: "grandchild"}},
		{Comment: model.Comment{ID: "d", ParentID: ptr("zzz"), Content: "orphan"}},
	}

	threads := BuildThreads(rows)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Replies, 2)
	assert.Equal(t, "child", threads[0].Replies[0].Content)
	assert.Equal(t, "grandchild", threads[0].Replies[1].Content)
}
