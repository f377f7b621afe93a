package model

import "time"

// Comment is an append-only remark on a snippet. ParentID is nil for
// top-level comments; replies always point at a top-level comment.
type Comment struct {
	ID        string    `json:"id"                 db:"id"`
	SnippetID string    `json:"snippetId"          db:"snippet_id"`
	ProfileID string    `json:"profileId"          db:"profile_id"`
	ParentID  *string   `json:"parentId,omitempty" db:"parent_comment_id"`
	Content   string    `json:"content"            db:"content"`
	CreatedAt time.Time `json:"createdAt"          db:"created_at"`
}

// CommentWithAuthor is a comment joined with its author's email.
type CommentWithAuthor struct {
	Comment
	AuthorEmail string `json:"-" db:"author_email"`
}

// CommentThread is a top-level comment with its replies, oldest first.
type CommentThread struct {
	Comment
	Author  Author          `json:"author"`
	Replies []CommentThread `json:"replies"`
}
