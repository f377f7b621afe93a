package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO comments (id, snippet_id, profile_id, parent_comment_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		comment.ID, comment.SnippetID, comment.ProfileID, comment.ParentID,
		comment.Content, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: creating comment on %s: %w", comment.SnippetID, err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := db.conn.GetContext(ctx, &c, db.conn.Rebind(`
		SELECT id, snippet_id, profile_id, parent_comment_id, content, created_at
		FROM comments WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlstore: getting comment %s: %w", id, err)
	}
	return &c, nil
}

func (db *DB) ListComments(ctx context.Context, snippetID string) ([]model.CommentWithAuthor, error) {
	comments := []model.CommentWithAuthor{}
	err := db.conn.SelectContext(ctx, &comments, db.conn.Rebind(`
		SELECT c.id, c.snippet_id, c.profile_id, c.parent_comment_id, c.content, c.created_at,
		       p.email AS author_email
		FROM comments c
		JOIN profiles p ON p.id = c.profile_id
		WHERE c.snippet_id = ?
		ORDER BY c.created_at ASC, c.id ASC`), snippetID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing comments on %s: %w", snippetID, err)
	}
	return comments, nil
}
