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

var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or refreshes the mirror row for a GitHub account.
//
// The internal ID is generated once and kept forever: an existing github_id
// keeps its ID and only the profile fields are refreshed. The caller's user
// is filled in with ID and timestamps either way.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.PublicMetadata == "" {
		user.PublicMetadata = "{}"
	}

	var existing struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := db.conn.GetContext(ctx, &existing, db.conn.Rebind(
		`SELECT id, created_at FROM users WHERE github_id = ?`), user.GitHubID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlstore: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	now := time.Now().UTC()
	user.UpdatedAt = now

	if existing.ID != "" {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
		_, err = db.conn.ExecContext(ctx, db.conn.Rebind(`
			UPDATE users
			SET login = ?, name = ?, email = ?, avatar_url = ?, updated_at = ?
			WHERE id = ?`),
			user.Login, user.Name, user.Email, user.AvatarURL, user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	user.ID = xid.New().String()
	user.CreatedAt = now
	_, err = db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO users (id, github_id, login, name, email, avatar_url, public_metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.GitHubID, user.Login, user.Name, user.Email, user.AvatarURL,
		user.PublicMetadata, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", fmt.Sprintf("github:%d", user.GitHubID))
		}
		return fmt.Errorf("sqlstore: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, db.conn.Rebind(`
		SELECT id, github_id, login, name, email, avatar_url, public_metadata, created_at, updated_at
		FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return &u, nil
}
