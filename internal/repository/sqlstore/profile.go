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

var _ repository.ProfileRepository = (*DB)(nil)

// EnsureProfile lazily creates the profile for an identity.
//
// ON CONFLICT DO NOTHING makes two concurrent first visits safe: the loser's
// insert is silently dropped and both read back the same row. Both SQLite
// (3.24+) and Postgres accept this syntax.
func (db *DB) EnsureProfile(ctx context.Context, userID, email string) (*model.Profile, error) {
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO profiles (id, user_id, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		xid.New().String(), userID, email, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: ensuring profile for user %s: %w", userID, err)
	}

	return db.GetProfileByUserID(ctx, userID)
}

func (db *DB) GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.GetContext(ctx, &p, db.conn.Rebind(`
		SELECT id, user_id, email, created_at FROM profiles WHERE user_id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlstore: getting profile for user %s: %w", userID, err)
	}
	return &p, nil
}
