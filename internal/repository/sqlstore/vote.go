package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/repository"
)

var _ repository.VoteRepository = (*DB)(nil)

func voteKey(snippetID, profileID string) string {
	return snippetID + "/" + profileID
}

// GetVote returns the viewer's row, or apperror.ErrNotFound when there is none.
func (db *DB) GetVote(ctx context.Context, snippetID, profileID string) (*model.Vote, error) {
	var v model.Vote
	err := db.conn.GetContext(ctx, &v, db.conn.Rebind(`
		SELECT snippet_id, profile_id, value, created_at, updated_at
		FROM votes
		WHERE snippet_id = ? AND profile_id = ?`),
		snippetID, profileID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("vote", voteKey(snippetID, profileID))
		}
		return nil, fmt.Errorf("sqlstore: getting vote %s: %w", voteKey(snippetID, profileID), err)
	}
	return &v, nil
}

// InsertVote creates the row for a first vote. The UNIQUE (snippet_id,
// profile_id) constraint turns a racing second insert into ErrConflict.
func (db *DB) InsertVote(ctx context.Context, vote *model.Vote) error {
	now := time.Now().UTC()
	vote.CreatedAt = now
	vote.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO votes (snippet_id, profile_id, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`),
		vote.SnippetID, vote.ProfileID, vote.Value, vote.CreatedAt, vote.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("vote", voteKey(vote.SnippetID, vote.ProfileID))
		}
		return fmt.Errorf("sqlstore: inserting vote %s: %w", voteKey(vote.SnippetID, vote.ProfileID), err)
	}
	return nil
}

// UpdateVote flips an existing row in a single statement, so readers never
// observe an intermediate "no vote" state.
func (db *DB) UpdateVote(ctx context.Context, vote *model.Vote) error {
	vote.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		UPDATE votes SET value = ?, updated_at = ?
		WHERE snippet_id = ? AND profile_id = ?`),
		vote.Value, vote.UpdatedAt, vote.SnippetID, vote.ProfileID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating vote %s: %w", voteKey(vote.SnippetID, vote.ProfileID), err)
	}
	return rowsAffectedOrNotFound(res, apperror.NotFound("vote", voteKey(vote.SnippetID, vote.ProfileID)))
}

// DeleteVote removes the row, returning to the neutral state.
func (db *DB) DeleteVote(ctx context.Context, snippetID, profileID string) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		DELETE FROM votes WHERE snippet_id = ? AND profile_id = ?`),
		snippetID, profileID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting vote %s: %w", voteKey(snippetID, profileID), err)
	}
	return rowsAffectedOrNotFound(res, apperror.NotFound("vote", voteKey(snippetID, profileID)))
}

// CountVotes aggregates up and down votes per snippet straight from the vote
// rows. Nothing is cached: every call reflects the committed state.
func (db *DB) CountVotes(ctx context.Context, snippetIDs []string) (map[string]model.VoteCount, error) {
	counts := make(map[string]model.VoteCount, len(snippetIDs))
	if len(snippetIDs) == 0 {
		return counts, nil
	}

	query, args, err := db.inQuery(`
		SELECT snippet_id,
		       SUM(CASE WHEN value > 0 THEN 1 ELSE 0 END) AS upvotes,
		       SUM(CASE WHEN value < 0 THEN 1 ELSE 0 END) AS downvotes
		FROM votes
		WHERE snippet_id IN (?)
		GROUP BY snippet_id`, snippetIDs)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building vote count query: %w", err)
	}

	var rows []struct {
		SnippetID string `db:"snippet_id"`
		model.VoteCount
	}
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: counting votes: %w", err)
	}
	for _, r := range rows {
		counts[r.SnippetID] = r.VoteCount
	}
	return counts, nil
}

// ViewerVotes returns the viewer's vote value for each snippet they voted on.
func (db *DB) ViewerVotes(ctx context.Context, profileID string, snippetIDs []string) (map[string]model.VoteValue, error) {
	values := make(map[string]model.VoteValue, len(snippetIDs))
	if profileID == "" || len(snippetIDs) == 0 {
		return values, nil
	}

	query, args, err := db.inQuery(`
		SELECT snippet_id, value FROM votes
		WHERE profile_id = ? AND snippet_id IN (?)`, profileID, snippetIDs)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building viewer vote query: %w", err)
	}

	var rows []struct {
		SnippetID string          `db:"snippet_id"`
		Value     model.VoteValue `db:"value"`
	}
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: loading viewer votes: %w", err)
	}
	for _, r := range rows {
		values[r.SnippetID] = r.Value
	}
	return values, nil
}

// UpvotesReceived counts upvotes across every snippet a profile owns.
func (db *DB) UpvotesReceived(ctx context.Context, profileID string) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, db.conn.Rebind(`
		SELECT COUNT(*) FROM votes v
		JOIN snippets s ON s.id = v.snippet_id
		WHERE s.profile_id = ? AND v.value > 0`),
		profileID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: counting upvotes of profile %s: %w", profileID, err)
	}
	return n, nil
}
