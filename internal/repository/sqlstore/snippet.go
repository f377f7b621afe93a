package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X.
var _ repository.SnippetRepository = (*DB)(nil)

// selectSnippetWithAuthor is the "snippets joined with their author" query
// every read path starts from. comment_count rides along so listing pages
// don't need a second round trip per snippet.
const selectSnippetWithAuthor = `
	SELECT s.id, s.slug, s.title, s.description, s.language, s.code,
	       s.profile_id, s.created_at, s.updated_at,
	       p.email AS author_email,
	       (SELECT COUNT(*) FROM comments c WHERE c.snippet_id = s.id) AS comment_count
	FROM snippets s
	JOIN profiles p ON p.id = s.profile_id`

// CreateSnippet inserts the snippet and its tags in one transaction.
// ID and timestamps are generated here; the caller supplies the slug.
func (db *DB) CreateSnippet(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning snippet insert: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO snippets (id, slug, title, description, language, code, profile_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		snippet.ID, snippet.Slug, snippet.Title, snippet.Description, snippet.Language,
		snippet.Code, snippet.ProfileID, snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("snippet", snippet.Slug)
		}
		return fmt.Errorf("sqlstore: creating snippet: %w", err)
	}

	if err := replaceTags(ctx, tx, snippet.ID, snippet.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing snippet insert: %w", err)
	}
	return nil
}

// UpdateSnippet rewrites the editable fields of a snippet, identified by ID.
// Slug, owner and created_at are immutable.
func (db *DB) UpdateSnippet(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning snippet update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE snippets
		SET title = ?, description = ?, language = ?, code = ?, updated_at = ?
		WHERE id = ?`),
		snippet.Title, snippet.Description, snippet.Language, snippet.Code,
		snippet.UpdatedAt, snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating snippet %s: %w", snippet.ID, err)
	}
	if err := rowsAffectedOrNotFound(res, apperror.NotFound("snippet", snippet.ID)); err != nil {
		return err
	}

	if err := replaceTags(ctx, tx, snippet.ID, snippet.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing snippet update: %w", err)
	}
	return nil
}

// replaceTags swaps the tag set of a snippet inside an open transaction.
func replaceTags(ctx context.Context, tx *sqlx.Tx, snippetID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM snippet_tags WHERE snippet_id = ?`), snippetID); err != nil {
		return fmt.Errorf("sqlstore: clearing tags for %s: %w", snippetID, err)
	}
	insert := tx.Rebind(`INSERT INTO snippet_tags (snippet_id, tag, position) VALUES (?, ?, ?)`)
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx, insert, snippetID, tag, i); err != nil {
			return fmt.Errorf("sqlstore: tagging %s with %q: %w", snippetID, tag, err)
		}
	}
	return nil
}

// GetSnippetBySlug returns one snippet with its author and tags.
func (db *DB) GetSnippetBySlug(ctx context.Context, slug string) (*model.SnippetWithAuthor, error) {
	var s model.SnippetWithAuthor
	err := db.conn.GetContext(ctx, &s, db.conn.Rebind(selectSnippetWithAuthor+` WHERE s.slug = ?`), slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", slug)
		}
		return nil, fmt.Errorf("sqlstore: getting snippet %s: %w", slug, err)
	}

	rows := []model.SnippetWithAuthor{s}
	if err := db.attachTags(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

// FindSnippets applies the search predicate and returns every match in
// insertion order.
//
// QUERY COMPOSITION:
// Conditions are appended one by one with their arguments; an empty filter
// selects everything. Tag containment is a GROUP BY/HAVING subquery: a
// snippet qualifies when it carries as many of the requested distinct tags
// as were requested.
func (db *DB) FindSnippets(ctx context.Context, filter repository.SnippetFilter) ([]model.SnippetWithAuthor, error) {
	var (
		where []string
		args  []interface{}
	)

	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, `(LOWER(s.title) LIKE ? ESCAPE '\' OR LOWER(s.description) LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(q), likePattern(q))
	}
	if lang := strings.TrimSpace(filter.Language); lang != "" {
		where = append(where, `LOWER(s.language) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(lang))
	}
	if tags := model.NormalizeTags(filter.Tags); len(tags) > 0 {
		where = append(where, `s.id IN (
			SELECT snippet_id FROM snippet_tags
			WHERE tag IN (?)
			GROUP BY snippet_id
			HAVING COUNT(DISTINCT tag) = ?)`)
		args = append(args, tags, len(tags))
	}

	query := selectSnippetWithAuthor
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at ASC, s.id ASC"

	query, args, err := db.inQuery(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building search query: %w", err)
	}

	snippets := []model.SnippetWithAuthor{}
	if err := db.conn.SelectContext(ctx, &snippets, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: searching snippets: %w", err)
	}
	if err := db.attachTags(ctx, snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

// LatestSnippets lists snippets newest first.
func (db *DB) LatestSnippets(ctx context.Context, opts repository.ListOptions) ([]model.SnippetWithAuthor, error) {
	limit, offset := clampList(opts)

	snippets := []model.SnippetWithAuthor{}
	err := db.conn.SelectContext(ctx, &snippets,
		db.conn.Rebind(selectSnippetWithAuthor+` ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing latest snippets: %w", err)
	}
	if err := db.attachTags(ctx, snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

// SnippetsByProfile lists one owner's snippets newest first.
func (db *DB) SnippetsByProfile(ctx context.Context, profileID string, opts repository.ListOptions) ([]model.SnippetWithAuthor, error) {
	limit, offset := clampList(opts)

	snippets := []model.SnippetWithAuthor{}
	err := db.conn.SelectContext(ctx, &snippets,
		db.conn.Rebind(selectSnippetWithAuthor+` WHERE s.profile_id = ? ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?`),
		profileID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing snippets of profile %s: %w", profileID, err)
	}
	if err := db.attachTags(ctx, snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

// LanguageCounts groups one owner's snippets by language, most used first.
func (db *DB) LanguageCounts(ctx context.Context, profileID string) ([]model.LanguageCount, error) {
	counts := []model.LanguageCount{}
	err := db.conn.SelectContext(ctx, &counts, db.conn.Rebind(`
		SELECT language, COUNT(*) AS count
		FROM snippets
		WHERE profile_id = ?
		GROUP BY language
		ORDER BY count DESC, language ASC`),
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: counting languages of profile %s: %w", profileID, err)
	}
	return counts, nil
}

// attachTags loads tags for a batch of snippets with a single IN query.
func (db *DB) attachTags(ctx context.Context, snippets []model.SnippetWithAuthor) error {
	if len(snippets) == 0 {
		return nil
	}

	ids := make([]string, len(snippets))
	index := make(map[string]int, len(snippets))
	for i := range snippets {
		ids[i] = snippets[i].ID
		index[snippets[i].ID] = i
		snippets[i].Tags = []string{}
	}

	query, args, err := db.inQuery(`
		SELECT snippet_id, tag FROM snippet_tags
		WHERE snippet_id IN (?)
		ORDER BY snippet_id, position`, ids)
	if err != nil {
		return fmt.Errorf("sqlstore: building tag query: %w", err)
	}

	var rows []struct {
		SnippetID string `db:"snippet_id"`
		Tag       string `db:"tag"`
	}
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("sqlstore: loading tags: %w", err)
	}
	for _, r := range rows {
		i := index[r.SnippetID]
		snippets[i].Tags = append(snippets[i].Tags, r.Tag)
	}
	return nil
}

func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
