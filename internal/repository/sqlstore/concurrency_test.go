package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/service"
)

// newFileDB opens a store on a temporary file so the pool can hold more than
// one connection.
func newFileDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "snippethub.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn    string
		memory bool
		want   string
	}{
		{":memory:", true, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"data/x.db", false, "data/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"file:x.db?cache=shared", false, "file:x.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.dsn, tt.memory))
		})
	}
}

func TestPragmas_EveryPooledConnection(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	// Holding the connections open forces the pool to dial distinct ones.
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := db.conn.Conn(ctx)
		require.NoError(t, err)
		defer c.Close()
		conns[i] = c
	}

	for i, c := range conns {
		var fk, busy int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
		assert.Equal(t, 1, fk, "conn %d foreign_keys", i)
		assert.Equal(t, 5000, busy, "conn %d busy_timeout", i)
	}
}

func TestForeignKeys_Enforced(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()
	voter := createTestProfile(t, db, "user-1", "ada@example.com")

	err := db.InsertVote(ctx, &model.Vote{SnippetID: "missing", ProfileID: voter.ID, Value: model.VoteUp})
	assert.Error(t, err)
}

func TestToggle_ConcurrentClicks(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	votes := service.NewVoteService(db, db, logger)

	owner := createTestProfile(t, db, "owner", "owner@example.com")
	voter := createTestProfile(t, db, "voter", "voter@example.com")

	const rounds = 20
	for round := 0; round < rounds; round++ {
		slug := fmt.Sprintf("race-%d", round)
		s := createTestSnippet(t, db, owner.ID, slug, slug, "Go")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = votes.Toggle(ctx, slug, voter.ID, model.DirectionUp)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err, "round %d", round)
		}

		// Both clicks landed: the row is either settled on up or toggled off.
		v, err := db.GetVote(ctx, s.ID, voter.ID)
		if err != nil {
			require.ErrorIs(t, err, apperror.ErrNotFound)
			continue
		}
		assert.Equal(t, model.VoteUp, v.Value)
	}
}
