package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EnablesWAL(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "ledger.db"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrate_AppliesOnlyNewSteps(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "m.db"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	steps := []string{
		`CREATE TABLE a (id INTEGER PRIMARY KEY);`,
		`ALTER TABLE a ADD COLUMN name TEXT;`,
	}
	require.NoError(t, Migrate(ctx, db, steps[:1]))
	require.NoError(t, Migrate(ctx, db, steps))
	// Re-running is a no-op; the ALTER would fail if applied twice.
	require.NoError(t, Migrate(ctx, db, steps))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, 2, version)

	_, err = db.ExecContext(ctx, `INSERT INTO a (name) VALUES ('x')`)
	assert.NoError(t, err)
}

func TestMigrate_FailureKeepsVersion(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "f.db"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = Migrate(ctx, db, []string{`CREATE TABLE ok (id INTEGER);`, `NOT SQL`})
	require.Error(t, err)

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestCheck_Healthy(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "v.db"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)`)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err = db.ExecContext(ctx, `INSERT INTO t (data) VALUES (hex(randomblob(50)))`)
		require.NoError(t, err)
	}

	for _, full := range []bool{false, true} {
		issues, err := Check(ctx, db, full)
		require.NoError(t, err)
		assert.Nil(t, issues)
	}
}

func TestCheck_FullReportsOrphans(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "fk.db"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, `CREATE TABLE parent (id TEXT PRIMARY KEY);
		CREATE TABLE child (parent_id TEXT REFERENCES parent(id));`)
	require.NoError(t, err)

	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO child (parent_id) VALUES ('ghost')`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	issues, err := Check(ctx, db, false)
	require.NoError(t, err)
	assert.Nil(t, issues, "quick_check does not look at foreign keys")

	issues, err = Check(ctx, db, true)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "child row 1 references missing parent")
}
