package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, s *SQLiteStorage, name string) bool {
	t.Helper()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestRollbackSchema(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	_, err := storage.UpsertEntry(ctx, newEntry("1", "Hello"))
	require.NoError(t, err)

	version, err := storage.RollbackSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
	for _, table := range []string{"search_index", "search_index_fts", "search_query_logs", "schema_version"} {
		assert.False(t, tableExists(t, storage, table), table)
	}

	_, err = storage.RollbackSchema(ctx)
	assert.ErrorIs(t, err, ErrNoMigrations)

	// Migrations reapply cleanly onto the emptied database
	require.NoError(t, ApplyMigrations(ctx, storage.db))
	status, err := storage.GetStatus(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, status.IndexedCount)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, storage.db))

	var n int
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(AllMigrations), n)

	v, err := schemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}
