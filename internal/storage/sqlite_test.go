package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func ptrTime(t time.Time) *time.Time { return &t }

func newEntry(id, title string) *types.Entry {
	return &types.Entry{
		SourceType:  types.SourceContent,
		SourceID:    id,
		Title:       title,
		Body:        "body of " + title,
		Category:    "post",
		Status:      types.StatusPublished,
		AuthorID:    "1",
		PublishedAt: ptrTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage)
	assert.NotNil(t, storage.db)
}

func TestClose(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.Close()
	assert.NoError(t, err)
}

func TestUpsertEntry_InsertAndReplace(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	entry := newEntry("42", "Hello World")
	entry.Metadata = types.Metadata{"color": types.StringValue("red")}
	changed, err := storage.UpsertEntry(ctx, entry)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, entry.ID, int64(0))
	firstID := entry.ID

	replacement := newEntry("42", "Hello Again")
	changed, err = storage.UpsertEntry(ctx, replacement)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, firstID, replacement.ID)

	got, err := storage.GetEntry(ctx, types.SourceContent, "42")
	require.NoError(t, err)
	assert.Equal(t, "Hello Again", got.Title)
	assert.Empty(t, got.Metadata)

	status, err := storage.GetStatus(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, status.IndexedCount)
}

func TestUpsertEntry_UnchangedIsNoop(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	changed, err := storage.UpsertEntry(ctx, newEntry("1", "Same"))
	require.NoError(t, err)
	assert.True(t, changed)

	again := newEntry("1", "Same")
	changed, err = storage.UpsertEntry(ctx, again)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Greater(t, again.ID, int64(0))
}

func TestUpsertEntry_Validation(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	entry := newEntry("1", "   ")
	_, err := storage.UpsertEntry(context.Background(), entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestGetEntry_RoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	entry := newEntry("7", "Round Trip")
	entry.Keywords = " go , sqlite "
	entry.RelevanceBoost = 2.5
	entry.Metadata = types.Metadata{
		"featured": types.BoolValue(true),
		"rating":   types.NumberValue(4.5),
		"tags":     types.ListValue("a", "b"),
	}
	_, err := storage.UpsertEntry(ctx, entry)
	require.NoError(t, err)

	got, err := storage.GetEntryByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "go,sqlite", got.Keywords)
	assert.Equal(t, 2.5, got.RelevanceBoost)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, entry.PublishedAt.Equal(*got.PublishedAt))

	featured, ok := got.Metadata["featured"].AsBool()
	assert.True(t, ok)
	assert.True(t, featured)
	tags, ok := got.Metadata["tags"].AsList()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestGetEntry_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetEntry(context.Background(), types.SourceMedia, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEntry(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	entry := newEntry("9", "Doomed")
	entry.Metadata = types.Metadata{"color": types.StringValue("red")}
	_, err := storage.UpsertEntry(ctx, entry)
	require.NoError(t, err)

	deleted, err := storage.DeleteEntry(ctx, types.SourceContent, "9")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = storage.DeleteEntry(ctx, types.SourceContent, "9")
	require.NoError(t, err)
	assert.False(t, deleted)

	// Metadata rows cascade and the FTS index forgets the document
	var n int
	require.NoError(t, storage.db.QueryRow(`SELECT COUNT(*) FROM search_index_metadata`).Scan(&n))
	assert.Equal(t, 0, n)
	count, err := storage.CountCandidates(ctx, &Criteria{Match: `"doomed"`})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTransaction_Rollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.UpsertEntry(ctx, newEntry("1", "Temp"))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = storage.GetEntry(ctx, types.SourceContent, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_Commit(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	for _, id := range []string{"b", "a", "c"} {
		_, err = tx.UpsertEntry(ctx, newEntry(id, "Entry "+id))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	ids, err := storage.ListSourceIDs(ctx, types.SourceContent)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := storage.UpsertEntry(ctx, newEntry("1", "Visible"))
	require.NoError(t, err)
	draft := newEntry("2", "Draft")
	draft.Status = types.StatusDraft
	_, err = storage.UpsertEntry(ctx, draft)
	require.NoError(t, err)
	future := newEntry("3", "Scheduled")
	future.PublishedAt = ptrTime(now.Add(24 * time.Hour))
	_, err = storage.UpsertEntry(ctx, future)
	require.NoError(t, err)
	term := newEntry("4", "Tag")
	term.SourceType = types.SourceTerm
	_, err = storage.UpsertEntry(ctx, term)
	require.NoError(t, err)

	status, err := storage.GetStatus(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 4, status.IndexedCount)
	assert.Equal(t, 2, status.VisibleCount)
	assert.Equal(t, map[string]int{"content": 3, "term": 1}, status.ByType)
	assert.False(t, status.LastIndexedAt.IsZero())
	assert.Greater(t, status.IndexSizeMB, 0.0)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
}
