package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ptrTime(t time.Time) *time.Time { return &t }

func newEntry(kind types.SourceKind, id, title string) *types.Entry {
	return &types.Entry{
		SourceType:  kind,
		SourceID:    id,
		Title:       title,
		Body:        "body of " + title,
		Category:    "post",
		Status:      types.StatusPublished,
		PublishedAt: ptrTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var changes atomic.Int32
	idx := New(store, nil, Options{OnChange: func() { changes.Add(1) }})

	require.NoError(t, idx.Upsert(ctx, newEntry(types.SourceContent, "1", "First")))
	require.NoError(t, idx.Upsert(ctx, newEntry(types.SourceContent, "1", "First")))

	ids, err := store.ListSourceIDs(ctx, types.SourceContent)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
	assert.Equal(t, int32(1), changes.Load(), "identical upsert should not signal a change")
}

func TestUpsert_InvalidEntry(t *testing.T) {
	store := setupStore(t)
	idx := New(store, nil, Options{})

	err := idx.Upsert(context.Background(), newEntry(types.SourceContent, "1", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIndexingFailure))
	assert.True(t, errors.Is(err, types.ErrValidation))

	var ie *types.IndexingError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "upsert", ie.Op)
	assert.Equal(t, "1", ie.SourceID)
}

func TestRemove(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var changes atomic.Int32
	idx := New(store, nil, Options{OnChange: func() { changes.Add(1) }})

	require.NoError(t, idx.Upsert(ctx, newEntry(types.SourceTerm, "7", "Term")))
	require.NoError(t, idx.Remove(ctx, types.SourceTerm, "7"))
	require.NoError(t, idx.Remove(ctx, types.SourceTerm, "7"), "removing a missing entry is not an error")

	_, err := store.GetEntry(ctx, types.SourceTerm, "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, int32(2), changes.Load())
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	record := func(status string) *Record {
		return &Record{Title: "Launch notes", Body: "release body", Status: status}
	}

	tests := []struct {
		name       string
		seed       bool
		event      Event
		wantStatus types.Status
		wantExists bool
	}{
		{
			name:       "created draft is indexed",
			event:      Event{Type: EventCreated, SourceType: types.SourceContent, SourceID: "1", Record: record("draft")},
			wantStatus: types.StatusDraft,
			wantExists: true,
		},
		{
			name:       "published forces published status",
			event:      Event{Type: EventPublished, SourceType: types.SourceContent, SourceID: "1", Record: record("draft")},
			wantStatus: types.StatusPublished,
			wantExists: true,
		},
		{
			name:       "unpublished demotes to draft",
			seed:       true,
			event:      Event{Type: EventUnpublished, SourceType: types.SourceContent, SourceID: "1", Record: record("published")},
			wantStatus: types.StatusDraft,
			wantExists: true,
		},
		{
			name:       "archived update removes entry",
			seed:       true,
			event:      Event{Type: EventUpdated, SourceType: types.SourceContent, SourceID: "1", Record: record("archived")},
			wantExists: false,
		},
		{
			name:       "deleted removes entry",
			seed:       true,
			event:      Event{Type: EventDeleted, SourceType: types.SourceContent, SourceID: "1"},
			wantExists: false,
		},
		{
			name:       "deleted missing entry is a no-op",
			event:      Event{Type: EventDeleted, SourceType: types.SourceContent, SourceID: "1"},
			wantExists: false,
		},
		{
			name:       "source id taken from record",
			event:      Event{Type: EventCreated, SourceType: "CONTENT", Record: &Record{SourceID: "1", Title: "From record"}},
			wantStatus: types.StatusDraft,
			wantExists: true,
		},
		{
			name:       "invalid entry is swallowed",
			seed:       true,
			event:      Event{Type: EventUpdated, SourceType: types.SourceContent, SourceID: "1", Record: &Record{Title: ""}},
			wantStatus: types.StatusPublished,
			wantExists: true,
		},
		{
			name:       "unknown event type is ignored",
			seed:       true,
			event:      Event{Type: "touched", SourceType: types.SourceContent, SourceID: "1"},
			wantStatus: types.StatusPublished,
			wantExists: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			idx := New(store, nil, Options{})
			if tt.seed {
				require.NoError(t, idx.Upsert(ctx, newEntry(types.SourceContent, "1", "Seed")))
			}

			idx.HandleEvent(ctx, tt.event)

			got, err := store.GetEntry(ctx, types.SourceContent, "1")
			if !tt.wantExists {
				assert.ErrorIs(t, err, storage.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr string
	}{
		{"unknown type", Event{Type: "x", SourceType: types.SourceContent, SourceID: "1"}, "unknown event type"},
		{"unknown source", Event{Type: EventDeleted, SourceType: "widget", SourceID: "1"}, "unknown source type"},
		{"missing id", Event{Type: EventDeleted, SourceType: types.SourceContent}, "source id is required"},
		{"missing record", Event{Type: EventCreated, SourceType: types.SourceContent, SourceID: "1"}, "require a record"},
		{"valid delete", Event{Type: "DELETED", SourceType: types.SourceMedia, SourceID: " 9 "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, EventDeleted, tt.event.Type)
				assert.Equal(t, "9", tt.event.SourceID)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func snapshot(t *testing.T, store storage.Storage) map[string]types.Entry {
	t.Helper()
	ctx := context.Background()
	out := make(map[string]types.Entry)
	for _, kind := range types.KnownSourceKinds {
		ids, err := store.ListSourceIDs(ctx, kind)
		require.NoError(t, err)
		for _, id := range ids {
			e, err := store.GetEntry(ctx, kind, id)
			require.NoError(t, err)
			out[e.Key()] = *e
		}
	}
	return out
}

func TestReindexAll(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var content []*types.Entry
	for i := 0; i < 25; i++ {
		content = append(content, newEntry(types.SourceContent, string(rune('a'+i)), "Post "+string(rune('A'+i))))
	}
	reg := NewRegistry()
	require.NoError(t, reg.Register(types.SourceContent, SliceSource(content...)))
	require.NoError(t, reg.Register(types.SourceTerm, SliceSource(
		newEntry(types.SourceTerm, "t1", "Golang"),
		newEntry(types.SourceTerm, "t2", ""), // invalid
	)))

	// Stale entries: one the content source no longer has, and one of an unregistered kind
	require.NoError(t, New(store, nil, Options{}).Upsert(ctx, newEntry(types.SourceContent, "gone", "Gone")))
	require.NoError(t, New(store, nil, Options{}).Upsert(ctx, newEntry(types.SourceMedia, "m1", "Logo")))

	var changes atomic.Int32
	idx := New(store, reg, Options{BatchSize: 10, Workers: 2, OnChange: func() { changes.Add(1) }})

	stats, err := idx.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 26, stats.Indexed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 4, stats.Batches) // 10 + 10 + 5 content, 2 term
	assert.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "term:t2")
	assert.Equal(t, int32(1), changes.Load())

	_, err = store.GetEntry(ctx, types.SourceContent, "gone")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetEntry(ctx, types.SourceMedia, "m1")
	assert.NoError(t, err, "unregistered kinds are left alone")

	first := snapshot(t, store)

	stats, err = idx.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 26, stats.Unchanged)
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, int32(1), changes.Load(), "no-op reindex should not signal a change")

	assert.Equal(t, first, snapshot(t, store))
}

func TestReindexAll_FailedFetchSkipsPrune(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, New(store, nil, Options{}).Upsert(ctx, newEntry(types.SourceContent, "old", "Old")))

	reg := NewRegistry()
	require.NoError(t, reg.Register(types.SourceContent, func(ctx context.Context, emit func(*types.Entry) error) error {
		if err := emit(newEntry(types.SourceContent, "new", "New")); err != nil {
			return err
		}
		return errors.New("export truncated")
	}))

	idx := New(store, reg, Options{BatchSize: 1})
	stats, err := idx.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 0, stats.Removed)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "export truncated")

	_, err = store.GetEntry(ctx, types.SourceContent, "old")
	assert.NoError(t, err)
}

func TestReindexAll_InProgress(t *testing.T) {
	store := setupStore(t)
	idx := New(store, nil, Options{})

	require.True(t, idx.lock.TryAcquire())
	_, err := idx.ReindexAll(context.Background())
	assert.ErrorIs(t, err, ErrReindexInProgress)

	idx.lock.Release()
	_, err = idx.ReindexAll(context.Background())
	assert.NoError(t, err)
}

func TestReindexAll_Cancelled(t *testing.T) {
	store := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	reg := NewRegistry()
	require.NoError(t, reg.Register(types.SourceContent, func(ctx context.Context, emit func(*types.Entry) error) error {
		cancel()
		return emit(newEntry(types.SourceContent, "1", "One"))
	}))

	idx := New(store, reg, Options{})
	_, err := idx.ReindexAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, idx.lock.Held())
}

func TestJSONLSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content.jsonl")
	data := `{"source_id":"1","title":"Alpha","status":"Published","published_at":"2026-01-02T03:04:05Z","metadata":{"color":"red","tags":["a","b"]}}

{"source_id":"2","title":"Beta","keywords":"x, y"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	var got []*types.Entry
	err := JSONLSource(types.SourceContent, path)(context.Background(), func(e *types.Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, types.SourceContent, got[0].SourceType)
	assert.Equal(t, "1", got[0].SourceID)
	assert.Equal(t, types.StatusPublished, got[0].Status)
	require.NotNil(t, got[0].PublishedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got[0].PublishedAt.UTC())
	assert.Equal(t, []string{"a", "b"}, got[0].Metadata["tags"].Terms())
	assert.Equal(t, "x, y", got[1].Keywords)
}

func TestJSONLSource_Errors(t *testing.T) {
	dir := t.TempDir()
	noop := func(*types.Entry) error { return nil }

	err := JSONLSource(types.SourceContent, filepath.Join(dir, "missing.jsonl"))(context.Background(), noop)
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"title\":\"ok\"}\nnot json\n"), 0o600))
	err = JSONLSource(types.SourceContent, path)(context.Background(), noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.jsonl:2")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Kinds())

	assert.Error(t, reg.Register("widget", SliceSource()))
	assert.Error(t, reg.Register(types.SourceMedia, nil))

	require.NoError(t, reg.Register(types.SourceMedia, SliceSource()))
	require.NoError(t, reg.Register(types.SourceContent, SliceSource()))
	assert.Equal(t, []types.SourceKind{types.SourceContent, types.SourceMedia}, reg.Kinds())

	_, ok := reg.Fetcher(types.SourceTerm)
	assert.False(t, ok)
}
