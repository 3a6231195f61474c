package analytics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

var fixedNow = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

func setupService(t *testing.T, opts Options) (*Service, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	svc := New(store, opts, nil)
	return svc, store
}

func TestLogSearch_WritesSanitizedRow(t *testing.T) {
	svc, store := setupService(t, Options{Enabled: true, IPSalt: "pepper", MaxQueryLength: 5, MaxUserAgentLength: 3})

	svc.LogSearch(context.Background(), Search{
		Query:         "héllo world",
		Filters:       map[string][]string{"category": {"post"}},
		Mode:          "natural",
		ResultCount:   0,
		ExecutionTime: 12 * time.Millisecond,
		UserID:        "7",
		IP:            "10.0.0.1",
		UserAgent:     "Mozilla/5.0",
	})
	svc.Close()

	failed, err := store.FailedQueries(context.Background(), fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "héllo", failed[0].Query)

	status, err := store.GetStatus(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, status.QueryLogCount)
}

func TestLogSearch_DisabledIsNoop(t *testing.T) {
	svc, store := setupService(t, Options{Enabled: false})
	svc.LogSearch(context.Background(), Search{Query: "anything"})
	svc.Close()

	status, err := store.GetStatus(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Zero(t, status.QueryLogCount)
}

func TestLogSearch_AfterCloseDoesNotPanic(t *testing.T) {
	svc, _ := setupService(t, Options{Enabled: true})
	svc.Close()
	assert.NotPanics(t, func() {
		svc.LogSearch(context.Background(), Search{Query: "late"})
		svc.Close()
	})
}

// blockingStore holds the writer on its first insert so the buffer can fill up
type blockingStore struct {
	Store
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	rows    []*types.SearchQueryLog
}

func (b *blockingStore) InsertQueryLog(_ context.Context, row *types.SearchQueryLog) error {
	b.once.Do(func() { <-b.release })
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, row)
	return nil
}

func TestLogSearch_DropsWhenBufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	svc := New(store, Options{Enabled: true, BufferSize: 1}, nil)

	for i := 0; i < 10; i++ {
		svc.LogSearch(context.Background(), Search{Query: "q"})
	}
	close(store.release)
	svc.Close()

	// One row in flight plus one buffered; the rest were dropped
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.LessOrEqual(t, len(store.rows), 2)
	assert.GreaterOrEqual(t, len(store.rows), 1)
}

type failingStore struct{ Store }

func (failingStore) InsertQueryLog(context.Context, *types.SearchQueryLog) error {
	return errors.New("disk full")
}

func TestLogSearch_StoreFailureIsAbsorbed(t *testing.T) {
	svc := New(failingStore{}, Options{Enabled: true}, nil)
	assert.NotPanics(t, func() {
		svc.LogSearch(context.Background(), Search{Query: "q"})
		svc.Close()
	})
}

func TestHashIP(t *testing.T) {
	a := HashIP("salt", "192.168.1.1")
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "192.168")
	assert.Equal(t, a, HashIP("salt", "192.168.1.1"))
	assert.NotEqual(t, a, HashIP("other", "192.168.1.1"))
	assert.Empty(t, HashIP("salt", ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "日本", truncate("日本語", 2))
	assert.Equal(t, strings.Repeat("a", 255), truncate(strings.Repeat("a", 300), 255))
}

func TestEncodeFilters(t *testing.T) {
	assert.Equal(t, "{}", encodeFilters(nil))
	assert.Equal(t, `{"a":1}`, encodeFilters(map[string]int{"a": 1}))
	assert.Equal(t, "{}", encodeFilters(func() {}))
}

func TestPrune(t *testing.T) {
	svc, store := setupService(t, Options{Enabled: true, RetentionDays: 30})
	ctx := context.Background()

	for _, at := range []time.Time{fixedNow.AddDate(0, 0, -31), fixedNow.AddDate(0, 0, -29)} {
		require.NoError(t, store.InsertQueryLog(ctx, &types.SearchQueryLog{Query: "q", SearchedAt: at}))
	}

	removed, err := svc.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	svc.Close()
}
