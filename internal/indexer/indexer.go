package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/logger"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/metrics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

const (
	// DefaultBatchSize is the number of entries written per transaction during reindexing
	DefaultBatchSize = 100
	// DefaultWorkers bounds the number of batches in flight
	DefaultWorkers = 4
	// maxReportedErrors caps Statistics.Errors
	maxReportedErrors = 100
)

// ErrReindexInProgress is returned when a full reindex is already running
var ErrReindexInProgress = errors.New("reindex already in progress")

// Options configures an Indexer
type Options struct {
	BatchSize int
	Workers   int
	Logger    *zap.Logger
	// OnChange runs after any mutation that changed the index, e.g. to purge result caches
	OnChange func()
}

// OptionsFromConfig maps indexer settings onto Options
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{BatchSize: cfg.BatchSize, Workers: cfg.Workers}
}

// Indexer keeps the search index consistent with the source entities
type Indexer struct {
	storage   storage.Storage
	sources   *Registry
	logger    *zap.Logger
	batchSize int
	workers   int
	onChange  func()
	lock      IndexLock
}

// New creates an indexer. A nil registry means ReindexAll has nothing to iterate.
func New(store storage.Storage, sources *Registry, opts Options) *Indexer {
	if sources == nil {
		sources = NewRegistry()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Indexer{
		storage:   store,
		sources:   sources,
		logger:    logger.OrNop(opts.Logger),
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
		onChange:  opts.OnChange,
	}
}

// Statistics tracks the outcome of a full reindex
type Statistics struct {
	Indexed   int           `json:"indexed"`   // entries inserted or replaced
	Unchanged int           `json:"unchanged"` // entries already up to date
	Failed    int           `json:"failed"`
	Removed   int           `json:"removed"` // stale entries pruned
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration_ns"`
	Errors    []string      `json:"errors,omitempty"`
}

// Upsert inserts or replaces a single entry. Calling it twice with identical data is a no-op.
func (idx *Indexer) Upsert(ctx context.Context, entry *types.Entry) error {
	changed, err := idx.storage.UpsertEntry(ctx, entry)
	if err != nil {
		metrics.IndexOperationsTotal.WithLabelValues("upsert", "failed").Inc()
		return &types.IndexingError{Op: "upsert", SourceType: entry.SourceType, SourceID: entry.SourceID, Err: err}
	}

	if changed {
		metrics.IndexOperationsTotal.WithLabelValues("upsert", "changed").Inc()
		idx.changed()
	} else {
		metrics.IndexOperationsTotal.WithLabelValues("upsert", "unchanged").Inc()
	}
	return nil
}

// Remove deletes the entry for (kind, sourceID). Removing a missing entry is not an error.
func (idx *Indexer) Remove(ctx context.Context, kind types.SourceKind, sourceID string) error {
	deleted, err := idx.storage.DeleteEntry(ctx, kind, sourceID)
	if err != nil {
		metrics.IndexOperationsTotal.WithLabelValues("remove", "failed").Inc()
		return &types.IndexingError{Op: "remove", SourceType: kind, SourceID: sourceID, Err: err}
	}

	if deleted {
		metrics.IndexOperationsTotal.WithLabelValues("remove", "changed").Inc()
		idx.changed()
	} else {
		metrics.IndexOperationsTotal.WithLabelValues("remove", "unchanged").Inc()
	}
	return nil
}

// ReindexAll upserts every entity of every registered source in bounded batches and
// prunes index entries whose source entity no longer exists. Live queries and single
// upserts continue while it runs; a second concurrent call fails with ErrReindexInProgress.
func (idx *Indexer) ReindexAll(ctx context.Context) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrReindexInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	run := &reindexRun{}

	var runErr error
	for _, kind := range idx.sources.Kinds() {
		if err := idx.reindexKind(ctx, kind, run); err != nil {
			if ctx.Err() != nil {
				runErr = err
				break
			}
			run.addError(fmt.Sprintf("source %s: %v", kind, err))
			idx.logger.Error("reindex source failed",
				zap.String("source_type", string(kind)),
				zap.Error(err))
		}
	}

	stats := run.statistics()
	stats.Duration = time.Since(start)
	metrics.ReindexDuration.Observe(stats.Duration.Seconds())

	if stats.Indexed > 0 || stats.Removed > 0 {
		idx.changed()
	}

	idx.logger.Info("reindex complete",
		zap.Int("indexed", stats.Indexed),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("failed", stats.Failed),
		zap.Int("removed", stats.Removed),
		zap.Int("batches", stats.Batches),
		zap.Duration("duration", stats.Duration))

	return stats, runErr
}

// reindexKind streams one source into batches, then prunes entries the source no longer has
func (idx *Indexer) reindexKind(ctx context.Context, kind types.SourceKind, run *reindexRun) error {
	fetch, ok := idx.sources.Fetcher(kind)
	if !ok {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	seen := make(map[string]struct{})
	batch := make([]*types.Entry, 0, idx.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		entries := batch
		batch = make([]*types.Entry, 0, idx.batchSize)
		run.batches.Add(1)
		g.Go(func() error {
			return idx.writeBatch(gctx, entries, run)
		})
	}

	fetchErr := fetch(gctx, func(e *types.Entry) error {
		e.SourceType = kind
		e.Normalize()
		seen[e.SourceID] = struct{}{}
		batch = append(batch, e)
		if len(batch) >= idx.batchSize {
			flush()
		}
		return gctx.Err()
	})
	if fetchErr == nil {
		flush()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if fetchErr != nil {
		return fetchErr
	}

	return idx.prune(ctx, kind, seen, run)
}

// writeBatch upserts entries in one transaction. Invalid entries are counted and skipped.
func (idx *Indexer) writeBatch(ctx context.Context, entries []*types.Entry, run *reindexRun) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.failBatch(entries, err)
		return nil
	}
	defer func() { _ = tx.Rollback() }()

	var indexed, unchanged int64
	for _, e := range entries {
		changed, err := tx.UpsertEntry(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run.failed.Add(1)
			run.addError(fmt.Sprintf("%s: %v", e.Key(), err))
			metrics.IndexOperationsTotal.WithLabelValues("upsert", "failed").Inc()
			idx.logger.Warn("reindex entry failed",
				zap.String("source_type", string(e.SourceType)),
				zap.String("source_id", e.SourceID),
				zap.Error(err))
			continue
		}
		if changed {
			indexed++
		} else {
			unchanged++
		}
	}

	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.failBatch(entries, err)
		return nil
	}

	run.indexed.Add(indexed)
	run.unchanged.Add(unchanged)
	metrics.IndexOperationsTotal.WithLabelValues("upsert", "changed").Add(float64(indexed))
	metrics.IndexOperationsTotal.WithLabelValues("upsert", "unchanged").Add(float64(unchanged))
	return nil
}

func (idx *Indexer) prune(ctx context.Context, kind types.SourceKind, seen map[string]struct{}, run *reindexRun) error {
	existing, err := idx.storage.ListSourceIDs(ctx, kind)
	if err != nil {
		return fmt.Errorf("list indexed %s entries: %w", kind, err)
	}

	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		deleted, err := idx.storage.DeleteEntry(ctx, kind, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run.addError(fmt.Sprintf("%s:%s: %v", kind, id, err))
			metrics.IndexOperationsTotal.WithLabelValues("remove", "failed").Inc()
			continue
		}
		if deleted {
			run.removed.Add(1)
			metrics.IndexOperationsTotal.WithLabelValues("remove", "changed").Inc()
		}
	}
	return nil
}

func (idx *Indexer) changed() {
	if idx.onChange != nil {
		idx.onChange()
	}
}

// reindexRun accumulates counters shared by concurrent batch writers
type reindexRun struct {
	indexed   atomic.Int64
	unchanged atomic.Int64
	failed    atomic.Int64
	removed   atomic.Int64
	batches   atomic.Int64

	mu     sync.Mutex
	errors []string
}

func (r *reindexRun) addError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) < maxReportedErrors {
		r.errors = append(r.errors, msg)
	}
}

func (r *reindexRun) failBatch(entries []*types.Entry, err error) {
	r.failed.Add(int64(len(entries)))
	r.addError(fmt.Sprintf("batch of %d: %v", len(entries), err))
	metrics.IndexOperationsTotal.WithLabelValues("upsert", "failed").Add(float64(len(entries)))
}

func (r *reindexRun) statistics() *Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Statistics{
		Indexed:   int(r.indexed.Load()),
		Unchanged: int(r.unchanged.Load()),
		Failed:    int(r.failed.Load()),
		Removed:   int(r.removed.Load()),
		Batches:   int(r.batches.Load()),
		Errors:    append([]string(nil), r.errors...),
	}
}
