package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite with FTS5
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertEntry(ctx context.Context, entry *types.Entry) (bool, error) {
	return upsertEntryWithQuerier(ctx, t.tx, entry)
}

func (t *sqliteTx) DeleteEntry(ctx context.Context, kind types.SourceKind, sourceID string) (bool, error) {
	return deleteEntryWithQuerier(ctx, t.tx, kind, sourceID)
}

// Entry operations

// UpsertEntry runs the upsert and its metadata rewrite in a single transaction
func (s *SQLiteStorage) UpsertEntry(ctx context.Context, entry *types.Entry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	changed, err := upsertEntryWithQuerier(ctx, tx, entry)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return changed, nil
}

// upsertEntryWithQuerier inserts or replaces an entry. Rows whose content hash is
// unchanged are left untouched so repeated syncs do not churn indexed_at.
func upsertEntryWithQuerier(ctx context.Context, q querier, entry *types.Entry) (bool, error) {
	entry.Normalize()
	if err := entry.Validate(); err != nil {
		return false, err
	}

	metadataJSON, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return false, err
	}
	hash := contentHash(entry, metadataJSON)

	query := `
		INSERT INTO search_index (
			source_type, source_id, title, body, excerpt, keywords, category, status,
			author_id, published_at, relevance_boost, metadata, content_hash, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_type, source_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			excerpt = excluded.excerpt,
			keywords = excluded.keywords,
			category = excluded.category,
			status = excluded.status,
			author_id = excluded.author_id,
			published_at = excluded.published_at,
			relevance_boost = excluded.relevance_boost,
			metadata = excluded.metadata,
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at
		WHERE search_index.content_hash != excluded.content_hash
		RETURNING id, indexed_at
	`
	now := time.Now().UTC().Truncate(time.Second)
	var indexedAt int64
	err = q.QueryRowContext(ctx, query,
		string(entry.SourceType), entry.SourceID, entry.Title, entry.Body, entry.Excerpt,
		entry.Keywords, entry.Category, string(entry.Status), entry.AuthorID,
		nullableUnix(entry.PublishedAt), entry.RelevanceBoost, metadataJSON, hash[:], now.Unix(),
	).Scan(&entry.ID, &indexedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with identical content: nothing was written
		err = q.QueryRowContext(ctx,
			`SELECT id, indexed_at FROM search_index WHERE source_type = ? AND source_id = ?`,
			string(entry.SourceType), entry.SourceID,
		).Scan(&entry.ID, &indexedAt)
		if err != nil {
			return false, fmt.Errorf("failed to load unchanged entry: %w", err)
		}
		entry.IndexedAt = time.Unix(indexedAt, 0).UTC()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert entry: %w", err)
	}
	entry.IndexedAt = time.Unix(indexedAt, 0).UTC()

	if err := replaceMetadataWithQuerier(ctx, q, entry.ID, entry.Metadata); err != nil {
		return false, err
	}
	return true, nil
}

// replaceMetadataWithQuerier rewrites the per-term metadata rows used for filtering and faceting
func replaceMetadataWithQuerier(ctx context.Context, q querier, entryID int64, metadata types.Metadata) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM search_index_metadata WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	for _, key := range metadata.Keys() {
		value := metadata[key]
		seen := make(map[string]bool)
		for _, term := range value.Terms() {
			if seen[term] {
				continue
			}
			seen[term] = true
			_, err := q.ExecContext(ctx,
				`INSERT INTO search_index_metadata (entry_id, key, value, kind) VALUES (?, ?, ?, ?)`,
				entryID, key, term, value.Kind().String())
			if err != nil {
				return fmt.Errorf("failed to store metadata %q: %w", key, err)
			}
		}
	}
	return nil
}

// DeleteEntry removes the entry keyed by (kind, sourceID)
func (s *SQLiteStorage) DeleteEntry(ctx context.Context, kind types.SourceKind, sourceID string) (bool, error) {
	return deleteEntryWithQuerier(ctx, s.db, kind, sourceID)
}

// deleteEntryWithQuerier is the internal implementation that uses a querier
func deleteEntryWithQuerier(ctx context.Context, q querier, kind types.SourceKind, sourceID string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM search_index WHERE source_type = ? AND source_id = ?`,
		string(kind), sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const entryColumns = `
	si.id, si.source_type, si.source_id, si.title, si.body, si.excerpt, si.keywords,
	si.category, si.status, si.author_id, si.published_at, si.relevance_boost,
	si.metadata, si.indexed_at`

// GetEntry retrieves an entry by its source identity
func (s *SQLiteStorage) GetEntry(ctx context.Context, kind types.SourceKind, sourceID string) (*types.Entry, error) {
	query := `SELECT` + entryColumns + ` FROM search_index si WHERE si.source_type = ? AND si.source_id = ?`
	return scanEntry(s.db.QueryRowContext(ctx, query, string(kind), sourceID))
}

// GetEntryByID retrieves an entry by its index id
func (s *SQLiteStorage) GetEntryByID(ctx context.Context, id int64) (*types.Entry, error) {
	query := `SELECT` + entryColumns + ` FROM search_index si WHERE si.id = ?`
	return scanEntry(s.db.QueryRowContext(ctx, query, id))
}

// ListSourceIDs returns every indexed source id of the given kind
func (s *SQLiteStorage) ListSourceIDs(ctx context.Context, kind types.SourceKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id FROM search_index WHERE source_type = ? ORDER BY source_id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner, extra ...interface{}) (*types.Entry, error) {
	var (
		entry       types.Entry
		sourceType  string
		status      string
		publishedAt sql.NullInt64
		metadata    string
		indexedAt   int64
	)
	dest := []interface{}{
		&entry.ID, &sourceType, &entry.SourceID, &entry.Title, &entry.Body, &entry.Excerpt,
		&entry.Keywords, &entry.Category, &status, &entry.AuthorID, &publishedAt,
		&entry.RelevanceBoost, &metadata, &indexedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	entry.SourceType = types.SourceKind(sourceType)
	entry.Status = types.Status(status)
	if publishedAt.Valid {
		t := time.Unix(publishedAt.Int64, 0).UTC()
		entry.PublishedAt = &t
	}
	entry.IndexedAt = time.Unix(indexedAt, 0).UTC()
	if entry.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, fmt.Errorf("entry %d: %w", entry.ID, err)
	}
	return &entry, nil
}

// Status operations

// GetStatus reports index counts. now determines which entries count as visible.
func (s *SQLiteStorage) GetStatus(ctx context.Context, now time.Time) (*IndexStatus, error) {
	status := &IndexStatus{ByType: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT source_type, COUNT(*) FROM search_index GROUP BY source_type`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		status.ByType[kind] = count
		status.IndexedCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM search_index
		WHERE status = ? AND (published_at IS NULL OR published_at <= ?)
	`, string(types.StatusPublished), now.Unix()).Scan(&status.VisibleCount)
	if err != nil {
		return nil, err
	}

	var lastIndexed sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(indexed_at) FROM search_index`).Scan(&lastIndexed); err != nil {
		return nil, err
	}
	if lastIndexed.Valid {
		status.LastIndexedAt = time.Unix(lastIndexed.Int64, 0).UTC()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_query_logs`).Scan(&status.QueryLogCount); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	version, err := schemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	return status, nil
}

// RollbackSchema reverts the most recent schema migration and returns its version
func (s *SQLiteStorage) RollbackSchema(ctx context.Context) (string, error) {
	return RollbackMigration(ctx, s.db)
}

// helpers

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func encodeMetadata(m types.Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string) (types.Metadata, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var m types.Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

// contentHash fingerprints every indexed field so unchanged upserts are no-ops
func contentHash(e *types.Entry, metadataJSON string) [32]byte {
	published := ""
	if e.PublishedAt != nil {
		published = e.PublishedAt.UTC().Format(time.RFC3339)
	}
	fields := []string{
		string(e.SourceType), e.SourceID, e.Title, e.Body, e.Excerpt, e.Keywords,
		e.Category, string(e.Status), e.AuthorID, published,
		fmt.Sprintf("%g", e.RelevanceBoost), metadataJSON,
	}
	return sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
}
