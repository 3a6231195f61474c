package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Denormalized search documents, one per source record
CREATE TABLE IF NOT EXISTS search_index (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_type TEXT NOT NULL,
    source_id TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    excerpt TEXT NOT NULL DEFAULT '',
    keywords TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    author_id TEXT NOT NULL DEFAULT '',
    published_at INTEGER,
    relevance_boost REAL NOT NULL DEFAULT 1.0,
    metadata TEXT NOT NULL DEFAULT '{}',
    content_hash BLOB NOT NULL,
    indexed_at INTEGER NOT NULL,
    UNIQUE(source_type, source_id)
);

CREATE INDEX IF NOT EXISTS idx_search_index_type ON search_index(source_type);
CREATE INDEX IF NOT EXISTS idx_search_index_category ON search_index(category);
CREATE INDEX IF NOT EXISTS idx_search_index_status ON search_index(status);
CREATE INDEX IF NOT EXISTS idx_search_index_author ON search_index(author_id);
CREATE INDEX IF NOT EXISTS idx_search_index_published ON search_index(published_at);
CREATE INDEX IF NOT EXISTS idx_search_index_visible ON search_index(status, published_at);

-- Metadata terms for filtering and faceting
CREATE TABLE IF NOT EXISTS search_index_metadata (
    entry_id INTEGER NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    kind TEXT NOT NULL,
    PRIMARY KEY (entry_id, key, value),
    FOREIGN KEY (entry_id) REFERENCES search_index(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_search_index_metadata_kv ON search_index_metadata(key, value);

-- Full-text search over the weighted text fields
CREATE VIRTUAL TABLE IF NOT EXISTS search_index_fts USING fts5(
    title, body, excerpt, keywords,
    content='search_index',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS search_index_ai AFTER INSERT ON search_index BEGIN
    INSERT INTO search_index_fts(rowid, title, body, excerpt, keywords)
    VALUES (new.id, new.title, new.body, new.excerpt, new.keywords);
END;

CREATE TRIGGER IF NOT EXISTS search_index_ad AFTER DELETE ON search_index BEGIN
    INSERT INTO search_index_fts(search_index_fts, rowid, title, body, excerpt, keywords)
    VALUES ('delete', old.id, old.title, old.body, old.excerpt, old.keywords);
END;

CREATE TRIGGER IF NOT EXISTS search_index_au AFTER UPDATE ON search_index BEGIN
    INSERT INTO search_index_fts(search_index_fts, rowid, title, body, excerpt, keywords)
    VALUES ('delete', old.id, old.title, old.body, old.excerpt, old.keywords);
    INSERT INTO search_index_fts(rowid, title, body, excerpt, keywords)
    VALUES (new.id, new.title, new.body, new.excerpt, new.keywords);
END;

-- Search analytics
CREATE TABLE IF NOT EXISTS search_query_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query TEXT NOT NULL,
    filters TEXT NOT NULL DEFAULT '{}',
    mode TEXT NOT NULL DEFAULT '',
    result_count INTEGER NOT NULL DEFAULT 0,
    execution_time_ms INTEGER NOT NULL DEFAULT 0,
    user_id TEXT NOT NULL DEFAULT '',
    ip_hash TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    searched_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_query_logs_searched ON search_query_logs(searched_at);
CREATE INDEX IF NOT EXISTS idx_search_query_logs_query ON search_query_logs(query COLLATE NOCASE);
`

const migrationV1Down = `
-- Drop all tables in reverse order of dependencies
DROP TRIGGER IF EXISTS search_index_au;
DROP TRIGGER IF EXISTS search_index_ad;
DROP TRIGGER IF EXISTS search_index_ai;

DROP TABLE IF EXISTS search_query_logs;
DROP TABLE IF EXISTS search_index_fts;
DROP TABLE IF EXISTS search_index_metadata;
DROP TABLE IF EXISTS search_index;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration reverts the highest applied migration and returns its version.
// Reverting the first migration leaves an empty database.
func RollbackMigration(ctx context.Context, db *sql.DB) (string, error) {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return "", err
	}
	if current.Equal(noSchema) {
		return "", ErrNoMigrations
	}

	var migration *Migration
	for i := range AllMigrations {
		if v, err := semver.NewVersion(AllMigrations[i].Version); err == nil && v.Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return "", fmt.Errorf("migration %s not found", current.Original())
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	// The record goes first since the first migration's Down drops schema_version itself
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return "", fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}
	if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
		return "", fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit rollback of %s: %w", migration.Version, err)
	}
	return migration.Version, nil
}

// ErrNoMigrations is returned when rolling back a database without an applied schema
var ErrNoMigrations = errors.New("no migrations to roll back")

var noSchema = semver.MustParse("0.0.0")

// schemaVersion returns the highest recorded schema version, or 0.0.0 for a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return noSchema, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := noSchema
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}
