// Package storage persists the catalog, voting periods and submissions in a SQL database.
//
// The same portable schema runs on SQLite (embedded, the default) and Postgres.
// Timestamps are stored as unix milliseconds.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// batchSize bounds the number of bound parameters in IN lists.
	batchSize = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_entries (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		published_at BIGINT NOT NULL,
		cover_url    TEXT NOT NULL DEFAULT '',
		score        DOUBLE PRECISION NOT NULL DEFAULT 0,
		synced_at    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_score ON catalog_entries (score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_title ON catalog_entries (title)`,
	`CREATE TABLE IF NOT EXISTS catalog_tags (
		entry_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		tag      TEXT NOT NULL,
		PRIMARY KEY (entry_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_tags_tag ON catalog_tags (tag)`,
	`CREATE TABLE IF NOT EXISTS periods (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		start_at   BIGINT NOT NULL,
		end_at     BIGINT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id          TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		user_agent  TEXT NOT NULL DEFAULT '',
		period_id   TEXT NOT NULL,
		gender      TEXT NOT NULL,
		age         INTEGER NOT NULL,
		created_at  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_fingerprint_period ON submissions (fingerprint, period_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_period ON submissions (period_id)`,
	`CREATE TABLE IF NOT EXISTS submission_choices (
		submission_id TEXT NOT NULL,
		category      TEXT NOT NULL,
		position      INTEGER NOT NULL,
		entry_id      TEXT NOT NULL,
		PRIMARY KEY (submission_id, category, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submission_choices_category ON submission_choices (category, entry_id)`,
}

// querier is the subset of *sql.DB and *sql.Tx the repositories rely on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options selects the database backend.
type Options struct {
	Driver string
	DSN    string
}

// Store implements every storage port over one *sql.DB.
type Store struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger
}

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	var (
		driverName  string
		placeholder sq.PlaceholderFormat
	)
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		driverName, placeholder = "sqlite", sq.Question
		if dir := filepath.Dir(opts.DSN); opts.DSN != "" && !strings.HasPrefix(opts.DSN, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	case DriverPostgres:
		driverName, placeholder = "pgx", sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(driverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:    time.Now,
		logger: logger,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.debug("database ready", "driver", driverName)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func chunks(ids []string) [][]string {
	var out [][]string
	for i := 0; i < len(ids); i += batchSize {
		out = append(out, ids[i:min(i+batchSize, len(ids))])
	}
	return out
}

func (s *Store) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
