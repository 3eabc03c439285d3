// Package postgres provides a Postgres-backed snapshot store.
//
// The snapshot semantics of the file store are preserved: SaveMentions
// replaces the whole collection inside one transaction, which is the
// single-writer serialization point for concurrent writers. Records are
// stored as JSONB documents so uninterpreted fields survive round trips.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

const crawlLogCap = 100

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists both collections as JSONB rows.
type Store struct {
	pool pgxPool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the two snapshot tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mentions (
	position integer PRIMARY KEY,
	doc jsonb NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS crawl_log (
	id bigserial PRIMARY KEY,
	entry jsonb NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// LoadMentions returns the stored collection in insertion order.
func (s *Store) LoadMentions(ctx context.Context) ([]monitor.Mention, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM mentions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []monitor.Mention
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		var m monitor.Mention
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("decode mention: %w", err)
		}
		mentions = append(mentions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return mentions, nil
}

// SaveMentions replaces the whole collection in one transaction.
func (s *Store) SaveMentions(ctx context.Context, mentions []monitor.Mention) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE mentions`); err != nil {
		return fmt.Errorf("truncate mentions: %w", err)
	}
	for i, m := range mentions {
		doc, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode mention %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO mentions (position, doc) VALUES ($1, $2)`, i, doc); err != nil {
			return fmt.Errorf("insert mention %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadCrawlLog returns the crawl history, oldest first.
func (s *Store) LoadCrawlLog(ctx context.Context) ([]monitor.CrawlLogEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT entry FROM crawl_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query crawl log: %w", err)
	}
	defer rows.Close()

	var entries []monitor.CrawlLogEntry
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan crawl log entry: %w", err)
		}
		var e monitor.CrawlLogEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decode crawl log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl log: %w", err)
	}
	return entries, nil
}

// AppendCrawlLog inserts one entry and trims rows beyond the newest hundred.
func (s *Store) AppendCrawlLog(ctx context.Context, entry monitor.CrawlLogEntry) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode crawl log entry: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `INSERT INTO crawl_log (entry) VALUES ($1)`, doc); err != nil {
		return fmt.Errorf("insert crawl log entry: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM crawl_log WHERE id NOT IN (SELECT id FROM crawl_log ORDER BY id DESC LIMIT $1)`,
		crawlLogCap); err != nil {
		return fmt.Errorf("trim crawl log: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}
