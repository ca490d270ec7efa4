// Package sqlstore implements the repository interfaces on a relational
// database: SQLite (modernc.org/sqlite, the default) or PostgreSQL (lib/pq).
//
// Every operation runs on a connection borrowed from a bounded Pool. Reads
// use Pool.WithConn; composite writes use Pool.WithTx so the parent row and
// all of its children commit or roll back together. Statements are written
// with ? placeholders and rebound for the active dialect.
package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the database engine.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// ParseDialect accepts the DB_DRIVER spellings.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	}
	return "", fmt.Errorf("sqlstore: unknown driver %q", s)
}

// sqlitePragmas are applied by the driver on every new connection, so they
// hold for the whole pool rather than whichever connection ran them first.
var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
	"_time_format=sqlite",
}

// Config describes where the store lives and how many connections it may hold.
type Config struct {
	Dialect  Dialect
	DSN      string
	MaxConns int
}

// Store implements every repository interface.
type Store struct {
	pool    *Pool
	dialect Dialect
	logger  *slog.Logger
}

// Open migrates the schema and returns a ready Store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, observer PoolObserver) (*Store, error) {
	dsn := cfg.DSN
	if cfg.Dialect == SQLite {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(dsn)
	}

	if err := migrateUp(cfg.Dialect, dsn); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	logger.Info("database ready",
		slog.String("driver", string(cfg.Dialect)),
		slog.Int("maxConns", cfg.MaxConns),
	)

	return &Store{
		pool:    NewPool(db, cfg.MaxConns, logger, observer),
		dialect: cfg.Dialect,
		logger:  logger,
	}, nil
}

// New wraps an existing handle without migrating. Tests use it with sqlmock.
func New(db *sqlx.DB, dialect Dialect, maxConns int, logger *slog.Logger) *Store {
	return &Store{
		pool:    NewPool(db, maxConns, logger, nil),
		dialect: dialect,
		logger:  logger,
	}
}

// Pool exposes the connection pool (stats, health checks).
func (s *Store) Pool() *Pool {
	return s.pool
}

// Ping checks the database through the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return conn.PingContext(ctx)
	})
}

func (s *Store) Close() error {
	return s.pool.DB().Close()
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(sqlitePragmas, "&")
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlstore: creating database directory %s: %w", dir, err)
	}
	return nil
}

// querier is satisfied by *sqlx.Conn and *sqlx.Tx, so read helpers can run
// either standalone or inside a writer's transaction.
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

var (
	_ querier = (*sqlx.Conn)(nil)
	_ querier = (*sqlx.Tx)(nil)
)
