package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Store owns the database handle. Every repository call acquires its session
// from here and releases it before returning.
type Store struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to Postgres (postgres:// or postgresql:// DSNs) through a pgx
// pool, or to SQLite for sqlite: and file: DSNs.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if isPostgres(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

// NewStore wraps an already opened database.
func NewStore(db *stdsql.DB, dialectName string, logger *slog.Logger) *Store {
	return &Store{
		drv:    entsql.OpenDB(dialectName, db),
		logger: logger,
	}
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database url", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "receipts-api"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := dialContext(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	store := NewStore(db, dialect.Postgres, logger)
	store.pool = pool

	logger.Info("successfully connected to database")
	return store, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	dsn := sqliteDSN(cfg.DSN)
	logger.Info("connecting to database", "dialect", dialect.SQLite, "dsn", dsn)
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	dialCtx, cancel := dialContext(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(dialCtx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return NewStore(db, dialect.SQLite, logger), nil
}

// sqliteDSN turns sqlite:<path> into a modernc DSN with a busy timeout and a
// sortable time format.
func sqliteDSN(dsn string) string {
	path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func dialContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Dialect returns the SQL dialect name of the underlying database.
func (s *Store) Dialect() string {
	return s.drv.Dialect()
}

// Close closes the database connections gracefully
func (s *Store) Close() {
	s.logger.Info("closing database connections")
	if err := s.drv.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
}

// HealthCheck pings the database, bounded by timeout when positive.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.drv.DB().PingContext(ctx)
}

// Ping satisfies health probes that carry their own deadline.
func (s *Store) Ping(ctx context.Context) error {
	return s.HealthCheck(ctx, 0)
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// withTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx dialect.Tx) error) (err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.logger.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
