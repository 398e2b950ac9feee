package queue

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Store persists stories, scenes, options and jobs.
type Store struct {
	db         *sql.DB
	dialect    dialect
	location   string
	now        func() time.Time
	maxRetries int
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for every timestamp the store writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxRetries overrides the retry budget stamped on inserted jobs.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	migrateTimeout          = 2 * time.Minute
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open connects to the configured backend and applies pending migrations.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("queue: config is required")
	}
	d, ok := dialectFor(cfg.Database.Driver)
	if !ok {
		return nil, fmt.Errorf("queue: unsupported database driver %q", cfg.Database.Driver)
	}

	location := cfg.DatabaseDSN()
	dsn := location
	if d.name == config.DriverSQLite {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		dsn = sqliteDSN(location)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("queue: %s requires a dsn", d.name)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}
	if d.name == config.DriverSQLite {
		// One writer connection; WAL keeps other processes' readers unblocked.
		db.SetMaxOpenConns(1)
	}

	store := newStore(db, d, location, cfg.Retry.MaxRetries, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func newStore(db *sql.DB, d dialect, location string, maxRetries int, opts ...Option) *Store {
	store := &Store{
		db:         db,
		dialect:    d,
		location:   location,
		now:        time.Now,
		maxRetries: maxRetries,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// sqliteDSN appends the connection pragmas understood by modernc.org/sqlite.
// Immediate transactions take the write lock up front so two processes never
// deadlock upgrading read locks.
func sqliteDSN(path string) string {
	params := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func (s *Store) migrationProvider() (*goose.Provider, error) {
	sub, err := fs.Sub(migrationsFS, s.dialect.migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", s.dialect.name, err)
	}
	provider, err := goose.NewProvider(s.dialect.goose, s.db, sub)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

func (s *Store) migrate(ctx context.Context) error {
	provider, err := s.migrationProvider()
	if err != nil {
		return err
	}
	up := func(ctx context.Context) error {
		if _, err := provider.Up(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	}
	if s.dialect.name == config.DriverPostgres {
		return NewAdvisoryLock(s.db, LockMigrations).Do(ctx, up)
	}
	return retryOnBusy(ctx, func() error { return up(ctx) })
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the backend name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Now returns the store clock reading in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// TryExclusive runs fn unless another process holds the named lock. SQLite
// deployments are single-host and guarded by the daemon lock file, so fn
// always runs there.
func (s *Store) TryExclusive(ctx context.Context, key int64, fn func(context.Context) error) (bool, error) {
	ctx = ensureContext(ctx)
	if s.dialect.name != config.DriverPostgres {
		return true, fn(ctx)
	}
	return NewAdvisoryLock(s.db, key).TryDo(ctx, fn)
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.exec(ctx, s.db, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// withTx runs fn in a transaction, retrying the whole unit on SQLite busy
// errors. fn must only use tx; the SQLite pool has a single connection.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
