package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Advisory lock keys shared by every process attached to one Postgres database.
const (
	LockMigrations int64 = 0x4c41_0001
	LockReclaim    int64 = 0x4c41_0002
)

const advisoryUnlockTimeout = 5 * time.Second

// AdvisoryLock serializes work across processes through pg_advisory_lock.
// Lock and unlock run on one dedicated connection because advisory locks
// belong to the session that took them.
type AdvisoryLock struct {
	db  *sql.DB
	key int64
}

// NewAdvisoryLock returns a lock for key on db.
func NewAdvisoryLock(db *sql.DB, key int64) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: key}
}

// Do blocks until the lock is held, then runs fn.
func (l *AdvisoryLock) Do(ctx context.Context, fn func(context.Context) error) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("advisory lock connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock %d: %w", l.key, err)
	}
	fnErr := fn(ctx)
	if err := l.release(conn); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// TryDo runs fn only when the lock is free and reports whether it ran.
func (l *AdvisoryLock) TryDo(ctx context.Context, fn func(context.Context) error) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock connection: %w", err)
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to try advisory lock %d: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}
	fnErr := fn(ctx)
	if err := l.release(conn); err != nil && fnErr == nil {
		return true, err
	}
	return true, fnErr
}

func (l *AdvisoryLock) release(conn *sql.Conn) error {
	// The caller's context may already be cancelled; the unlock must still run.
	ctx, cancel := context.WithTimeout(context.Background(), advisoryUnlockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("failed to release advisory lock %d: %w", l.key, err)
	}
	return nil
}
