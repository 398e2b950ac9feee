package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAdvisoryLockDoRunsInsideLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(LockMigrations).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(LockMigrations).WillReturnResult(sqlmock.NewResult(0, 0))

	ran := false
	if err := NewAdvisoryLock(db, LockMigrations).Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Fatal("callback did not run")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvisoryLockDoAcquireError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(LockMigrations).WillReturnError(sql.ErrConnDone)

	err = NewAdvisoryLock(db, LockMigrations).Do(context.Background(), func(context.Context) error {
		t.Fatal("callback must not run without the lock")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "failed to acquire advisory lock") {
		t.Fatalf("expected acquire error, got %v", err)
	}
}

func TestAdvisoryLockDoReleasesOnCallbackError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(LockReclaim).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(LockReclaim).WillReturnResult(sqlmock.NewResult(0, 0))

	boom := errors.New("boom")
	if err := NewAdvisoryLock(db, LockReclaim).Do(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvisoryLockTryDoSkipsWhenHeld(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").WithArgs(LockReclaim).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ran, err := NewAdvisoryLock(db, LockReclaim).TryDo(context.Background(), func(context.Context) error {
		t.Fatal("callback must not run while another session holds the lock")
		return nil
	})
	if err != nil || ran {
		t.Fatalf("expected skip, got ran=%v err=%v", ran, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvisoryLockTryDoRunsWhenFree(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").WithArgs(LockReclaim).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(LockReclaim).WillReturnResult(sqlmock.NewResult(0, 0))

	ran, err := NewAdvisoryLock(db, LockReclaim).TryDo(context.Background(), func(context.Context) error { return nil })
	if err != nil || !ran {
		t.Fatalf("expected run, got ran=%v err=%v", ran, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
