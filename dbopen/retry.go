package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// attempts bounds the retries of Exec and RunTx on SQLITE_BUSY. The backoff
// grows 100ms per attempt.
const attempts = 3

// IsBusy reports whether err is an SQLite BUSY or locked condition. Two
// framecap processes (a CLI run next to a running server) can share the
// preference database.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// Exec runs a statement, retrying while the database is busy.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retry(ctx, func() error {
		var err error
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// RunTx runs fn in a transaction, retrying the whole transaction while the
// database is busy. fn's error rolls back and is returned unwrapped.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retry(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

func retry(ctx context.Context, op func() error) error {
	for i := 1; ; i++ {
		err := op()
		if err == nil || !IsBusy(err) || i == attempts {
			return err
		}
		t := time.NewTimer(time.Duration(100*i) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dbopen: cancelled during retry: %w", ctx.Err())
		case <-t.C:
		}
	}
}
