package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// isConflict reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// their extended codes.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryWrite runs fn until it succeeds, fails with a non-conflict error, or
// runs out of attempts. Delays double from writeBaseDelay.
func retryWrite(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < writeAttempts; i++ {
		if err = fn(); err == nil || !isConflict(err) || i == writeAttempts-1 {
			return err
		}
		delay := writeBaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
