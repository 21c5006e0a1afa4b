package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy text", errors.New("SQLITE_BUSY: database busy"), true},
		{"locked text", fmt.Errorf("insert: %w", errors.New("database is locked")), true},
		{"other", errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConflict(tt.err); got != tt.want {
				t.Errorf("isConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryWrite(t *testing.T) {
	busy := errors.New("database is locked")

	calls := 0
	err := retryWrite(context.Background(), "test", func() error {
		calls++
		if calls < 2 {
			return busy
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("recovering write: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = retryWrite(context.Background(), "test", func() error {
		calls++
		return busy
	})
	if !errors.Is(err, busy) || calls != writeAttempts {
		t.Errorf("exhausted write: err=%v calls=%d", err, calls)
	}

	calls = 0
	fatal := errors.New("constraint")
	err = retryWrite(context.Background(), "test", func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Errorf("non-conflict write retried: err=%v calls=%d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retryWrite(ctx, "test", func() error { return busy })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("canceled write: err=%v", err)
	}
}
