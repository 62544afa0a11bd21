package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"caja/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Options tune how write transactions wait for the database lock.
type Options struct {
	// BusyTimeout bounds a single wait on the SQLite write lock.
	BusyTimeout time.Duration
	// TxTimeout bounds a whole InTx call, retries included.
	TxTimeout time.Duration
	// MaxAttempts is how many times a busy transaction is started.
	MaxAttempts int
	// MaxOpenConns caps the pool; readers run concurrently under WAL.
	MaxOpenConns int
}

func DefaultOptions() Options {
	return Options{
		BusyTimeout:  2 * time.Second,
		TxTimeout:    10 * time.Second,
		MaxAttempts:  5,
		MaxOpenConns: 8,
	}
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	opts    Options
}

// DSN builds the connection string used by the repository and migrations.
// Write transactions start with BEGIN IMMEDIATE so the write lock is held
// from the first read of a balance until commit.
func DSN(dbPath string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_time_format=sqlite&_txlock=immediate",
		dbPath, busyTimeout.Milliseconds())
}

func NewSQLiteRepository(dbPath string, opts Options) (*SQLiteRepository, error) {
	def := DefaultOptions()
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = def.BusyTimeout
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = def.TxTimeout
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.MaxOpenConns < 1 {
		opts.MaxOpenConns = def.MaxOpenConns
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath, opts.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		opts:    opts,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Queries returns a handle for read-only queries outside a transaction.
func (r *SQLiteRepository) Queries() *Queries {
	return r.queries
}

// InTx runs fn in a write transaction. Either every write fn makes commits
// or none does. Lock contention is retried with exponential backoff; once
// the attempts or TxTimeout run out the result is core.ErrContention.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(q *Queries) error) error {
	txCtx, cancel := context.WithTimeout(ctx, r.opts.TxTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-txCtx.Done():
				return r.contention(ctx, lastErr)
			case <-time.After(txBackoff(attempt)):
			}
		}

		err := r.runTx(txCtx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsBusy(err) && !timedOut(txCtx, err) {
			return err
		}
		lastErr = err
		slog.DebugContext(ctx, "Write transaction contended", "attempt", attempt+1, "error", err)
		if txCtx.Err() != nil {
			break
		}
	}
	return r.contention(ctx, lastErr)
}

func (r *SQLiteRepository) contention(ctx context.Context, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.WarnContext(ctx, "Write transaction gave up on lock contention",
		"max_attempts", r.opts.MaxAttempts, "tx_timeout", r.opts.TxTimeout, "error", cause)
	return fmt.Errorf("%w (last error: %v)", core.ErrContention, cause)
}

func (r *SQLiteRepository) runTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// timedOut reports whether err comes from txCtx running out rather than
// from fn itself. Errors fn returns on its own pass through unchanged even
// when the deadline has passed by the time they surface.
func timedOut(txCtx context.Context, err error) bool {
	if txCtx.Err() == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_INTERRUPT
}

// txBackoff is 10ms·2^n capped at 500ms.
func txBackoff(attempt int) time.Duration {
	d := 10 * time.Millisecond << uint(attempt-1)
	if d > 500*time.Millisecond || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// IsBusy reports whether err is SQLite lock contention.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY conflict.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// PendingEvents returns outbox events waiting to be published.
func (r *SQLiteRepository) PendingEvents(ctx context.Context, limit int) ([]core.Event, error) {
	events, err := r.queries.PendingEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending events: %w", err)
	}
	return events, nil
}

// MarkPublished marks an event as delivered to the broker.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id string) error {
	if err := r.queries.MarkEventPublished(ctx, id, time.Now().UTC()); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Event marked as published", "event_id", id)
	return nil
}

// MarkPublishError records a failed delivery attempt.
func (r *SQLiteRepository) MarkPublishError(ctx context.Context, id string, cause error, maxAttempts int) error {
	if err := r.queries.MarkEventFailed(ctx, id, cause.Error(), maxAttempts); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Event publish failed", "event_id", id, "error", cause)
	return nil
}

// RetryFailed requeues events that exhausted their attempts.
func (r *SQLiteRepository) RetryFailed(ctx context.Context) (int64, error) {
	return r.queries.RetryFailedEvents(ctx)
}

// CleanupPublished removes delivered events older than age.
func (r *SQLiteRepository) CleanupPublished(ctx context.Context, age time.Duration) (int64, error) {
	return r.queries.PurgePublishedEvents(ctx, time.Now().UTC().Add(-age))
}

// OutboxStats reports the number of events per outbox status.
func (r *SQLiteRepository) OutboxStats(ctx context.Context) (map[string]int64, error) {
	return r.queries.EventCounts(ctx)
}
