package storage

import (
	"context"
	"fmt"
	"time"

	"caja/internal/core"
)

func (q *Queries) InsertEvent(ctx context.Context, ev core.Event) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO ledger_events (id, group_id, kind, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, ev.ID, ev.GroupID, ev.Kind, ev.Actor, string(ev.Payload), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// PendingEvents returns unpublished events oldest first.
func (q *Queries) PendingEvents(ctx context.Context, limit int) ([]core.Event, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, group_id, kind, actor, payload, created_at, attempts
		FROM ledger_events WHERE status = 'pending' ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		var (
			ev      core.Event
			payload string
		)
		if err := rows.Scan(&ev.ID, &ev.GroupID, &ev.Kind, &ev.Actor, &payload, &ev.CreatedAt, &ev.Attempts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = []byte(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (q *Queries) MarkEventPublished(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = 'published', published_at = ?, last_error = '' WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

// MarkEventFailed records a publish failure. After maxAttempts the event is
// parked as failed and no longer retried.
func (q *Queries) MarkEventFailed(ctx context.Context, id string, cause string, maxAttempts int) error {
	_, err := q.db.ExecContext(ctx, `UPDATE ledger_events SET attempts = attempts + 1, last_error = ?,
		status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END WHERE id = ?`,
		cause, maxAttempts, id)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

// EventCounts reports how many events sit in each outbox status.
func (q *Queries) EventCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ledger_events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("event counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// RetryFailedEvents puts parked events back in the pending queue.
func (q *Queries) RetryFailedEvents(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = 'pending', attempts = 0 WHERE status = 'failed'`)
	if err != nil {
		return 0, fmt.Errorf("retry failed events: %w", err)
	}
	return res.RowsAffected()
}

// PurgePublishedEvents deletes events published before cutoff.
func (q *Queries) PurgePublishedEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM ledger_events WHERE status = 'published' AND published_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge published events: %w", err)
	}
	return res.RowsAffected()
}
