package storage

import (
	"context"
	"fmt"
	"time"

	"caja/internal/core"
)

const cashColumns = `id, group_id, direction, amount_cents, reason, ref_type, ref_id, actor, created_at`

func scanCashEntry(row rowScanner) (core.CashEntry, error) {
	var e core.CashEntry
	err := row.Scan(&e.ID, &e.GroupID, &e.Direction, &e.Amount.Cents, &e.Reason,
		&e.RefType, &e.RefID, &e.Actor, &e.CreatedAt)
	return e, err
}

func (q *Queries) InsertCashEntry(ctx context.Context, e core.CashEntry) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO cash_entries
		(group_id, direction, amount_cents, reason, ref_type, ref_id, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.GroupID, e.Direction, e.Amount.Cents, e.Reason, e.RefType, e.RefID, e.Actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert cash entry: %w", err)
	}
	return res.LastInsertId()
}

// CashBalance is Σ inflows − Σ outflows for the group.
func (q *Queries) CashBalance(ctx context.Context, groupID int64) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(CASE direction
		WHEN 'inflow' THEN amount_cents ELSE -amount_cents END), 0)
		FROM cash_entries WHERE group_id = ?`, groupID).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("cash balance: %w", err)
	}
	return cents, nil
}

// ListCashEntries returns the newest entries first. A zero since means no
// lower bound; limit <= 0 means no limit.
func (q *Queries) ListCashEntries(ctx context.Context, groupID int64, since time.Time, limit int) ([]core.CashEntry, error) {
	query := `SELECT ` + cashColumns + ` FROM cash_entries WHERE group_id = ?`
	args := []any{groupID}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cash entries: %w", err)
	}
	defer rows.Close()

	var entries []core.CashEntry
	for rows.Next() {
		e, err := scanCashEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cash entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) CashEntryForRef(ctx context.Context, refType string, refID int64) (core.CashEntry, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+cashColumns+` FROM cash_entries WHERE ref_type = ? AND ref_id = ?`, refType, refID)
	e, err := scanCashEntry(row)
	if err != nil {
		return e, notFound(err, fmt.Sprintf("cash entry for %s %d", refType, refID))
	}
	return e, nil
}

func (q *Queries) InsertSavingsEntry(ctx context.Context, s core.SavingsEntry) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO savings_entries
		(member_id, group_id, amount_cents, kind, session_ref, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.MemberID, s.GroupID, s.Amount.Cents, s.Kind, s.SessionRef, s.Actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert savings entry: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) SavingsTotalForMember(ctx context.Context, memberID int64) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM savings_entries WHERE member_id = ?`, memberID).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("member savings total: %w", err)
	}
	return cents, nil
}

func (q *Queries) SavingsTotalForGroup(ctx context.Context, groupID int64) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM savings_entries WHERE group_id = ?`, groupID).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("group savings total: %w", err)
	}
	return cents, nil
}

// MemberSavings is one member's accumulated savings.
type MemberSavings struct {
	MemberID int64
	Cents    int64
}

// SavingsByMember returns every member of the group with a positive balance,
// ordered by member id.
func (q *Queries) SavingsByMember(ctx context.Context, groupID int64) ([]MemberSavings, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT member_id, SUM(amount_cents) FROM savings_entries
		WHERE group_id = ? GROUP BY member_id HAVING SUM(amount_cents) > 0 ORDER BY member_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("savings by member: %w", err)
	}
	defer rows.Close()

	var out []MemberSavings
	for rows.Next() {
		var s MemberSavings
		if err := rows.Scan(&s.MemberID, &s.Cents); err != nil {
			return nil, fmt.Errorf("scan member savings: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) ListSavingsForMember(ctx context.Context, memberID int64) ([]core.SavingsEntry, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, member_id, group_id, amount_cents, kind,
		session_ref, actor, created_at FROM savings_entries WHERE member_id = ? ORDER BY id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list savings: %w", err)
	}
	defer rows.Close()

	var out []core.SavingsEntry
	for rows.Next() {
		var s core.SavingsEntry
		if err := rows.Scan(&s.ID, &s.MemberID, &s.GroupID, &s.Amount.Cents, &s.Kind,
			&s.SessionRef, &s.Actor, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan savings entry: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
