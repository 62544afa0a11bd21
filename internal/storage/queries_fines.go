package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caja/internal/core"
)

const fineColumns = `id, member_id, group_id, amount_cents, reason, note, attendance_id,
	status, created_at, paid_at`

func scanFine(row rowScanner) (core.Fine, error) {
	var (
		f            core.Fine
		attendanceID sql.NullInt64
		paidAt       sql.NullTime
	)
	err := row.Scan(&f.ID, &f.MemberID, &f.GroupID, &f.Amount.Cents, &f.Reason, &f.Note,
		&attendanceID, &f.Status, &f.CreatedAt, &paidAt)
	if attendanceID.Valid {
		id := attendanceID.Int64
		f.AttendanceID = &id
	}
	f.PaidAt = nullTime(paidAt)
	return f, err
}

func (q *Queries) InsertFine(ctx context.Context, f core.Fine, actor string) (int64, error) {
	var attendanceID sql.NullInt64
	if f.AttendanceID != nil {
		attendanceID = sql.NullInt64{Int64: *f.AttendanceID, Valid: true}
	}
	res, err := q.db.ExecContext(ctx, `INSERT INTO fines
		(member_id, group_id, amount_cents, reason, note, attendance_id, status, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?)`,
		f.MemberID, f.GroupID, f.Amount.Cents, f.Reason, f.Note, attendanceID, actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert fine: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetFine(ctx context.Context, id int64) (core.Fine, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = ?`, id)
	f, err := scanFine(row)
	if err != nil {
		return f, notFound(err, fmt.Sprintf("fine %d", id))
	}
	return f, nil
}

// MarkFinePaid reports false when the fine was not pending.
func (q *Queries) MarkFinePaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE fines SET status = 'paid', paid_at = ? WHERE id = ? AND status = 'pending'`, at, id)
	if err != nil {
		return false, fmt.Errorf("mark fine paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) listFines(ctx context.Context, where string, args ...any) ([]core.Fine, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+fineColumns+` FROM fines WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	defer rows.Close()

	var fines []core.Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}

func (q *Queries) ListPendingFinesForMember(ctx context.Context, memberID int64) ([]core.Fine, error) {
	return q.listFines(ctx, `member_id = ? AND status = 'pending'`, memberID)
}

// ListFinesForMember returns every fine of the member, paid ones included.
func (q *Queries) ListFinesForMember(ctx context.Context, memberID int64) ([]core.Fine, error) {
	return q.listFines(ctx, `member_id = ?`, memberID)
}

func (q *Queries) ListPendingFinesForGroup(ctx context.Context, groupID int64) ([]core.Fine, error) {
	return q.listFines(ctx, `group_id = ? AND status = 'pending'`, groupID)
}

// FinesCollected sums the amounts of paid fines in the group.
func (q *Queries) FinesCollected(ctx context.Context, groupID int64) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM fines WHERE group_id = ? AND status = 'paid'`, groupID).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("fines collected: %w", err)
	}
	return cents, nil
}

func (q *Queries) InsertAttendance(ctx context.Context, r core.AttendanceRecord, actor string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO attendance_records
		(session_id, member_id, group_id, outcome, actor, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.MemberID, r.GroupID, r.Outcome, actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert attendance: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) AttendanceExists(ctx context.Context, sessionID string, memberID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE session_id = ? AND member_id = ?`,
		sessionID, memberID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) ListAttendance(ctx context.Context, groupID int64, sessionID string) ([]core.AttendanceRecord, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, session_id, member_id, group_id, outcome, created_at
		FROM attendance_records WHERE group_id = ? AND session_id = ? ORDER BY member_id`, groupID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []core.AttendanceRecord
	for rows.Next() {
		var r core.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.MemberID, &r.GroupID, &r.Outcome, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
