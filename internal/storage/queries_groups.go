package storage

import (
	"context"
	"fmt"

	"caja/internal/core"
)

const groupColumns = `id, name, interest_rate, fine_kind, fine_absent_cents, fine_excused_cents,
	fine_absent_rate, fine_excused_rate, fine_base_cents, rules, frequency, created_at`

func scanGroup(row rowScanner) (core.Group, error) {
	var g core.Group
	err := row.Scan(&g.ID, &g.Name, &g.InterestRate, &g.FinePolicy.Kind,
		&g.FinePolicy.Absent.Cents, &g.FinePolicy.Excused.Cents,
		&g.FinePolicy.AbsentRate, &g.FinePolicy.ExcusedRate, &g.FinePolicy.Base.Cents,
		&g.Rules, &g.Frequency, &g.CreatedAt)
	return g, err
}

func (q *Queries) CreateGroup(ctx context.Context, g core.Group) (int64, error) {
	p := g.FinePolicy
	res, err := q.db.ExecContext(ctx, `INSERT INTO groups (name, interest_rate, fine_kind,
		fine_absent_cents, fine_excused_cents, fine_absent_rate, fine_excused_rate,
		fine_base_cents, rules, frequency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.Name, g.InterestRate, p.Kind, p.Absent.Cents, p.Excused.Cents,
		p.AbsentRate, p.ExcusedRate, p.Base.Cents, g.Rules, g.Frequency, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetGroup(ctx context.Context, id int64) (core.Group, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		return g, notFound(err, fmt.Sprintf("group %d", id))
	}
	return g, nil
}

func (q *Queries) UpdateGroupPolicy(ctx context.Context, g core.Group) error {
	p := g.FinePolicy
	res, err := q.db.ExecContext(ctx, `UPDATE groups SET interest_rate = ?, fine_kind = ?,
		fine_absent_cents = ?, fine_excused_cents = ?, fine_absent_rate = ?,
		fine_excused_rate = ?, fine_base_cents = ?, rules = ? WHERE id = ?`,
		g.InterestRate, p.Kind, p.Absent.Cents, p.Excused.Cents, p.AbsentRate,
		p.ExcusedRate, p.Base.Cents, g.Rules, g.ID)
	if err != nil {
		return fmt.Errorf("update group policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %d: %w", g.ID, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) GroupHasClosedCycle(ctx context.Context, groupID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cycles WHERE group_id = ? AND status = 'closed'`, groupID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count closed cycles: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) CreateMember(ctx context.Context, m core.Member) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO members (group_id, name, external_id, created_at) VALUES (?, ?, ?, ?)`,
		m.GroupID, m.Name, m.ExternalID, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetMember(ctx context.Context, id int64) (core.Member, error) {
	var m core.Member
	err := q.db.QueryRowContext(ctx,
		`SELECT id, group_id, name, external_id, created_at FROM members WHERE id = ?`, id).
		Scan(&m.ID, &m.GroupID, &m.Name, &m.ExternalID, &m.CreatedAt)
	if err != nil {
		return m, notFound(err, fmt.Sprintf("member %d", id))
	}
	return m, nil
}

func (q *Queries) ListMembers(ctx context.Context, groupID int64) ([]core.Member, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, group_id, name, external_id, created_at FROM members WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Name, &m.ExternalID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberFootprint counts the rows that keep a member from being removed.
type MemberFootprint struct {
	SavingsEntries int64
	Loans          int64
	PendingFines   int64
	Attendance     int64
	PaidFines      int64
}

// Empty reports whether the member has no ledger rows at all.
func (f MemberFootprint) Empty() bool {
	return f.SavingsEntries == 0 && f.Loans == 0 && f.PendingFines == 0 &&
		f.Attendance == 0 && f.PaidFines == 0
}

func (q *Queries) MemberFootprint(ctx context.Context, memberID int64) (MemberFootprint, error) {
	var f MemberFootprint
	err := q.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM savings_entries WHERE member_id = ?1),
		(SELECT COUNT(*) FROM loans WHERE member_id = ?1),
		(SELECT COUNT(*) FROM fines WHERE member_id = ?1 AND status = 'pending'),
		(SELECT COUNT(*) FROM attendance_records WHERE member_id = ?1),
		(SELECT COUNT(*) FROM fines WHERE member_id = ?1 AND status = 'paid')`, memberID).
		Scan(&f.SavingsEntries, &f.Loans, &f.PendingFines, &f.Attendance, &f.PaidFines)
	if err != nil {
		return f, fmt.Errorf("member footprint: %w", err)
	}
	return f, nil
}

func (q *Queries) DeleteMember(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}
	return nil
}
