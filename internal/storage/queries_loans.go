package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caja/internal/core"
)

const loanColumns = `id, member_id, group_id, principal_cents, interest_rate, term,
	originated_on, status, paid_at, actor, created_at`

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		l      core.Loan
		paidAt sql.NullTime
	)
	err := row.Scan(&l.ID, &l.MemberID, &l.GroupID, &l.Principal.Cents, &l.InterestRate,
		&l.Term, &l.OriginatedOn.Time, &l.Status, &paidAt, &l.Actor, &l.CreatedAt)
	l.PaidAt = nullTime(paidAt)
	return l, err
}

func (q *Queries) InsertLoan(ctx context.Context, l core.Loan) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO loans
		(member_id, group_id, principal_cents, interest_rate, term, originated_on, status, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'active', ?, ?)`,
		l.MemberID, l.GroupID, l.Principal.Cents, l.InterestRate, l.Term,
		l.OriginatedOn.Time, l.Actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert loan: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetLoan(ctx context.Context, id int64) (core.Loan, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if err != nil {
		return l, notFound(err, fmt.Sprintf("loan %d", id))
	}
	return l, nil
}

// MarkLoanPaid flips an active loan to paid. It reports false when the loan
// was not active.
func (q *Queries) MarkLoanPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE loans SET status = 'paid', paid_at = ? WHERE id = ? AND status = 'active'`, at, id)
	if err != nil {
		return false, fmt.Errorf("mark loan paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) listLoans(ctx context.Context, where string, args ...any) ([]core.Loan, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (q *Queries) ListActiveLoansForGroup(ctx context.Context, groupID int64) ([]core.Loan, error) {
	return q.listLoans(ctx, `group_id = ? AND status = 'active'`, groupID)
}

func (q *Queries) ListLoansForMember(ctx context.Context, memberID int64) ([]core.Loan, error) {
	return q.listLoans(ctx, `member_id = ?`, memberID)
}

func (q *Queries) InsertPayment(ctx context.Context, p core.Payment) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO payments
		(loan_id, capital_cents, interest_cents, paid_on, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.LoanID, p.Capital.Cents, p.Interest.Cents, p.PaidOn.Time, p.Actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListPayments(ctx context.Context, loanID int64) ([]core.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, loan_id, capital_cents, interest_cents,
		paid_on, actor, created_at FROM payments WHERE loan_id = ? ORDER BY id`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Capital.Cents, &p.Interest.Cents,
			&p.PaidOn.Time, &p.Actor, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PaymentTotals aggregates the payments recorded against one loan.
type PaymentTotals struct {
	Capital  int64
	Interest int64
	Count    int64
}

func (q *Queries) PaymentTotals(ctx context.Context, loanID int64) (PaymentTotals, error) {
	var t PaymentTotals
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(capital_cents), 0),
		COALESCE(SUM(interest_cents), 0), COUNT(*) FROM payments WHERE loan_id = ?`, loanID).
		Scan(&t.Capital, &t.Interest, &t.Count)
	if err != nil {
		return t, fmt.Errorf("payment totals: %w", err)
	}
	return t, nil
}

// InterestCollected sums interest over every payment of the group's loans.
func (q *Queries) InterestCollected(ctx context.Context, groupID int64) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(p.interest_cents), 0)
		FROM payments p JOIN loans l ON l.id = p.loan_id WHERE l.group_id = ?`, groupID).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("interest collected: %w", err)
	}
	return cents, nil
}
