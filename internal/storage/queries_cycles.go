package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"caja/internal/core"
)

const cycleColumns = `id, group_id, start_date, end_date, status, net_profit_cents, closed_at`

func scanCycle(row rowScanner) (core.Cycle, error) {
	var (
		c         core.Cycle
		netProfit sql.NullInt64
		closedAt  sql.NullTime
	)
	err := row.Scan(&c.ID, &c.GroupID, &c.StartDate.Time, &c.EndDate.Time, &c.Status, &netProfit, &closedAt)
	if netProfit.Valid {
		m := core.Cents(netProfit.Int64)
		c.NetProfit = &m
	}
	c.ClosedAt = nullTime(closedAt)
	return c, err
}

func (q *Queries) InsertCycle(ctx context.Context, c core.Cycle, actor string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO cycles
		(group_id, start_date, end_date, status, actor, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.GroupID, c.StartDate.Time, c.EndDate.Time, c.Status, actor, q.now())
	if err != nil {
		return 0, fmt.Errorf("insert cycle: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetCycle(ctx context.Context, id int64) (core.Cycle, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = ?`, id)
	c, err := scanCycle(row)
	if err != nil {
		return c, notFound(err, fmt.Sprintf("cycle %d", id))
	}
	return c, nil
}

// OpenCycleForGroup returns the group's planned or active cycle, if any.
func (q *Queries) OpenCycleForGroup(ctx context.Context, groupID int64) (core.Cycle, bool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles
		WHERE group_id = ? AND status IN ('planned', 'active') ORDER BY id LIMIT 1`, groupID)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("open cycle: %w", err)
	}
	return c, true, nil
}

// TransitionCycle moves a cycle between statuses. It reports false when the
// cycle was not in the expected status.
func (q *Queries) TransitionCycle(ctx context.Context, id int64, from, to core.CycleStatus) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE cycles SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n == 1, nil
}

// DuePlannedCycles lists planned cycles whose start date is on or before asOf.
func (q *Queries) DuePlannedCycles(ctx context.Context, asOf time.Time) ([]core.Cycle, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycles
		WHERE status = 'planned' AND start_date <= ? ORDER BY start_date, id`, asOf)
	if err != nil {
		return nil, fmt.Errorf("due planned cycles: %w", err)
	}
	defer rows.Close()

	var out []core.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CloseCycle freezes the closing figures and per-member payouts.
func (q *Queries) CloseCycle(ctx context.Context, r core.ClosureReport, actor string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE cycles SET status = 'closed', cash_balance_cents = ?,
		total_savings_cents = ?, net_profit_cents = ?, no_distribution = ?, closed_at = ?, actor = ?
		WHERE id = ? AND status = 'active'`,
		r.CashBalance.Cents, r.TotalSavings.Cents, r.NetProfit.Cents, r.NoDistribution,
		r.ClosedAt, actor, r.CycleID)
	if err != nil {
		return fmt.Errorf("close cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cycle %d is not active: %w", r.CycleID, core.ErrInvalidTransition)
	}

	for _, p := range r.PerMember {
		if _, err := q.db.ExecContext(ctx, `INSERT INTO cycle_payouts
			(cycle_id, member_id, savings_cents, savings_share, profit_share_cents, payout_cents)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.CycleID, p.MemberID, p.Savings.Cents, p.SavingsShare, p.ProfitShare.Cents, p.PayoutTotal.Cents); err != nil {
			return fmt.Errorf("insert payout for member %d: %w", p.MemberID, err)
		}
	}
	return nil
}

// GetClosureReport rebuilds the report frozen by CloseCycle.
func (q *Queries) GetClosureReport(ctx context.Context, cycleID int64) (core.ClosureReport, error) {
	var (
		r        core.ClosureReport
		status   core.CycleStatus
		cash     sql.NullInt64
		savings  sql.NullInt64
		profit   sql.NullInt64
		closedAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, `SELECT id, group_id, status, cash_balance_cents,
		total_savings_cents, net_profit_cents, no_distribution, closed_at FROM cycles WHERE id = ?`, cycleID).
		Scan(&r.CycleID, &r.GroupID, &status, &cash, &savings, &profit, &r.NoDistribution, &closedAt)
	if err != nil {
		return r, notFound(err, fmt.Sprintf("cycle %d", cycleID))
	}
	if status != core.CycleClosed {
		return r, fmt.Errorf("cycle %d has no closure report: %w", cycleID, core.ErrNotFound)
	}
	r.CashBalance = core.Cents(cash.Int64)
	r.TotalSavings = core.Cents(savings.Int64)
	r.NetProfit = core.Cents(profit.Int64)
	r.ClosedAt = closedAt.Time

	rows, err := q.db.QueryContext(ctx, `SELECT member_id, savings_cents, savings_share,
		profit_share_cents, payout_cents FROM cycle_payouts WHERE cycle_id = ? ORDER BY member_id`, cycleID)
	if err != nil {
		return r, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.MemberPayout
		if err := rows.Scan(&p.MemberID, &p.Savings.Cents, &p.SavingsShare,
			&p.ProfitShare.Cents, &p.PayoutTotal.Cents); err != nil {
			return r, fmt.Errorf("scan payout: %w", err)
		}
		r.PerMember = append(r.PerMember, p)
	}
	return r, rows.Err()
}
