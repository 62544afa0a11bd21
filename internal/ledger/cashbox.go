// Package ledger holds the engines that own the group's money: the cash box,
// savings, fines, loans and cycles. Engines are stateless values over a
// transaction-scoped *storage.Queries; atomicity comes from the caller's
// transaction, never from the engines themselves.
package ledger

import (
	"context"
	"fmt"
	"time"

	"caja/internal/core"
	"caja/internal/storage"
)

// Source row kinds a cash entry can reference. The (ref type, ref id) pair
// is unique, so each savings entry, loan, payment or fine moves cash once.
const (
	RefSavings = "savings_entry"
	RefLoan    = "loan"
	RefPayment = "payment"
	RefFine    = "fine"
)

// CashBox is the append-only record of money entering and leaving a group.
type CashBox struct {
	q *storage.Queries
}

func NewCashBox(q *storage.Queries) CashBox {
	return CashBox{q: q}
}

// Record appends one immutable entry.
func (c CashBox) Record(ctx context.Context, actor core.Actor, groupID int64, dir core.Direction,
	amount core.Money, reason, refType string, refID int64) (int64, error) {
	if err := amount.Validate(); err != nil {
		return 0, err
	}
	if !dir.Valid() {
		return 0, fmt.Errorf("%w: direction %q", core.ErrInvalidInput, dir)
	}
	id, err := c.q.InsertCashEntry(ctx, core.CashEntry{
		GroupID:   groupID,
		Direction: dir,
		Amount:    amount,
		Reason:    reason,
		RefType:   refType,
		RefID:     refID,
		Actor:     actor.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("record %s of %s: %w", dir, amount, err)
	}
	return id, nil
}

// Balance is Σ inflows − Σ outflows over the group's entries.
func (c CashBox) Balance(ctx context.Context, groupID int64) (core.Money, error) {
	cents, err := c.q.CashBalance(ctx, groupID)
	if err != nil {
		return core.Zero, err
	}
	return core.Cents(cents), nil
}

// History lists entries newest first. A zero since means from the
// beginning; limit <= 0 returns everything.
func (c CashBox) History(ctx context.Context, groupID int64, since time.Time, limit int) ([]core.CashEntry, error) {
	if _, err := c.q.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	entries, err := c.q.ListCashEntries(ctx, groupID, since, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.CashEntry{}
	}
	return entries, nil
}
