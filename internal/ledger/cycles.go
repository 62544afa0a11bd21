package ledger

import (
	"context"
	"fmt"

	"caja/internal/core"
	"caja/internal/storage"
)

// Cycles drives Planned → Active → Closed. Closing only reads the other
// ledgers; it writes the cycle's status, its frozen figures and payouts.
type Cycles struct {
	q    *storage.Queries
	cash CashBox
}

func NewCycles(q *storage.Queries) Cycles {
	return Cycles{q: q, cash: NewCashBox(q)}
}

// Plan creates a Planned cycle. A group has at most one cycle that is not
// closed.
func (c Cycles) Plan(ctx context.Context, actor core.Actor, groupID int64, start, end core.Date) (core.Cycle, error) {
	cycle := core.Cycle{GroupID: groupID, StartDate: start, EndDate: end, Status: core.CyclePlanned}
	if err := cycle.Validate(); err != nil {
		return core.Cycle{}, err
	}
	if _, err := c.q.GetGroup(ctx, groupID); err != nil {
		return core.Cycle{}, err
	}
	open, found, err := c.q.OpenCycleForGroup(ctx, groupID)
	if err != nil {
		return core.Cycle{}, err
	}
	if found {
		return core.Cycle{}, fmt.Errorf("group %d already has %s cycle %d: %w", groupID, open.Status, open.ID, core.ErrInvalidTransition)
	}

	cycle.ID, err = c.q.InsertCycle(ctx, cycle, actor.String())
	if err != nil {
		return core.Cycle{}, err
	}
	return cycle, nil
}

func (c Cycles) Activate(ctx context.Context, cycleID int64) (core.Cycle, error) {
	cycle, err := c.q.GetCycle(ctx, cycleID)
	if err != nil {
		return core.Cycle{}, err
	}
	ok, err := c.q.TransitionCycle(ctx, cycleID, core.CyclePlanned, core.CycleActive)
	if err != nil {
		return core.Cycle{}, err
	}
	if !ok {
		return core.Cycle{}, fmt.Errorf("cycle %d is %s: %w", cycleID, cycle.Status, core.ErrInvalidTransition)
	}
	cycle.Status = core.CycleActive
	return cycle, nil
}

func (c Cycles) Get(ctx context.Context, cycleID int64) (core.Cycle, error) {
	return c.q.GetCycle(ctx, cycleID)
}

// CanClose reports what, if anything, blocks closing the cycle.
func (c Cycles) CanClose(ctx context.Context, cycleID int64) (core.ValidationResult, error) {
	cycle, err := c.q.GetCycle(ctx, cycleID)
	if err != nil {
		return core.ValidationResult{}, err
	}
	return c.validate(ctx, cycle.GroupID)
}

func (c Cycles) validate(ctx context.Context, groupID int64) (core.ValidationResult, error) {
	res := core.ValidationResult{Blockers: []core.Blocker{}}

	loans, err := c.q.ListActiveLoansForGroup(ctx, groupID)
	if err != nil {
		return res, err
	}
	if len(loans) > 0 {
		b := core.Blocker{Kind: core.ActiveLoansExist}
		for _, l := range loans {
			b.IDs = append(b.IDs, l.ID)
		}
		res.Blockers = append(res.Blockers, b)
	}

	fines, err := c.q.ListPendingFinesForGroup(ctx, groupID)
	if err != nil {
		return res, err
	}
	if len(fines) > 0 {
		b := core.Blocker{Kind: core.PendingFinesExist}
		for _, f := range fines {
			b.IDs = append(b.IDs, f.ID)
		}
		res.Blockers = append(res.Blockers, b)
	}

	res.OK = len(res.Blockers) == 0
	return res, nil
}

// Close freezes the cycle and its profit split. Only an Active cycle with no
// active loans and no pending fines in its group can close.
func (c Cycles) Close(ctx context.Context, actor core.Actor, cycleID int64) (core.ClosureReport, error) {
	cycle, err := c.q.GetCycle(ctx, cycleID)
	if err != nil {
		return core.ClosureReport{}, err
	}
	if cycle.Status != core.CycleActive {
		return core.ClosureReport{}, fmt.Errorf("cycle %d is %s: %w", cycleID, cycle.Status, core.ErrInvalidTransition)
	}

	check, err := c.validate(ctx, cycle.GroupID)
	if err != nil {
		return core.ClosureReport{}, err
	}
	if !check.OK {
		return core.ClosureReport{}, &core.BlockedClosureError{CycleID: cycleID, Blockers: check.Blockers}
	}

	cash, err := c.cash.Balance(ctx, cycle.GroupID)
	if err != nil {
		return core.ClosureReport{}, err
	}
	byMember, err := c.q.SavingsByMember(ctx, cycle.GroupID)
	if err != nil {
		return core.ClosureReport{}, err
	}
	holdings := make([]Holding, 0, len(byMember))
	for _, s := range byMember {
		holdings = append(holdings, Holding{MemberID: s.MemberID, Savings: core.Cents(s.Cents)})
	}

	dist := Distribute(cash, holdings)
	report := core.ClosureReport{
		CycleID:        cycle.ID,
		GroupID:        cycle.GroupID,
		CashBalance:    cash,
		TotalSavings:   dist.TotalSavings,
		NetProfit:      dist.NetProfit,
		NoDistribution: dist.NoDistribution,
		PerMember:      dist.PerMember,
		ClosedAt:       c.q.Now(),
	}
	if err := c.q.CloseCycle(ctx, report, actor.String()); err != nil {
		return core.ClosureReport{}, err
	}
	return report, nil
}

// Report returns the figures frozen when the cycle closed.
func (c Cycles) Report(ctx context.Context, cycleID int64) (core.ClosureReport, error) {
	r, err := c.q.GetClosureReport(ctx, cycleID)
	if err != nil {
		return core.ClosureReport{}, err
	}
	if r.PerMember == nil {
		r.PerMember = []core.MemberPayout{}
	}
	return r, nil
}
