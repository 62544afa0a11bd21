package ledger

import (
	"context"
	"fmt"
	"strings"

	"caja/internal/core"
	"caja/internal/storage"
)

// Directory registers groups and members and guards their edits against
// the ledger rows that depend on them.
type Directory struct {
	q *storage.Queries
}

func NewDirectory(q *storage.Queries) Directory {
	return Directory{q: q}
}

func (d Directory) RegisterGroup(ctx context.Context, g core.Group) (core.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	id, err := d.q.CreateGroup(ctx, g)
	if err != nil {
		return core.Group{}, err
	}
	return d.q.GetGroup(ctx, id)
}

// UpdateGroupPolicy replaces the interest rate, fine policy and rules. A
// group whose cycle has closed is frozen. Existing loans keep their rate.
func (d Directory) UpdateGroupPolicy(ctx context.Context, groupID int64, g core.Group) (core.Group, error) {
	current, err := d.q.GetGroup(ctx, groupID)
	if err != nil {
		return core.Group{}, err
	}
	locked, err := d.q.GroupHasClosedCycle(ctx, groupID)
	if err != nil {
		return core.Group{}, err
	}
	if locked {
		return core.Group{}, fmt.Errorf("group %d: %w", groupID, core.ErrGroupLocked)
	}

	current.InterestRate = g.InterestRate
	current.FinePolicy = g.FinePolicy
	current.Rules = g.Rules
	if err := current.Validate(); err != nil {
		return core.Group{}, err
	}
	if err := d.q.UpdateGroupPolicy(ctx, current); err != nil {
		return core.Group{}, err
	}
	return current, nil
}

func (d Directory) Group(ctx context.Context, groupID int64) (core.Group, error) {
	return d.q.GetGroup(ctx, groupID)
}

func (d Directory) RegisterMember(ctx context.Context, m core.Member) (core.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if _, err := d.q.GetGroup(ctx, m.GroupID); err != nil {
		return core.Member{}, err
	}
	id, err := d.q.CreateMember(ctx, m)
	if err != nil {
		return core.Member{}, err
	}
	return d.q.GetMember(ctx, id)
}

// RemoveMember deletes a member that owns no ledger rows.
func (d Directory) RemoveMember(ctx context.Context, memberID int64) (core.Member, error) {
	member, err := d.q.GetMember(ctx, memberID)
	if err != nil {
		return core.Member{}, err
	}
	fp, err := d.q.MemberFootprint(ctx, memberID)
	if err != nil {
		return core.Member{}, err
	}
	if !fp.Empty() {
		return core.Member{}, fmt.Errorf("member %d has %d savings entries, %d loans, %d pending fines: %w",
			memberID, fp.SavingsEntries, fp.Loans, fp.PendingFines, core.ErrMemberHasLedger)
	}
	if err := d.q.DeleteMember(ctx, memberID); err != nil {
		return core.Member{}, err
	}
	return member, nil
}

func (d Directory) Members(ctx context.Context, groupID int64) ([]core.Member, error) {
	if _, err := d.q.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return nonNil(d.q.ListMembers(ctx, groupID))
}

// Statement summarizes a member's position for their dashboard.
func (d Directory) Statement(ctx context.Context, memberID int64) (core.MemberStatement, error) {
	member, err := d.q.GetMember(ctx, memberID)
	if err != nil {
		return core.MemberStatement{}, err
	}
	st := core.MemberStatement{MemberID: member.ID, GroupID: member.GroupID}

	saved, err := d.q.SavingsTotalForMember(ctx, memberID)
	if err != nil {
		return st, err
	}
	st.TotalSavings = core.Cents(saved)

	loans, err := d.q.ListLoansForMember(ctx, memberID)
	if err != nil {
		return st, err
	}
	for _, l := range loans {
		if l.Status != core.LoanActive {
			continue
		}
		totals, err := d.q.PaymentTotals(ctx, l.ID)
		if err != nil {
			return st, err
		}
		st.ActiveLoans++
		st.OutstandingDue = st.OutstandingDue.Add(l.Principal.Sub(core.Cents(totals.Capital)))
	}

	fines, err := d.q.ListPendingFinesForMember(ctx, memberID)
	if err != nil {
		return st, err
	}
	for _, f := range fines {
		st.PendingFines = st.PendingFines.Add(f.Amount)
	}
	st.PendingCount = len(fines)
	return st, nil
}
