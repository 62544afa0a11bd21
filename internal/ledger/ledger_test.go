package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"caja/internal/core"
	"caja/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testActor = core.Actor{ID: "treasurer-1", Role: "treasurer"}

type fixture struct {
	t    *testing.T
	ctx  context.Context
	repo *storage.SQLiteRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return &fixture{t: t, ctx: context.Background(), repo: repo}
}

func (f *fixture) tx(fn func(q *storage.Queries) error) error {
	return f.repo.InTx(f.ctx, fn)
}

func (f *fixture) read() *storage.Queries {
	return f.repo.Queries()
}

func (f *fixture) group(policy core.FinePolicy) int64 {
	f.t.Helper()
	var g core.Group
	require.NoError(f.t, f.tx(func(q *storage.Queries) error {
		var err error
		g, err = NewDirectory(q).RegisterGroup(f.ctx, core.Group{
			Name:         "Las Flores",
			InterestRate: decimal.NewFromInt(10),
			Frequency:    core.Weekly,
			FinePolicy:   policy,
		})
		return err
	}))
	return g.ID
}

func (f *fixture) member(groupID int64, name string) int64 {
	f.t.Helper()
	var m core.Member
	require.NoError(f.t, f.tx(func(q *storage.Queries) error {
		var err error
		m, err = NewDirectory(q).RegisterMember(f.ctx, core.Member{GroupID: groupID, Name: name})
		return err
	}))
	return m.ID
}

func (f *fixture) deposit(memberID, cents int64) {
	f.t.Helper()
	require.NoError(f.t, f.tx(func(q *storage.Queries) error {
		_, err := NewSavings(q).Deposit(f.ctx, testActor, DepositRequest{MemberID: memberID, Amount: core.Cents(cents)})
		return err
	}))
}

func (f *fixture) originate(memberID, cents int64) (core.Loan, error) {
	var loan core.Loan
	err := f.tx(func(q *storage.Queries) error {
		var err error
		loan, err = NewLoans(q).Originate(f.ctx, testActor, LoanRequest{
			MemberID: memberID, Principal: core.Cents(cents), Term: 4,
		})
		return err
	})
	return loan, err
}

func (f *fixture) pay(loanID, capital, interest int64) (core.PaymentResult, error) {
	var res core.PaymentResult
	err := f.tx(func(q *storage.Queries) error {
		var err error
		res, _, err = NewLoans(q).ApplyPayment(f.ctx, testActor, PaymentRequest{
			LoanID: loanID, Capital: core.Cents(capital), Interest: core.Cents(interest),
		})
		return err
	})
	return res, err
}

func (f *fixture) balance(groupID int64) int64 {
	f.t.Helper()
	b, err := NewCashBox(f.read()).Balance(f.ctx, groupID)
	require.NoError(f.t, err)
	return b.Cents
}

func (f *fixture) activeCycle(groupID int64) int64 {
	f.t.Helper()
	var c core.Cycle
	require.NoError(f.t, f.tx(func(q *storage.Queries) error {
		var err error
		cycles := NewCycles(q)
		c, err = cycles.Plan(f.ctx, testActor, groupID, core.NewDate(2025, 1, 1), core.NewDate(2025, 12, 31))
		if err != nil {
			return err
		}
		c, err = cycles.Activate(f.ctx, c.ID)
		return err
	}))
	return c.ID
}

func (f *fixture) close(cycleID int64) (core.ClosureReport, error) {
	var r core.ClosureReport
	err := f.tx(func(q *storage.Queries) error {
		var err error
		r, err = NewCycles(q).Close(f.ctx, testActor, cycleID)
		return err
	})
	return r, err
}

var fixedPolicy = core.FinePolicy{Kind: core.FixedFine, Absent: core.Cents(500), Excused: core.Cents(200)}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "M")
	cycle := f.activeCycle(g)

	assert.Equal(t, int64(0), f.balance(g))

	f.deposit(m, 10000)
	assert.Equal(t, int64(10000), f.balance(g))

	l1, err := f.originate(m, 8000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), f.balance(g))
	out, err := NewLoans(f.read()).Outstanding(f.ctx, l1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), out.Cents)

	_, err = f.originate(m, 5000)
	require.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.Equal(t, int64(2000), f.balance(g), "failed origination leaves no trace")

	res, err := f.pay(l1.ID, 8000, 800)
	require.NoError(t, err)
	assert.True(t, res.BecamePaid)
	assert.Equal(t, int64(0), res.NewOutstanding.Cents)
	assert.Equal(t, int64(10800), f.balance(g))

	loan, err := f.read().GetLoan(f.ctx, l1.ID)
	require.NoError(t, err)
	assert.Equal(t, core.LoanPaid, loan.Status)
	assert.NotNil(t, loan.PaidAt)

	report, err := f.close(cycle)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), report.TotalSavings.Cents)
	assert.Equal(t, int64(10800), report.CashBalance.Cents)
	assert.Equal(t, int64(800), report.NetProfit.Cents)
	require.Len(t, report.PerMember, 1)
	assert.True(t, report.PerMember[0].SavingsShare.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(800), report.PerMember[0].ProfitShare.Cents)
	assert.Equal(t, int64(10800), report.PerMember[0].PayoutTotal.Cents)

	stored, err := NewCycles(f.read()).Report(f.ctx, cycle)
	require.NoError(t, err)
	assert.Equal(t, report.NetProfit, stored.NetProfit)
	assert.Equal(t, report.PerMember[0].PayoutTotal, stored.PerMember[0].PayoutTotal)
}

func TestBalanceConservation(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	a := f.member(g, "A")
	b := f.member(g, "B")

	f.deposit(a, 5000)
	f.deposit(b, 3000)
	loan, err := f.originate(a, 6000)
	require.NoError(t, err)
	_, err = f.pay(loan.ID, 1000, 150)
	require.NoError(t, err)
	_, err = f.pay(loan.ID, 0, 50)
	require.NoError(t, err)

	var fine core.Fine
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		var err error
		fine, err = NewFines(q).ApplyManual(f.ctx, testActor, b, core.Cents(300), "late")
		if err != nil {
			return err
		}
		_, err = NewFines(q).PayFine(f.ctx, testActor, fine.ID)
		return err
	}))

	entries, err := NewCashBox(f.read()).History(f.ctx, g, time.Time{}, 0)
	require.NoError(t, err)
	var independent int64
	for _, e := range entries {
		if e.Direction == core.Inflow {
			independent += e.Amount.Cents
		} else {
			independent -= e.Amount.Cents
		}
	}
	assert.Equal(t, independent, f.balance(g))
	assert.Equal(t, int64(5000+3000-6000+1150+50+300), f.balance(g))

	total, err := NewSavings(f.read()).TotalForGroup(f.ctx, g)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), total.Cents)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")

	for _, cents := range []int64{0, -100} {
		err := f.tx(func(q *storage.Queries) error {
			_, err := NewSavings(q).Deposit(f.ctx, testActor, DepositRequest{MemberID: m, Amount: core.Cents(cents)})
			return err
		})
		assert.ErrorIs(t, err, core.ErrInvalidAmount)
	}
	err := f.tx(func(q *storage.Queries) error {
		_, err := NewSavings(q).Deposit(f.ctx, testActor, DepositRequest{MemberID: 999, Amount: core.Cents(1)})
		return err
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, int64(0), f.balance(g))
}

func TestLoanMonotonicityAndTermination(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")
	f.deposit(m, 10000)
	loan, err := f.originate(m, 9000)
	require.NoError(t, err)

	prev := int64(9000)
	for _, capital := range []int64{2000, 0, 3000, 4000} {
		res, err := f.pay(loan.ID, capital, 100)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.NewOutstanding.Cents, prev)
		assert.GreaterOrEqual(t, res.NewOutstanding.Cents, int64(0))
		assert.Equal(t, res.NewOutstanding.IsZero(), res.BecamePaid, "paid exactly when outstanding hits zero")
		prev = res.NewOutstanding.Cents
	}
	assert.Equal(t, int64(0), prev)

	_, err = f.pay(loan.ID, 0, 100)
	assert.ErrorIs(t, err, core.ErrAlreadyPaid)
}

func TestPaymentValidation(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")
	f.deposit(m, 10000)
	loan, err := f.originate(m, 5000)
	require.NoError(t, err)
	before := f.balance(g)

	cases := []struct {
		name              string
		capital, interest int64
		want              error
	}{
		{"both zero", 0, 0, core.ErrInvalidPayment},
		{"overpayment", 5001, 0, core.ErrInvalidPayment},
		{"negative interest", 100, -1, core.ErrInvalidPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.pay(loan.ID, tc.capital, tc.interest)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, before, f.balance(g), "rejected payments move no cash")

	_, err = f.pay(12345, 1, 0)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestOriginateSnapshotsGroupRate(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")
	f.deposit(m, 10000)

	loan, err := f.originate(m, 1000)
	require.NoError(t, err)
	assert.True(t, loan.InterestRate.Equal(decimal.NewFromInt(10)))

	require.NoError(t, f.tx(func(q *storage.Queries) error {
		_, err := NewDirectory(q).UpdateGroupPolicy(f.ctx, g, core.Group{
			InterestRate: decimal.NewFromInt(3), FinePolicy: fixedPolicy,
		})
		return err
	}))
	stored, err := f.read().GetLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, stored.InterestRate.Equal(decimal.NewFromInt(10)), "rate is frozen at origination")

	var explicit core.Loan
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		var err error
		explicit, err = NewLoans(q).Originate(f.ctx, testActor, LoanRequest{
			MemberID: m, Principal: core.Cents(500), Term: 2,
			InterestRate: decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
		})
		return err
	}))
	assert.True(t, explicit.InterestRate.Equal(decimal.RequireFromString("1.5")))
}

func TestConcurrentOriginationsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")
	f.deposit(m, 10000)

	const attempts = 12
	var (
		eg        errgroup.Group
		succeeded = make(chan int64, attempts)
	)
	for i := 0; i < attempts; i++ {
		eg.Go(func() error {
			loan, err := f.originate(m, 3000)
			switch {
			case err == nil:
				succeeded <- loan.ID
				return nil
			case errors.Is(err, core.ErrInsufficientFunds), errors.Is(err, core.ErrContention):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, eg.Wait())
	close(succeeded)

	assert.Len(t, succeeded, 3, "only three 30.00 loans fit in 100.00")
	assert.Equal(t, int64(1000), f.balance(g))
	assert.GreaterOrEqual(t, f.balance(g), int64(0))
}

func TestAttendanceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")

	record := func(outcome core.Outcome) (core.AttendanceResult, error) {
		var res core.AttendanceResult
		err := f.tx(func(q *storage.Queries) error {
			var err error
			res, _, err = NewFines(q).RecordAttendance(f.ctx, testActor, "2025-03-01", m, outcome)
			return err
		})
		return res, err
	}

	first, err := record(core.Absent)
	require.NoError(t, err)
	require.NotNil(t, first.FineID)

	_, err = record(core.Absent)
	assert.ErrorIs(t, err, core.ErrDuplicateAttendance)
	_, err = record(core.Present)
	assert.ErrorIs(t, err, core.ErrDuplicateAttendance)

	pending, err := NewFines(f.read()).PendingForMember(f.ctx, m)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, core.FineAutoAbsence, pending[0].Reason)
	assert.Equal(t, int64(500), pending[0].Amount.Cents)
	assert.Equal(t, first.RecordID, *pending[0].AttendanceID)
}

func TestAttendanceOutcomes(t *testing.T) {
	pct := core.FinePolicy{
		Kind:        core.PercentageFine,
		Base:        core.Cents(2000),
		AbsentRate:  decimal.NewFromInt(50),
		ExcusedRate: decimal.Zero,
	}
	cases := []struct {
		name    string
		policy  core.FinePolicy
		outcome core.Outcome
		fine    int64
		reason  core.FineReason
	}{
		{"fixed absent", fixedPolicy, core.Absent, 500, core.FineAutoAbsence},
		{"fixed excused", fixedPolicy, core.Excused, 200, core.FineAutoExcused},
		{"fixed present", fixedPolicy, core.Present, 0, ""},
		{"percentage absent", pct, core.Absent, 1000, core.FineAutoAbsence},
		{"zero rate creates no fine", pct, core.Excused, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			g := f.group(tc.policy)
			m := f.member(g, "A")

			var (
				res  core.AttendanceResult
				fine *core.Fine
			)
			require.NoError(t, f.tx(func(q *storage.Queries) error {
				var err error
				res, fine, err = NewFines(q).RecordAttendance(f.ctx, testActor, "s1", m, tc.outcome)
				return err
			}))
			if tc.fine == 0 {
				assert.Nil(t, res.FineID)
				assert.Nil(t, fine)
				return
			}
			require.NotNil(t, fine)
			assert.Equal(t, tc.fine, fine.Amount.Cents)
			assert.Equal(t, tc.reason, fine.Reason)
			assert.Equal(t, int64(0), f.balance(g), "levying a fine moves no cash")
		})
	}
}

func TestPayFine(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")

	var fine core.Fine
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		var err error
		fine, err = NewFines(q).ApplyManual(f.ctx, testActor, m, core.Cents(750), "phone rang")
		return err
	}))

	pay := func(id int64) error {
		return f.tx(func(q *storage.Queries) error {
			_, err := NewFines(q).PayFine(f.ctx, testActor, id)
			return err
		})
	}
	require.NoError(t, pay(fine.ID))
	assert.Equal(t, int64(750), f.balance(g))

	entry, err := f.read().CashEntryForRef(f.ctx, RefFine, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Inflow, entry.Direction)

	assert.ErrorIs(t, pay(fine.ID), core.ErrAlreadyPaid)
	assert.ErrorIs(t, pay(424242), core.ErrNotFound)
	assert.Equal(t, int64(750), f.balance(g), "second payment moves no cash")

	err = f.tx(func(q *storage.Queries) error {
		_, err := NewFines(q).ApplyManual(f.ctx, testActor, m, core.Zero, "")
		return err
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestMemberHistories(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")

	f.deposit(m, 10000)
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		_, err := NewSavings(q).Deposit(f.ctx, testActor, DepositRequest{
			MemberID: m, Amount: core.Cents(2500), Kind: core.VoluntarySavings,
		})
		return err
	}))

	savings, err := NewSavings(f.read()).HistoryForMember(f.ctx, m)
	require.NoError(t, err)
	require.Len(t, savings, 2)
	assert.Equal(t, int64(10000), savings[0].Amount.Cents, "oldest first")
	assert.Equal(t, core.VoluntarySavings, savings[1].Kind)

	loan, err := f.originate(m, 6000)
	require.NoError(t, err)
	payments, err := NewLoans(f.read()).Payments(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.NotNil(t, payments)
	assert.Empty(t, payments)

	_, err = f.pay(loan.ID, 2000, 600)
	require.NoError(t, err)
	_, err = f.pay(loan.ID, 4000, 0)
	require.NoError(t, err)
	payments, err = NewLoans(f.read()).Payments(f.ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, int64(2000), payments[0].Capital.Cents)
	assert.Equal(t, int64(600), payments[0].Interest.Cents)
	assert.Equal(t, int64(4000), payments[1].Capital.Cents)

	var paid, pending core.Fine
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		fines := NewFines(q)
		var err error
		if paid, err = fines.ApplyManual(f.ctx, testActor, m, core.Cents(300), "late"); err != nil {
			return err
		}
		if _, err = fines.PayFine(f.ctx, testActor, paid.ID); err != nil {
			return err
		}
		pending, err = fines.ApplyManual(f.ctx, testActor, m, core.Cents(400), "phone rang")
		return err
	}))

	history, err := NewFines(f.read()).HistoryForMember(f.ctx, m)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, paid.ID, history[0].ID)
	assert.Equal(t, core.FinePaid, history[0].Status)
	assert.Equal(t, pending.ID, history[1].ID)
	assert.Equal(t, core.FinePending, history[1].Status)

	open, err := NewFines(f.read()).PendingForMember(f.ctx, m)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, pending.ID, open[0].ID)

	_, err = NewSavings(f.read()).HistoryForMember(f.ctx, 424242)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = NewFines(f.read()).HistoryForMember(f.ctx, 424242)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = NewLoans(f.read()).Payments(f.ctx, 424242)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCloseGating(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")
	cycle := f.activeCycle(g)
	f.deposit(m, 10000)

	loan, err := f.originate(m, 1000)
	require.NoError(t, err)
	var fine core.Fine
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		var err error
		fine, err = NewFines(q).ApplyManual(f.ctx, testActor, m, core.Cents(100), "")
		return err
	}))

	check, err := NewCycles(f.read()).CanClose(f.ctx, cycle)
	require.NoError(t, err)
	assert.False(t, check.OK)
	require.Len(t, check.Blockers, 2)
	assert.Equal(t, core.ActiveLoansExist, check.Blockers[0].Kind)
	assert.Equal(t, []int64{loan.ID}, check.Blockers[0].IDs)
	assert.Equal(t, core.PendingFinesExist, check.Blockers[1].Kind)

	_, err = f.close(cycle)
	require.ErrorIs(t, err, core.ErrBlockedClosure)
	var blocked *core.BlockedClosureError
	require.ErrorAs(t, err, &blocked)
	assert.Len(t, blocked.Blockers, 2)

	_, err = f.pay(loan.ID, 1000, 0)
	require.NoError(t, err)
	_, err = f.close(cycle)
	require.ErrorIs(t, err, core.ErrBlockedClosure, "pending fine still blocks")

	require.NoError(t, f.tx(func(q *storage.Queries) error {
		_, err := NewFines(q).PayFine(f.ctx, testActor, fine.ID)
		return err
	}))
	report, err := f.close(cycle)
	require.NoError(t, err)
	assert.Equal(t, int64(100), report.NetProfit.Cents)

	_, err = f.close(cycle)
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "closed is terminal")
}

func TestCycleLifecycle(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)

	plan := func(start, end core.Date) (core.Cycle, error) {
		var c core.Cycle
		err := f.tx(func(q *storage.Queries) error {
			var err error
			c, err = NewCycles(q).Plan(f.ctx, testActor, g, start, end)
			return err
		})
		return c, err
	}

	_, err := plan(core.NewDate(2025, 6, 1), core.NewDate(2025, 1, 1))
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	c, err := plan(core.NewDate(2025, 1, 1), core.NewDate(2025, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, core.CyclePlanned, c.Status)

	_, err = plan(core.NewDate(2025, 7, 1), core.NewDate(2025, 12, 31))
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "one open cycle per group")

	_, err = f.close(c.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "planned cycles cannot close")

	activate := func() error {
		return f.tx(func(q *storage.Queries) error {
			_, err := NewCycles(q).Activate(f.ctx, c.ID)
			return err
		})
	}
	require.NoError(t, activate())
	assert.ErrorIs(t, activate(), core.ErrInvalidTransition)

	report, err := f.close(c.ID)
	require.NoError(t, err)
	assert.True(t, report.NoDistribution, "no savings means nothing to split")
	assert.Empty(t, report.PerMember)

	_, err = plan(core.NewDate(2025, 7, 1), core.NewDate(2025, 12, 31))
	assert.NoError(t, err, "a new cycle may follow a closed one")
}

func TestGroupLockedAfterClose(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	cycle := f.activeCycle(g)
	_, err := f.close(cycle)
	require.NoError(t, err)

	err = f.tx(func(q *storage.Queries) error {
		_, err := NewDirectory(q).UpdateGroupPolicy(f.ctx, g, core.Group{
			InterestRate: decimal.NewFromInt(1), FinePolicy: fixedPolicy,
		})
		return err
	})
	assert.ErrorIs(t, err, core.ErrGroupLocked)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	idle := f.member(g, "Idle")
	saver := f.member(g, "Saver")
	f.deposit(saver, 100)

	remove := func(id int64) error {
		return f.tx(func(q *storage.Queries) error {
			_, err := NewDirectory(q).RemoveMember(f.ctx, id)
			return err
		})
	}
	assert.ErrorIs(t, remove(saver), core.ErrMemberHasLedger)
	require.NoError(t, remove(idle))
	assert.ErrorIs(t, remove(idle), core.ErrNotFound)
}

func TestMemberStatementAndProgress(t *testing.T) {
	f := newFixture(t)
	g := f.group(fixedPolicy)
	m := f.member(g, "A")
	f.deposit(m, 10000)
	loan, err := f.originate(m, 4000)
	require.NoError(t, err)
	_, err = f.pay(loan.ID, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, f.tx(func(q *storage.Queries) error {
		_, _, err := NewFines(q).RecordAttendance(f.ctx, testActor, "s1", m, core.Excused)
		return err
	}))

	st, err := NewDirectory(f.read()).Statement(f.ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), st.TotalSavings.Cents)
	assert.Equal(t, int64(3000), st.OutstandingDue.Cents)
	assert.Equal(t, 1, st.ActiveLoans)
	assert.Equal(t, int64(200), st.PendingFines.Cents)
	assert.Equal(t, 1, st.PendingCount)

	p, err := NewLoans(f.read()).Progress(f.ctx, loan.ID, loan.OriginatedOn.AddDate(0, 0, 29))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.CapitalPaid.Cents)
	assert.Equal(t, int64(400), p.InterestPaid.Cents)
	assert.Equal(t, int64(3000), p.Outstanding.Cents)
	// 4000 + 4000 × 10% × 4 periods
	assert.Equal(t, int64(5600), p.EstimatedTotal.Cents)
	assert.True(t, loan.OriginatedOn.AddDate(0, 0, 28).Equal(p.MaturityDate.Time))
	assert.True(t, p.Overdue)
	assert.Equal(t, 1, p.PaymentCount)
	require.NotNil(t, p.LastPaymentDate)
}
