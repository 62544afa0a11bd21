package ledger

import (
	"context"
	"fmt"
	"time"

	"caja/internal/core"
	"caja/internal/storage"

	"github.com/shopspring/decimal"
)

// Loans owns the loan lifecycle: Active until the capital is repaid, then
// Paid for good. Outstanding tracks capital only; interest is realized
// through the interest portion of payments.
type Loans struct {
	q    *storage.Queries
	cash CashBox
}

func NewLoans(q *storage.Queries) Loans {
	return Loans{q: q, cash: NewCashBox(q)}
}

// LoanRequest describes an origination. A null InterestRate snapshots the
// group's current rate; a zero OriginatedOn means today.
type LoanRequest struct {
	MemberID     int64               `json:"member_id"`
	Principal    core.Money          `json:"principal"`
	InterestRate decimal.NullDecimal `json:"interest_rate"`
	Term         int                 `json:"term"`
	OriginatedOn core.Date           `json:"originated_on"`
}

// PaymentRequest splits a repayment into its capital and interest parts.
type PaymentRequest struct {
	LoanID   int64      `json:"loan_id"`
	Capital  core.Money `json:"capital"`
	Interest core.Money `json:"interest"`
	PaidOn   core.Date  `json:"paid_on"`
}

// Originate disburses a loan. The balance check and the outflow run in the
// caller's write transaction, so concurrent originations cannot overdraw.
func (l Loans) Originate(ctx context.Context, actor core.Actor, req LoanRequest) (core.Loan, error) {
	if err := req.Principal.Validate(); err != nil {
		return core.Loan{}, err
	}
	if req.Term < 1 {
		return core.Loan{}, fmt.Errorf("%w: term must be at least one period", core.ErrInvalidInput)
	}

	member, err := l.q.GetMember(ctx, req.MemberID)
	if err != nil {
		return core.Loan{}, err
	}
	group, err := l.q.GetGroup(ctx, member.GroupID)
	if err != nil {
		return core.Loan{}, err
	}

	rate := group.InterestRate
	if req.InterestRate.Valid {
		rate = req.InterestRate.Decimal
	}
	if rate.IsNegative() {
		return core.Loan{}, fmt.Errorf("%w: interest rate cannot be negative", core.ErrInvalidInput)
	}
	originated := req.OriginatedOn
	if originated.IsZero() {
		originated = core.DateOf(l.q.Now())
	}

	balance, err := l.cash.Balance(ctx, member.GroupID)
	if err != nil {
		return core.Loan{}, err
	}
	if req.Principal.GreaterThan(balance) {
		return core.Loan{}, fmt.Errorf("principal %s exceeds cash balance %s: %w", req.Principal, balance, core.ErrInsufficientFunds)
	}

	loan := core.Loan{
		MemberID:     member.ID,
		GroupID:      member.GroupID,
		Principal:    req.Principal,
		InterestRate: rate,
		Term:         req.Term,
		OriginatedOn: originated,
		Status:       core.LoanActive,
		Actor:        actor.String(),
	}
	loan.ID, err = l.q.InsertLoan(ctx, loan)
	if err != nil {
		return core.Loan{}, err
	}
	reason := fmt.Sprintf("loan disbursement #%d", loan.ID)
	if _, err := l.cash.Record(ctx, actor, loan.GroupID, core.Outflow, loan.Principal, reason, RefLoan, loan.ID); err != nil {
		return core.Loan{}, err
	}
	loan.CreatedAt = l.q.Now()
	return loan, nil
}

// ApplyPayment records a repayment. Capital beyond the outstanding balance is
// rejected, never clamped; the loan flips to Paid in the same transaction as
// the payment that clears it.
func (l Loans) ApplyPayment(ctx context.Context, actor core.Actor, req PaymentRequest) (core.PaymentResult, core.Loan, error) {
	if req.Capital.IsNegative() || req.Interest.IsNegative() {
		return core.PaymentResult{}, core.Loan{}, fmt.Errorf("%w: portions cannot be negative", core.ErrInvalidPayment)
	}
	if req.Capital.IsZero() && req.Interest.IsZero() {
		return core.PaymentResult{}, core.Loan{}, fmt.Errorf("%w: capital and interest are both zero", core.ErrInvalidPayment)
	}

	loan, err := l.q.GetLoan(ctx, req.LoanID)
	if err != nil {
		return core.PaymentResult{}, core.Loan{}, err
	}
	if loan.Status == core.LoanPaid {
		return core.PaymentResult{}, core.Loan{}, fmt.Errorf("loan %d: %w", loan.ID, core.ErrAlreadyPaid)
	}

	outstanding, err := l.outstanding(ctx, loan)
	if err != nil {
		return core.PaymentResult{}, core.Loan{}, err
	}
	if req.Capital.GreaterThan(outstanding) {
		return core.PaymentResult{}, core.Loan{}, fmt.Errorf("capital %s exceeds outstanding %s: %w", req.Capital, outstanding, core.ErrInvalidPayment)
	}

	paidOn := req.PaidOn
	if paidOn.IsZero() {
		paidOn = core.DateOf(l.q.Now())
	}
	payment := core.Payment{
		LoanID:   loan.ID,
		Capital:  req.Capital,
		Interest: req.Interest,
		PaidOn:   paidOn,
		Actor:    actor.String(),
	}
	payment.ID, err = l.q.InsertPayment(ctx, payment)
	if err != nil {
		return core.PaymentResult{}, core.Loan{}, err
	}

	result := core.PaymentResult{
		PaymentID:      payment.ID,
		NewOutstanding: outstanding.Sub(req.Capital),
	}
	if result.NewOutstanding.IsZero() {
		now := l.q.Now()
		flipped, err := l.q.MarkLoanPaid(ctx, loan.ID, now)
		if err != nil {
			return core.PaymentResult{}, core.Loan{}, err
		}
		if !flipped {
			return core.PaymentResult{}, core.Loan{}, fmt.Errorf("loan %d: %w", loan.ID, core.ErrAlreadyPaid)
		}
		result.BecamePaid = true
		loan.Status = core.LoanPaid
		loan.PaidAt = &now
	}

	reason := fmt.Sprintf("loan payment #%d", loan.ID)
	if _, err := l.cash.Record(ctx, actor, loan.GroupID, core.Inflow, payment.Total(), reason, RefPayment, payment.ID); err != nil {
		return core.PaymentResult{}, core.Loan{}, err
	}
	return result, loan, nil
}

// Outstanding is principal − Σ capital payments.
func (l Loans) Outstanding(ctx context.Context, loanID int64) (core.Money, error) {
	loan, err := l.q.GetLoan(ctx, loanID)
	if err != nil {
		return core.Zero, err
	}
	return l.outstanding(ctx, loan)
}

func (l Loans) outstanding(ctx context.Context, loan core.Loan) (core.Money, error) {
	totals, err := l.q.PaymentTotals(ctx, loan.ID)
	if err != nil {
		return core.Zero, err
	}
	return loan.Principal.Sub(core.Cents(totals.Capital)), nil
}

func (l Loans) ActiveLoansFor(ctx context.Context, groupID int64) ([]core.Loan, error) {
	if _, err := l.q.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return nonNil(l.q.ListActiveLoansForGroup(ctx, groupID))
}

func (l Loans) LoansForMember(ctx context.Context, memberID int64) ([]core.Loan, error) {
	if _, err := l.q.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return nonNil(l.q.ListLoansForMember(ctx, memberID))
}

// Payments lists the repayments recorded against a loan, oldest first.
func (l Loans) Payments(ctx context.Context, loanID int64) ([]core.Payment, error) {
	if _, err := l.q.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return nonNil(l.q.ListPayments(ctx, loanID))
}

// Progress projects a loan against its informational estimate and its
// maturity under the group's meeting frequency.
func (l Loans) Progress(ctx context.Context, loanID int64, now time.Time) (core.LoanProgress, error) {
	loan, err := l.q.GetLoan(ctx, loanID)
	if err != nil {
		return core.LoanProgress{}, err
	}
	group, err := l.q.GetGroup(ctx, loan.GroupID)
	if err != nil {
		return core.LoanProgress{}, err
	}
	strategy, err := GetMaturityStrategy(group.Frequency)
	if err != nil {
		return core.LoanProgress{}, err
	}
	totals, err := l.q.PaymentTotals(ctx, loan.ID)
	if err != nil {
		return core.LoanProgress{}, err
	}
	payments, err := l.q.ListPayments(ctx, loan.ID)
	if err != nil {
		return core.LoanProgress{}, err
	}

	p := core.LoanProgress{
		LoanID:         loan.ID,
		Status:         loan.Status,
		Principal:      loan.Principal,
		CapitalPaid:    core.Cents(totals.Capital),
		InterestPaid:   core.Cents(totals.Interest),
		Outstanding:    loan.Principal.Sub(core.Cents(totals.Capital)),
		EstimatedTotal: loan.Principal.Add(loan.EstimatedInterest()),
		MaturityDate:   strategy.MaturityDate(loan.OriginatedOn, loan.Term),
		PaymentCount:   int(totals.Count),
	}
	if n := len(payments); n > 0 {
		last := payments[n-1].PaidOn.Time
		p.LastPaymentDate = &last
	}
	p.Overdue = loan.Status == core.LoanActive && core.DateOf(now).After(p.MaturityDate.Time)
	return p, nil
}
