package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"caja/internal/cache"
	"caja/internal/core"
	"caja/internal/ledger"
	"caja/internal/log"
	"caja/internal/storage"

	"github.com/google/uuid"
)

// LedgerService is the single entry point for callers of the ledger. Every
// mutating method runs as one store transaction: the ledger rows, the cash
// movement and the outbox event commit together or not at all.
type LedgerService struct {
	storage *storage.SQLiteRepository
	reports *cache.LRUCache[core.ClosureReport]
	log     *log.StructuredLogger
}

type LedgerServiceConfig struct {
	// ReportCacheSize bounds the closure report cache (default: 64)
	ReportCacheSize int

	// ReportCacheTTL expires cached reports; zero keeps them until evicted
	ReportCacheTTL time.Duration
}

func NewLedgerService(storage *storage.SQLiteRepository, logger *log.Logger, config LedgerServiceConfig) *LedgerService {
	if config.ReportCacheSize <= 0 {
		config.ReportCacheSize = 64
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		storage: storage,
		reports: cache.NewLRUCache[core.ClosureReport](config.ReportCacheSize, config.ReportCacheTTL),
		log:     log.NewStructuredLogger(logger),
	}
}

// ReportCache exposes the closure report cache for cleanup registration.
func (s *LedgerService) ReportCache() *cache.LRUCache[core.ClosureReport] {
	return s.reports
}

// txn collects what a mutation emits. It is rebuilt on every InTx attempt.
type txn struct {
	q       *storage.Queries
	actor   core.Actor
	events  []core.Event
	groupID int64
	amount  core.Money
}

func (t *txn) emit(groupID int64, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	t.events = append(t.events, core.Event{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Kind:      kind,
		Actor:     t.actor.String(),
		Payload:   body,
		CreatedAt: t.q.Now(),
	})
	return nil
}

// logged sets the group and amount reported by the commit log line.
func (t *txn) logged(groupID int64, amount core.Money) {
	t.groupID = groupID
	t.amount = amount
}

// mutate runs fn in a write transaction and appends its events before commit.
func (s *LedgerService) mutate(ctx context.Context, op string, actor core.Actor, fn func(t *txn) error) error {
	if err := actor.Validate(); err != nil {
		s.log.LogFailure(ctx, op, actor, err)
		return err
	}

	var done *txn
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		t := &txn{q: q, actor: actor}
		if err := fn(t); err != nil {
			return err
		}
		for _, ev := range t.events {
			if err := q.InsertEvent(ctx, ev); err != nil {
				return err
			}
		}
		done = t
		return nil
	})
	if err != nil {
		s.log.LogFailure(ctx, op, actor, err)
		return err
	}

	s.log.LogCommit(ctx, op, actor, done.groupID, done.amount)
	return nil
}

func (s *LedgerService) read() *storage.Queries {
	return s.storage.Queries()
}

// RegisterGroup creates a group with its interest rate and fine policy.
func (s *LedgerService) RegisterGroup(ctx context.Context, actor core.Actor, g core.Group) (core.Group, error) {
	var out core.Group
	err := s.mutate(ctx, log.OpRegisterGroup, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewDirectory(t.q).RegisterGroup(ctx, g)
		if err != nil {
			return err
		}
		t.logged(out.ID, core.Zero)
		return t.emit(out.ID, core.EventGroupRegistered, out)
	})
	return out, err
}

// UpdateGroupPolicy changes the rate, fine policy and rules of a group that
// has not closed a cycle yet.
func (s *LedgerService) UpdateGroupPolicy(ctx context.Context, actor core.Actor, groupID int64, g core.Group) (core.Group, error) {
	var out core.Group
	err := s.mutate(ctx, log.OpUpdatePolicy, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewDirectory(t.q).UpdateGroupPolicy(ctx, groupID, g)
		if err != nil {
			return err
		}
		t.logged(groupID, core.Zero)
		return t.emit(groupID, core.EventGroupPolicyUpdated, out)
	})
	return out, err
}

func (s *LedgerService) Group(ctx context.Context, groupID int64) (core.Group, error) {
	return ledger.NewDirectory(s.read()).Group(ctx, groupID)
}

func (s *LedgerService) RegisterMember(ctx context.Context, actor core.Actor, m core.Member) (core.Member, error) {
	var out core.Member
	err := s.mutate(ctx, log.OpRegisterMember, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewDirectory(t.q).RegisterMember(ctx, m)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, core.Zero)
		return t.emit(out.GroupID, core.EventMemberRegistered, out)
	})
	return out, err
}

// RemoveMember deletes a member that never touched the ledger.
func (s *LedgerService) RemoveMember(ctx context.Context, actor core.Actor, memberID int64) error {
	return s.mutate(ctx, log.OpRemoveMember, actor, func(t *txn) error {
		removed, err := ledger.NewDirectory(t.q).RemoveMember(ctx, memberID)
		if err != nil {
			return err
		}
		t.logged(removed.GroupID, core.Zero)
		return t.emit(removed.GroupID, core.EventMemberRemoved, removed)
	})
}

func (s *LedgerService) Members(ctx context.Context, groupID int64) ([]core.Member, error) {
	return ledger.NewDirectory(s.read()).Members(ctx, groupID)
}

func (s *LedgerService) MemberStatement(ctx context.Context, memberID int64) (core.MemberStatement, error) {
	return ledger.NewDirectory(s.read()).Statement(ctx, memberID)
}

// Deposit records a savings entry and its cash inflow.
func (s *LedgerService) Deposit(ctx context.Context, actor core.Actor, req ledger.DepositRequest) (core.SavingsEntry, error) {
	var out core.SavingsEntry
	err := s.mutate(ctx, log.OpDeposit, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewSavings(t.q).Deposit(ctx, actor, req)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, out.Amount)
		return t.emit(out.GroupID, core.EventSavingsDeposited, out)
	})
	return out, err
}

func (s *LedgerService) SavingsTotalForMember(ctx context.Context, memberID int64) (core.Money, error) {
	return ledger.NewSavings(s.read()).TotalForMember(ctx, memberID)
}

func (s *LedgerService) SavingsHistory(ctx context.Context, memberID int64) ([]core.SavingsEntry, error) {
	return ledger.NewSavings(s.read()).HistoryForMember(ctx, memberID)
}

func (s *LedgerService) SavingsTotalForGroup(ctx context.Context, groupID int64) (core.Money, error) {
	return ledger.NewSavings(s.read()).TotalForGroup(ctx, groupID)
}

func (s *LedgerService) Balance(ctx context.Context, groupID int64) (core.Money, error) {
	return ledger.NewCashBox(s.read()).Balance(ctx, groupID)
}

// CashHistory lists cash entries newest first; a zero since means all time
// and limit <= 0 means no limit.
func (s *LedgerService) CashHistory(ctx context.Context, groupID int64, since time.Time, limit int) ([]core.CashEntry, error) {
	return ledger.NewCashBox(s.read()).History(ctx, groupID, since, limit)
}

// OriginateLoan disburses a loan after checking the group balance inside
// the same write transaction.
func (s *LedgerService) OriginateLoan(ctx context.Context, actor core.Actor, req ledger.LoanRequest) (core.Loan, error) {
	var out core.Loan
	err := s.mutate(ctx, log.OpOriginateLoan, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewLoans(t.q).Originate(ctx, actor, req)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, out.Principal)
		return t.emit(out.GroupID, core.EventLoanOriginated, out)
	})
	return out, err
}

// ApplyPayment records a repayment. The payment that clears the capital
// also flips the loan to Paid.
func (s *LedgerService) ApplyPayment(ctx context.Context, actor core.Actor, req ledger.PaymentRequest) (core.PaymentResult, error) {
	var out core.PaymentResult
	err := s.mutate(ctx, log.OpApplyPayment, actor, func(t *txn) error {
		res, loan, err := ledger.NewLoans(t.q).ApplyPayment(ctx, actor, req)
		if err != nil {
			return err
		}
		out = res
		t.logged(loan.GroupID, req.Capital.Add(req.Interest))
		if err := t.emit(loan.GroupID, core.EventPaymentApplied, map[string]any{
			"loan_id":         loan.ID,
			"payment_id":      res.PaymentID,
			"capital":         req.Capital,
			"interest":        req.Interest,
			"new_outstanding": res.NewOutstanding,
		}); err != nil {
			return err
		}
		if res.BecamePaid {
			return t.emit(loan.GroupID, core.EventLoanPaid, loan)
		}
		return nil
	})
	return out, err
}

func (s *LedgerService) Loan(ctx context.Context, loanID int64) (core.Loan, error) {
	return s.read().GetLoan(ctx, loanID)
}

func (s *LedgerService) Outstanding(ctx context.Context, loanID int64) (core.Money, error) {
	return ledger.NewLoans(s.read()).Outstanding(ctx, loanID)
}

func (s *LedgerService) ActiveLoans(ctx context.Context, groupID int64) ([]core.Loan, error) {
	return ledger.NewLoans(s.read()).ActiveLoansFor(ctx, groupID)
}

func (s *LedgerService) LoansForMember(ctx context.Context, memberID int64) ([]core.Loan, error) {
	return ledger.NewLoans(s.read()).LoansForMember(ctx, memberID)
}

func (s *LedgerService) Payments(ctx context.Context, loanID int64) ([]core.Payment, error) {
	return ledger.NewLoans(s.read()).Payments(ctx, loanID)
}

func (s *LedgerService) LoanProgress(ctx context.Context, loanID int64) (core.LoanProgress, error) {
	return ledger.NewLoans(s.read()).Progress(ctx, loanID, time.Now())
}

// RecordAttendance stores the outcome for (session, member) and levies the
// automatic fine the group policy prescribes. A repeat submission fails with
// ErrDuplicateAttendance and changes nothing.
func (s *LedgerService) RecordAttendance(ctx context.Context, actor core.Actor, sessionID string, memberID int64, outcome core.Outcome) (core.AttendanceResult, error) {
	var out core.AttendanceResult
	err := s.mutate(ctx, log.OpRecordAttendance, actor, func(t *txn) error {
		res, fine, err := ledger.NewFines(t.q).RecordAttendance(ctx, actor, sessionID, memberID, outcome)
		if err != nil {
			return err
		}
		out = res
		member, err := t.q.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		t.logged(member.GroupID, core.Zero)
		if err := t.emit(member.GroupID, core.EventAttendanceRecorded, map[string]any{
			"record_id":  res.RecordID,
			"session_id": sessionID,
			"member_id":  memberID,
			"outcome":    outcome,
		}); err != nil {
			return err
		}
		if fine != nil {
			t.logged(member.GroupID, fine.Amount)
			return t.emit(member.GroupID, core.EventFineLevied, fine)
		}
		return nil
	})
	return out, err
}

// ApplyFine levies a manual infraction fine.
func (s *LedgerService) ApplyFine(ctx context.Context, actor core.Actor, memberID int64, amount core.Money, note string) (core.Fine, error) {
	var out core.Fine
	err := s.mutate(ctx, log.OpApplyFine, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewFines(t.q).ApplyManual(ctx, actor, memberID, amount, note)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, out.Amount)
		return t.emit(out.GroupID, core.EventFineLevied, out)
	})
	return out, err
}

// PayFine flips a pending fine to Paid together with its cash inflow.
func (s *LedgerService) PayFine(ctx context.Context, actor core.Actor, fineID int64) (core.Fine, error) {
	var out core.Fine
	err := s.mutate(ctx, log.OpPayFine, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewFines(t.q).PayFine(ctx, actor, fineID)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, out.Amount)
		return t.emit(out.GroupID, core.EventFinePaid, out)
	})
	return out, err
}

func (s *LedgerService) PendingFines(ctx context.Context, memberID int64) ([]core.Fine, error) {
	return ledger.NewFines(s.read()).PendingForMember(ctx, memberID)
}

// FineHistory lists all fines of a member, paid ones included.
func (s *LedgerService) FineHistory(ctx context.Context, memberID int64) ([]core.Fine, error) {
	return ledger.NewFines(s.read()).HistoryForMember(ctx, memberID)
}

func (s *LedgerService) PendingFinesForGroup(ctx context.Context, groupID int64) ([]core.Fine, error) {
	return ledger.NewFines(s.read()).PendingForGroup(ctx, groupID)
}

func (s *LedgerService) Attendance(ctx context.Context, groupID int64, sessionID string) ([]core.AttendanceRecord, error) {
	if _, err := s.read().GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	records, err := s.read().ListAttendance(ctx, groupID, sessionID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.AttendanceRecord{}
	}
	return records, nil
}

// PlanCycle schedules the next cycle of a group.
func (s *LedgerService) PlanCycle(ctx context.Context, actor core.Actor, groupID int64, start, end core.Date) (core.Cycle, error) {
	var out core.Cycle
	err := s.mutate(ctx, log.OpPlanCycle, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewCycles(t.q).Plan(ctx, actor, groupID, start, end)
		if err != nil {
			return err
		}
		t.logged(groupID, core.Zero)
		return t.emit(groupID, core.EventCyclePlanned, out)
	})
	return out, err
}

func (s *LedgerService) ActivateCycle(ctx context.Context, actor core.Actor, cycleID int64) (core.Cycle, error) {
	var out core.Cycle
	err := s.mutate(ctx, log.OpActivateCycle, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewCycles(t.q).Activate(ctx, cycleID)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, core.Zero)
		return t.emit(out.GroupID, core.EventCycleActivated, out)
	})
	return out, err
}

// DuePlannedCycles lists Planned cycles whose start date is on or before asOf.
func (s *LedgerService) DuePlannedCycles(ctx context.Context, asOf time.Time) ([]core.Cycle, error) {
	return s.read().DuePlannedCycles(ctx, asOf.UTC())
}

func (s *LedgerService) Cycle(ctx context.Context, cycleID int64) (core.Cycle, error) {
	return ledger.NewCycles(s.read()).Get(ctx, cycleID)
}

func (s *LedgerService) CanClose(ctx context.Context, cycleID int64) (core.ValidationResult, error) {
	return ledger.NewCycles(s.read()).CanClose(ctx, cycleID)
}

// CloseCycle distributes the cash box over the savers and closes the cycle.
// It fails with *core.BlockedClosureError while loans or fines are open.
func (s *LedgerService) CloseCycle(ctx context.Context, actor core.Actor, cycleID int64) (core.ClosureReport, error) {
	var out core.ClosureReport
	err := s.mutate(ctx, log.OpCloseCycle, actor, func(t *txn) error {
		var err error
		out, err = ledger.NewCycles(t.q).Close(ctx, actor, cycleID)
		if err != nil {
			return err
		}
		t.logged(out.GroupID, out.NetProfit)
		return t.emit(out.GroupID, core.EventCycleClosed, out)
	})
	if err != nil {
		return core.ClosureReport{}, err
	}
	s.reports.Set(reportKey(cycleID), out)
	return out, nil
}

// ClosureReport returns the stored distribution of a Closed cycle.
func (s *LedgerService) ClosureReport(ctx context.Context, cycleID int64) (core.ClosureReport, error) {
	return s.reports.GetOrLoad(reportKey(cycleID), func() (core.ClosureReport, error) {
		return ledger.NewCycles(s.read()).Report(ctx, cycleID)
	})
}

func reportKey(cycleID int64) string {
	return "cycle:" + strconv.FormatInt(cycleID, 10)
}

// OutboxStats reports outbox events per delivery status.
func (s *LedgerService) OutboxStats(ctx context.Context) (map[string]int64, error) {
	return s.storage.OutboxStats(ctx)
}

// Close releases the store.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
