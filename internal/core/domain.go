package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"

	LoanActive LoanStatus = "active"
	LoanPaid   LoanStatus = "paid"

	FineManualInfraction FineReason = "manual_infraction"
	FineAutoAbsence      FineReason = "auto_absence"
	FineAutoExcused      FineReason = "auto_excused"

	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"

	Present Outcome = "present"
	Absent  Outcome = "absent"
	Excused Outcome = "excused"

	CyclePlanned CycleStatus = "planned"
	CycleActive  CycleStatus = "active"
	CycleClosed  CycleStatus = "closed"

	FixedFine      FinePolicyKind = "fixed"
	PercentageFine FinePolicyKind = "percentage"

	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"

	RegularSavings   SavingsKind = "regular"
	VoluntarySavings SavingsKind = "voluntary"

	ActiveLoansExist  BlockerKind = "ActiveLoansExist"
	PendingFinesExist BlockerKind = "PendingFinesExist"
)

type (
	Direction      string
	LoanStatus     string
	FineReason     string
	FineStatus     string
	Outcome        string
	CycleStatus    string
	FinePolicyKind string
	Frequency      string
	SavingsKind    string
	BlockerKind    string

	Date struct {
		time.Time
	}

	// Actor is the caller identity supplied by the session provider. It is
	// recorded on every write for audit and never looked up.
	Actor struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}

	// FinePolicy decides the automatic fine for an attendance outcome.
	// Fixed policies use the amounts; percentage policies apply the rates
	// (in percent) to Base, the group's per-session quota.
	FinePolicy struct {
		Kind        FinePolicyKind  `json:"kind"`
		Absent      Money           `json:"absent"`
		Excused     Money           `json:"excused"`
		AbsentRate  decimal.Decimal `json:"absent_rate"`
		ExcusedRate decimal.Decimal `json:"excused_rate"`
		Base        Money           `json:"base"`
	}

	Group struct {
		ID           int64           `json:"id"`
		Name         string          `json:"name"`
		InterestRate decimal.Decimal `json:"interest_rate"`
		FinePolicy   FinePolicy      `json:"fine_policy"`
		Rules        string          `json:"rules"`
		Frequency    Frequency       `json:"frequency"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	Member struct {
		ID         int64     `json:"id"`
		GroupID    int64     `json:"group_id"`
		Name       string    `json:"name"`
		ExternalID string    `json:"external_id"`
		CreatedAt  time.Time `json:"created_at"`
	}

	SavingsEntry struct {
		ID         int64       `json:"id"`
		MemberID   int64       `json:"member_id"`
		GroupID    int64       `json:"group_id"`
		Amount     Money       `json:"amount"`
		Kind       SavingsKind `json:"kind"`
		SessionRef string      `json:"session_ref,omitempty"`
		Actor      string      `json:"actor"`
		CreatedAt  time.Time   `json:"created_at"`
	}

	CashEntry struct {
		ID        int64     `json:"id"`
		GroupID   int64     `json:"group_id"`
		Direction Direction `json:"direction"`
		Amount    Money     `json:"amount"`
		Reason    string    `json:"reason"`
		RefType   string    `json:"ref_type"`
		RefID     int64     `json:"ref_id"`
		Actor     string    `json:"actor"`
		CreatedAt time.Time `json:"created_at"`
	}

	Loan struct {
		ID           int64           `json:"id"`
		MemberID     int64           `json:"member_id"`
		GroupID      int64           `json:"group_id"`
		Principal    Money           `json:"principal"`
		InterestRate decimal.Decimal `json:"interest_rate"`
		Term         int             `json:"term"`
		OriginatedOn Date            `json:"originated_on"`
		Status       LoanStatus      `json:"status"`
		PaidAt       *time.Time      `json:"paid_at,omitempty"`
		Actor        string          `json:"actor"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	Payment struct {
		ID        int64     `json:"id"`
		LoanID    int64     `json:"loan_id"`
		Capital   Money     `json:"capital"`
		Interest  Money     `json:"interest"`
		PaidOn    Date      `json:"paid_on"`
		Actor     string    `json:"actor"`
		CreatedAt time.Time `json:"created_at"`
	}

	PaymentResult struct {
		PaymentID      int64 `json:"payment_id"`
		NewOutstanding Money `json:"new_outstanding"`
		BecamePaid     bool  `json:"became_paid"`
	}

	Fine struct {
		ID           int64      `json:"id"`
		MemberID     int64      `json:"member_id"`
		GroupID      int64      `json:"group_id"`
		Amount       Money      `json:"amount"`
		Reason       FineReason `json:"reason"`
		Note         string     `json:"note,omitempty"`
		AttendanceID *int64     `json:"attendance_id,omitempty"`
		Status       FineStatus `json:"status"`
		CreatedAt    time.Time  `json:"created_at"`
		PaidAt       *time.Time `json:"paid_at,omitempty"`
	}

	AttendanceRecord struct {
		ID        int64     `json:"id"`
		SessionID string    `json:"session_id"`
		MemberID  int64     `json:"member_id"`
		GroupID   int64     `json:"group_id"`
		Outcome   Outcome   `json:"outcome"`
		CreatedAt time.Time `json:"created_at"`
	}

	// AttendanceResult is the record created plus the automatic fine, if any.
	AttendanceResult struct {
		RecordID int64  `json:"record_id"`
		FineID   *int64 `json:"fine_id,omitempty"`
	}

	Cycle struct {
		ID        int64       `json:"id"`
		GroupID   int64       `json:"group_id"`
		StartDate Date        `json:"start_date"`
		EndDate   Date        `json:"end_date"`
		Status    CycleStatus `json:"status"`
		NetProfit *Money      `json:"net_profit,omitempty"`
		ClosedAt  *time.Time  `json:"closed_at,omitempty"`
	}

	Blocker struct {
		Kind BlockerKind `json:"kind"`
		IDs  []int64     `json:"ids"`
	}

	ValidationResult struct {
		OK       bool      `json:"ok"`
		Blockers []Blocker `json:"blockers"`
	}

	MemberPayout struct {
		MemberID     int64           `json:"member_id"`
		Savings      Money           `json:"savings"`
		SavingsShare decimal.Decimal `json:"savings_share"`
		ProfitShare  Money           `json:"profit_share"`
		PayoutTotal  Money           `json:"payout_total"`
	}

	ClosureReport struct {
		CycleID        int64          `json:"cycle_id"`
		GroupID        int64          `json:"group_id"`
		CashBalance    Money          `json:"cash_balance"`
		TotalSavings   Money          `json:"total_savings"`
		NetProfit      Money          `json:"net_profit"`
		NoDistribution bool           `json:"no_distribution"`
		PerMember      []MemberPayout `json:"per_member"`
		ClosedAt       time.Time      `json:"closed_at"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidInput)
	}
	return nil
}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: acting identity is required", ErrInvalidInput)
	}
	return nil
}

func (a Actor) String() string {
	if a.Role == "" {
		return a.ID
	}
	return a.ID + "/" + a.Role
}

func (d Direction) Valid() bool   { return d == Inflow || d == Outflow }
func (f Frequency) Valid() bool   { return f == Weekly || f == Biweekly || f == Monthly }
func (k SavingsKind) Valid() bool { return k == RegularSavings || k == VoluntarySavings }

func (o Outcome) Valid() bool {
	switch o {
	case Present, Absent, Excused:
		return true
	}
	return false
}

// AmountFor returns the automatic fine for an outcome; zero means no fine.
func (p FinePolicy) AmountFor(o Outcome) Money {
	switch p.Kind {
	case FixedFine:
		switch o {
		case Absent:
			return p.Absent
		case Excused:
			return p.Excused
		}
	case PercentageFine:
		switch o {
		case Absent:
			return p.Base.MulPercent(p.AbsentRate)
		case Excused:
			return p.Base.MulPercent(p.ExcusedRate)
		}
	}
	return Zero
}

func (p FinePolicy) Validate() error {
	switch p.Kind {
	case FixedFine:
		if p.Absent.IsNegative() || p.Excused.IsNegative() {
			return fmt.Errorf("%w: fine amounts cannot be negative", ErrInvalidAmount)
		}
	case PercentageFine:
		if p.AbsentRate.IsNegative() || p.ExcusedRate.IsNegative() {
			return fmt.Errorf("%w: fine rates cannot be negative", ErrInvalidInput)
		}
		if err := p.Base.Validate(); err != nil {
			return fmt.Errorf("%w: percentage policy needs a positive base", err)
		}
	default:
		return fmt.Errorf("%w: unknown fine policy kind %q", ErrInvalidInput, p.Kind)
	}
	return nil
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	if g.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate cannot be negative", ErrInvalidInput)
	}
	if !g.Frequency.Valid() {
		return fmt.Errorf("%w: unknown meeting frequency %q", ErrInvalidInput, g.Frequency)
	}
	return g.FinePolicy.Validate()
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: member name is required", ErrInvalidInput)
	}
	if len(m.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrInvalidInput)
	}
	return nil
}

// EstimatedInterest is principal × rate/100 × term. It is informational and
// never added to the outstanding balance.
func (l Loan) EstimatedInterest() Money {
	return l.Principal.MulPercent(l.InterestRate.Mul(decimal.NewFromInt(int64(l.Term))))
}

func (p Payment) Total() Money {
	return p.Capital.Add(p.Interest)
}

func (c Cycle) Validate() error {
	if err := c.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if err := c.EndDate.Validate(); err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if !c.EndDate.After(c.StartDate.Time) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidInput)
	}
	return nil
}
