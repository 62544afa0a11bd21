package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestFinePolicyAmountFor(t *testing.T) {
	fixed := FinePolicy{Kind: FixedFine, Absent: Cents(500), Excused: Cents(200)}
	pct := FinePolicy{
		Kind:        PercentageFine,
		Base:        Cents(2000),
		AbsentRate:  decimal.NewFromInt(25),
		ExcusedRate: decimal.RequireFromString("7.5"),
	}
	cases := []struct {
		p    FinePolicy
		o    Outcome
		want int64
	}{
		{fixed, Absent, 500},
		{fixed, Excused, 200},
		{fixed, Present, 0},
		{pct, Absent, 500},
		{pct, Excused, 150},
		{pct, Present, 0},
	}
	for i, tc := range cases {
		if got := tc.p.AmountFor(tc.o); got.Cents != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got.Cents)
		}
	}
}

func TestGroupValidate(t *testing.T) {
	good := Group{
		Name:         "Las Flores",
		InterestRate: decimal.NewFromInt(5),
		Frequency:    Weekly,
		FinePolicy:   FinePolicy{Kind: FixedFine, Absent: Cents(100)},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Group{
		{Name: "", InterestRate: decimal.Zero, Frequency: Weekly, FinePolicy: FinePolicy{Kind: FixedFine}},
		{Name: "g", InterestRate: decimal.NewFromInt(-1), Frequency: Weekly, FinePolicy: FinePolicy{Kind: FixedFine}},
		{Name: "g", InterestRate: decimal.Zero, Frequency: "daily", FinePolicy: FinePolicy{Kind: FixedFine}},
		{Name: "g", InterestRate: decimal.Zero, Frequency: Monthly, FinePolicy: FinePolicy{Kind: "other"}},
		{Name: "g", InterestRate: decimal.Zero, Frequency: Monthly, FinePolicy: FinePolicy{Kind: PercentageFine}},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestLoanEstimatedInterest(t *testing.T) {
	l := Loan{Principal: Cents(10000), InterestRate: decimal.NewFromInt(2), Term: 6}
	if got := l.EstimatedInterest(); got.Cents != 1200 {
		t.Fatalf("expected 1200, got %d", got.Cents)
	}
}

func TestCycleValidate(t *testing.T) {
	ok := Cycle{StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 12, 31)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := Cycle{StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 1)}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	blocked := &BlockedClosureError{CycleID: 3, Blockers: []Blocker{{Kind: ActiveLoansExist, IDs: []int64{1}}}}
	cases := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("originate: %w", ErrInsufficientFunds), KindInsufficientFunds},
		{fmt.Errorf("close: %w", blocked), KindBlockedClosure},
		{ErrContention, KindContention},
		{errors.New("boom"), KindInternal},
		{nil, ""},
	}
	for i, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("case %d: expected %s, got %s", i, tc.want, got)
		}
	}
	if !Retryable(fmt.Errorf("tx: %w", ErrContention)) || Retryable(ErrNotFound) {
		t.Fatal("only contention is retryable")
	}
}
