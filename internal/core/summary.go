package core

import "time"

// MemberStatement is the member dashboard projection.
type MemberStatement struct {
	MemberID       int64 `json:"member_id"`
	GroupID        int64 `json:"group_id"`
	TotalSavings   Money `json:"total_savings"`
	OutstandingDue Money `json:"outstanding_capital"`
	ActiveLoans    int   `json:"active_loans"`
	PendingFines   Money `json:"pending_fines"`
	PendingCount   int   `json:"pending_fine_count"`
}

// LoanProgress compares what was paid against the informational estimate.
type LoanProgress struct {
	LoanID          int64      `json:"loan_id"`
	Status          LoanStatus `json:"status"`
	Principal       Money      `json:"principal"`
	CapitalPaid     Money      `json:"capital_paid"`
	InterestPaid    Money      `json:"interest_paid"`
	Outstanding     Money      `json:"outstanding"`
	EstimatedTotal  Money      `json:"estimated_total"`
	MaturityDate    Date       `json:"maturity_date"`
	Overdue         bool       `json:"overdue"`
	PaymentCount    int        `json:"payment_count"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`
}
