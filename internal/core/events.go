package core

import (
	"encoding/json"
	"time"
)

// Ledger event kinds written to the outbox.
const (
	EventGroupRegistered    = "group.registered"
	EventGroupPolicyUpdated = "group.policy_updated"
	EventMemberRegistered   = "member.registered"
	EventMemberRemoved      = "member.removed"
	EventSavingsDeposited   = "savings.deposited"
	EventLoanOriginated     = "loan.originated"
	EventPaymentApplied     = "loan.payment_applied"
	EventLoanPaid           = "loan.paid"
	EventFineLevied         = "fine.levied"
	EventFinePaid           = "fine.paid"
	EventAttendanceRecorded = "attendance.recorded"
	EventCyclePlanned       = "cycle.planned"
	EventCycleActivated     = "cycle.activated"
	EventCycleClosed        = "cycle.closed"
)

// Event is an outbox row. Payload is the JSON of the entity involved.
type Event struct {
	ID        string          `json:"id"`
	GroupID   int64           `json:"group_id"`
	Kind      string          `json:"kind"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Attempts  int             `json:"attempts,omitempty"`
}
