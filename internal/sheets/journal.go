package sheets

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"caja/internal/core"
)

// eventFields are the payload fields the journal summary draws on.
type eventFields struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	MemberID       int64       `json:"member_id"`
	LoanID         int64       `json:"loan_id"`
	CycleID        int64       `json:"cycle_id"`
	SessionID      string      `json:"session_id"`
	Outcome        string      `json:"outcome"`
	Reason         string      `json:"reason"`
	Amount         *core.Money `json:"amount"`
	Principal      *core.Money `json:"principal"`
	Capital        *core.Money `json:"capital"`
	Interest       *core.Money `json:"interest"`
	NetProfit      *core.Money `json:"net_profit"`
	NewOutstanding *core.Money `json:"new_outstanding"`
}

func orZero(m *core.Money) core.Money {
	if m == nil {
		return core.Zero
	}
	return *m
}

// NewJournalEntry builds a journal row from an event payload. Payloads it
// cannot decode still produce an entry, with the kind as summary.
func NewJournalEntry(eventID string, groupID int64, kind, actor string, occurredAt time.Time, payload []byte) JournalEntry {
	e := JournalEntry{
		EventID:    eventID,
		GroupID:    groupID,
		Kind:       kind,
		Actor:      actor,
		OccurredAt: occurredAt.UTC(),
		Summary:    kind,
	}

	var f eventFields
	if err := json.Unmarshal(payload, &f); err != nil {
		return e
	}

	switch kind {
	case core.EventGroupRegistered, core.EventGroupPolicyUpdated:
		e.Summary = fmt.Sprintf("group %q", f.Name)
	case core.EventMemberRegistered, core.EventMemberRemoved:
		e.Summary = fmt.Sprintf("member #%d %q", f.ID, f.Name)
	case core.EventSavingsDeposited:
		e.Amount = orZero(f.Amount)
		e.Summary = fmt.Sprintf("member #%d saved %s", f.MemberID, e.Amount)
	case core.EventLoanOriginated:
		e.Amount = orZero(f.Principal).Neg()
		e.Summary = fmt.Sprintf("loan #%d to member #%d", f.ID, f.MemberID)
	case core.EventPaymentApplied:
		e.Amount = orZero(f.Capital).Add(orZero(f.Interest))
		e.Summary = fmt.Sprintf("loan #%d paid capital %s interest %s, outstanding %s",
			f.LoanID, orZero(f.Capital), orZero(f.Interest), orZero(f.NewOutstanding))
	case core.EventLoanPaid:
		e.Summary = fmt.Sprintf("loan #%d fully repaid", f.ID)
	case core.EventFineLevied:
		e.Summary = fmt.Sprintf("fine #%d on member #%d (%s) %s", f.ID, f.MemberID, f.Reason, orZero(f.Amount))
	case core.EventFinePaid:
		e.Amount = orZero(f.Amount)
		e.Summary = fmt.Sprintf("fine #%d paid by member #%d", f.ID, f.MemberID)
	case core.EventAttendanceRecorded:
		e.Summary = fmt.Sprintf("session %s member #%d %s", f.SessionID, f.MemberID, f.Outcome)
	case core.EventCyclePlanned, core.EventCycleActivated:
		e.Summary = fmt.Sprintf("cycle #%d %s", f.ID, strings.TrimPrefix(kind, "cycle."))
	case core.EventCycleClosed:
		e.Summary = fmt.Sprintf("cycle #%d closed, net profit %s", f.CycleID, orZero(f.NetProfit))
	}
	return e
}

// Row renders the entry as journal columns A:G.
func (e JournalEntry) Row() []any {
	return []any{
		e.OccurredAt.Format(time.RFC3339),
		e.GroupID,
		e.Kind,
		e.Summary,
		e.Amount.String(),
		e.Actor,
		e.EventID,
	}
}

// ParseRow is the inverse of Row. Short or malformed rows are rejected.
func ParseRow(row []any) (JournalEntry, error) {
	if len(row) < 7 {
		return JournalEntry{}, fmt.Errorf("journal row has %d columns, want 7", len(row))
	}
	cols := make([]string, len(row))
	for i, v := range row {
		cols[i] = strings.TrimSpace(fmt.Sprint(v))
	}

	at, err := time.Parse(time.RFC3339, cols[0])
	if err != nil {
		return JournalEntry{}, fmt.Errorf("journal timestamp %q: %w", cols[0], err)
	}
	var groupID int64
	if _, err := fmt.Sscan(cols[1], &groupID); err != nil {
		return JournalEntry{}, fmt.Errorf("journal group %q: %w", cols[1], err)
	}
	amount, err := core.ParseMoney(cols[4])
	if err != nil {
		return JournalEntry{}, fmt.Errorf("journal amount %q: %w", cols[4], err)
	}
	return JournalEntry{
		OccurredAt: at,
		GroupID:    groupID,
		Kind:       cols[2],
		Summary:    cols[3],
		Amount:     amount,
		Actor:      cols[5],
		EventID:    cols[6],
	}, nil
}
