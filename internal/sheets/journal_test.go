package sheets

import (
	"encoding/json"
	"testing"
	"time"

	"caja/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestNewJournalEntry(t *testing.T) {
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		kind    string
		payload any
		amount  int64
		summary string
	}{
		{
			name:    "deposit",
			kind:    core.EventSavingsDeposited,
			payload: core.SavingsEntry{ID: 4, MemberID: 2, Amount: core.Cents(2500)},
			amount:  2500,
			summary: "member #2 saved 25.00",
		},
		{
			name:    "loan is an outflow",
			kind:    core.EventLoanOriginated,
			payload: core.Loan{ID: 7, MemberID: 2, Principal: core.Cents(10000)},
			amount:  -10000,
			summary: "loan #7 to member #2",
		},
		{
			name: "payment",
			kind: core.EventPaymentApplied,
			payload: map[string]any{
				"loan_id": 7, "capital": core.Cents(4000), "interest": core.Cents(500),
				"new_outstanding": core.Cents(6000),
			},
			amount:  4500,
			summary: "loan #7 paid capital 40.00 interest 5.00, outstanding 60.00",
		},
		{
			name:    "levied fine moves no cash",
			kind:    core.EventFineLevied,
			payload: core.Fine{ID: 3, MemberID: 5, Amount: core.Cents(200), Reason: core.FineAutoAbsence},
			amount:  0,
			summary: "fine #3 on member #5 (auto_absence) 2.00",
		},
		{
			name:    "closure",
			kind:    core.EventCycleClosed,
			payload: core.ClosureReport{CycleID: 9, NetProfit: core.Cents(1234)},
			summary: "cycle #9 closed, net profit 12.34",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewJournalEntry("ev", 1, tt.kind, "treasurer", at, mustJSON(t, tt.payload))
			assert.Equal(t, tt.amount, e.Amount.Cents)
			assert.Equal(t, tt.summary, e.Summary)
			assert.Equal(t, tt.kind, e.Kind)
		})
	}
}

func TestNewJournalEntry_BadPayload(t *testing.T) {
	e := NewJournalEntry("ev", 1, core.EventLoanPaid, "a", time.Now(), []byte("not json"))
	assert.Equal(t, core.EventLoanPaid, e.Summary)
	assert.True(t, e.Amount.IsZero())
}

func TestRowRoundTrip(t *testing.T) {
	e := JournalEntry{
		EventID:    "ev-1",
		GroupID:    12,
		Kind:       core.EventFinePaid,
		Actor:      "secretary",
		OccurredAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		Amount:     core.Cents(-150),
		Summary:    "fine #1 paid by member #2",
	}

	got, err := ParseRow(e.Row())
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = ParseRow([]any{"occurred_at", "group"})
	assert.Error(t, err)
	_, err = ParseRow([]any{"occurred_at", "group", "kind", "summary", "amount", "actor", "event_id"})
	assert.Error(t, err, "header row does not parse")
}
