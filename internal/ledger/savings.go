package ledger

import (
	"context"
	"fmt"

	"caja/internal/core"
	"caja/internal/storage"
)

type Savings struct {
	q    *storage.Queries
	cash CashBox
}

func NewSavings(q *storage.Queries) Savings {
	return Savings{q: q, cash: NewCashBox(q)}
}

// DepositRequest describes one savings deposit. Kind defaults to regular.
type DepositRequest struct {
	MemberID   int64            `json:"member_id"`
	Amount     core.Money       `json:"amount"`
	Kind       core.SavingsKind `json:"kind,omitempty"`
	SessionRef string           `json:"session_ref,omitempty"`
}

// Deposit appends a savings entry and the matching cash inflow.
func (s Savings) Deposit(ctx context.Context, actor core.Actor, req DepositRequest) (core.SavingsEntry, error) {
	if err := req.Amount.Validate(); err != nil {
		return core.SavingsEntry{}, err
	}
	if req.Kind == "" {
		req.Kind = core.RegularSavings
	}
	if !req.Kind.Valid() {
		return core.SavingsEntry{}, fmt.Errorf("%w: savings kind %q", core.ErrInvalidInput, req.Kind)
	}

	member, err := s.q.GetMember(ctx, req.MemberID)
	if err != nil {
		return core.SavingsEntry{}, err
	}

	entry := core.SavingsEntry{
		MemberID:   member.ID,
		GroupID:    member.GroupID,
		Amount:     req.Amount,
		Kind:       req.Kind,
		SessionRef: req.SessionRef,
		Actor:      actor.String(),
	}
	entry.ID, err = s.q.InsertSavingsEntry(ctx, entry)
	if err != nil {
		return core.SavingsEntry{}, err
	}
	if _, err := s.cash.Record(ctx, actor, member.GroupID, core.Inflow, req.Amount, "savings deposit", RefSavings, entry.ID); err != nil {
		return core.SavingsEntry{}, err
	}
	entry.CreatedAt = s.q.Now()
	return entry, nil
}

func (s Savings) TotalForMember(ctx context.Context, memberID int64) (core.Money, error) {
	if _, err := s.q.GetMember(ctx, memberID); err != nil {
		return core.Zero, err
	}
	cents, err := s.q.SavingsTotalForMember(ctx, memberID)
	if err != nil {
		return core.Zero, err
	}
	return core.Cents(cents), nil
}

// HistoryForMember lists the member's deposits oldest first.
func (s Savings) HistoryForMember(ctx context.Context, memberID int64) ([]core.SavingsEntry, error) {
	if _, err := s.q.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return nonNil(s.q.ListSavingsForMember(ctx, memberID))
}

func (s Savings) TotalForGroup(ctx context.Context, groupID int64) (core.Money, error) {
	if _, err := s.q.GetGroup(ctx, groupID); err != nil {
		return core.Zero, err
	}
	cents, err := s.q.SavingsTotalForGroup(ctx, groupID)
	if err != nil {
		return core.Zero, err
	}
	return core.Cents(cents), nil
}
