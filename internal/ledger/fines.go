package ledger

import (
	"context"
	"fmt"
	"strings"

	"caja/internal/core"
	"caja/internal/storage"
)

// Fines turns attendance outcomes and infractions into sanctions and
// collects them.
type Fines struct {
	q    *storage.Queries
	cash CashBox
}

func NewFines(q *storage.Queries) Fines {
	return Fines{q: q, cash: NewCashBox(q)}
}

func (f Fines) ApplyManual(ctx context.Context, actor core.Actor, memberID int64, amount core.Money, note string) (core.Fine, error) {
	if err := amount.Validate(); err != nil {
		return core.Fine{}, err
	}
	member, err := f.q.GetMember(ctx, memberID)
	if err != nil {
		return core.Fine{}, err
	}
	fine := core.Fine{
		MemberID: member.ID,
		GroupID:  member.GroupID,
		Amount:   amount,
		Reason:   core.FineManualInfraction,
		Note:     strings.TrimSpace(note),
		Status:   core.FinePending,
	}
	fine.ID, err = f.q.InsertFine(ctx, fine, actor.String())
	if err != nil {
		return core.Fine{}, err
	}
	fine.CreatedAt = f.q.Now()
	return fine, nil
}

// RecordAttendance stores the outcome for (session, member) and levies the
// automatic fine the group's policy prescribes. A second call for the same
// pair fails with ErrDuplicateAttendance and creates nothing.
func (f Fines) RecordAttendance(ctx context.Context, actor core.Actor, sessionID string, memberID int64,
	outcome core.Outcome) (core.AttendanceResult, *core.Fine, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return core.AttendanceResult{}, nil, fmt.Errorf("%w: session id is required", core.ErrInvalidInput)
	}
	if !outcome.Valid() {
		return core.AttendanceResult{}, nil, fmt.Errorf("%w: attendance outcome %q", core.ErrInvalidInput, outcome)
	}

	member, err := f.q.GetMember(ctx, memberID)
	if err != nil {
		return core.AttendanceResult{}, nil, err
	}
	exists, err := f.q.AttendanceExists(ctx, sessionID, memberID)
	if err != nil {
		return core.AttendanceResult{}, nil, err
	}
	if exists {
		return core.AttendanceResult{}, nil, fmt.Errorf("session %s member %d: %w", sessionID, memberID, core.ErrDuplicateAttendance)
	}

	recordID, err := f.q.InsertAttendance(ctx, core.AttendanceRecord{
		SessionID: sessionID,
		MemberID:  member.ID,
		GroupID:   member.GroupID,
		Outcome:   outcome,
	}, actor.String())
	if storage.IsUniqueViolation(err) {
		return core.AttendanceResult{}, nil, fmt.Errorf("session %s member %d: %w", sessionID, memberID, core.ErrDuplicateAttendance)
	}
	if err != nil {
		return core.AttendanceResult{}, nil, err
	}
	result := core.AttendanceResult{RecordID: recordID}

	group, err := f.q.GetGroup(ctx, member.GroupID)
	if err != nil {
		return core.AttendanceResult{}, nil, err
	}
	amount := group.FinePolicy.AmountFor(outcome)
	if !amount.IsPositive() {
		return result, nil, nil
	}

	reason := core.FineAutoAbsence
	if outcome == core.Excused {
		reason = core.FineAutoExcused
	}
	fine := core.Fine{
		MemberID:     member.ID,
		GroupID:      member.GroupID,
		Amount:       amount,
		Reason:       reason,
		Note:         "session " + sessionID,
		AttendanceID: &recordID,
		Status:       core.FinePending,
	}
	fine.ID, err = f.q.InsertFine(ctx, fine, actor.String())
	if err != nil {
		return core.AttendanceResult{}, nil, err
	}
	fine.CreatedAt = f.q.Now()
	result.FineID = &fine.ID
	return result, &fine, nil
}

// PayFine flips a pending fine to paid and records the cash inflow.
func (f Fines) PayFine(ctx context.Context, actor core.Actor, fineID int64) (core.Fine, error) {
	fine, err := f.q.GetFine(ctx, fineID)
	if err != nil {
		return core.Fine{}, err
	}
	if fine.Status == core.FinePaid {
		return core.Fine{}, fmt.Errorf("fine %d: %w", fineID, core.ErrAlreadyPaid)
	}

	now := f.q.Now()
	flipped, err := f.q.MarkFinePaid(ctx, fineID, now)
	if err != nil {
		return core.Fine{}, err
	}
	if !flipped {
		return core.Fine{}, fmt.Errorf("fine %d: %w", fineID, core.ErrAlreadyPaid)
	}
	if _, err := f.cash.Record(ctx, actor, fine.GroupID, core.Inflow, fine.Amount, "fine payment", RefFine, fine.ID); err != nil {
		return core.Fine{}, err
	}
	fine.Status = core.FinePaid
	fine.PaidAt = &now
	return fine, nil
}

func (f Fines) PendingForMember(ctx context.Context, memberID int64) ([]core.Fine, error) {
	if _, err := f.q.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return nonNil(f.q.ListPendingFinesForMember(ctx, memberID))
}

// HistoryForMember lists every fine of the member in levy order.
func (f Fines) HistoryForMember(ctx context.Context, memberID int64) ([]core.Fine, error) {
	if _, err := f.q.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return nonNil(f.q.ListFinesForMember(ctx, memberID))
}

func (f Fines) PendingForGroup(ctx context.Context, groupID int64) ([]core.Fine, error) {
	if _, err := f.q.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return nonNil(f.q.ListPendingFinesForGroup(ctx, groupID))
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
