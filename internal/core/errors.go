package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPayment      = errors.New("invalid payment")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateAttendance = errors.New("attendance already recorded")
	ErrAlreadyPaid         = errors.New("already paid")
	ErrNotFound            = errors.New("not found")
	ErrBlockedClosure      = errors.New("cycle closure blocked")
	ErrContention          = errors.New("contention: retry the operation")

	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrGroupLocked       = errors.New("group is locked by a closed cycle")
	ErrMemberHasLedger   = errors.New("member owns ledger entries")
)

// Kind is the stable name of an error category, suitable for API payloads.
type Kind string

const (
	KindInvalidAmount       Kind = "InvalidAmount"
	KindInvalidPayment      Kind = "InvalidPayment"
	KindInsufficientFunds   Kind = "InsufficientFunds"
	KindDuplicateAttendance Kind = "DuplicateAttendance"
	KindAlreadyPaid         Kind = "AlreadyPaid"
	KindNotFound            Kind = "NotFound"
	KindBlockedClosure      Kind = "BlockedClosure"
	KindContention          Kind = "Contention"
	KindInvalidInput        Kind = "InvalidInput"
	KindInvalidTransition   Kind = "InvalidTransition"
	KindGroupLocked         Kind = "GroupLocked"
	KindMemberHasLedger     Kind = "MemberHasLedger"
	KindInternal            Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidPayment, KindInvalidPayment},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrDuplicateAttendance, KindDuplicateAttendance},
	{ErrAlreadyPaid, KindAlreadyPaid},
	{ErrNotFound, KindNotFound},
	{ErrBlockedClosure, KindBlockedClosure},
	{ErrContention, KindContention},
	{ErrInvalidInput, KindInvalidInput},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrGroupLocked, KindGroupLocked},
	{ErrMemberHasLedger, KindMemberHasLedger},
}

// KindOf maps err to its kind. Unknown errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the whole operation may be resubmitted unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention)
}

// BlockedClosureError lists what prevents a cycle from closing.
type BlockedClosureError struct {
	CycleID  int64
	Blockers []Blocker
}

func (e *BlockedClosureError) Error() string {
	names := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		names[i] = string(b.Kind)
	}
	return fmt.Sprintf("cycle %d: %s: %s", e.CycleID, ErrBlockedClosure, strings.Join(names, ", "))
}

func (e *BlockedClosureError) Is(target error) bool {
	return target == ErrBlockedClosure
}
