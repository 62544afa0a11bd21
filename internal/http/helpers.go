package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"caja/internal/core"
)

const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

// actorFrom reads the caller identity set by the upstream identity provider.
// Validation happens in the ledger so every surface rejects the same way.
func actorFrom(r *http.Request) core.Actor {
	return core.Actor{
		ID:   sanitizeInput(r.Header.Get(ActorIDHeader)),
		Role: sanitizeInput(r.Header.Get(ActorRoleHeader)),
	}
}

// pathID parses a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", core.ErrInvalidInput, name, raw)
	}
	return id, nil
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindInvalidAmount, core.KindInvalidPayment, core.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInsufficientFunds, core.KindDuplicateAttendance, core.KindAlreadyPaid,
		core.KindBlockedClosure, core.KindInvalidTransition, core.KindGroupLocked,
		core.KindMemberHasLedger:
		return http.StatusConflict
	case core.KindContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string         `json:"error"`
	Kind      core.Kind      `json:"kind"`
	Retryable bool           `json:"retryable,omitempty"`
	Blockers  []core.Blocker `json:"blockers,omitempty"`
}

func errorResponse(err error) *ResponseBuilder {
	kind := core.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: kind, Retryable: core.Retryable(err)}
	if kind == core.KindInternal {
		body.Error = "internal error"
	}

	var blocked *core.BlockedClosureError
	if errors.As(err, &blocked) {
		body.Blockers = blocked.Blockers
	}

	b := NewResponse().Status(statusFor(kind)).JSON(body)
	if kind == core.KindContention {
		b.Header("Retry-After", "1")
	}
	return b
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
