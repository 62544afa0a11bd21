package http

import (
	"net/http"

	"caja/internal/core"
	"caja/internal/ledger"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type totalResponse struct {
	Total core.Money `json:"total"`
}

type balanceResponse struct {
	GroupID int64      `json:"group_id"`
	Balance core.Money `json:"balance"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	entry, err := s.ledger.Deposit(r.Context(), actorFrom(r), ledger.DepositRequest{
		MemberID:   req.MemberID,
		Amount:     req.Amount,
		Kind:       req.Kind,
		SessionRef: sanitizeInput(req.SessionRef),
	})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(entry).Write(w)
}

func (s *Server) handleMemberSavingsTotal(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	total, err := s.ledger.SavingsTotalForMember(r.Context(), memberID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(totalResponse{Total: total}).Write(w)
}

func (s *Server) handleMemberSavings(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	entries, err := s.ledger.SavingsHistory(r.Context(), memberID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(entries)).Write(w)
}

func (s *Server) handleGroupSavingsTotal(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	total, err := s.ledger.SavingsTotalForGroup(r.Context(), groupID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(totalResponse{Total: total}).Write(w)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	balance, err := s.ledger.Balance(r.Context(), groupID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(balanceResponse{GroupID: groupID, Balance: balance}).Write(w)
}

// handleCashHistory lists cash movements newest first.
// Query: since (RFC 3339 or YYYY-MM-DD), limit (default 100, max 1000).
func (s *Server) handleCashHistory(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	q := r.URL.Query()
	since, err := queryTime(q, "since")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	limit, err := queryInt(q, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}

	entries, err := s.ledger.CashHistory(r.Context(), groupID, since, limit)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(entries)).Write(w)
}
