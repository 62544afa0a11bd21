package http

import (
	"net/http"

	"caja/internal/ledger"
)

func (s *Server) handleOriginateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	loan, err := s.ledger.OriginateLoan(r.Context(), actorFrom(r), ledger.LoanRequest{
		MemberID:     req.MemberID,
		Principal:    req.Principal,
		InterestRate: req.InterestRate,
		Term:         req.Term,
		OriginatedOn: req.OriginatedOn,
	})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(loan).Header("Location", "/api/v1/loans/"+itoa(loan.ID)).Write(w)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	loan, err := s.ledger.Loan(r.Context(), loanID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(loan).Write(w)
}

func (s *Server) handleApplyPayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	res, err := s.ledger.ApplyPayment(r.Context(), actorFrom(r), ledger.PaymentRequest{
		LoanID:   loanID,
		Capital:  req.Capital,
		Interest: req.Interest,
		PaidOn:   req.PaidOn,
	})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(res).Write(w)
}

func (s *Server) handleLoanPayments(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	payments, err := s.ledger.Payments(r.Context(), loanID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(payments)).Write(w)
}

func (s *Server) handleLoanProgress(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	p, err := s.ledger.LoanProgress(r.Context(), loanID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(p).Write(w)
}

func (s *Server) handleActiveLoans(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	loans, err := s.ledger.ActiveLoans(r.Context(), groupID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(loans)).Write(w)
}

func (s *Server) handleMemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	loans, err := s.ledger.LoansForMember(r.Context(), memberID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(loans)).Write(w)
}
