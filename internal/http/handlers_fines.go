package http

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"caja/internal/core"
)

func (s *Server) handleRecordAttendance(w http.ResponseWriter, r *http.Request) {
	sessionID := sanitizeInput(mux.Vars(r)["sessionID"])
	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	res, err := s.ledger.RecordAttendance(r.Context(), actorFrom(r), sessionID, req.MemberID, req.Outcome)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(res).Write(w)
}

func (s *Server) handleSessionAttendance(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	records, err := s.ledger.Attendance(r.Context(), groupID, sanitizeInput(mux.Vars(r)["sessionID"]))
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(records)).Write(w)
}

func (s *Server) handleApplyFine(w http.ResponseWriter, r *http.Request) {
	var req fineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	fine, err := s.ledger.ApplyFine(r.Context(), actorFrom(r), req.MemberID, req.Amount, sanitizeInput(req.Note))
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(fine).Write(w)
}

func (s *Server) handlePayFine(w http.ResponseWriter, r *http.Request) {
	fineID, err := pathID(r, "fineID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	fine, err := s.ledger.PayFine(r.Context(), actorFrom(r), fineID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(fine).Write(w)
}

func (s *Server) handleMemberFines(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	var fines []core.Fine
	switch status := r.URL.Query().Get("status"); status {
	case "", "pending":
		fines, err = s.ledger.PendingFines(r.Context(), memberID)
	case "all":
		fines, err = s.ledger.FineHistory(r.Context(), memberID)
	default:
		err = fmt.Errorf("%w: status must be pending or all, got %q", core.ErrInvalidInput, sanitizeInput(status))
	}
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(fines)).Write(w)
}

func (s *Server) handleGroupPendingFines(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	fines, err := s.ledger.PendingFinesForGroup(r.Context(), groupID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(fines)).Write(w)
}
