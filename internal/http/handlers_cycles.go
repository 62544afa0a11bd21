package http

import "net/http"

func (s *Server) handlePlanCycle(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	var req cycleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}

	c, err := s.ledger.PlanCycle(r.Context(), actorFrom(r), groupID, req.StartDate, req.EndDate)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(c).Header("Location", "/api/v1/cycles/"+itoa(c.ID)).Write(w)
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := pathID(r, "cycleID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	c, err := s.ledger.Cycle(r.Context(), cycleID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(c).Write(w)
}

func (s *Server) handleActivateCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := pathID(r, "cycleID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	c, err := s.ledger.ActivateCycle(r.Context(), actorFrom(r), cycleID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(c).Write(w)
}

// handleCanClose reports the blockers without closing; it never fails on
// blockers, only on a missing cycle.
func (s *Server) handleCanClose(w http.ResponseWriter, r *http.Request) {
	cycleID, err := pathID(r, "cycleID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	v, err := s.ledger.CanClose(r.Context(), cycleID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	v.Blockers = nonNil(v.Blockers)
	OK(v).Write(w)
}

func (s *Server) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := pathID(r, "cycleID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	report, err := s.ledger.CloseCycle(r.Context(), actorFrom(r), cycleID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(report).Write(w)
}

func (s *Server) handleClosureReport(w http.ResponseWriter, r *http.Request) {
	cycleID, err := pathID(r, "cycleID")
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	report, err := s.ledger.ClosureReport(r.Context(), cycleID)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(report).Write(w)
}
